package models

const (
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Username     string `gorm:"unique;not null"           json:"username"`
	PasswordHash string `gorm:"not null"                  json:"-"`
	Role         string `gorm:"not null;default:employee" json:"role"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

const (
	CategoryAppetizer = "appetizer"
	CategoryMain      = "main"
	CategoryDessert   = "dessert"
	CategoryDrink     = "drink"
)

func ValidCategory(c string) bool {
	switch c {
	case CategoryAppetizer, CategoryMain, CategoryDessert, CategoryDrink:
		return true
	}
	return false
}

// Availability is the remaining stock count. It is only ever changed through
// the stock ledger; the check constraint keeps it from going negative even if
// a raw update slips past the ledger.
type MenuItem struct {
	ID           uint    `gorm:"primaryKey;autoIncrement"          json:"id"`
	Name         string  `gorm:"not null"                          json:"name"`
	Price        float64 `gorm:"not null"                          json:"price"`
	Availability int     `gorm:"not null;check:availability >= 0"  json:"availability"`
	Category     string  `gorm:"not null;index"                    json:"category"`
}

const (
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
)

// The partial unique index enforces at most one in_progress order per table
// at the database level, so two concurrent submissions cannot both create one.
type Order struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	TableNumber int    `gorm:"not null;index:idx_orders_active_table,unique,where:status = 'in_progress'" json:"table_number"`
	Status      string `gorm:"not null;default:in_progress" json:"status"`
	CreatedAt   int64  `gorm:"not null"                 json:"created_at"`
	PlacedByID  uint   `gorm:"index;not null"           json:"placed_by"`
}

type OrderItem struct {
	ID         uint `gorm:"primaryKey;autoIncrement"    json:"id"`
	OrderID    uint `gorm:"index;not null"              json:"order_id"`
	MenuItemID uint `gorm:"index;not null"              json:"menu_item"`
	Quantity   int  `gorm:"not null;check:quantity > 0" json:"quantity"`
}
