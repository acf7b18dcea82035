// Package order implements the table-order workflow: submit is
// create-or-full-replace for a table's active order, item updates go through
// the stock ledger, and completion is a one-way transition.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/logging"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/policy"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/service/stock"
)

var (
	ErrValidation       = errors.New("validation")        // 400
	ErrNotFound         = errors.New("not found")         // 404
	ErrOrderClosed      = errors.New("order closed")      // 409
	ErrAlreadyCompleted = errors.New("already completed") // 409
)

type Service struct {
	DB *gorm.DB
}

type SubmitItem struct {
	MenuItemID uint `json:"menu_item"`
	Quantity   int  `json:"quantity"`
}

type ItemView struct {
	ID           uint    `json:"id"`
	MenuItemID   uint    `json:"menu_item"`
	MenuItemName string  `json:"menu_item_name"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
}

type OrderView struct {
	ID          uint       `json:"id"`
	TableNumber int        `json:"table_number"`
	Status      string     `json:"status"`
	CreatedAt   int64      `json:"created_at"`
	PlacedBy    uint       `json:"placed_by"`
	TotalPrice  float64    `json:"total_price"`
	Items       []ItemView `json:"items"`
}

// Submit creates the active order for a table, or fully replaces its items
// when one is already in progress. The whole submission runs in one
// transaction: if any reservation fails nothing is kept, earlier
// reservations included.
func (s *Service) Submit(ctx context.Context, principal policy.Principal, tableNumber int, items []SubmitItem) (*OrderView, error) {
	l := logging.FromContext(ctx).With("svc", "order.submit", "table", tableNumber)

	if tableNumber <= 0 {
		return nil, fmt.Errorf("%w: table_number required", ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	for i := range items {
		if items[i].MenuItemID == 0 {
			return nil, fmt.Errorf("%w: menu_item required", ErrValidation)
		}
		if items[i].Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
	}

	var ord models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("table_number = ?", tableNumber).
			Order("created_at DESC, id DESC").
			First(&ord).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			ord = models.Order{
				TableNumber: tableNumber,
				Status:      models.OrderStatusInProgress,
				CreatedAt:   time.Now().Unix(),
				PlacedByID:  principal.UserID,
			}
			if err := tx.Create(&ord).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case ord.Status == models.OrderStatusCompleted:
			return fmt.Errorf("%w: table %d", ErrOrderClosed, tableNumber)
		default:
			// Full replacement: give every reserved quantity back before
			// reserving the new list.
			var existing []models.OrderItem
			if err := tx.Where("order_id = ?", ord.ID).Find(&existing).Error; err != nil {
				return err
			}
			for i := range existing {
				if err := stock.Release(tx, &existing[i]); err != nil {
					return err
				}
			}
		}

		for _, it := range items {
			if err := stock.Reserve(tx, it.MenuItemID, it.Quantity); err != nil {
				return err
			}
			row := models.OrderItem{OrderID: ord.ID, MenuItemID: it.MenuItemID, Quantity: it.Quantity}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		l.Warn("submit_order_failed", "error", txErr)
		return nil, txErr
	}

	l.Info("submit_order_success", "order_id", ord.ID)
	return s.Get(ctx, ord.ID)
}

// UpdateItem sets the quantity of the order's line for menuItemID.
// quantity 0 means restore-and-delete.
func (s *Service) UpdateItem(ctx context.Context, orderID, menuItemID uint, quantity int) (*OrderView, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ord, err := activeOrder(tx, orderID)
		if err != nil {
			return err
		}
		item, err := orderLine(tx, ord.ID, menuItemID)
		if err != nil {
			return err
		}
		if quantity == 0 {
			return stock.Release(tx, item)
		}
		return stock.Adjust(tx, item, quantity)
	})
	if txErr != nil {
		return nil, txErr
	}
	return s.Get(ctx, orderID)
}

// ReplaceItem swaps the (oldMenuItemID, oldQuantity) line for a fresh
// reservation of newQuantity on newMenuItemID.
func (s *Service) ReplaceItem(ctx context.Context, orderID, oldMenuItemID uint, oldQuantity int, newMenuItemID uint, newQuantity int) (*OrderView, error) {
	if newMenuItemID == 0 || newQuantity <= 0 {
		return nil, fmt.Errorf("%w: new_menu_item and new_quantity > 0 required", ErrValidation)
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ord, err := activeOrder(tx, orderID)
		if err != nil {
			return err
		}

		var item models.OrderItem
		err = tx.Where("order_id = ? AND menu_item_id = ? AND quantity = ?",
			ord.ID, oldMenuItemID, oldQuantity).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: item (menu_item=%d, quantity=%d) not on order %d",
				ErrNotFound, oldMenuItemID, oldQuantity, orderID)
		}
		if err != nil {
			return err
		}

		if err := stock.Release(tx, &item); err != nil {
			return err
		}
		if err := stock.Reserve(tx, newMenuItemID, newQuantity); err != nil {
			return err
		}
		row := models.OrderItem{OrderID: ord.ID, MenuItemID: newMenuItemID, Quantity: newQuantity}
		return tx.Create(&row).Error
	})
	if txErr != nil {
		return nil, txErr
	}
	return s.Get(ctx, orderID)
}

// Complete transitions the order to its terminal state. Reserved stock stays
// consumed, completion never touches availability.
func (s *Service) Complete(ctx context.Context, orderID uint) (*OrderView, error) {
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ord models.Order
		if err := tx.First(&ord, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}
		if ord.Status == models.OrderStatusCompleted {
			return fmt.Errorf("%w: order %d", ErrAlreadyCompleted, orderID)
		}
		return tx.Model(&ord).UpdateColumn("status", models.OrderStatusCompleted).Error
	})
	if txErr != nil {
		return nil, txErr
	}
	return s.Get(ctx, orderID)
}

func (s *Service) Get(ctx context.Context, orderID uint) (*OrderView, error) {
	var ord models.Order
	if err := s.DB.WithContext(ctx).First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	return s.hydrate(ctx, &ord)
}

// List returns orders for every authenticated role; tableNumber 0 means all.
func (s *Service) List(ctx context.Context, tableNumber int) ([]OrderView, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{})
	if tableNumber > 0 {
		q = q.Where("table_number = ?", tableNumber)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return s.hydrateAll(ctx, orders)
}

// ListCompleted is the audit listing: completed orders only, newest first.
func (s *Service) ListCompleted(ctx context.Context) ([]OrderView, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.OrderStatusCompleted).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return s.hydrateAll(ctx, orders)
}

func activeOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var ord models.Order
	if err := tx.First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	if ord.Status == models.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: order %d", ErrOrderClosed, orderID)
	}
	return &ord, nil
}

func orderLine(tx *gorm.DB, orderID, menuItemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	err := tx.Where("order_id = ? AND menu_item_id = ?", orderID, menuItemID).
		Order("id ASC").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: menu item %d not on order %d", ErrNotFound, menuItemID, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// hydrate builds the response view. total_price is never stored, it is
// recomputed from the current menu prices on every read.
func (s *Service) hydrate(ctx context.Context, ord *models.Order) (*OrderView, error) {
	var rows []models.OrderItem
	if err := s.DB.WithContext(ctx).
		Where("order_id = ?", ord.ID).Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	view := &OrderView{
		ID:          ord.ID,
		TableNumber: ord.TableNumber,
		Status:      ord.Status,
		CreatedAt:   ord.CreatedAt,
		PlacedBy:    ord.PlacedByID,
		Items:       make([]ItemView, 0, len(rows)),
	}
	for _, r := range rows {
		iv := ItemView{ID: r.ID, MenuItemID: r.MenuItemID, Quantity: r.Quantity}
		var mi models.MenuItem
		if err := s.DB.WithContext(ctx).First(&mi, r.MenuItemID).Error; err == nil {
			iv.MenuItemName = mi.Name
			iv.Price = mi.Price
		}
		view.TotalPrice += iv.Price * float64(iv.Quantity)
		view.Items = append(view.Items, iv)
	}
	return view, nil
}

func (s *Service) hydrateAll(ctx context.Context, orders []models.Order) ([]OrderView, error) {
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		v, err := s.hydrate(ctx, &orders[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}
