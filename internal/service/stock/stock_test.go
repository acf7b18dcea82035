package stock

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.MenuItem{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func availability(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var item models.MenuItem
	require.NoError(t, db.First(&item, id).Error)
	return item.Availability
}

func TestReserveDecrementsAvailability(t *testing.T) {
	db := initTestDB(t)

	burger := models.MenuItem{Name: "Burger", Price: 8.50, Availability: 5, Category: models.CategoryMain}
	require.NoError(t, db.Create(&burger).Error)

	require.NoError(t, Reserve(db, burger.ID, 3))
	require.Equal(t, 2, availability(t, db, burger.ID))

	err := Reserve(db, burger.ID, 3)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 2, availability(t, db, burger.ID))
}

func TestReserveUnknownMenuItem(t *testing.T) {
	db := initTestDB(t)

	err := Reserve(db, 42, 1)
	require.ErrorIs(t, err, ErrMenuItemNotFound)
}

func TestReleaseRoundTrip(t *testing.T) {
	db := initTestDB(t)

	fries := models.MenuItem{Name: "Fries", Price: 3.20, Availability: 7, Category: models.CategoryAppetizer}
	require.NoError(t, db.Create(&fries).Error)
	ord := models.Order{TableNumber: 2, Status: models.OrderStatusInProgress, CreatedAt: 1, PlacedByID: 1}
	require.NoError(t, db.Create(&ord).Error)

	require.NoError(t, Reserve(db, fries.ID, 4))
	item := models.OrderItem{OrderID: ord.ID, MenuItemID: fries.ID, Quantity: 4}
	require.NoError(t, db.Create(&item).Error)
	require.Equal(t, 3, availability(t, db, fries.ID))

	require.NoError(t, Release(db, &item))
	require.Equal(t, 7, availability(t, db, fries.ID))

	var count int64
	require.NoError(t, db.Model(&models.OrderItem{}).Where("id = ?", item.ID).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestAdjustIncreaseGuarded(t *testing.T) {
	db := initTestDB(t)

	cake := models.MenuItem{Name: "Cake", Price: 5, Availability: 1, Category: models.CategoryDessert}
	require.NoError(t, db.Create(&cake).Error)
	ord := models.Order{TableNumber: 3, Status: models.OrderStatusInProgress, CreatedAt: 1, PlacedByID: 1}
	require.NoError(t, db.Create(&ord).Error)
	item := models.OrderItem{OrderID: ord.ID, MenuItemID: cake.ID, Quantity: 2}
	require.NoError(t, db.Create(&item).Error)

	// needs 3 more, only 1 available
	err := Adjust(db, &item, 5)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 1, availability(t, db, cake.ID))

	var stored models.OrderItem
	require.NoError(t, db.First(&stored, item.ID).Error)
	require.Equal(t, 2, stored.Quantity)

	require.NoError(t, Adjust(db, &item, 3))
	require.Equal(t, 0, availability(t, db, cake.ID))
	require.NoError(t, db.First(&stored, item.ID).Error)
	require.Equal(t, 3, stored.Quantity)
}

func TestAdjustDecreaseRestores(t *testing.T) {
	db := initTestDB(t)

	tea := models.MenuItem{Name: "Tea", Price: 2, Availability: 0, Category: models.CategoryDrink}
	require.NoError(t, db.Create(&tea).Error)
	ord := models.Order{TableNumber: 6, Status: models.OrderStatusInProgress, CreatedAt: 1, PlacedByID: 1}
	require.NoError(t, db.Create(&ord).Error)
	item := models.OrderItem{OrderID: ord.ID, MenuItemID: tea.ID, Quantity: 5}
	require.NoError(t, db.Create(&item).Error)

	require.NoError(t, Adjust(db, &item, 2))
	require.Equal(t, 3, availability(t, db, tea.ID))
	require.Equal(t, 2, item.Quantity)
}

func TestStockConservation(t *testing.T) {
	db := initTestDB(t)

	soda := models.MenuItem{Name: "Soda", Price: 2.50, Availability: 10, Category: models.CategoryDrink}
	require.NoError(t, db.Create(&soda).Error)
	ord := models.Order{TableNumber: 1, Status: models.OrderStatusInProgress, CreatedAt: 1, PlacedByID: 1}
	require.NoError(t, db.Create(&ord).Error)

	reserved, released := 0, 0
	items := make([]models.OrderItem, 0, 3)
	for _, q := range []int{4, 1, 3} {
		require.NoError(t, Reserve(db, soda.ID, q))
		reserved += q
		item := models.OrderItem{OrderID: ord.ID, MenuItemID: soda.ID, Quantity: q}
		require.NoError(t, db.Create(&item).Error)
		items = append(items, item)
	}

	require.NoError(t, Release(db, &items[1]))
	released += items[1].Quantity

	require.Equal(t, 10-reserved+released, availability(t, db, soda.ID))

	// over-reserving what is left fails and changes nothing
	left := availability(t, db, soda.ID)
	require.ErrorIs(t, Reserve(db, soda.ID, left+1), ErrInsufficientStock)
	require.Equal(t, left, availability(t, db, soda.ID))
}
