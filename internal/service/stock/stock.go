// Package stock is the ledger for menu item availability. Every change to
// the availability counter goes through Reserve, Adjust or Release, always
// inside the caller's transaction. Nothing here runs as a save hook.
package stock

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrMenuItemNotFound  = errors.New("menu item not found")
)

// Reserve decrements availability by quantity. The decrement is a single
// conditional UPDATE, so two concurrent reservations can never both succeed
// when only one fits the remaining stock.
func Reserve(tx *gorm.DB, menuItemID uint, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity %d for menu item %d", ErrInsufficientStock, quantity, menuItemID)
	}

	res := tx.Model(&models.MenuItem{}).
		Where("id = ? AND availability >= ?", menuItemID, quantity).
		UpdateColumn("availability", gorm.Expr("availability - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var item models.MenuItem
		if err := tx.First(&item, menuItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrMenuItemNotFound, menuItemID)
			}
			return err
		}
		return fmt.Errorf("%w: %q has %d left, requested %d",
			ErrInsufficientStock, item.Name, item.Availability, quantity)
	}
	return nil
}

// Adjust sets the order item quantity and applies the signed delta to
// availability. The menu item row is persisted before the order item one.
func Adjust(tx *gorm.DB, item *models.OrderItem, newQuantity int) error {
	delta := newQuantity - item.Quantity
	if delta > 0 {
		if err := Reserve(tx, item.MenuItemID, delta); err != nil {
			return err
		}
	} else if delta < 0 {
		if err := restore(tx, item.MenuItemID, -delta); err != nil {
			return err
		}
	}

	if err := tx.Model(item).UpdateColumn("quantity", newQuantity).Error; err != nil {
		return err
	}
	item.Quantity = newQuantity
	return nil
}

// Release restores the item's quantity to availability and deletes the row.
// Each reservation must be released exactly once, availability is a plain
// counter with no history to reconcile against.
func Release(tx *gorm.DB, item *models.OrderItem) error {
	if err := restore(tx, item.MenuItemID, item.Quantity); err != nil {
		return err
	}
	return tx.Delete(&models.OrderItem{}, item.ID).Error
}

func restore(tx *gorm.DB, menuItemID uint, quantity int) error {
	// A missing menu item row just means there is nothing to restore into;
	// the referencing order item is still removed by the caller.
	return tx.Model(&models.MenuItem{}).
		Where("id = ?", menuItemID).
		UpdateColumn("availability", gorm.Expr("availability + ?", quantity)).Error
}
