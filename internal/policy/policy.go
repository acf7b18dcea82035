// Package policy holds the role checks as pure functions, so authorization
// can be tested without a request or a database in sight.
package policy

import "github.com/chriskampolis/cf7-restaurant-backend/internal/models"

type Principal struct {
	UserID uint
	Role   string
}

func (p Principal) Authenticated() bool {
	return p.UserID != 0
}

type Operation string

const (
	ManageUsers Operation = "users.manage"
	ReadMenu    Operation = "menu.read"
	WriteMenu   Operation = "menu.write"
	PlaceOrders Operation = "orders.place"
	AuditOrders Operation = "orders.audit"
)

// Allow reports whether the principal may perform the operation.
// Managers can do everything an employee can.
func Allow(p Principal, op Operation) bool {
	if !p.Authenticated() {
		return false
	}
	switch op {
	case ManageUsers, WriteMenu, AuditOrders:
		return p.Role == models.RoleManager
	case ReadMenu, PlaceOrders:
		return p.Role == models.RoleManager || p.Role == models.RoleEmployee
	}
	return false
}
