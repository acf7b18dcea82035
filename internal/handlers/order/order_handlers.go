package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/logging"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/mykafka"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/policy"
	ordersvc "github.com/chriskampolis/cf7-restaurant-backend/internal/service/order"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/service/stock"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/service/token"
)

type OrderHandler struct {
	Svc      *ordersvc.Service
	Producer *mykafka.Producer
}

// httpError maps the workflow error taxonomy onto response codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ordersvc.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ordersvc.ErrNotFound), errors.Is(err, stock.ErrMenuItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, stock.ErrInsufficientStock),
		errors.Is(err, ordersvc.ErrOrderClosed),
		errors.Is(err, ordersvc.ErrAlreadyCompleted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func (h *OrderHandler) principal(c echo.Context, op policy.Operation) (policy.Principal, error) {
	principal, err := token.PrincipalFromContext(c)
	if err != nil {
		return policy.Principal{}, err
	}
	if !policy.Allow(principal, op) {
		return policy.Principal{}, echo.NewHTTPError(http.StatusForbidden, "not allowed")
	}
	return principal, nil
}

// Submit creates or fully replaces the active order for a table.
func (h *OrderHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.submit")

	principal, err := h.principal(c, policy.PlaceOrders)
	if err != nil {
		return err
	}

	var req struct {
		TableNumber int                   `json:"table_number"`
		Items       []ordersvc.SubmitItem `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("submit_order_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	view, err := h.Svc.Submit(ctx, principal, req.TableNumber, req.Items)
	if err != nil {
		l.Warn("submit_order_failed", "table", req.TableNumber, "error", err)
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_submitted",
		"userID":  principal.UserID,
		"orderID": view.ID,
		"table":   view.TableNumber,
	})

	l.Info("submit_order_success", "order_id", view.ID, "table", view.TableNumber)
	return c.JSON(http.StatusCreated, view)
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	if _, err := h.principal(c, policy.PlaceOrders); err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		l.Warn("get_order_failed", "status", 400, "reason", "id not an integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not an integer")
	}

	view, err := h.Svc.Get(ctx, uint(id))
	if err != nil {
		l.Warn("get_order_failed", "order_id", id, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// List returns orders for any authenticated role, optionally filtered by
// table number.
func (h *OrderHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	if _, err := h.principal(c, policy.PlaceOrders); err != nil {
		return err
	}

	table := parseIntDefault(c.QueryParam("table"), 0)
	views, err := h.Svc.List(ctx, table)
	if err != nil {
		l.Error("list_orders_failed", "status", 500, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, views)
}

// ListCompleted is the manager-only audit listing.
func (h *OrderHandler) ListCompleted(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_completed")

	if _, err := h.principal(c, policy.AuditOrders); err != nil {
		return err
	}

	views, err := h.Svc.ListCompleted(ctx)
	if err != nil {
		l.Error("list_completed_failed", "status", 500, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, views)
}

// UpdateItem is the item-level endpoint: either a replace pair
// (old_menu_item/old_quantity -> new_menu_item/new_quantity) or an
// update/delete pair (menu_item, quantity) where quantity 0 deletes.
func (h *OrderHandler) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_item")

	principal, err := h.principal(c, policy.PlaceOrders)
	if err != nil {
		return err
	}

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		l.Warn("update_item_failed", "status", 400, "reason", "id not an integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not an integer")
	}

	var req struct {
		MenuItem    *uint `json:"menu_item"`
		Quantity    *int  `json:"quantity"`
		OldMenuItem *uint `json:"old_menu_item"`
		OldQuantity *int  `json:"old_quantity"`
		NewMenuItem *uint `json:"new_menu_item"`
		NewQuantity *int  `json:"new_quantity"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var view *ordersvc.OrderView
	switch {
	case req.OldMenuItem != nil:
		if req.OldQuantity == nil || req.NewMenuItem == nil || req.NewQuantity == nil {
			l.Warn("update_item_failed", "status", 400, "reason", "incomplete replace pair")
			return echo.NewHTTPError(http.StatusBadRequest,
				"replace needs old_menu_item, old_quantity, new_menu_item and new_quantity")
		}
		view, err = h.Svc.ReplaceItem(ctx, uint(orderID),
			*req.OldMenuItem, *req.OldQuantity, *req.NewMenuItem, *req.NewQuantity)
	case req.MenuItem != nil && req.Quantity != nil:
		view, err = h.Svc.UpdateItem(ctx, uint(orderID), *req.MenuItem, *req.Quantity)
	default:
		l.Warn("update_item_failed", "status", 400, "reason", "no item fields")
		return echo.NewHTTPError(http.StatusBadRequest, "menu_item and quantity required")
	}
	if err != nil {
		l.Warn("update_item_failed", "order_id", orderID, "error", err)
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_item_updated",
		"userID":  principal.UserID,
		"orderID": view.ID,
	})

	l.Info("update_item_success", "order_id", view.ID)
	return c.JSON(http.StatusOK, view)
}

// Complete is the one-way transition to the terminal state.
func (h *OrderHandler) Complete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.complete")

	principal, err := h.principal(c, policy.PlaceOrders)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		l.Warn("complete_order_failed", "status", 400, "reason", "id not an integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not an integer")
	}

	view, err := h.Svc.Complete(ctx, uint(id))
	if err != nil {
		l.Warn("complete_order_failed", "order_id", id, "error", err)
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_completed",
		"userID":  principal.UserID,
		"orderID": view.ID,
	})

	l.Info("complete_order_success", "order_id", view.ID)
	return c.JSON(http.StatusOK, view)
}
