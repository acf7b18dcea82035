package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/es"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/logging"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/mykafka"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/policy"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/service/token"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/util"
)

// MenuHandler serves the menu catalog. Reads are open to any authenticated
// principal, writes are manager-only. Availability is stored here but only
// the stock ledger changes it once order items start referencing an item.
type MenuHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	ESIndex  string
	Producer *mykafka.Producer
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *MenuHandler) authorize(c echo.Context, op policy.Operation) error {
	principal, err := token.PrincipalFromContext(c)
	if err != nil {
		return err
	}
	if !policy.Allow(principal, op) {
		return echo.NewHTTPError(http.StatusForbidden, "manager role required")
	}
	return nil
}

func (h *MenuHandler) index(c echo.Context, item *models.MenuItem) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := es.IndexMenuItem(ctx, h.ES, h.ESIndex, item); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *MenuHandler) deindex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := es.RemoveMenuItem(ctx, h.ES, h.ESIndex, id); err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
	}
}

func (h *MenuHandler) GetMenuItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.get_item")

	if err := h.authorize(c, policy.ReadMenu); err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		l.Warn("get_menu_item_failed", "status", 400, "reason", "id not an integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not an integer")
	}

	var item models.MenuItem
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("get_menu_item_failed", "status", 404, "reason", "menu item not found")
			return echo.NewHTTPError(http.StatusNotFound, "menu item not found")
		}
		l.Error("get_menu_item_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) GetMenuItems(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.get_items")

	if err := h.authorize(c, policy.ReadMenu); err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.MenuItem{})
	if cat := c.QueryParam("category"); cat != "" {
		if !models.ValidCategory(cat) {
			l.Warn("get_menu_items_failed", "status", 400, "reason", "unknown category", "category", cat)
			return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
		}
		q = q.Where("category = ?", cat)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("get_menu_items_failed", "status", 500, "reason", "cannot count menu items", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count menu items")
	}

	var items []models.MenuItem
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		l.Error("get_menu_items_failed", "status", 500, "reason", "cannot list menu items", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list menu items")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *MenuHandler) CreateMenuItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.create_item")

	if err := h.authorize(c, policy.WriteMenu); err != nil {
		return err
	}

	var req struct {
		Name         string  `json:"name"`
		Price        float64 `json:"price"`
		Availability int     `json:"availability"`
		Category     string  `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_menu_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		l.Warn("create_menu_item_failed", "status", 400, "reason", "name required")
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if req.Price < 0 {
		l.Warn("create_menu_item_failed", "status", 400, "reason", "negative price")
		return echo.NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if req.Availability < 0 {
		l.Warn("create_menu_item_failed", "status", 400, "reason", "negative availability")
		return echo.NewHTTPError(http.StatusBadRequest, "availability must be >= 0")
	}
	if !models.ValidCategory(req.Category) {
		l.Warn("create_menu_item_failed", "status", 400, "reason", "unknown category", "category", req.Category)
		return echo.NewHTTPError(http.StatusBadRequest, "category must be appetizer, main, dessert or drink")
	}

	item := models.MenuItem{
		Name:         req.Name,
		Price:        req.Price,
		Availability: req.Availability,
		Category:     req.Category,
	}
	if err := h.DB.Create(&item).Error; err != nil {
		l.Error("create_menu_item_failed", "status", 500, "reason", "cannot create menu item", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create menu item")
	}

	h.index(c, &item)
	publishEvent(c, h.Producer, "menu_events", map[string]any{
		"type":       "menu_item_created",
		"menuItemID": item.ID,
		"name":       item.Name,
	})

	l.Info("create_menu_item_success", "menu_item_id", item.ID)
	return c.JSON(http.StatusCreated, item)
}

func (h *MenuHandler) PatchMenuItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.patch_item")

	if err := h.authorize(c, policy.WriteMenu); err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		l.Warn("patch_menu_item_failed", "status", 400, "reason", "id not an integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not an integer")
	}

	var req struct {
		Name         *string  `json:"name"`
		Price        *float64 `json:"price"`
		Availability *int     `json:"availability"`
		Category     *string  `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("patch_menu_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Price != nil && *req.Price < 0 {
		l.Warn("patch_menu_item_failed", "status", 400, "reason", "negative price")
		return echo.NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if req.Availability != nil && *req.Availability < 0 {
		l.Warn("patch_menu_item_failed", "status", 400, "reason", "negative availability")
		return echo.NewHTTPError(http.StatusBadRequest, "availability must be >= 0")
	}
	if req.Category != nil && !models.ValidCategory(*req.Category) {
		l.Warn("patch_menu_item_failed", "status", 400, "reason", "unknown category")
		return echo.NewHTTPError(http.StatusBadRequest, "category must be appetizer, main, dessert or drink")
	}

	var item models.MenuItem
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("patch_menu_item_failed", "status", 404, "reason", "menu item not found")
			return echo.NewHTTPError(http.StatusNotFound, "menu item not found")
		}
		l.Error("patch_menu_item_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.Availability != nil {
		item.Availability = *req.Availability
	}
	if req.Category != nil {
		item.Category = *req.Category
	}

	if err := h.DB.Save(&item).Error; err != nil {
		l.Error("patch_menu_item_failed", "status", 500, "reason", "cannot save menu item", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save menu item")
	}

	h.index(c, &item)
	publishEvent(c, h.Producer, "menu_events", map[string]any{
		"type":       "menu_item_updated",
		"menuItemID": item.ID,
		"name":       item.Name,
	})

	l.Info("patch_menu_item_success", "menu_item_id", item.ID)
	return c.JSON(http.StatusOK, item)
}

// DeleteMenuItem removes the item and cascades its order items. The cascade
// does not restore stock: the counter disappears with the menu item, unlike
// an explicit item removal which releases first.
func (h *MenuHandler) DeleteMenuItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.delete_item")

	if err := h.authorize(c, policy.WriteMenu); err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		l.Warn("delete_menu_item_failed", "status", 400, "reason", "id not an integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not an integer")
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var item models.MenuItem
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		if err := tx.Where("menu_item_id = ?", item.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.MenuItem{}, item.ID).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			l.Warn("delete_menu_item_failed", "status", 404, "reason", "menu item not found")
			return echo.NewHTTPError(http.StatusNotFound, "menu item not found")
		}
		l.Error("delete_menu_item_failed", "status", 500, "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete menu item")
	}

	h.deindex(c, uint(id))
	publishEvent(c, h.Producer, "menu_events", map[string]any{
		"type":       "menu_item_deleted",
		"menuItemID": id,
	})

	l.Info("delete_menu_item_success", "menu_item_id", id)
	return c.NoContent(http.StatusNoContent)
}
