package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/mykafka"
)

func newMenuHandler(t *testing.T) (*MenuHandler, *gorm.DB) {
	db := initTestDB(t)
	return &MenuHandler{DB: db, ESIndex: "menu_items", Producer: &mykafka.Producer{}}, db
}

func asPrincipal(c echo.Context, userID uint, role string) {
	c.Set("userID", userID)
	c.Set("role", role)
}

func TestCreateMenuItem(t *testing.T) {
	h, db := newMenuHandler(t)
	e := echo.New()

	rec, c := doJSONRequest(t, e, http.MethodPost, "/menu", map[string]any{
		"name": "Burger", "price": 8.50, "availability": 5, "category": "main",
	})
	asPrincipal(c, 1, models.RoleManager)
	require.NoError(t, h.CreateMenuItem(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var item models.MenuItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, "Burger", item.Name)
	require.Equal(t, 5, item.Availability)

	var count int64
	require.NoError(t, db.Model(&models.MenuItem{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCreateMenuItemForbiddenForEmployee(t *testing.T) {
	h, _ := newMenuHandler(t)
	e := echo.New()

	_, c := doJSONRequest(t, e, http.MethodPost, "/menu", map[string]any{
		"name": "Burger", "price": 8.50, "availability": 5, "category": "main",
	})
	asPrincipal(c, 2, models.RoleEmployee)
	err := h.CreateMenuItem(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestCreateMenuItemValidation(t *testing.T) {
	h, _ := newMenuHandler(t)
	e := echo.New()

	cases := []map[string]any{
		{"name": "", "price": 1.0, "availability": 1, "category": "main"},
		{"name": "X", "price": -1.0, "availability": 1, "category": "main"},
		{"name": "X", "price": 1.0, "availability": -1, "category": "main"},
		{"name": "X", "price": 1.0, "availability": 1, "category": "breakfast"},
	}
	for _, body := range cases {
		_, c := doJSONRequest(t, e, http.MethodPost, "/menu", body)
		asPrincipal(c, 1, models.RoleManager)
		err := h.CreateMenuItem(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		require.Equal(t, http.StatusBadRequest, he.Code)
	}
}

func TestGetMenuItemsFilterAndPagination(t *testing.T) {
	h, db := newMenuHandler(t)
	e := echo.New()

	seed := []models.MenuItem{
		{Name: "Burger", Price: 8.50, Availability: 5, Category: models.CategoryMain},
		{Name: "Fries", Price: 3.20, Availability: 9, Category: models.CategoryAppetizer},
		{Name: "Soda", Price: 2.50, Availability: 12, Category: models.CategoryDrink},
		{Name: "Tea", Price: 2.00, Availability: 4, Category: models.CategoryDrink},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	rec, c := doJSONRequest(t, e, http.MethodGet, "/menu?category=drink", nil)
	asPrincipal(c, 2, models.RoleEmployee)
	require.NoError(t, h.GetMenuItems(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.MenuItem `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.Equal(t, int64(2), resp.Meta.Total)
	for _, it := range resp.Data {
		require.Equal(t, models.CategoryDrink, it.Category)
	}

	// unknown category is rejected, not silently empty
	_, c2 := doJSONRequest(t, e, http.MethodGet, "/menu?category=brunch", nil)
	asPrincipal(c2, 2, models.RoleEmployee)
	err := h.GetMenuItems(c2)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestPatchMenuItem(t *testing.T) {
	h, db := newMenuHandler(t)
	e := echo.New()

	item := models.MenuItem{Name: "Cake", Price: 5, Availability: 2, Category: models.CategoryDessert}
	require.NoError(t, db.Create(&item).Error)

	rec, c := doJSONRequest(t, e, http.MethodPatch, "/menu/1", map[string]any{"price": 6.5})
	c.SetParamNames("id")
	c.SetParamValues("1")
	asPrincipal(c, 1, models.RoleManager)
	require.NoError(t, h.PatchMenuItem(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.MenuItem
	require.NoError(t, db.First(&stored, item.ID).Error)
	require.Equal(t, 6.5, stored.Price)
	require.Equal(t, "Cake", stored.Name)
	require.Equal(t, 2, stored.Availability)
}

func TestDeleteMenuItemCascadesWithoutRestore(t *testing.T) {
	h, db := newMenuHandler(t)
	e := echo.New()

	item := models.MenuItem{Name: "Soup", Price: 4, Availability: 3, Category: models.CategoryAppetizer}
	require.NoError(t, db.Create(&item).Error)
	ord := models.Order{TableNumber: 4, Status: models.OrderStatusInProgress, CreatedAt: 1, PlacedByID: 1}
	require.NoError(t, db.Create(&ord).Error)
	require.NoError(t, db.Create(&models.OrderItem{OrderID: ord.ID, MenuItemID: item.ID, Quantity: 2}).Error)

	rec, c := doJSONRequest(t, e, http.MethodDelete, "/menu/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	asPrincipal(c, 1, models.RoleManager)
	require.NoError(t, h.DeleteMenuItem(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var items int64
	require.NoError(t, db.Model(&models.MenuItem{}).Count(&items).Error)
	require.Equal(t, int64(0), items)

	var lines int64
	require.NoError(t, db.Model(&models.OrderItem{}).Where("menu_item_id = ?", item.ID).Count(&lines).Error)
	require.Equal(t, int64(0), lines)

	// the order row itself survives the cascade
	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.Equal(t, int64(1), orders)
}

func TestDeleteMenuItemNotFound(t *testing.T) {
	h, _ := newMenuHandler(t)
	e := echo.New()

	_, c := doJSONRequest(t, e, http.MethodDelete, "/menu/99", nil)
	c.SetParamNames("id")
	c.SetParamValues("99")
	asPrincipal(c, 1, models.RoleManager)
	err := h.DeleteMenuItem(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestListUsersRequiresManager(t *testing.T) {
	db := initTestDB(t)
	h := &UserHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()

	_, c := doJSONRequest(t, e, http.MethodGet, "/admin/users", nil)
	asPrincipal(c, 2, models.RoleEmployee)
	err := h.ListUsers(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestCreateUserWithRole(t *testing.T) {
	db := initTestDB(t)
	h := &UserHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()

	rec, c := doJSONRequest(t, e, http.MethodPost, "/admin/users", map[string]string{
		"username": "nikos", "password": "password", "role": "manager",
	})
	asPrincipal(c, 1, models.RoleManager)
	require.NoError(t, h.CreateUser(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, db.Where("username = ?", "nikos").First(&user).Error)
	require.Equal(t, models.RoleManager, user.Role)

	// unknown role is rejected
	_, c2 := doJSONRequest(t, e, http.MethodPost, "/admin/users", map[string]string{
		"username": "eleni", "password": "password", "role": "chef",
	})
	asPrincipal(c2, 1, models.RoleManager)
	err := h.CreateUser(c2)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
}
