package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/hash"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/mykafka"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.MenuItem{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newAuthHandler(t *testing.T) (*AuthHandler, *gorm.DB) {
	db := initTestDB(t)
	return &AuthHandler{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Producer:      &mykafka.Producer{},
	}, db
}

func doJSONRequest(t *testing.T, e *echo.Echo, method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestRegister(t *testing.T) {
	h, _ := newAuthHandler(t)
	e := echo.New()

	payload := map[string]string{"username": "test_user", "password": "password"}
	rec, c := doJSONRequest(t, e, http.MethodPost, "/register", payload)
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.Equal(t, "test_user", user.Username)
	require.Equal(t, models.RoleEmployee, user.Role)
	require.NotEmpty(t, user.ID)
	require.NotContains(t, rec.Body.String(), "password")

	// duplicate username
	_, c2 := doJSONRequest(t, e, http.MethodPost, "/register", payload)
	err := h.Register(c2)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newAuthHandler(t)
	e := echo.New()

	_, c := doJSONRequest(t, e, http.MethodPost, "/register", map[string]string{"username": "a"})
	err := h.Register(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestLogin(t *testing.T) {
	h, db := newAuthHandler(t)
	e := echo.New()

	pwHash, err := hash.HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Username: "maria", PasswordHash: pwHash, Role: models.RoleManager,
	}).Error)

	rec, c := doJSONRequest(t, e, http.MethodPost, "/login",
		map[string]string{"username": "maria", "password": "secret"})
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IsManager    bool   `json:"is_manager"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.True(t, resp.IsManager)

	cookies := rec.Result().Cookies()
	names := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		names = append(names, ck.Name)
	}
	require.Contains(t, names, "accessToken")
	require.Contains(t, names, "refreshToken")

	var stored models.RefreshToken
	require.NoError(t, db.Where("token = ?", resp.RefreshToken).First(&stored).Error)
	require.False(t, stored.Revoked)
}

func TestLoginWrongPassword(t *testing.T) {
	h, db := newAuthHandler(t)
	e := echo.New()

	pwHash, err := hash.HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Username: "maria", PasswordHash: pwHash, Role: models.RoleEmployee,
	}).Error)

	_, c := doJSONRequest(t, e, http.MethodPost, "/login",
		map[string]string{"username": "maria", "password": "nope"})
	err = h.Login(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}
