package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/hash"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/logging"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/mykafka"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/service/token"
)

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	publishEvent(c, h.Producer, "user_events", event)
}

// Register creates an employee account. Manager accounts are only created
// through the admin user endpoints.
func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Username == "" || req.Password == "" {
		l.Warn("register_failed", "status", 400, "reason", "username and password required")
		return echo.NewHTTPError(http.StatusBadRequest, "username and password required")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot hash password")
	}

	var existing models.User
	result := h.DB.Where("username = ?", req.Username).First(&existing)
	if result.Error == nil {
		l.Warn("register_failed", "status", 409, "reason", "user already exists")
		return echo.NewHTTPError(http.StatusConflict, "user already exists")
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		l.Error("register_failed", "status", 500, "error", result.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: pwHash,
		Role:         models.RoleEmployee,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot create user", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create user")
	}

	h.publish(c, map[string]any{
		"type":     "user_registered",
		"userID":   user.ID,
		"username": user.Username,
	})

	l.Info("register_success", "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "unknown username")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password", "user_id", user.ID)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}

	accessToken, err := token.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot sign access token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create access token")
	}
	refreshToken, err := token.SignRefreshToken(user.ID, user.Role, h.RefreshSecret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot sign refresh token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create refresh token")
	}
	if err := token.SaveRefreshToken(h.DB, refreshToken, user.ID); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot save refresh token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save refresh token")
	}

	c.SetCookie(token.CreateCookie("accessToken", accessToken, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(token.CreateCookie("refreshToken", refreshToken, "/", time.Now().Add(token.RefreshTTL)))

	h.publish(c, map[string]any{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	l.Info("login_success", "user_id", user.ID, "role", user.Role)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"is_manager":    user.Role == models.RoleManager,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		l.Warn("logout_failed", "status", 400, "reason", "refresh cookie missing")
		return echo.NewHTTPError(http.StatusBadRequest, "refresh cookie missing")
	}

	result := h.DB.Model(&models.RefreshToken{}).
		Where("token = ?", refreshCookie.Value).
		Update("revoked", true)
	if result.Error != nil {
		l.Error("logout_failed", "status", 500, "error", result.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(token.CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(token.CreateCookie("refreshToken", "", "/", expired))

	l.Info("logout_success")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
