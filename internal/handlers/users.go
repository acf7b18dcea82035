package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/hash"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/logging"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/mykafka"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/policy"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/service/token"
)

// UserHandler is the manager-only user administration surface.
type UserHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *UserHandler) authorize(c echo.Context) (policy.Principal, error) {
	principal, err := token.PrincipalFromContext(c)
	if err != nil {
		return policy.Principal{}, err
	}
	if !policy.Allow(principal, policy.ManageUsers) {
		return policy.Principal{}, echo.NewHTTPError(http.StatusForbidden, "manager role required")
	}
	return principal, nil
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.list")

	if _, err := h.authorize(c); err != nil {
		return err
	}

	var users []models.User
	if err := h.DB.Order("id ASC").Find(&users).Error; err != nil {
		l.Error("list_users_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.create")

	principal, err := h.authorize(c)
	if err != nil {
		return err
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_user_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Username == "" || req.Password == "" {
		l.Warn("create_user_failed", "status", 400, "reason", "username and password required")
		return echo.NewHTTPError(http.StatusBadRequest, "username and password required")
	}
	if req.Role == "" {
		req.Role = models.RoleEmployee
	}
	if req.Role != models.RoleManager && req.Role != models.RoleEmployee {
		l.Warn("create_user_failed", "status", 400, "reason", "unknown role", "role", req.Role)
		return echo.NewHTTPError(http.StatusBadRequest, "role must be manager or employee")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("create_user_failed", "status", 500, "reason", "cannot hash password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot hash password")
	}

	user := models.User{Username: req.Username, PasswordHash: pwHash, Role: req.Role}
	if err := h.DB.Create(&user).Error; err != nil {
		l.Error("create_user_failed", "status", 500, "reason", "cannot create user", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create user")
	}

	publishEvent(c, h.Producer, "user_events", map[string]any{
		"type":     "user_created",
		"userID":   principal.UserID,
		"username": user.Username,
		"role":     user.Role,
	})

	l.Info("create_user_success", "user_id", user.ID, "role", user.Role)
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.delete")

	principal, err := h.authorize(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		l.Warn("delete_user_failed", "status", 400, "reason", "id not an integer")
		return echo.NewHTTPError(http.StatusBadRequest, "id not an integer")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("delete_user_failed", "status", 404, "reason", "user not found")
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		l.Error("delete_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := h.DB.Delete(&models.User{}, id).Error; err != nil {
		l.Error("delete_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete user")
	}

	publishEvent(c, h.Producer, "user_events", map[string]any{
		"type":    "user_deleted",
		"userID":  principal.UserID,
		"deleted": id,
	})

	l.Info("delete_user_success", "user_id", id)
	return c.NoContent(http.StatusNoContent)
}
