package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/handlers"
	orderhandlers "github.com/chriskampolis/cf7-restaurant-backend/internal/handlers/order"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/logging"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/service/token"
)

type Deps struct {
	DB           *gorm.DB
	Logger       *slog.Logger
	AuthHandler  *handlers.AuthHandler
	UserHandler  *handlers.UserHandler
	MenuHandler  *handlers.MenuHandler
	OrderHandler *orderhandlers.OrderHandler
	Search       *handlers.SearchHandler
	Tokens       *token.TokenService
}

// Register wires every route. Authorization happens inside the handlers via
// the policy package; the middleware here only authenticates.
func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	if d.Logger != nil {
		e.Use(loggerIntoContext(d.Logger))
	}

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)

	authed := v1.Group("", d.Tokens.AutoRefreshMiddleware)

	authed.GET("/search", d.Search.Search)

	authed.GET("/menu", d.MenuHandler.GetMenuItems)
	authed.GET("/menu/:id", d.MenuHandler.GetMenuItem)
	authed.POST("/menu", d.MenuHandler.CreateMenuItem)
	authed.PATCH("/menu/:id", d.MenuHandler.PatchMenuItem)
	authed.DELETE("/menu/:id", d.MenuHandler.DeleteMenuItem)

	authed.POST("/orders", d.OrderHandler.Submit)
	authed.GET("/orders", d.OrderHandler.List)
	authed.GET("/orders/:id", d.OrderHandler.Get)
	authed.PATCH("/orders/:id/items", d.OrderHandler.UpdateItem)
	authed.POST("/orders/:id/complete", d.OrderHandler.Complete)

	admin := v1.Group("/admin", d.Tokens.AutoRefreshMiddleware)

	admin.GET("/users", d.UserHandler.ListUsers)
	admin.POST("/users", d.UserHandler.CreateUser)
	admin.DELETE("/users/:id", d.UserHandler.DeleteUser)
	admin.GET("/orders/completed", d.OrderHandler.ListCompleted)
}

func loggerIntoContext(l *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rl := l.With("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), rl)))
			return next(c)
		}
	}
}
