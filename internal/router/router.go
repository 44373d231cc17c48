// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ederavi/bistro-pos/internal/config"
	"github.com/ederavi/bistro-pos/internal/handler"
	"github.com/ederavi/bistro-pos/internal/middleware"
	"github.com/ederavi/bistro-pos/internal/session"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Sessions    *session.Manager
	AuthFactory middleware.AuthFactory
	Auth        *handler.AuthHandler
	Menu        *handler.MenuHandler
	Orders      *handler.OrderHandler
	Reports     *handler.ReportHandler
	Redis       *redis.Client
	RateCfg     config.LoginRateConfig
	CacheCfg    config.MenuCacheConfig
	Log         zerolog.Logger
	Secure      bool
}

// Register wires every route. Everything except the health probe runs under
// the session middleware; state-changing routes are CSRF-checked; protected
// groups gate on the session's role and permission caches.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	sess := middleware.NewSession(d.Sessions, d.Secure)
	remember := middleware.NewRememberLogin(d.AuthFactory)
	csrf := middleware.NewCSRF(d.Log)

	// Public browse endpoints: no login, menu reads served from the cache.
	pub := e.Group("/v1", sess)
	pub.GET("/menu", d.Menu.PublicMenu, middleware.NewMenuCache(d.CacheCfg, d.Redis))
	pub.GET("/menu/special", d.Menu.DailySpecial, middleware.NewMenuCache(d.CacheCfg, d.Redis))

	// Login is rate limited per client IP and exempt from CSRF: the session
	// that would carry the token does not exist yet for fresh visitors.
	authGroup := e.Group("/v1/auth", sess)
	authGroup.POST("/login", d.Auth.Login, middleware.NewLoginRateLimit(d.RateCfg, d.Redis))
	authGroup.POST("/password-reset", d.Auth.RequestPasswordReset, middleware.NewLoginRateLimit(d.RateCfg, d.Redis))
	authGroup.POST("/password-reset/confirm", d.Auth.ResetPassword)
	authGroup.GET("/flash", d.Auth.Flash)

	// Everything below requires a live login; the remember cookie can
	// restore one first.
	me := e.Group("/v1/auth", sess, remember, csrf, middleware.RequireLogin())
	me.GET("/me", d.Auth.Me)
	me.POST("/logout", d.Auth.Logout)
	me.POST("/password", d.Auth.ChangePassword)

	// Floor staff: orders gated per permission.
	floor := e.Group("/v1", sess, remember, csrf, middleware.RequireLogin())
	floor.GET("/tables", d.Orders.Tables)
	floor.POST("/orders", d.Orders.Create, middleware.RequirePermission("orders.create"))
	floor.GET("/orders/open", d.Orders.ListOpen, middleware.RequirePermission("orders.read"))
	floor.POST("/orders/:id/status", d.Orders.SetStatus, middleware.RequirePermission("orders.close"))

	// Management: menu administration and reports by role.
	admin := e.Group("/v1/admin", sess, remember, csrf, middleware.RequireRole("manager", "owner"))
	admin.GET("/menu/items", d.Menu.ListItems)
	admin.POST("/menu/categories", d.Menu.CreateCategory)
	admin.DELETE("/menu/categories/:id", d.Menu.DeleteCategory)
	admin.POST("/menu/items", d.Menu.CreateItem)
	admin.PATCH("/menu/items/:id", d.Menu.UpdateItem)
	admin.DELETE("/menu/items/:id", d.Menu.DeleteItem)
	admin.GET("/reports/sales", d.Reports.Sales)
}
