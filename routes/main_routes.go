package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/devzon_backend/controllers"
	"github.com/HSouheill/devzon_backend/middleware"
)

// Controllers bundles every route handler
type Controllers struct {
	Auth    *controllers.AuthController
	Payment *controllers.PaymentController
	Keys    *controllers.KeyController
	Proxy   *controllers.ProxyController
}

// SetupRoutes configures all API routes by calling individual route registration functions.
// Middleware is attached per route so the storefront and the public proxy can
// share the /api prefix with different CORS policies.
func SetupRoutes(e *echo.Echo, sessions *middleware.Sessions, ctrl Controllers, corsOrigins []string) {
	api := e.Group("/api")

	storefront := []echo.MiddlewareFunc{
		middleware.CORSWithConfig(middleware.NewCORSConfig(corsOrigins)),
		sessions.SessionMiddleware(),
	}
	public := []echo.MiddlewareFunc{
		middleware.CORSWithConfig(middleware.NewPublicCORSConfig()),
	}

	RegisterAuthRoutes(api, ctrl.Auth, storefront...)
	RegisterPaymentRoutes(api, ctrl.Payment, storefront...)
	RegisterKeyRoutes(api, ctrl.Keys, storefront...)
	RegisterProxyRoutes(api, ctrl.Proxy, public...)
}
