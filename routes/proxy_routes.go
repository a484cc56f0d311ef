package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/devzon_backend/controllers"
)

// RegisterProxyRoutes sets up the key-gated QR proxy
func RegisterProxyRoutes(g *echo.Group, proxyController *controllers.ProxyController, m ...echo.MiddlewareFunc) {
	g.GET("/create", proxyController.CreateQR, m...)
	g.GET("/create/:slug", proxyController.CreateQRFromSlug, m...)
	g.GET("/check/:id", proxyController.CheckStatus, m...)
	preflight(g, m, "/create", "/create/:slug", "/check/:id")
}
