package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/devzon_backend/controllers"
	"github.com/HSouheill/devzon_backend/middleware"
)

// RegisterPaymentRoutes sets up the plan catalog and checkout routes
func RegisterPaymentRoutes(g *echo.Group, paymentController *controllers.PaymentController, m ...echo.MiddlewareFunc) {
	g.GET("/plans", paymentController.Plans, m...)
	g.POST("/razorpay/create-order", paymentController.CreateOrder, m...)
	g.POST("/razorpay/verify", paymentController.Verify, m...)
	preflight(g, m, "/plans", "/razorpay/create-order", "/razorpay/verify")
}

// RegisterKeyRoutes sets up the dashboard key routes
func RegisterKeyRoutes(g *echo.Group, keyController *controllers.KeyController, m ...echo.MiddlewareFunc) {
	g.GET("/keys/my", keyController.MyKeys, m...)
	g.GET("/keys/check", keyController.CheckKey, m...)
	g.GET("/ws", keyController.Events, append(append([]echo.MiddlewareFunc{}, m...), middleware.RequireSession())...)
	preflight(g, m, "/keys/my", "/keys/check")
}
