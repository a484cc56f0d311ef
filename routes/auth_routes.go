package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/devzon_backend/controllers"
)

// RegisterAuthRoutes sets up registration, OTP and session routes
func RegisterAuthRoutes(g *echo.Group, authController *controllers.AuthController, m ...echo.MiddlewareFunc) {
	g.POST("/auth/register", authController.Register, m...)
	g.POST("/auth/verify", authController.Verify, m...)
	g.POST("/auth/resend-otp", authController.ResendOTP, m...)
	g.POST("/auth/login", authController.Login, m...)
	g.POST("/auth/logout", authController.Logout, m...)
	g.GET("/auth/me", authController.Me, m...)
	g.GET("/auth/check", authController.CheckAvailability, m...)
	preflight(g, m, "/auth/register", "/auth/verify", "/auth/resend-otp", "/auth/login", "/auth/logout", "/auth/me", "/auth/check")
}

// preflight answers CORS OPTIONS requests for paths; the CORS middleware in m
// writes the response.
func preflight(g *echo.Group, m []echo.MiddlewareFunc, paths ...string) {
	for _, p := range paths {
		g.OPTIONS(p, echo.MethodNotAllowedHandler, m...)
	}
}
