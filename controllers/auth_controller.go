package controllers

import (
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/devzon_backend/middleware"
	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/services"
	"github.com/HSouheill/devzon_backend/utils"
)

// AuthController contains authentication logic
type AuthController struct {
	accounts *services.AccountService
	sessions *middleware.Sessions
	logger   *log.Logger
}

// NewAuthController creates a new auth controller
func NewAuthController(accounts *services.AccountService, sessions *middleware.Sessions) *AuthController {
	return &AuthController{
		accounts: accounts,
		sessions: sessions,
		logger:   log.New(os.Stdout, "[AUTH] ", log.LstdFlags),
	}
}

// Register creates an unverified account and mails an OTP
func (ac *AuthController) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	reg, err := ac.accounts.Register(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"ok":           true,
		"message":      "OTP sent. Please verify your email.",
		"userId":       reg.UserID,
		"otpExpiresAt": reg.OTPExpiresAt,
	})
}

// Verify confirms the OTP and logs the user in
func (ac *AuthController) Verify(c echo.Context) error {
	var req models.VerifyOTPRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := ac.accounts.VerifyOTP(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	if err := ac.sessions.SetSessionCookie(c, user.ID.Hex(), user.Email); err != nil {
		return respondError(c, utils.NewInternalError("Failed to create session", err))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "Email verified successfully!",
		"user":    user.Public(),
	})
}

// ResendOTP mails a fresh OTP to an unverified account
func (ac *AuthController) ResendOTP(c echo.Context) error {
	var req models.ResendOTPRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	expiresAt, err := ac.accounts.ResendOTP(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":           true,
		"otpExpiresAt": expiresAt,
	})
}

// Login checks credentials and sets the session cookie
func (ac *AuthController) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := ac.accounts.Login(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	if err := ac.sessions.SetSessionCookie(c, user.ID.Hex(), user.Email); err != nil {
		return respondError(c, utils.NewInternalError("Failed to create session", err))
	}
	ac.logger.Printf("User %s logged in", user.ID.Hex())

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":   true,
		"user": user.Public(),
	})
}

// Logout clears the session cookie
func (ac *AuthController) Logout(c echo.Context) error {
	ac.sessions.ClearSessionCookie(c)
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the session's user, or null when anonymous
func (ac *AuthController) Me(c echo.Context) error {
	userID := middleware.GetUserIDFromToken(c)
	if userID == "" {
		return c.JSON(http.StatusOK, map[string]interface{}{"user": nil})
	}

	user, err := ac.accounts.CurrentUser(c.Request().Context(), userID)
	if err != nil {
		if utils.IsKind(err, utils.KindAuth) {
			return c.JSON(http.StatusOK, map[string]interface{}{"user": nil})
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": user.Public()})
}

// CheckAvailability reports whether an email, username or phone is free
func (ac *AuthController) CheckAvailability(c echo.Context) error {
	field := c.QueryParam("field")
	value := c.QueryParam("value")
	if field == "" || value == "" {
		return respondError(c, utils.NewValidationError("Missing params"))
	}

	available, err := ac.accounts.FieldAvailable(c.Request().Context(), field, value)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"available": available})
}
