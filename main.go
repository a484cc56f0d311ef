package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/HSouheill/devzon_backend/config"
	"github.com/HSouheill/devzon_backend/controllers"
	"github.com/HSouheill/devzon_backend/middleware"
	"github.com/HSouheill/devzon_backend/repositories"
	"github.com/HSouheill/devzon_backend/routes"
	"github.com/HSouheill/devzon_backend/security"
	"github.com/HSouheill/devzon_backend/services"
	"github.com/HSouheill/devzon_backend/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	client := config.ConnectDB(settings)
	db := client.Database(settings.DBName)

	redisClient := config.ConnectRedis(settings)

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	keyRepo := repositories.NewAPIKeyRepository(db)
	issuanceRepo := repositories.NewIssuanceRepository(client, db, settings.UseTransactions)

	migrateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	migrated, err := keyRepo.MigrateLegacyRemaining(migrateCtx)
	cancel()
	if err != nil {
		log.Fatalf("Quota migration failed after %d keys: %v", migrated, err)
	}
	if migrated > 0 {
		log.Printf("Migrated %d API keys to the numeric remaining field", migrated)
	}

	// Mail
	var mailer services.Mailer = services.NewLogMailer()
	if settings.SMTP.Enabled() {
		mailer = services.NewSMTPMailer(settings.SMTP)
	} else {
		log.Println("SMTP not configured, OTP emails will only be logged")
	}
	mailQueue := services.NewNotificationQueue(mailer, 128)
	mailQueue.Start()
	go func() {
		for failure := range mailQueue.Failures() {
			log.Printf("Mail delivery failed (%s): %v", failure.Subject, failure.Err)
		}
	}()

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	// Services
	verifier := security.NewSignatureVerifier(settings.RazorpaySecret)
	gateway := services.NewRazorpayService(settings.RazorpayBaseURL, settings.RazorpayKeyID, settings.RazorpaySecret)
	paylink := services.NewPaylinkService(settings.PaylinkBaseURL, settings.PaylinkPhone)

	accounts := services.NewAccountService(userRepo, mailQueue, redisClient)
	checkout := services.NewCheckoutService(gateway, orderRepo)
	issuer := services.NewKeyIssuer(verifier, security.NewKeyGenerator(), orderRepo, userRepo, keyRepo, issuanceRepo, wsHub)
	gate := services.NewQuotaGate(keyRepo, wsHub)
	proxy := services.NewProxyService(gate, paylink)
	keys := services.NewKeyService(keyRepo)

	sessions := middleware.NewSessions(settings.JWTSecret, settings.CookieSecure)

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = controllers.HTTPErrorHandler

	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.BodyLimit("1M"))
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		AllowedDomains: settings.CORSOrigins,
		HSTS:           settings.CookieSecure,
	}))

	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", func(c echo.Context) error {
		status := "healthy"
		pingCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			status = "degraded"
		}
		return c.JSON(http.StatusOK, map[string]string{"status": status})
	})

	routes.SetupRoutes(e, sessions, routes.Controllers{
		Auth:    controllers.NewAuthController(accounts, sessions),
		Payment: controllers.NewPaymentController(checkout, issuer),
		Keys:    controllers.NewKeyController(keys, wsHub, settings.CORSOrigins),
		Proxy:   controllers.NewProxyController(proxy, settings.PublicBaseURL),
	}, settings.CORSOrigins)

	// Start server
	go func() {
		if err := e.Start(":" + settings.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	mailQueue.Close()
	if redisClient != nil {
		redisClient.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.Printf("MongoDB disconnect error: %v", err)
	}
}
