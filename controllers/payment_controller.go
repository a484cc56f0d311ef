package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/devzon_backend/middleware"
	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/services"
)

// PaymentController handles checkout and key issuance
type PaymentController struct {
	checkout *services.CheckoutService
	issuer   *services.KeyIssuer
}

func NewPaymentController(checkout *services.CheckoutService, issuer *services.KeyIssuer) *PaymentController {
	return &PaymentController{checkout: checkout, issuer: issuer}
}

// Plans lists the plan catalog
func (pc *PaymentController) Plans(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"plans": models.PlanList()})
}

// CreateOrder starts a gateway checkout
func (pc *PaymentController) CreateOrder(c echo.Context) error {
	var req models.CreateOrderRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	order, err := pc.checkout.CreateOrder(c.Request().Context(), req, sessionObjectID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":    true,
		"order": order,
	})
}

// Verify handles the gateway callback and issues the plan's API key
func (pc *PaymentController) Verify(c echo.Context) error {
	var req models.VerifyPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	req.Normalize()

	issued, err := pc.issuer.Complete(c.Request().Context(), services.CheckoutCompletion{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		PlanID:    req.PlanID,
		UserID:    sessionObjectID(c),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":           true,
		"generatedKey": issued.Key,
		"expiresAt":    issued.ExpiresAt,
		"plan":         issued.Plan,
		"order":        issued.Order,
		"replayed":     issued.Replayed,
	})
}

// sessionObjectID returns the session's user id, nil when anonymous
func sessionObjectID(c echo.Context) *primitive.ObjectID {
	userID := middleware.GetUserIDFromToken(c)
	if userID == "" {
		return nil
	}
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}
	return &oid
}
