package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/repositories"
	"github.com/HSouheill/devzon_backend/security"
	"github.com/HSouheill/devzon_backend/utils"
)

const maxKeyAttempts = 3

// CheckoutCompletion is a gateway callback after the signature fields were read
type CheckoutCompletion struct {
	OrderID   string
	PaymentID string
	Signature string
	PlanID    string
	// UserID is the authenticated session, nil for anonymous callers.
	UserID *primitive.ObjectID
}

// KeyIssuer turns a verified payment into an API key
type KeyIssuer struct {
	verifier  *security.SignatureVerifier
	generator *security.KeyGenerator
	orders    OrderStore
	users     UserStore
	keys      KeyStore
	issuance  IssuanceStore
	events    EventPublisher
	now       func() time.Time
	logger    *log.Logger
}

// NewKeyIssuer wires the issuer. events may be nil.
func NewKeyIssuer(verifier *security.SignatureVerifier, generator *security.KeyGenerator, orders OrderStore, users UserStore, keys KeyStore, issuance IssuanceStore, events EventPublisher) *KeyIssuer {
	if events == nil {
		events = noopPublisher{}
	}
	return &KeyIssuer{
		verifier:  verifier,
		generator: generator,
		orders:    orders,
		users:     users,
		keys:      keys,
		issuance:  issuance,
		events:    events,
		now:       time.Now,
		logger:    log.New(os.Stdout, "[KEYS] ", log.LstdFlags),
	}
}

// Complete verifies the callback signature, marks the order paid and issues
// exactly one key for it. A callback without a plan id uses the plan recorded
// on the order. Replays for an order that already has a key return that key.
func (k *KeyIssuer) Complete(ctx context.Context, c CheckoutCompletion) (*models.IssuedKey, error) {
	if c.OrderID == "" || c.PaymentID == "" || c.Signature == "" {
		return nil, utils.NewValidationError("Missing fields")
	}

	// Nothing below may run for an unverified callback.
	if !k.verifier.Verify(c.OrderID, c.PaymentID, c.Signature) {
		k.logger.Printf("Invalid signature for order %s", c.OrderID)
		return nil, utils.NewAuthError(http.StatusBadRequest, "Invalid signature")
	}

	order, err := k.orders.FindByOrderID(ctx, c.OrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewValidationError("Unknown order")
		}
		return nil, utils.NewInternalError("Failed to load order", err)
	}

	planID := c.PlanID
	if planID == "" {
		planID = order.PlanID
	}
	plan, ok := models.LookupPlan(planID)
	if !ok {
		return nil, utils.NewValidationError("Unknown plan")
	}
	if (order.PlanID != "" && order.PlanID != plan.ID) || order.Amount < plan.Price {
		return nil, utils.NewValidationError("Plan does not match order")
	}

	paid, err := k.orders.MarkPaid(ctx, c.OrderID, c.PaymentID, k.now())
	if err != nil {
		return nil, utils.NewInternalError("Failed to update order", err)
	}
	k.logger.Printf("Order %s marked paid (payment %s)", c.OrderID, c.PaymentID)

	if c.UserID == nil {
		return nil, utils.NewAuthError(http.StatusUnauthorized, "Unauthenticated")
	}
	if paid.UserID != nil && *paid.UserID != *c.UserID {
		return nil, utils.NewAuthError(http.StatusForbidden, "Order belongs to another account")
	}
	if paid.GeneratedKey != "" {
		return k.replay(ctx, paid, plan)
	}

	user, err := k.users.FindByID(ctx, *c.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewAuthError(http.StatusUnauthorized, "Unauthenticated")
		}
		return nil, utils.NewInternalError("Failed to load user", err)
	}

	for attempt := 1; attempt <= maxKeyAttempts; attempt++ {
		apiKey, err := k.newKey(user, plan, paid)
		if err != nil {
			return nil, utils.NewInternalError("Failed to generate key", err)
		}

		err = k.issuance.IssueForOrder(ctx, c.OrderID, *c.UserID, apiKey)
		switch {
		case err == nil:
			paid.GeneratedKey = apiKey.Key
			paid.UserID = c.UserID
			k.logger.Printf("Issued %s key for order %s to user %s", plan.ID, c.OrderID, c.UserID.Hex())
			k.events.Publish(c.UserID.Hex(), EventAPIKeyIssued, map[string]interface{}{
				"key":       apiKey.Key,
				"plan":      plan.Title,
				"expiresAt": apiKey.ExpiresAt,
				"remaining": plan.Quota,
			})
			return &models.IssuedKey{
				Key:       apiKey.Key,
				ExpiresAt: apiKey.ExpiresAt,
				Plan:      plan.Title,
				Order:     paid,
			}, nil
		case errors.Is(err, repositories.ErrDuplicateKey):
			k.logger.Printf("Generated key collided for order %s (attempt %d)", c.OrderID, attempt)
			continue
		case errors.Is(err, repositories.ErrKeyAlreadyIssued):
			// Lost a race with a concurrent callback for the same order.
			current, ferr := k.orders.FindByOrderID(ctx, c.OrderID)
			if ferr != nil {
				return nil, utils.NewInternalError("Failed to load order", ferr)
			}
			if current.GeneratedKey == "" {
				return nil, utils.NewAuthError(http.StatusForbidden, "Order belongs to another account")
			}
			return k.replay(ctx, current, plan)
		default:
			k.logger.Printf("Key issuance failed for paid order %s: %v", c.OrderID, err)
			return nil, utils.NewInternalError("Failed to issue key", err)
		}
	}

	return nil, utils.NewInternalError("Failed to issue key", repositories.ErrDuplicateKey)
}

func (k *KeyIssuer) newKey(user *models.User, plan models.Plan, order *models.Order) (*models.APIKey, error) {
	keyString, err := k.generator.Generate()
	if err != nil {
		return nil, err
	}

	now := k.now()
	remaining := plan.Quota
	ownerID := user.ID

	return &models.APIKey{
		Key:       keyString,
		OwnerID:   &ownerID,
		Plan:      plan.ID,
		PlanTitle: plan.Title,
		Remaining: &remaining,
		ExpiresAt: now.AddDate(0, 0, plan.ExpiryDays),
		Status:    models.APIKeyStatusActive,
		Phone:     user.Phone,
		CreatedAt: now,
		Meta: models.APIKeyMeta{
			Source:     "razorpay",
			Price:      plan.Price,
			OrderID:    order.OrderID,
			QuotaLabel: plan.QuotaLabel,
		},
	}, nil
}

func (k *KeyIssuer) replay(ctx context.Context, order *models.Order, plan models.Plan) (*models.IssuedKey, error) {
	existing, err := k.keys.FindByKey(ctx, order.GeneratedKey)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load generated key", err)
	}

	title := existing.PlanTitle
	if title == "" {
		title = plan.Title
	}
	k.logger.Printf("Order %s already has a key, returning it", order.OrderID)

	return &models.IssuedKey{
		Key:       existing.Key,
		ExpiresAt: existing.ExpiresAt,
		Plan:      title,
		Order:     order,
		Replayed:  true,
	}, nil
}
