package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/devzon_backend/models"
)

// UserStore is the user half of the credential store
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindConflict(ctx context.Context, email, username, phone string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FieldTaken(ctx context.Context, field, value string) (bool, error)
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
	SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error
}

// OrderStore persists checkout orders
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) (*models.Order, error)
}

// KeyStore reads API keys and spends their quota
type KeyStore interface {
	FindByKey(ctx context.Context, key string) (*models.APIKey, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.APIKey, error)
	Decrement(ctx context.Context, id primitive.ObjectID, field string, now time.Time) (*models.APIKey, error)
}

// IssuanceStore links a generated key to its order atomically
type IssuanceStore interface {
	IssueForOrder(ctx context.Context, orderID string, ownerID primitive.ObjectID, key *models.APIKey) error
}

// EventPublisher pushes live events to a user's open dashboards
type EventPublisher interface {
	Publish(userID string, eventType string, data interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, interface{}) {}

// Live event types
const (
	EventAPIKeyIssued   = "api_key_issued"
	EventQuotaExhausted = "quota_exhausted"
)
