package models

import (
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	APIKeyStatusActive = "active"

	// RemainingField and LegacyRemainingField are the two storage shapes of the
	// quota counter.
	RemainingField       = "remaining"
	LegacyRemainingField = "meta.remaining"
)

// APIKey is a bearer credential with a request quota and an absolute expiry
type APIKey struct {
	ID        primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	Key       string              `json:"key" bson:"key"`
	OwnerID   *primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	Plan      string              `json:"plan" bson:"plan"`
	PlanTitle string              `json:"planTitle,omitempty" bson:"planTitle,omitempty"`
	Remaining *int64              `json:"remaining,omitempty" bson:"remaining,omitempty"`
	ExpiresAt time.Time           `json:"expiresAt" bson:"expiresAt"`
	Status    string              `json:"status" bson:"status"`
	Phone     string              `json:"phone,omitempty" bson:"phone,omitempty"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	Meta      APIKeyMeta          `json:"meta" bson:"meta"`
}

// APIKeyMeta is free-form issuance metadata
type APIKeyMeta struct {
	Source     string  `json:"source,omitempty" bson:"source,omitempty"`
	Price      float64 `json:"price,omitempty" bson:"price,omitempty"`
	OrderID    string  `json:"orderId,omitempty" bson:"orderId,omitempty"`
	QuotaLabel string  `json:"quotaLabel,omitempty" bson:"quotaLabel,omitempty"`
	// Remaining is the legacy location of the quota counter.
	Remaining *int64 `json:"remaining,omitempty" bson:"remaining,omitempty"`
}

// RemainingField resolves which stored counter governs this key and its value.
// The flat field wins when present, then meta.remaining, otherwise the key has
// no quota and the flat field is reported with zero.
func (k *APIKey) RemainingField() (string, int64) {
	if k.Remaining != nil {
		return RemainingField, *k.Remaining
	}
	if k.Meta.Remaining != nil {
		return LegacyRemainingField, *k.Meta.Remaining
	}
	return RemainingField, 0
}

// Expired reports whether now is past the key's expiry. Keys stored without
// an expiresAt never expire.
func (k *APIKey) Expired(now time.Time) bool {
	if k.ExpiresAt.IsZero() {
		return false
	}
	return now.After(k.ExpiresAt)
}

// IssuedKey is the callback response payload for a generated key
type IssuedKey struct {
	Key       string    `json:"generatedKey"`
	ExpiresAt time.Time `json:"expiresAt"`
	Plan      string    `json:"plan"`
	Order     *Order    `json:"order"`
	// Replayed is true when the order already had a key and no new one was issued.
	Replayed bool `json:"replayed,omitempty"`
}

var leadingNumber = regexp.MustCompile(`^\s*(\d+)`)

// CoerceRemaining converts a stored counter of any legacy shape to a number.
// Label strings such as "850 per week" yield their leading integer; anything
// unparseable yields zero.
func CoerceRemaining(value interface{}) int64 {
	switch v := value.(type) {
	case int32:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		m := leadingNumber.FindStringSubmatch(v)
		if m == nil {
			return 0
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
