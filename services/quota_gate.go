package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/repositories"
	"github.com/HSouheill/devzon_backend/utils"
)

// QuotaGate admits requests made with an API key and spends one unit per
// admitted request.
type QuotaGate struct {
	keys   KeyStore
	events EventPublisher
	now    func() time.Time
	logger *log.Logger
}

func NewQuotaGate(keys KeyStore, events EventPublisher) *QuotaGate {
	if events == nil {
		events = noopPublisher{}
	}
	return &QuotaGate{
		keys:   keys,
		events: events,
		now:    time.Now,
		logger: log.New(os.Stdout, "[QUOTA] ", log.LstdFlags),
	}
}

// Consume checks the key and atomically decrements its counter. The returned
// key reflects the stored state after the decrement. Spent units are not
// refunded when the forwarded call later fails.
func (g *QuotaGate) Consume(ctx context.Context, key string) (*models.APIKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, utils.NewQuotaError(http.StatusForbidden, "Invalid API key")
	}

	apiKey, err := g.keys.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewQuotaError(http.StatusForbidden, "Invalid API key")
		}
		return nil, utils.NewInternalError("Failed to load API key", err)
	}

	now := g.now()
	if apiKey.Expired(now) {
		return nil, utils.NewQuotaError(http.StatusForbidden, "API key expired")
	}

	field, remaining := apiKey.RemainingField()
	if remaining <= 0 {
		return nil, utils.NewQuotaError(http.StatusTooManyRequests, "Usage limit reached")
	}

	updated, err := g.keys.Decrement(ctx, apiKey.ID, field, now)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewInternalError("Failed to update usage", err)
		}
		// The guard failed between the read and the write.
		if !apiKey.ExpiresAt.IsZero() && !now.Before(apiKey.ExpiresAt) {
			return nil, utils.NewQuotaError(http.StatusForbidden, "API key expired")
		}
		return nil, utils.NewQuotaError(http.StatusTooManyRequests, "Usage limit reached")
	}

	if _, left := updated.RemainingField(); left == 0 && updated.OwnerID != nil {
		g.logger.Printf("Key %s exhausted its quota", maskKey(updated.Key))
		g.events.Publish(updated.OwnerID.Hex(), EventQuotaExhausted, map[string]interface{}{
			"key":  updated.Key,
			"plan": updated.PlanTitle,
		})
	}
	return updated, nil
}

func maskKey(key string) string {
	if len(key) <= 9 {
		return key
	}
	return key[:9] + "..."
}
