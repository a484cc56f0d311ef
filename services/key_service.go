package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/repositories"
	"github.com/HSouheill/devzon_backend/utils"
)

// KeyService serves the dashboard's key listing and lookup
type KeyService struct {
	keys KeyStore
}

func NewKeyService(keys KeyStore) *KeyService {
	return &KeyService{keys: keys}
}

// ListForOwner returns the owner's keys, newest first. An empty owner id
// yields an empty list.
func (s *KeyService) ListForOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	if ownerID == "" {
		return []models.APIKey{}, nil
	}
	oid, err := parseObjectID(ownerID)
	if err != nil {
		return []models.APIKey{}, nil
	}

	keys, err := s.keys.ListByOwner(ctx, oid)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load keys", err)
	}
	for i := range keys {
		// Report the governing counter in the flat field whatever its storage shape.
		_, remaining := keys[i].RemainingField()
		keys[i].Remaining = &remaining
		keys[i].Meta.Remaining = nil
	}
	return keys, nil
}

// Exists reports whether key was issued
func (s *KeyService) Exists(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, utils.NewValidationError("Missing key")
	}

	_, err := s.keys.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, utils.NewInternalError("Failed to look up key", err)
	}
	return true, nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(strings.TrimSpace(id))
}
