package repositories

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/devzon_backend/utils"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("document not found")
	// ErrKeyAlreadyIssued is returned when an order already links a generated key.
	ErrKeyAlreadyIssued = errors.New("order already has a generated key")
	// ErrDuplicateKey is returned when a generated key string collides.
	ErrDuplicateKey = errors.New("api key already exists")
)

// conflictFromDuplicate maps a duplicate-key write error to a field-level
// conflict. Non-duplicate errors are returned unchanged.
func conflictFromDuplicate(err error, fields ...string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	for _, field := range fields {
		if strings.Contains(msg, field+"_unique") || strings.Contains(msg, "{ "+field+":") {
			return utils.NewConflictError(field, conflictMessage(field))
		}
	}
	return utils.NewConflictError("", "Conflict")
}

func conflictMessage(field string) string {
	switch field {
	case "email":
		return "Email already in use"
	case "username":
		return "Username already taken"
	case "phone":
		return "Phone number already registered"
	default:
		return field + " already in use"
	}
}
