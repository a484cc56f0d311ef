package security

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"
)

const (
	// APIKeyPrefix marks keys issued by this service.
	APIKeyPrefix = "DEVZ_"

	apiKeyRandomBytes = 12
)

// KeyGenerator produces API key strings from a random source.
type KeyGenerator struct {
	rand io.Reader
}

// NewKeyGenerator uses crypto/rand.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{rand: rand.Reader}
}

// NewKeyGeneratorFrom uses r as the random source.
func NewKeyGeneratorFrom(r io.Reader) *KeyGenerator {
	return &KeyGenerator{rand: r}
}

// Generate returns the prefix followed by 24 uppercase hex characters.
func (g *KeyGenerator) Generate() (string, error) {
	b := make([]byte, apiKeyRandomBytes)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", err
	}
	return APIKeyPrefix + strings.ToUpper(hex.EncodeToString(b)), nil
}
