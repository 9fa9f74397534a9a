// Package demoauth checks the demo server's API key against a bcrypt
// hash, the gateway's auth package with the part it only pretended to
// do — comparing against a real stored hash instead of a literal
// "secret" string — actually wired up.
package demoauth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service checks presented API keys against a single configured bcrypt
// hash. There are no multi-tenant client records.
type Service struct {
	keyHash string
	logger  *zap.Logger
}

// NewService builds a Service from a bcrypt hash (as produced by
// HashAPIKey). An empty keyHash disables auth entirely — RequireAPIKey
// then always allows the request through. cmd/demoserver builds no
// Service at all when API_KEY_HASH is unset.
func NewService(keyHash string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{keyHash: keyHash, logger: logger}
}

// HashAPIKey produces a bcrypt hash suitable for the API_KEY_HASH
// environment variable.
func HashAPIKey(apiKey string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("demoauth: hash api key: %w", err)
	}
	return string(hashed), nil
}

// Authenticate reports whether apiKey matches the configured hash.
func (s *Service) Authenticate(apiKey string) bool {
	if s.keyHash == "" {
		return true
	}
	err := bcrypt.CompareHashAndPassword([]byte(s.keyHash), []byte(apiKey))
	return err == nil
}

// RequireAPIKey is Fiber middleware enforcing the X-API-Key header.
func (s *Service) RequireAPIKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.keyHash == "" {
			return c.Next()
		}

		apiKey := c.Get("X-API-Key")
		if apiKey == "" || !s.Authenticate(apiKey) {
			s.logger.Warn("rejected request with invalid api key", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid API key",
			})
		}
		return c.Next()
	}
}
