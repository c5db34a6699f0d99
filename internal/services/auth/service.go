// Package auth verifies the operator key guarding admin endpoints.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin access is not configured")
)

// Service checks admin keys against a single bcrypt hash
type Service struct {
	hash   []byte
	logger *slog.Logger
}

// New creates a Service. An empty keyHash disables admin access entirely.
func New(keyHash string, logger *slog.Logger) (*Service, error) {
	s := &Service{logger: logger.With(slog.String("component", "admin-auth"))}
	if keyHash == "" {
		s.logger.Warn("no admin key hash configured, admin endpoints disabled")
		return s, nil
	}
	if _, err := bcrypt.Cost([]byte(keyHash)); err != nil {
		return nil, fmt.Errorf("invalid admin key hash: %w", err)
	}
	s.hash = []byte(keyHash)
	return s, nil
}

// Enabled reports whether an admin key hash is configured
func (s *Service) Enabled() bool {
	return len(s.hash) > 0
}

// Verify checks key against the configured hash
func (s *Service) Verify(key string) error {
	if !s.Enabled() {
		return ErrAdminDisabled
	}
	if key == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(key)); err != nil {
		s.logger.Warn("admin key rejected")
		return ErrInvalidCredentials
	}
	return nil
}

// HashKey returns the bcrypt hash of key for use as ADMIN_KEY_HASH
func HashKey(key string, cost int) (string, error) {
	if key == "" {
		return "", errors.New("key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}

// GenerateKey returns a random key suitable for admin access
func GenerateKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "kiosk_" + base64.RawURLEncoding.EncodeToString(b)
}
