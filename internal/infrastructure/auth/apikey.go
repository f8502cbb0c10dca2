package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// Scheme is the Authorization header prefix expected before the key.
const Scheme = "ApiKey "

// Authentication errors. The messages are returned to clients verbatim.
var (
	ErrAPIKeyMissing       = errors.New("API Key missing")
	ErrInvalidAPIKeyFormat = errors.New("Invalid API Key format")
	ErrInvalidAPIKey       = errors.New("Invalid API Key")
)

// APIKeyVerifier checks Authorization headers against a shared key.
type APIKeyVerifier struct {
	key []byte
}

// NewAPIKeyVerifier creates a verifier for key.
func NewAPIKeyVerifier(key string) *APIKeyVerifier {
	return &APIKeyVerifier{key: []byte(key)}
}

// Verify validates an Authorization header value of the form "ApiKey <key>".
func (v *APIKeyVerifier) Verify(header string) error {
	if header == "" {
		return ErrAPIKeyMissing
	}

	if !strings.HasPrefix(header, Scheme) {
		return ErrInvalidAPIKeyFormat
	}

	presented := []byte(strings.TrimPrefix(header, Scheme))
	if len(v.key) == 0 || subtle.ConstantTimeCompare(presented, v.key) != 1 {
		return ErrInvalidAPIKey
	}

	return nil
}
