package security

import (
	"strings"
	"sync"
)

// MaskSecret masks a secret for display, keeping showChars at each end.
func MaskSecret(value string, showChars int) string {
	if len(value) <= showChars*2 {
		return strings.Repeat("*", len(value))
	}
	return value[:showChars] + strings.Repeat("*", len(value)-showChars*2) + value[len(value)-showChars:]
}

// MaskInString replaces occurrences of a secret within a string.
func MaskInString(text, secret string) string {
	if len(secret) < 4 {
		return text
	}
	return strings.ReplaceAll(text, secret, MaskSecret(secret, 2))
}

// SecretRegistry tracks secret values that must never appear in logs, the
// diagnostics store or HTTP responses.
type SecretRegistry struct {
	mu      sync.RWMutex
	secrets []string
}

// NewSecretRegistry creates a registry holding the given secrets.
func NewSecretRegistry(secrets ...string) *SecretRegistry {
	sr := &SecretRegistry{}
	for _, s := range secrets {
		sr.Register(s)
	}
	return sr
}

// Register adds a secret. Values shorter than four bytes are ignored.
func (sr *SecretRegistry) Register(secret string) {
	if len(secret) < 4 {
		return
	}
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.secrets = append(sr.secrets, secret)
}

// Sanitize masks every known secret in text. A nil registry returns text.
func (sr *SecretRegistry) Sanitize(text string) string {
	if sr == nil {
		return text
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	for _, secret := range sr.secrets {
		text = MaskInString(text, secret)
	}
	return text
}

// Count returns the number of registered secrets.
func (sr *SecretRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.secrets)
}
