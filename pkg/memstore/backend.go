package memstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist (or has
// expired). It is distinct from a transport error.
var ErrNotFound = errors.New("memstore: key not found")

// ErrInvalidKey is returned when a key contains characters outside the
// restricted namespace charset.
var ErrInvalidKey = errors.New("memstore: invalid key")

// keyPattern matches the mandated key-layout charset: hierarchical,
// path-like keys built only from [A-Za-z0-9/_.-]. Any shell-interpretable
// character (;, &, |, backtick, $, parens, braces, brackets, angle brackets)
// is rejected by construction since it simply isn't in the allowed set.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9/_.-]+$`)

// ValidateKey rejects empty keys and keys outside the allowed charset.
func ValidateKey(key string) error {
	if key == "" || !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Backend is the Shared Memory Backend Adapter contract. Implementations are
// best-effort: at-most-once on writes, at-least-once on reads, with no
// transactional guarantees across keys.
type Backend interface {
	// Get returns the raw bytes stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value at key. ttl <= 0 means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Search returns every stored key matching prefix.
	Search(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources the backend holds open.
	Close() error
}
