// Package cache provides the short-lived key/value storage used for pending
// consent challenges.
//
// Backends:
//   - memory (in-process, dev/tests)
//   - redis (shared, production)
//
// GetDel is the load-bearing operation: consuming a state token must be a
// single atomic read-and-invalidate so two concurrent callbacks with the same
// state cannot both succeed.
package cache

import (
	"context"
	"time"
)

// Client is the cache contract.
type Client interface {
	// Get returns the value for key. ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with a TTL. ttl == 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// GetDel atomically returns and removes the value. ErrNotFound if
	// absent or expired; a second GetDel on the same key always misses.
	GetDel(ctx context.Context, key string) (string, error)

	// Delete removes a key. No-op if absent.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string
}

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New builds a client for the configured driver. Unknown drivers fall back to
// memory, matching dev-friendly defaults elsewhere.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
