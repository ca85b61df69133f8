// Package store wraps the shared key-value store behind the small set of
// atomic primitives the reservation engine relies on. Every method maps to
// a single server-side atomic operation; there are no retries and no
// business errors at this layer, only the mechanical outcome of the
// primitive.
package store

import (
	"context"
	"time"
)

// Store is the capability interface consumed by the lock manager and the
// reservation engine. The production implementation is RedisStore; tests run
// against a miniredis-backed client.
type Store interface {
	// SetIfAbsent writes key only when it does not exist, with the given
	// time-to-live. It reports whether this call created the key.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// DeleteIfMatches deletes key only when its current value equals
	// expected, as one atomic compare-and-delete. It reports whether a
	// deletion happened.
	DeleteIfMatches(ctx context.Context, key, expected string) (bool, error)
	// Get returns the value at key, or "" when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// GetDel returns the value at key and deletes it in the same operation.
	GetDel(ctx context.Context, key string) (string, error)

	// MoveBetweenSets atomically removes member from the set at from and
	// adds it to the set at to. It reports false when member was not in from.
	MoveBetweenSets(ctx context.Context, from, to, member string) (bool, error)
	SetMembers(ctx context.Context, key string) ([]string, error)
	IsMember(ctx context.Context, key, member string) (bool, error)
	AddToSet(ctx context.Context, key, member string) error
	RemoveFromSet(ctx context.Context, key, member string) error

	HashSet(ctx context.Context, key string, fields map[string]string) error
	HashGet(ctx context.Context, key, field string) (string, error)
	HashFieldExists(ctx context.Context, key, field string) (bool, error)
}
