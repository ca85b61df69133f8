// Package lock provides advisory, TTL-bounded mutual exclusion over logical
// resources (an event, a seat, a user within an event). Locks protect the
// engine's critical sections, not the store itself; the TTL bounds how long
// a crashed holder can block the resource.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gacastro/seat-reservations/internal/fault"
	"github.com/gacastro/seat-reservations/internal/keyspace"
	"github.com/gacastro/seat-reservations/internal/store"
)

const managerName = "LockManager"

// Manager acquires and releases named locks through the store's conditional
// primitives. Each acquisition mints a fresh ownership token; only the
// holder of that token can delete the lock, so a process whose lock expired
// and was reassigned can never release someone else's.
type Manager struct {
	store  store.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager returns a Manager whose locks live for ttl.
func NewManager(s store.Store, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{store: s, ttl: ttl, logger: logger}
}

// Acquire takes the lock over resourceKey and returns the ownership token.
// When another operation holds the lock it fails with an unavailable-lock
// fault against the given target.
func (m *Manager) Acquire(ctx context.Context, resourceKey string, target fault.Target) (string, error) {
	token := uuid.NewString()

	acquired, err := m.store.SetIfAbsent(ctx, keyspace.Lock(resourceKey), token, m.ttl)
	if err != nil {
		return "", err
	}
	if !acquired {
		f := fault.New(fault.KindLockUnavailable, target,
			fmt.Sprintf("another process is already handling the resource -%s-", resourceKey))
		f.Log(m.logger, managerName)
		return "", f
	}
	return token, nil
}

// Release deletes the lock over resourceKey if it still carries token.
// Finding no matching lock is not an error: the lock expired and may have
// been reassigned, which only means this holder outlived its TTL. That is
// worth a log line for metrics and nothing more.
func (m *Manager) Release(ctx context.Context, resourceKey, token string) {
	lockKey := keyspace.Lock(resourceKey)

	deleted, err := m.store.DeleteIfMatches(ctx, lockKey, token)
	if err != nil {
		m.logger.Warn("failed to release lock",
			slog.String("component", managerName),
			slog.String("key", lockKey),
			slog.String("error", err.Error()))
		return
	}
	if !deleted {
		m.logger.Info(fmt.Sprintf("lock for %s has been taken by another process", resourceKey),
			slog.String("component", managerName))
	}
}
