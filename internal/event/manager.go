// Package event implements the seat state machine: event creation, hold
// acquisition, hold refresh and reservation. A seat moves
// available -> held -> reserved, with held falling back to available when
// its marker expires unrefreshed. All state lives in the shared store; the
// manager keeps no cross-request memory, so any number of processes can run
// it concurrently against the same inventory.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gacastro/seat-reservations/internal/fault"
	"github.com/gacastro/seat-reservations/internal/keyspace"
	"github.com/gacastro/seat-reservations/internal/store"
)

const managerName = "EventManager"

// Event record fields inside the event hash. Existence of an event is
// tested on the name field rather than on the key, so a stray write to the
// event key can never masquerade as a created event.
const (
	fieldEventName = "event-name"
	fieldSeatCount = "number-of-seats"
	fieldUserQuota = "number-of-seats-user-can-hold-per-event"
)

// Locker is the slice of the lock manager the engine needs.
type Locker interface {
	Acquire(ctx context.Context, resourceKey string, target fault.Target) (string, error)
	Release(ctx context.Context, resourceKey, token string)
}

// Manager orchestrates the five reservation operations on top of the store
// primitives and the lock manager. Operations return either a definitive
// result or a typed fault; nothing is retried here.
type Manager struct {
	store   store.Store
	locks   Locker
	holdTTL time.Duration
	logger  *slog.Logger
}

// NewManager builds an engine whose seat holds live for holdTTL.
func NewManager(s store.Store, locks Locker, holdTTL time.Duration, logger *slog.Logger) *Manager {
	return &Manager{store: s, locks: locks, holdTTL: holdTTL, logger: logger}
}

// CreateEvent registers a new event and seeds its seat inventory, numbering
// seats from 0 to seatCount-1. Seats are initialised concurrently, each
// under its own lock, and any initialisation failure propagates. It returns
// the event key clients use on every later call.
func (m *Manager) CreateEvent(ctx context.Context, eventName string, seatCount, maxHoldPerUser int) (string, error) {
	eventKey := keyspace.Event(eventName)

	exists, err := m.store.HashFieldExists(ctx, eventKey, fieldEventName)
	if err != nil {
		return "", err
	}
	if exists {
		return "", m.fail(fault.New(fault.KindAlreadyExists, fault.TargetEvent,
			fmt.Sprintf("event under key -%s- already exists", eventKey)))
	}

	// The event lock serialises concurrent creators of the same name; the
	// loser of the race fails with unavailable-lock.
	token, err := m.locks.Acquire(ctx, eventKey, fault.TargetEvent)
	if err != nil {
		return "", err
	}
	err = m.store.HashSet(ctx, eventKey, map[string]string{
		fieldEventName: eventName,
		fieldSeatCount: strconv.Itoa(seatCount),
		fieldUserQuota: strconv.Itoa(maxHoldPerUser),
	})
	m.locks.Release(ctx, eventKey, token)
	if err != nil {
		return "", err
	}

	g, gctx := errgroup.WithContext(ctx)
	for seatNumber := 0; seatNumber < seatCount; seatNumber++ {
		seatNumber := seatNumber
		g.Go(func() error {
			return m.initialiseSeat(gctx, eventKey, eventName, strconv.Itoa(seatNumber))
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return eventKey, nil
}

func (m *Manager) initialiseSeat(ctx context.Context, eventKey, eventName, seatNumber string) error {
	seatKey := keyspace.Seat(eventName, seatNumber)

	token, err := m.locks.Acquire(ctx, seatKey, fault.TargetSeat)
	if err != nil {
		return err
	}
	defer m.locks.Release(ctx, seatKey, token)

	return m.store.AddToSet(ctx, keyspace.AvailableSeats(eventKey), seatKey)
}

// ListAvailableSeats returns the seats of eventID that are free to hold.
// Seats whose hold marker expired are reclaimed on the way: they are moved
// back from the being-held set to the available set and included in the
// result. Reclamation is opportunistic; when several callers race for the
// same expired seat only the winner of the move reports it, and the store
// ends up correct either way.
func (m *Manager) ListAvailableSeats(ctx context.Context, eventID string) ([]string, error) {
	if err := m.ensureEventExists(ctx, eventID); err != nil {
		return nil, err
	}

	availableKey := keyspace.AvailableSeats(eventID)
	heldKey := keyspace.SeatsBeingHeld(eventID)

	available, err := m.store.SetMembers(ctx, availableKey)
	if err != nil {
		return nil, err
	}
	beingHeld, err := m.store.SetMembers(ctx, heldKey)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, seat := range beingHeld {
		seat := seat
		g.Go(func() error {
			holder, err := m.store.Get(gctx, keyspace.HeldSeat(seat))
			if err != nil {
				return err
			}
			if holder != "" {
				return nil
			}
			moved, err := m.store.MoveBetweenSets(gctx, heldKey, availableKey, seat)
			if err != nil {
				return err
			}
			if moved {
				mu.Lock()
				available = append(available, seat)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return available, nil
}

// HoldSeat gives userID a time-limited exclusive claim on seatID. The
// per-user lock serialises quota decisions, so two concurrent holds by the
// same user cannot both pass the quota check. When the user is at quota,
// seats whose markers have expired are reclaimed first; with nothing to
// reclaim the call fails with max-capacity. On success it returns the
// absolute expiry of the hold in epoch milliseconds.
func (m *Manager) HoldSeat(ctx context.Context, eventID, userID, seatID string) (int64, error) {
	if err := m.ensureSeatExists(ctx, eventID, seatID); err != nil {
		return 0, err
	}

	userLockKey := keyspace.UserWriteLock(userID, eventID)
	token, err := m.locks.Acquire(ctx, userLockKey, fault.TargetUser)
	if err != nil {
		return 0, err
	}
	defer m.locks.Release(ctx, userLockKey, token)

	userSeatsKey := keyspace.UserHeldSeats(userID, eventID)
	holding, err := m.store.SetMembers(ctx, userSeatsKey)
	if err != nil {
		return 0, err
	}
	quota, err := m.userQuota(ctx, eventID)
	if err != nil {
		return 0, err
	}

	if len(holding) < quota {
		return m.acquireHold(ctx, eventID, userID, seatID)
	}

	// At quota. Expired holds still listed against the user free up
	// capacity; drop every one found, not just the first.
	reclaimed := false
	for _, seat := range holding {
		holder, err := m.store.Get(ctx, keyspace.HeldSeat(seat))
		if err != nil {
			return 0, err
		}
		if holder != "" {
			continue
		}
		if err := m.store.RemoveFromSet(ctx, userSeatsKey, seat); err != nil {
			return 0, err
		}
		reclaimed = true
	}
	if !reclaimed {
		return 0, m.fail(fault.New(fault.KindQuotaExceeded, fault.TargetSeat,
			fmt.Sprintf("user %s cannot hold more seats", userID)))
	}

	return m.acquireHold(ctx, eventID, userID, seatID)
}

// acquireHold performs the atomic hold of one seat. The preliminary marker
// read is advisory: the conditional set in the middle is the authoritative
// guard, and its failure after the read passed means a racing hold won the
// marker in between, which surfaces as wrong-configuration for operator
// investigation.
func (m *Manager) acquireHold(ctx context.Context, eventID, userID, seatID string) (int64, error) {
	heldSeatKey := keyspace.HeldSeat(seatID)

	holder, err := m.store.Get(ctx, heldSeatKey)
	if err != nil {
		return 0, err
	}
	if holder != "" {
		return 0, m.fail(fault.New(fault.KindSeatUnavailable, fault.TargetSeat,
			fmt.Sprintf("seat -%s- is no longer available", seatID)))
	}

	seatLockKey := keyspace.SeatWriteLock(seatID)
	token, err := m.locks.Acquire(ctx, seatLockKey, fault.TargetSeat)
	if err != nil {
		return 0, err
	}
	defer m.locks.Release(ctx, seatLockKey, token)

	expiry, err := m.saveHeldSeat(ctx, heldSeatKey, userID)
	if err != nil {
		return 0, err
	}

	moved, err := m.store.MoveBetweenSets(ctx,
		keyspace.AvailableSeats(eventID), keyspace.SeatsBeingHeld(eventID), seatID)
	if err != nil {
		return 0, err
	}
	if !moved {
		return 0, m.fail(fault.New(fault.KindInconsistency, fault.TargetSeat,
			fmt.Sprintf("something went terribly wrong. seat -%s- was not under the available seats", seatID)))
	}

	if err := m.store.AddToSet(ctx, keyspace.UserHeldSeats(userID, eventID), seatID); err != nil {
		return 0, err
	}

	return expiry, nil
}

// saveHeldSeat writes the hold marker with the configured TTL and returns
// its absolute expiry in epoch milliseconds.
func (m *Manager) saveHeldSeat(ctx context.Context, heldSeatKey, userID string) (int64, error) {
	saved, err := m.store.SetIfAbsent(ctx, heldSeatKey, userID, m.holdTTL)
	if err != nil {
		return 0, err
	}
	if !saved {
		return 0, m.fail(fault.New(fault.KindInconsistency, fault.TargetSeat,
			fmt.Sprintf("something went terribly wrong. seat -%s- could not be saved", heldSeatKey)))
	}
	return time.Now().Add(m.holdTTL).UnixMilli(), nil
}

// RefreshHoldSeat extends userID's existing hold on seatID by a full hold
// TTL and returns the new expiry in epoch milliseconds. The marker is
// deleted and recreated in two steps; the per-seat lock serialises every
// marker mutation, which is what makes the pair safe.
func (m *Manager) RefreshHoldSeat(ctx context.Context, eventID, userID, seatID string) (int64, error) {
	if err := m.ensureSeatExists(ctx, eventID, seatID); err != nil {
		return 0, err
	}

	heldSeatKey := keyspace.HeldSeat(seatID)
	if err := m.ensureSeatHeldBy(ctx, heldSeatKey, userID, seatID); err != nil {
		return 0, err
	}

	seatLockKey := keyspace.SeatWriteLock(seatID)
	token, err := m.locks.Acquire(ctx, seatLockKey, fault.TargetSeat)
	if err != nil {
		return 0, err
	}
	defer m.locks.Release(ctx, seatLockKey, token)

	if _, err := m.store.GetDel(ctx, heldSeatKey); err != nil {
		return 0, err
	}
	return m.saveHeldSeat(ctx, heldSeatKey, userID)
}

// ReserveSeat converts userID's live hold on seatID into a permanent
// reservation. The seat leaves both inventory sets and its marker is
// removed; since holding requires membership in one of the sets, the seat
// can never re-enter the hold flow.
func (m *Manager) ReserveSeat(ctx context.Context, eventID, userID, seatID string) error {
	if err := m.ensureSeatExists(ctx, eventID, seatID); err != nil {
		return err
	}

	heldSeatKey := keyspace.HeldSeat(seatID)
	if err := m.ensureSeatHeldBy(ctx, heldSeatKey, userID, seatID); err != nil {
		return err
	}

	seatLockKey := keyspace.SeatWriteLock(seatID)
	token, err := m.locks.Acquire(ctx, seatLockKey, fault.TargetSeat)
	if err != nil {
		return err
	}
	defer m.locks.Release(ctx, seatLockKey, token)

	if _, err := m.store.GetDel(ctx, heldSeatKey); err != nil {
		return err
	}
	if err := m.store.RemoveFromSet(ctx, keyspace.SeatsBeingHeld(eventID), seatID); err != nil {
		return err
	}
	return m.store.RemoveFromSet(ctx, keyspace.UserHeldSeats(userID, eventID), seatID)
}

func (m *Manager) ensureEventExists(ctx context.Context, eventID string) error {
	exists, err := m.store.HashFieldExists(ctx, eventID, fieldEventName)
	if err != nil {
		return err
	}
	if !exists {
		return m.fail(fault.New(fault.KindNotFound, fault.TargetEvent,
			fmt.Sprintf("event under key -%s- was not found", eventID)))
	}
	return nil
}

// ensureSeatExists checks the seat is part of the event's inventory, i.e.
// listed as available or being held. A reserved seat is in neither set and
// therefore reads as not found from here on.
func (m *Manager) ensureSeatExists(ctx context.Context, eventID, seatID string) error {
	isAvailable, err := m.store.IsMember(ctx, keyspace.AvailableSeats(eventID), seatID)
	if err != nil {
		return err
	}
	isHeld, err := m.store.IsMember(ctx, keyspace.SeatsBeingHeld(eventID), seatID)
	if err != nil {
		return err
	}
	if !isAvailable && !isHeld {
		return m.fail(fault.New(fault.KindNotFound, fault.TargetEvent,
			fmt.Sprintf("seat under key -%s- was not found", seatID)))
	}
	return nil
}

func (m *Manager) ensureSeatHeldBy(ctx context.Context, heldSeatKey, userID, seatID string) error {
	holder, err := m.store.Get(ctx, heldSeatKey)
	if err != nil {
		return err
	}
	if holder == "" || holder != userID {
		return m.fail(fault.New(fault.KindHoldLost, fault.TargetSeat,
			fmt.Sprintf("seat -%s- is no longer being held. cannot be reserved anymore", seatID)))
	}
	return nil
}

func (m *Manager) userQuota(ctx context.Context, eventID string) (int, error) {
	raw, err := m.store.HashGet(ctx, eventID, fieldUserQuota)
	if err != nil {
		return 0, err
	}
	quota, err := strconv.Atoi(raw)
	if err != nil {
		return 0, m.fail(fault.New(fault.KindInconsistency, fault.TargetEvent,
			fmt.Sprintf("something went terribly wrong. event -%s- has no amount of seats a user can hold", eventID)))
	}
	return quota, nil
}

func (m *Manager) fail(f *fault.Fault) error {
	f.Log(m.logger, managerName)
	return f
}
