// Package keyspace derives every Redis key used by the reservation engine
// from domain identifiers. The functions are pure and never fail. The "#"
// delimiter is disallowed in event names and user ids by the handler layer,
// which keeps the categories below collision free.
package keyspace

// Delimiter separates the segments of every derived key.
const Delimiter = "#"

const (
	eventPrefix          = "event"
	seatPrefix           = "seat"
	lockPrefix           = "lock"
	heldSeatSuffix       = "held-seat"
	availableSeatsSuffix = "available-seats"
	seatsBeingHeldSuffix = "seats-being-held"
	writeLockSuffix      = "lock-for-writing"
)

// Event derives the hash key holding an event record, e.g. "event#gophercon".
func Event(eventName string) string {
	return eventPrefix + Delimiter + eventName
}

// Seat derives the key identifying one seat of an event, e.g.
// "seat#gophercon#42". Seat keys are set members, never standalone records.
func Seat(eventName, seatNumber string) string {
	return seatPrefix + Delimiter + eventName + Delimiter + seatNumber
}

// HeldSeat derives the marker key whose presence means the seat is promised
// to a user. The marker value is the holding user's id.
func HeldSeat(seatKey string) string {
	return seatKey + Delimiter + heldSeatSuffix
}

// AvailableSeats derives the set key of an event's free seats.
func AvailableSeats(eventKey string) string {
	return eventKey + Delimiter + availableSeatsSuffix
}

// SeatsBeingHeld derives the set key of an event's seats with a pending hold.
func SeatsBeingHeld(eventKey string) string {
	return eventKey + Delimiter + seatsBeingHeldSuffix
}

// UserHeldSeats derives the set key tracking which seats a user is holding
// for one event. It backs the per-user quota check.
func UserHeldSeats(userID, eventID string) string {
	return userID + Delimiter + eventID + Delimiter + seatsBeingHeldSuffix
}

// UserWriteLock derives the resource key serialising quota decisions for a
// (user, event) pair.
func UserWriteLock(userID, eventID string) string {
	return userID + Delimiter + eventID + Delimiter + writeLockSuffix
}

// SeatWriteLock derives the resource key serialising mutations of one seat's
// hold marker.
func SeatWriteLock(seatID string) string {
	return seatID + Delimiter + writeLockSuffix
}

// Lock derives the store key for the advisory lock over a resource key.
func Lock(resourceKey string) string {
	return lockPrefix + Delimiter + resourceKey
}
