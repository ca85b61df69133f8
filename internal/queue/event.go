// Package queue defines the messages exchanged over the broker plus the
// publisher and background consumer for reservation confirmations.
package queue

// SeatReservedEvent is published when a hold is successfully converted into
// a permanent reservation. Since a reservation leaves no record in the
// store, this message is the only durable trace of who reserved what.
type SeatReservedEvent struct {
	EventID    string `json:"event_id"`
	SeatID     string `json:"seat_id"`
	UserID     string `json:"user_id"`
	ReservedAt string `json:"reserved_at"`
}
