// Package fault defines the typed failures shared by the store, lock and
// reservation layers. Every failure carries a kind and a target so that
// handlers can map it to a transport status and logs stay queryable. These
// play the role the sentinel errors in internal/repository played in earlier
// projects, with enough structure for the logging contract.
package fault

import (
	"errors"
	"log/slog"
)

// Kind classifies what went wrong. The values double as the structured log
// attribute, so they are stable strings rather than iota constants.
type Kind string

const (
	KindAlreadyExists   Kind = "duplicate"
	KindNotFound        Kind = "not-found"
	KindLockUnavailable Kind = "unavailable-lock"
	KindQuotaExceeded   Kind = "max-capacity"
	KindSeatUnavailable Kind = "unavailable-seat"
	KindHoldLost        Kind = "hold-lost"
	KindInconsistency   Kind = "wrong-configuration"
)

// Target names the resource category the failure refers to.
type Target string

const (
	TargetEvent Target = "event"
	TargetSeat  Target = "seat"
	TargetUser  Target = "user"
)

// Fault is a typed failure. It is raised at the point of detection, logged
// once there, and propagated unchanged to the HTTP boundary.
type Fault struct {
	Kind    Kind
	Target  Target
	Message string
	Details any
}

// New builds a Fault with the given classification and description.
func New(kind Kind, target Target, message string) *Fault {
	return &Fault{Kind: kind, Target: target, Message: message}
}

func (f *Fault) Error() string { return f.Message }

// Log emits the single structured record for this failure. component names
// the layer that detected it.
func (f *Fault) Log(logger *slog.Logger, component string) {
	attrs := []any{
		slog.String("component", component),
		slog.String("kind", string(f.Kind)),
		slog.String("target", string(f.Target)),
	}
	if f.Details != nil {
		attrs = append(attrs, slog.Any("details", f.Details))
	}
	logger.Error(f.Message, attrs...)
}

// KindOf extracts the kind from an error chain, or "" when the error is not
// a Fault (a mechanical store or transport error).
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Is reports whether err is a Fault of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
