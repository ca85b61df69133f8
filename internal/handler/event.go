package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gacastro/seat-reservations/internal/event"
	"github.com/gacastro/seat-reservations/internal/fault"
	"github.com/gacastro/seat-reservations/internal/queue"
)

// Identifier formats accepted at the boundary. The delimiter used by the
// keyspace package ("#") is only legal inside already-derived ids (event
// and seat keys contain it), never in a fresh event name or a user id, so
// derived keys cannot collide with user input.
var (
	eventNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,100}$`)
	resourceID       = regexp.MustCompile(`^[a-zA-Z0-9_#-]{3,100}$`)
	userIDPattern    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)
)

// EventHandler exposes the five reservation operations over HTTP. It owns
// field-format validation and the mapping from typed faults to transport
// statuses; all business decisions live in the event manager.
type EventHandler struct {
	Manager *event.Manager
	Logger  *slog.Logger
	// Publish sends the reservation-confirmed message. Failures are logged
	// and ignored so a broker outage never fails a reservation.
	Publish func(ctx context.Context, ev queue.SeatReservedEvent) error
}

// NewEventHandler wires the handler to the given manager. Reservation
// confirmations are published through the default queue publisher.
func NewEventHandler(m *event.Manager, logger *slog.Logger) *EventHandler {
	return &EventHandler{Manager: m, Logger: logger, Publish: queue.PublishSeatReserved}
}

type createEventRequest struct {
	EventName                        string `json:"eventName"`
	NumberOfSeats                    int    `json:"numberOfSeats"`
	NumberOfSeatsUserCanHoldPerEvent int    `json:"numberOfSeatsUserCanHoldPerEvent"`
}

type seatRequest struct {
	UserID string `json:"userId"`
	SeatID string `json:"seatId"`
}

// CreateEvent handles POST /event. It creates the event with its seat
// inventory and returns the derived event key as the id for later calls.
func (h *EventHandler) CreateEvent(c echo.Context) error {
	var body createEventRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if !eventNamePattern.MatchString(body.EventName) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid event name. can only contain letters, numbers, hyphens and underscores",
		})
	}
	if body.NumberOfSeats < 10 || body.NumberOfSeats > 1000 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "numberOfSeats must be between 10 and 1000"})
	}
	if body.NumberOfSeatsUserCanHoldPerEvent < 1 || body.NumberOfSeatsUserCanHoldPerEvent > 1000 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "numberOfSeatsUserCanHoldPerEvent must be between 1 and 1000"})
	}

	eventID, err := h.Manager.CreateEvent(c.Request().Context(),
		body.EventName, body.NumberOfSeats, body.NumberOfSeatsUserCanHoldPerEvent)
	if err != nil {
		return h.respondToFailure(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"eventId": eventID})
}

// ListAvailableSeats handles GET /event/:eventId.
func (h *EventHandler) ListAvailableSeats(c echo.Context) error {
	eventID := eventIDParam(c)
	if !resourceID.MatchString(eventID) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	seats, err := h.Manager.ListAvailableSeats(c.Request().Context(), eventID)
	if err != nil {
		return h.respondToFailure(c, err)
	}
	if seats == nil {
		seats = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"availableSeats": seats})
}

// HoldSeat handles POST /event/:eventId/seats/hold. On success the response
// carries the absolute expiry of the hold in epoch milliseconds.
func (h *EventHandler) HoldSeat(c echo.Context) error {
	eventID, body, ok := h.bindSeatRequest(c)
	if !ok {
		return nil
	}

	heldUntil, err := h.Manager.HoldSeat(c.Request().Context(), eventID, body.UserID, body.SeatID)
	if err != nil {
		return h.respondToFailure(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"heldUntil": heldUntil})
}

// RefreshHoldSeat handles PATCH /event/:eventId/seats/hold.
func (h *EventHandler) RefreshHoldSeat(c echo.Context) error {
	eventID, body, ok := h.bindSeatRequest(c)
	if !ok {
		return nil
	}

	heldUntil, err := h.Manager.RefreshHoldSeat(c.Request().Context(), eventID, body.UserID, body.SeatID)
	if err != nil {
		return h.respondToFailure(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"heldUntil": heldUntil})
}

// ReserveSeat handles POST /event/:eventId/seats/reserve. A confirmed
// reservation is announced on the message queue best effort.
func (h *EventHandler) ReserveSeat(c echo.Context) error {
	eventID, body, ok := h.bindSeatRequest(c)
	if !ok {
		return nil
	}

	if err := h.Manager.ReserveSeat(c.Request().Context(), eventID, body.UserID, body.SeatID); err != nil {
		return h.respondToFailure(c, err)
	}

	if h.Publish != nil {
		ev := queue.SeatReservedEvent{
			EventID:    eventID,
			SeatID:     body.SeatID,
			UserID:     body.UserID,
			ReservedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := h.Publish(c.Request().Context(), ev); err != nil {
			h.Logger.Warn("failed to publish reservation confirmation",
				slog.String("component", "EventHandler"),
				slog.String("seat", body.SeatID),
				slog.String("error", err.Error()))
		}
	}

	return c.NoContent(http.StatusCreated)
}

// bindSeatRequest validates the shared shape of the three seat operations.
// When it reports false, the 400 response has already been written.
func (h *EventHandler) bindSeatRequest(c echo.Context) (string, seatRequest, bool) {
	eventID := eventIDParam(c)
	if !resourceID.MatchString(eventID) {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
		return "", seatRequest{}, false
	}
	var body seatRequest
	if err := c.Bind(&body); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		return "", seatRequest{}, false
	}
	if !userIDPattern.MatchString(body.UserID) {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id. needs to be a valid UUIDv4 string"})
		return "", seatRequest{}, false
	}
	if !resourceID.MatchString(body.SeatID) {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
		return "", seatRequest{}, false
	}
	return eventID, body, true
}

// eventIDParam returns the :eventId path segment. Event keys contain the
// "#" delimiter, so clients send them percent-encoded.
func eventIDParam(c echo.Context) string {
	raw := c.Param("eventId")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// respondToFailure maps a typed fault to its transport status. Mechanical
// errors (store or network) were not logged at a detection point, so they
// are logged here before the generic 500.
func (h *EventHandler) respondToFailure(c echo.Context, err error) error {
	switch fault.KindOf(err) {
	case fault.KindAlreadyExists, fault.KindLockUnavailable, fault.KindQuotaExceeded,
		fault.KindSeatUnavailable, fault.KindHoldLost:
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case fault.KindNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case fault.KindInconsistency:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	default:
		h.Logger.Error(err.Error(), slog.String("component", "EventHandler"))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
