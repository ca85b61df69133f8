package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gacastro/seat-reservations/internal/event"
	"github.com/gacastro/seat-reservations/internal/handler"
	"github.com/gacastro/seat-reservations/internal/lock"
	"github.com/gacastro/seat-reservations/internal/queue"
	"github.com/gacastro/seat-reservations/internal/router"
	"github.com/gacastro/seat-reservations/internal/store"
)

const (
	holdTTL = 2 * time.Second
	userID  = "550e8400-e29b-41d4-a716-446655440000"
	otherID = "660e8400-e29b-41d4-a716-446655440000"
)

type testServer struct {
	echo      *echo.Echo
	mr        *miniredis.Miniredis
	published []queue.SeatReservedEvent
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	kv := store.NewRedisStore(client)
	manager := event.NewManager(kv, lock.NewManager(kv, time.Second, logger), holdTTL, logger)

	ts := &testServer{echo: echo.New(), mr: mr}
	h := handler.NewEventHandler(manager, logger)
	h.Publish = func(_ context.Context, ev queue.SeatReservedEvent) error {
		ts.published = append(ts.published, ev)
		return nil
	}
	router.RegisterRoutes(ts.echo, h, nil)
	return ts
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createEvent(t *testing.T, name string, seats, quota int) string {
	t.Helper()
	rec := ts.request(t, http.MethodPost, "/event", echo.Map{
		"eventName":                        name,
		"numberOfSeats":                    seats,
		"numberOfSeatsUserCanHoldPerEvent": quota,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		EventID string `json:"eventId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.EventID
}

// Event keys contain "#", which clients must percent-encode in URLs.
func eventPath(eventID string) string {
	return "/event/" + url.PathEscape(eventID)
}

func seatPath(eventID, op string) string {
	return fmt.Sprintf("%s/seats/%s", eventPath(eventID), op)
}

func TestCreateEvent(t *testing.T) {
	ts := newTestServer(t)

	eventID := ts.createEvent(t, "gophercon", 10, 2)
	assert.Equal(t, "event#gophercon", eventID)

	rec := ts.request(t, http.MethodGet, eventPath(eventID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AvailableSeats []string `json:"availableSeats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.AvailableSeats, 10)
}

func TestCreateEventValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := map[string]echo.Map{
		"bad name": {
			"eventName": "a b", "numberOfSeats": 10, "numberOfSeatsUserCanHoldPerEvent": 2,
		},
		"name with delimiter": {
			"eventName": "gopher#con", "numberOfSeats": 10, "numberOfSeatsUserCanHoldPerEvent": 2,
		},
		"too few seats": {
			"eventName": "gophercon", "numberOfSeats": 5, "numberOfSeatsUserCanHoldPerEvent": 2,
		},
		"zero quota": {
			"eventName": "gophercon", "numberOfSeats": 10, "numberOfSeatsUserCanHoldPerEvent": 0,
		},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := ts.request(t, http.MethodPost, "/event", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateEventDuplicateConflict(t *testing.T) {
	ts := newTestServer(t)

	ts.createEvent(t, "gophercon", 10, 2)

	rec := ts.request(t, http.MethodPost, "/event", echo.Map{
		"eventName":                        "gophercon",
		"numberOfSeats":                    10,
		"numberOfSeatsUserCanHoldPerEvent": 2,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListAvailableSeatsUnknownEvent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/event/event%23nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHoldSeatFlow(t *testing.T) {
	ts := newTestServer(t)
	eventID := ts.createEvent(t, "gophercon", 10, 2)
	seat := "seat#gophercon#0"

	rec := ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": seat,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		HeldUntil int64 `json:"heldUntil"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Greater(t, resp.HeldUntil, time.Now().UnixMilli())

	// A second user contending for the same seat conflicts.
	rec = ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": otherID, "seatId": seat,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHoldSeatValidation(t *testing.T) {
	ts := newTestServer(t)
	eventID := ts.createEvent(t, "gophercon", 10, 2)

	rec := ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": "not-a-uuid", "seatId": "seat#gophercon#0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": "se at",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHoldSeatUnknownSeat(t *testing.T) {
	ts := newTestServer(t)
	eventID := ts.createEvent(t, "gophercon", 10, 2)

	rec := ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": "seat#gophercon#99",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuotaExceededConflict(t *testing.T) {
	ts := newTestServer(t)
	eventID := ts.createEvent(t, "gophercon", 10, 1)

	rec := ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": "seat#gophercon#0",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": "seat#gophercon#1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefreshHoldSeat(t *testing.T) {
	ts := newTestServer(t)
	eventID := ts.createEvent(t, "gophercon", 10, 2)
	seat := "seat#gophercon#0"

	rec := ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": seat,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.request(t, http.MethodPatch, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": seat,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Refreshing a hold that lapsed conflicts.
	ts.mr.FastForward(holdTTL + time.Second)
	rec = ts.request(t, http.MethodPatch, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": seat,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReserveSeatPublishesConfirmation(t *testing.T) {
	ts := newTestServer(t)
	eventID := ts.createEvent(t, "gophercon", 10, 2)
	seat := "seat#gophercon#7"

	rec := ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": userID, "seatId": seat,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.request(t, http.MethodPost, seatPath(eventID, "reserve"), echo.Map{
		"userId": userID, "seatId": seat,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, ts.published, 1)
	assert.Equal(t, eventID, ts.published[0].EventID)
	assert.Equal(t, seat, ts.published[0].SeatID)
	assert.Equal(t, userID, ts.published[0].UserID)

	// The seat is gone for good: holding it again is a 404.
	rec = ts.request(t, http.MethodPost, seatPath(eventID, "hold"), echo.Map{
		"userId": otherID, "seatId": seat,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserveSeatWithoutHold(t *testing.T) {
	ts := newTestServer(t)
	eventID := ts.createEvent(t, "gophercon", 10, 2)

	rec := ts.request(t, http.MethodPost, seatPath(eventID, "reserve"), echo.Map{
		"userId": userID, "seatId": "seat#gophercon#0",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, ts.published)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
