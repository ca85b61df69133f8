package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/gacastro/seat-reservations/internal/handler" // import the handlers that implement the reservation API
)

// RegisterRoutes wires the reservation endpoints onto the provided Echo
// instance. The limiter middleware, when non-nil, guards the mutating seat
// operations; listing availability stays unthrottled since it is the
// endpoint clients poll.
func RegisterRoutes(e *echo.Echo, h *handler.EventHandler, limiter echo.MiddlewareFunc) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	g := e.Group("/event")
	g.POST("", h.CreateEvent)
	g.GET("/:eventId", h.ListAvailableSeats)

	seats := g.Group("/:eventId/seats")
	if limiter != nil {
		seats.Use(limiter)
	}
	seats.POST("/hold", h.HoldSeat)
	seats.PATCH("/hold", h.RefreshHoldSeat)
	seats.POST("/reserve", h.ReserveSeat)
}
