package main // Entry point package

import (
	"log" // Logging library

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/gacastro/seat-reservations/internal/config"
	"github.com/gacastro/seat-reservations/internal/event"
	"github.com/gacastro/seat-reservations/internal/handler"
	"github.com/gacastro/seat-reservations/internal/lock"
	"github.com/gacastro/seat-reservations/internal/middleware"
	"github.com/gacastro/seat-reservations/internal/queue"
	"github.com/gacastro/seat-reservations/internal/router"
	"github.com/gacastro/seat-reservations/internal/store"
)

func main() {
	cfg := config.Load()         // Load environment config
	logger := config.NewLogger() // Structured logger (JSON in prod)

	// The Redis store is the single source of truth for every invariant;
	// without it the service cannot run.
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	kv := store.NewRedisStore(rdb)
	locks := lock.NewManager(kv, cfg.LockTTL, logger)
	manager := event.NewManager(kv, locks, cfg.HoldTTL, logger)

	e := echo.New()
	h := handler.NewEventHandler(manager, logger)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterRoutes(e, h, limiter)

	// Background consumer appending reservation confirmations to
	// logs/reservation.log; it reconnects on its own.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
