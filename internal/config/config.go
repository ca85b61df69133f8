package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time expresses the lock and hold TTLs as durations

	"github.com/joho/godotenv" // godotenv loads a local .env file outside production
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Both TTLs are configured in milliseconds and must
// be at least one millisecond; the lock TTL bounds how long a crashed lock
// holder blocks a resource, the hold TTL is how long a seat stays promised
// to a user between refreshes.
type Config struct {
	Env     string        // application environment (e.g. "dev", "prod")
	Port    string        // HTTP port to listen on
	LockTTL time.Duration // expiry of advisory locks
	HoldTTL time.Duration // expiry of seat hold markers
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing or invalid
// values cause the program to exit with a fatal log message.
func Load() Config {
	// Outside production the .env file is a convenience; rely on real
	// environment variables when it is absent.
	if os.Getenv("APP_ENV") != "prod" {
		if err := godotenv.Load(); err != nil {
			log.Printf("no .env file loaded: %v", err)
		}
	}

	return Config{
		Env:     must("APP_ENV"),
		Port:    must("APP_PORT"),
		LockTTL: mustMillis("LOCK_EXPIRATION_MILLISECONDS"),
		HoldTTL: mustMillis("HOLD_SEAT_EXPIRATION_MILLISECONDS"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustMillis is like must() but interprets the value as a whole number of
// milliseconds, which must be at least 1.
func mustMillis(key string) time.Duration {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		log.Fatalf("invalid milliseconds for %s: %q", key, s)
	}
	return time.Duration(n) * time.Millisecond
}
