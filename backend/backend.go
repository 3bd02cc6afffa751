// Package backend defines the store abstraction used by storeclient.
//
// Implementations MUST be text-transparent: Get must return exactly the
// string previously passed to SetEx for a key (no prepended/appended metadata,
// no re-encoding). Stores that keep bookkeeping next to the value (e.g. an
// expiry deadline) MUST strip it before returning.
package backend

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidExpiry mirrors the store-side rejection of non-positive SETEX
	// durations for backends that enforce expiry in-process.
	ErrInvalidExpiry = errors.New("backend: invalid expire time")
	// ErrExpiryTooLong is returned by stores that cannot keep an entry for the
	// requested duration.
	ErrExpiryTooLong = errors.New("backend: expire time exceeds store limit")
	// ErrRejected is returned when an in-process store refused a write.
	ErrRejected = errors.New("backend: write rejected")
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("backend: closed")
)

// Backend is a minimal text store with per-key expiry.
// Must be safe for concurrent use. Every method is at most one round trip.
type Backend interface {
	// Alive reports whether the connection to the store is established.
	// It must not perform I/O.
	Alive() bool

	// Get returns (value, true, nil) on hit; ("", false, nil) on miss.
	// If an IO/remote error happens, return ("", false, err).
	Get(ctx context.Context, key string) (string, bool, error)

	// SetEx stores value under key, replacing any prior value and expiry.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes a key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Pinger is implemented by backends that can probe the store explicitly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Observer receives connection-level events.
// Implementations MUST be cheap and non-blocking; backends call them inline.
type Observer interface {
	ConnectionUp(addr string)
	ConnectionLost(addr string, err error)
}

// Observable is implemented by backends that hold a network connection.
type Observable interface {
	Observe(o Observer)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) ConnectionUp(string)          {}
func (NopObserver) ConnectionLost(string, error) {}
