package storeclient

import (
	"context"
	"time"

	"github.com/unkn0wn-root/storeclient/backend"
)

// Store is the caller-facing contract of Client.
type Store interface {
	// IsAlive reports whether the store connection is established. Never fails.
	IsAlive() bool

	// Get returns (value, true, nil) on hit and ("", false, nil) when the key
	// does not exist. Transport and protocol failures return a *ConnectionError.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key with the given expiry, replacing any prior
	// value and expiry. value must be text or numeric.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Del removes key. Deleting a missing key succeeds.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}

// Options configure a Client. Only Backend is required.
type Options struct {
	Backend backend.Backend

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// ConnectTimeout bounds the startup probe of backends that support PING;
	// 0 => 3s, <0 skips the probe.
	ConnectTimeout time.Duration
}

var _ Store = (*Client)(nil)
