package storeclient

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/storeclient/backend"
)

// Client is the store facade. Safe for concurrent use; all callers share the
// backend's connection.
type Client struct {
	b      backend.Backend
	n      notifier
	closed atomic.Bool
}

// New wires the client to its backend. When the backend supports PING, one
// probe runs before returning; a failed probe is logged and leaves IsAlive
// false, it does not fail construction.
func New(opts Options) (*Client, error) {
	if opts.Backend == nil {
		return nil, ErrNilBackend
	}

	c := &Client{
		b: opts.Backend,
		n: notifier{
			log:   coalesce[Logger](opts.Logger, NopLogger{}),
			hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
		},
	}

	if ob, ok := c.b.(backend.Observable); ok {
		ob.Observe(c.n)
	}

	timeout := coalesce(opts.ConnectTimeout, defaultConnectTimeout)
	if p, ok := c.b.(backend.Pinger); ok && timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			c.n.log.Warn("store unreachable at startup", Fields{"err": err})
		}
	}
	return c, nil
}

// Backend returns the wrapped backend.
func (c *Client) Backend() backend.Backend { return c.b }

func (c *Client) IsAlive() bool {
	return !c.closed.Load() && c.b.Alive()
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if c.closed.Load() {
		return "", false, ErrClosed
	}
	v, ok, err := c.b.Get(ctx, key)
	if err != nil {
		return "", false, c.fail("get", key, err)
	}
	return v, ok, nil
}

// Set stores value under key for ttl. Backends with second granularity
// (Redis SETEX) truncate ttl to whole seconds; non-positive ttls are passed
// through and rejected by the store.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	s, err := formatValue(value)
	if err != nil {
		return err
	}
	if err := c.b.SetEx(ctx, key, s, ttl); err != nil {
		return c.fail("set", key, err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.b.Del(ctx, key); err != nil {
		return c.fail("del", key, err)
	}
	return nil
}

// Close releases the backend. Safe to call multiple times.
func (c *Client) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.b.Close(ctx)
}

func (c *Client) fail(op, key string, err error) error {
	c.n.commandFailed(op, key, err)
	return &ConnectionError{Op: op, Key: key, Err: err}
}
