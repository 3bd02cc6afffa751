package redis

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/storeclient/backend"
)

const (
	DefaultAddr         = "localhost:6379"
	DefaultPingInterval = 30 * time.Second
)

const (
	stateUnknown int32 = iota
	stateUp
	stateDown
)

// Redis is a backend over a single go-redis client.
// Liveness is tracked from dial and command outcomes; see Alive.
type Redis struct {
	rdb         goredis.UniversalClient
	addr        string
	closeClient bool

	state  atomic.Int32
	closed atomic.Bool

	obsMu sync.RWMutex
	obs   backend.Observer

	pingEvery   time.Duration
	pingTimeout time.Duration
	ticker      *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

var (
	_ backend.Backend    = (*Redis)(nil)
	_ backend.Observable = (*Redis)(nil)
)

type Config struct {
	// Client is used as-is when set; the connection fields below are ignored.
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns Client

	Addr         string // host:port; "" => localhost:6379
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration // 0 => 3s
	ReadTimeout  time.Duration // 0 => 2s
	WriteTimeout time.Duration // 0 => 2s
	PoolSize     int           // 0 => 10
	MinIdleConns int

	// PingInterval drives the background health check; 0 => 30s, <0 disables.
	PingInterval time.Duration
}

// New builds the backend. No I/O happens here; the first dial is lazy.
func New(cfg Config) *Redis {
	r := &Redis{obs: backend.NopObserver{}}

	if cfg.Client != nil {
		r.rdb = cfg.Client
		r.closeClient = cfg.CloseClient
		if c, ok := cfg.Client.(*goredis.Client); ok {
			r.addr = c.Options().Addr
		}
		r.pingTimeout = 2 * time.Second
	} else {
		opts := &goredis.Options{
			Addr:         coalesce(cfg.Addr, DefaultAddr),
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  coalesce(cfg.DialTimeout, 3*time.Second),
			ReadTimeout:  coalesce(cfg.ReadTimeout, 2*time.Second),
			WriteTimeout: coalesce(cfg.WriteTimeout, 2*time.Second),
			PoolSize:     coalesce(cfg.PoolSize, 10),
			MinIdleConns: cfg.MinIdleConns,
			// one command, one round trip; a refused dial fails the call at once
			MaxRetries:    -1,
			DialerRetries: 1,
		}
		r.rdb = goredis.NewClient(opts)
		r.addr = opts.Addr
		r.closeClient = true
		r.pingTimeout = opts.ReadTimeout
	}
	r.rdb.AddHook(stateHook{r: r})

	r.pingEvery = coalesce(cfg.PingInterval, DefaultPingInterval)
	if r.pingEvery > 0 {
		r.ticker = time.NewTicker(r.pingEvery)
		r.stopCh = make(chan struct{})
		r.wg.Add(1)
		go r.healthLoop()
	}
	return r
}

// Observe registers the receiver of connection events, replacing any previous one.
func (r *Redis) Observe(o backend.Observer) {
	if o == nil {
		o = backend.NopObserver{}
	}
	r.obsMu.Lock()
	r.obs = o
	r.obsMu.Unlock()
}

// Alive reports the last observed connection state. go-redis redials
// transparently, so the flag flips back to true on the next server reply
// after an outage.
func (r *Redis) Alive() bool {
	return !r.closed.Load() && r.state.Load() == stateUp
}

// Ping issues a PING; the outcome feeds Alive.
func (r *Redis) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return backend.ErrClosed
	}
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil // miss
	}
	if err != nil {
		return "", false, err // transport/server error
	}
	return v, true, nil
}

// SetEx issues SETEX. Sub-second durations are rounded up to 1s by go-redis;
// non-positive durations are sent as-is and rejected by the server.
func (r *Redis) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.SetEx(ctx, key, value, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Close stops the health check and releases the client when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Redis) Close(context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		if r.stopCh != nil {
			close(r.stopCh)
			r.ticker.Stop()
			r.wg.Wait()
		}
		if r.closeClient {
			if cerr := r.rdb.Close(); cerr != nil && !errors.Is(cerr, goredis.ErrClosed) {
				err = cerr
			}
		}
	})
	return err
}

func (r *Redis) healthLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.pingTimeout)
			if err := r.Ping(ctx); err != nil && ctx.Err() != nil {
				// our own deadline: the store did not answer in time
				r.markDown(err)
			}
			cancel()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Redis) observer() backend.Observer {
	r.obsMu.RLock()
	o := r.obs
	r.obsMu.RUnlock()
	return o
}

func (r *Redis) markUp() {
	if r.state.Swap(stateUp) != stateUp {
		r.observer().ConnectionUp(r.addr)
	}
}

func (r *Redis) markDown(err error) {
	if r.closed.Load() {
		return
	}
	if r.state.Swap(stateDown) != stateDown {
		r.observer().ConnectionLost(r.addr, err)
	}
}

// record classifies a command outcome. Any server reply (including redis.Nil
// and error replies) proves the connection works; only transport failures
// count as lost. Failures after the caller's own ctx ended say nothing about
// the store and are ignored.
func (r *Redis) record(ctx context.Context, err error) {
	switch {
	case isReply(err):
		r.markUp()
	case ctx.Err() != nil:
	case IsConnectionError(err):
		r.markDown(err)
	}
}

func isReply(err error) bool {
	if err == nil || err == goredis.Nil {
		return true
	}
	var rerr goredis.Error
	return errors.As(err, &rerr)
}

// IsConnectionError reports whether err came from the transport rather than
// from a server reply or a bare context error.
// Socket timeouts match context.DeadlineExceeded via errors.Is, so
// *net.OpError is checked before the context exclusion.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var rerr goredis.Error
	if errors.As(err, &rerr) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, goredis.ErrClosed) || errors.Is(err, goredis.ErrPoolTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

type stateHook struct{ r *Redis }

var _ goredis.Hook = stateHook{}

// DialHook passes through: an open socket is not a working store, and dial
// failures surface as the command error seen by ProcessHook.
func (h stateHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (h stateHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		h.r.record(ctx, err)
		return err
	}
}

func (h stateHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		err := next(ctx, cmds)
		h.r.record(ctx, err)
		return err
	}
}

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
