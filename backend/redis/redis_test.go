package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

type recObserver struct {
	mu   sync.Mutex
	up   int
	lost []error
}

func (o *recObserver) ConnectionUp(string) {
	o.mu.Lock()
	o.up++
	o.mu.Unlock()
}

func (o *recObserver) ConnectionLost(_ string, err error) {
	o.mu.Lock()
	o.lost = append(o.lost, err)
	o.mu.Unlock()
}

func (o *recObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.up, len(o.lost)
}

func newTestBackend(t *testing.T, mr *miniredis.Miniredis, ping time.Duration) *Redis {
	t.Helper()
	r := New(Config{
		Addr:         mr.Addr(),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
		PoolSize:     50,
		PingInterval: ping,
	})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNotAliveBeforeFirstContact(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, -1)

	if r.Alive() {
		t.Fatalf("Alive before any dial should be false")
	}
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !r.Alive() {
		t.Fatalf("Alive after successful Ping should be true")
	}
}

func TestGetMissSetGetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, -1)
	ctx := context.Background()

	if v, ok, err := r.Get(ctx, "nope"); err != nil || ok || v != "" {
		t.Fatalf("Get miss = %q ok=%v err=%v", v, ok, err)
	}
	if !r.Alive() {
		t.Fatalf("a nil reply proves the connection works")
	}

	if err := r.SetEx(ctx, "a", "1", 5*time.Second); err != nil {
		t.Fatalf("SetEx: %v", err)
	}
	if got, _ := mr.Get("a"); got != "1" {
		t.Fatalf("stored value = %q", got)
	}
	if ttl := mr.TTL("a"); ttl != 5*time.Second {
		t.Fatalf("stored ttl = %v, want 5s", ttl)
	}
	if v, ok, err := r.Get(ctx, "a"); err != nil || !ok || v != "1" {
		t.Fatalf("Get = %q ok=%v err=%v", v, ok, err)
	}

	if err := r.Del(ctx, "a"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mr.Exists("a") {
		t.Fatalf("key still present after Del")
	}
	if err := r.Del(ctx, "missing"); err != nil {
		t.Fatalf("Del missing: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, -1)
	ctx := context.Background()

	if err := r.SetEx(ctx, "a", "1", 5*time.Second); err != nil {
		t.Fatalf("SetEx: %v", err)
	}
	if v, ok, _ := r.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get before expiry = %q ok=%v", v, ok)
	}
	mr.FastForward(6 * time.Second)
	if _, ok, err := r.Get(ctx, "a"); err != nil || ok {
		t.Fatalf("Get after expiry ok=%v err=%v, want absent", ok, err)
	}
}

func TestSetExReplacesExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, -1)
	ctx := context.Background()

	_ = r.SetEx(ctx, "k", "v1", 2*time.Second)
	if err := r.SetEx(ctx, "k", "v2", 10*time.Second); err != nil {
		t.Fatalf("SetEx: %v", err)
	}
	mr.FastForward(3 * time.Second)
	if v, ok, _ := r.Get(ctx, "k"); !ok || v != "v2" {
		t.Fatalf("Get = %q ok=%v, want v2", v, ok)
	}
}

func TestNonPositiveTTLIsServerError(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, -1)
	ctx := context.Background()

	err := r.SetEx(ctx, "k", "v", 0)
	if err == nil {
		t.Fatalf("SETEX with 0s should be rejected by the store")
	}
	var rerr goredis.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected a server reply error, got %T %v", err, err)
	}
	if IsConnectionError(err) {
		t.Fatalf("server reply must not count as a connection error")
	}
	if !r.Alive() {
		t.Fatalf("server reply must not flip liveness")
	}
}

func TestDropAndReconnect(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, -1)
	obs := &recObserver{}
	r.Observe(obs)
	ctx := context.Background()

	if err := r.SetEx(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetEx: %v", err)
	}
	if !r.Alive() {
		t.Fatalf("should be alive after a command")
	}

	mr.Close()
	_, _, err := r.Get(ctx, "k")
	if err == nil {
		t.Fatalf("Get against a closed server should fail")
	}
	if !IsConnectionError(err) {
		t.Fatalf("expected a connection error, got %T %v", err, err)
	}
	if r.Alive() {
		t.Fatalf("Alive should be false right after the drop")
	}
	if _, lost := obs.counts(); lost != 1 {
		t.Fatalf("ConnectionLost fired %d times, want 1", lost)
	}

	// a second failure during the same outage is not re-announced
	_, _, _ = r.Get(ctx, "k")
	if _, lost := obs.counts(); lost != 1 {
		t.Fatalf("ConnectionLost fired %d times during one outage, want 1", lost)
	}

	if err := mr.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	// the pool may still be backing off from the failed dials
	waitFor(t, "reconnect", func() bool {
		_, _, err := r.Get(ctx, "k")
		return err == nil
	})
	if !r.Alive() {
		t.Fatalf("Alive should recover after reconnect")
	}
	// once for the first dial, once for the reconnect
	if up, _ := obs.counts(); up != 2 {
		t.Fatalf("ConnectionUp fired %d times, want 2", up)
	}
}

func TestHealthCheckDetectsDropWhileIdle(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, 20*time.Millisecond)

	waitFor(t, "alive", r.Alive)
	mr.Close()
	waitFor(t, "not alive", func() bool { return !r.Alive() })
}

func TestCloseStopsEverything(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, 10*time.Millisecond)
	ctx := context.Background()

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if r.Alive() {
		t.Fatalf("Alive after Close should be false")
	}
	if err := r.Ping(ctx); err == nil {
		t.Fatalf("Ping after Close should fail")
	}
	if _, _, err := r.Get(ctx, "k"); !errors.Is(err, goredis.ErrClosed) {
		t.Fatalf("Get after Close err = %v, want redis.ErrClosed", err)
	}
}

func TestSharedClientIsNotClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := New(Config{Client: rdb, PingInterval: -1})
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("shared client should stay usable: %v", err)
	}
}

type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError()     {}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"regular error", errors.New("some error"), false},
		{"redis nil", goredis.Nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"eof", io.EOF, true},
		{"client closed", goredis.ErrClosed, true},
		{"pool timeout", goredis.ErrPoolTimeout, true},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"dial timeout", &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}, true},
		{"read timeout", &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}, true},
		{"wrapped dial error", fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}), true},
		{"server reply", replyError("ERR invalid expire time"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCallerCancellationKeepsState(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, -1)
	obs := &recObserver{}
	r.Observe(obs)

	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.Get(ctx, "k"); err == nil {
		t.Fatalf("Get with a canceled ctx should fail")
	}
	if !r.Alive() {
		t.Fatalf("a canceled caller must not mark the store down")
	}
	if _, lost := obs.counts(); lost != 0 {
		t.Fatalf("ConnectionLost fired %d times, want 0", lost)
	}
}

func TestOutageFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newTestBackend(t, mr, -1)
	ctx := context.Background()

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.Close()
	_, _, _ = r.Get(ctx, "k") // drains the pooled connection

	start := time.Now()
	_, _, err := r.Get(ctx, "k")
	elapsed := time.Since(start)
	if !IsConnectionError(err) {
		t.Fatalf("expected a connection error, got %T %v", err, err)
	}
	// a refused dial is not retried with backoff
	if elapsed >= 100*time.Millisecond {
		t.Fatalf("Get during outage took %v", elapsed)
	}
}

// an accepting listener that never replies
func hungServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		for _, c := range conns {
			_ = c.Close()
		}
		mu.Unlock()
	})
	return ln.Addr().String()
}

func TestHungServerIsNotReportedUp(t *testing.T) {
	r := New(Config{
		Addr:         hungServer(t),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
		PingInterval: -1,
	})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	obs := &recObserver{}
	r.Observe(obs)

	for i := 0; i < 3; i++ {
		_, _, err := r.Get(context.Background(), "k")
		if !IsConnectionError(err) {
			t.Fatalf("Get #%d: expected a connection error, got %T %v", i, err, err)
		}
	}
	if r.Alive() {
		t.Fatalf("Alive should be false when the store never answers")
	}
	if up, lost := obs.counts(); up != 0 || lost != 1 {
		t.Fatalf("events up=%d lost=%d, want up=0 lost=1", up, lost)
	}
}
