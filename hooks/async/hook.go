// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{CommandFailedEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	client, _ := storeclient.New(storeclient.Options{
//	    Backend: rb,
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/storeclient"
)

// Hooks moves event delivery off the caller's goroutine. Events that do not
// fit in the queue are dropped and counted.
type Hooks struct {
	inner   storeclient.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ storeclient.Hooks = (*Hooks)(nil)

func New(inner storeclient.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the queue was full or closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) ConnectionUp(addr string) { h.try(func() { h.inner.ConnectionUp(addr) }) }
func (h *Hooks) ConnectionLost(addr string, err error) {
	h.try(func() { h.inner.ConnectionLost(addr, err) })
}
func (h *Hooks) CommandFailed(op, key string, err error) {
	h.try(func() { h.inner.CommandFailed(op, key, err) })
}
