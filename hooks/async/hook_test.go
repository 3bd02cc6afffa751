package asynchook

import (
	"errors"
	"sync"
	"testing"
)

type countHooks struct {
	mu     sync.Mutex
	up     int
	lost   int
	failed int
	block  chan struct{}
}

func (c *countHooks) wait() {
	if c.block != nil {
		<-c.block
	}
}

func (c *countHooks) ConnectionUp(string) {
	c.wait()
	c.mu.Lock()
	c.up++
	c.mu.Unlock()
}
func (c *countHooks) ConnectionLost(string, error) {
	c.wait()
	c.mu.Lock()
	c.lost++
	c.mu.Unlock()
}
func (c *countHooks) CommandFailed(string, string, error) {
	c.wait()
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

func TestDeliversAllBeforeClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 64)

	for i := 0; i < 10; i++ {
		h.CommandFailed("get", "k", errors.New("x"))
	}
	h.ConnectionLost("a:1", errors.New("EOF"))
	h.ConnectionUp("a:1")
	h.Close()

	if inner.failed != 10 || inner.lost != 1 || inner.up != 1 {
		t.Fatalf("delivered failed=%d lost=%d up=%d", inner.failed, inner.lost, inner.up)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d, want 0", h.Dropped())
	}
}

func TestDropsWhenFullAndAfterClose(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// worker takes the first event and blocks; the second fills the queue
	h.ConnectionUp("a")
	for i := 0; i < 100; i++ {
		h.ConnectionUp("a")
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a full queue")
	}
	close(inner.block)
	h.Close()

	before := h.Dropped()
	h.ConnectionUp("a")
	if h.Dropped() != before+1 {
		t.Fatalf("event after Close should be dropped")
	}
	h.Close() // idempotent
}
