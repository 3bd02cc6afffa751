package ristretto

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/storeclient/backend"
)

// Provider keeps entries in process memory with per-entry TTL.
// Alive is true until Close.
type Provider struct {
	c      *rc.Cache
	closed atomic.Bool
}

var _ backend.Backend = (*Provider)(nil)

type Config struct {
	NumCounters int64 // 0 => 1e5
	MaxCost     int64 // 0 => 64 MiB; cost is the value length
	BufferItems int64 // 0 => 64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters < 0 || cfg.MaxCost < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: coalesce(cfg.NumCounters, 1e5),
		MaxCost:     coalesce(cfg.MaxCost, 64<<20),
		BufferItems: coalesce(cfg.BufferItems, 64),
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Alive() bool { return !p.closed.Load() }

func (p *Provider) Get(_ context.Context, key string) (string, bool, error) {
	if p.closed.Load() {
		return "", false, backend.ErrClosed
	}
	v, ok := p.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return "", false, nil
	}
	return s, true, nil
}

// SetEx waits for the write to be applied so a following Get observes it.
func (p *Provider) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	if p.closed.Load() {
		return backend.ErrClosed
	}
	if ttl <= 0 {
		return backend.ErrInvalidExpiry
	}
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}
	if !p.c.SetWithTTL(key, value, cost, ttl) {
		return backend.ErrRejected
	}
	p.c.Wait()
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	if p.closed.Load() {
		return backend.ErrClosed
	}
	p.c.Del(key)
	p.c.Wait()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}
	p.c.Wait()
	p.c.Close()
	return nil
}

// Helper to expose metrics if desired by the application (not part of backend.Backend).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
