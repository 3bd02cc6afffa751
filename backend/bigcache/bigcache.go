package bigcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/storeclient/backend"
	"github.com/unkn0wn-root/storeclient/internal/wire"
)

// Provider stores entries in a sharded off-heap byte cache.
// BigCache only knows a global LifeWindow, so each entry carries its own
// deadline in a wire envelope that is checked and stripped on Get.
type Provider struct {
	c      *bc.BigCache
	life   time.Duration
	now    func() time.Time
	closed atomic.Bool
}

var _ backend.Backend = (*Provider)(nil)

type Config struct {
	// LifeWindow bounds every entry regardless of its own TTL; 0 => 24h.
	// SetEx refuses longer TTLs with backend.ErrExpiryTooLong.
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int // 0 => 10k
	MaxEntrySize       int // bytes, sizing hint only; 0 => 256
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited

	Clock func() time.Time // nil => time.Now
}

func New(cfg Config) (*Provider, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	// bigcache preallocates MaxEntriesInWindow*MaxEntrySize bytes up front
	conf.MaxEntriesInWindow = 10_000
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	conf.MaxEntrySize = 256
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	p := &Provider{c: c, life: life, now: cfg.Clock}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

func (p *Provider) Alive() bool { return !p.closed.Load() }

func (p *Provider) Get(_ context.Context, key string) (string, bool, error) {
	if p.closed.Load() {
		return "", false, backend.ErrClosed
	}
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	v, ok, err := wire.Live(b, p.now())
	if err != nil || !ok {
		// expired or foreign bytes; drop so the shard can reuse the slot
		_ = p.c.Delete(key)
		return "", false, nil
	}
	return v, true, nil
}

func (p *Provider) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	if p.closed.Load() {
		return backend.ErrClosed
	}
	if ttl <= 0 {
		return backend.ErrInvalidExpiry
	}
	if ttl > p.life {
		// the shard would evict it at LifeWindow, before the deadline
		return fmt.Errorf("%w: %v > life window %v", backend.ErrExpiryTooLong, ttl, p.life)
	}
	return p.c.Set(key, wire.Encode(p.now().Add(ttl), value))
}

func (p *Provider) Del(_ context.Context, key string) error {
	if p.closed.Load() {
		return backend.ErrClosed
	}
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Close(_ context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.c.Close()
}
