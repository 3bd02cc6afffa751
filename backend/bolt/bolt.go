package bolt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/unkn0wn-root/storeclient/backend"
	"github.com/unkn0wn-root/storeclient/internal/wire"
)

// Store keeps entries in a single bbolt file. Expired entries read as
// misses and are pruned by Sweep, optionally on a background ticker.
type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
	closed atomic.Bool

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ backend.Backend = (*Store)(nil)

type Config struct {
	Path        string        // required
	Bucket      string        // "" => "storeclient"
	OpenTimeout time.Duration // file lock wait; 0 => 1s
	// SweepInterval prunes expired entries in the background; 0 disables.
	SweepInterval time.Duration

	Clock func() time.Time // nil => time.Now
}

func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt: path is required")
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	bucket := []byte("storeclient")
	if cfg.Bucket != "" {
		bucket = []byte(cfg.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, bucket: bucket, now: cfg.Clock}
	if s.now == nil {
		s.now = time.Now
	}
	if cfg.SweepInterval > 0 {
		s.ticker = time.NewTicker(cfg.SweepInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					_, _ = s.Sweep()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s, nil
}

func (s *Store) Alive() bool { return !s.closed.Load() }

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, backend.ErrClosed
	}
	var (
		out string
		ok  bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		// string() copies; raw is only valid inside the tx
		v, live, err := wire.Live(raw, s.now())
		if err != nil {
			return nil // foreign bytes read as a miss
		}
		out, ok = v, live
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return out, ok, nil
}

func (s *Store) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	if s.closed.Load() {
		return backend.ErrClosed
	}
	if ttl <= 0 {
		return backend.ErrInvalidExpiry
	}
	entry := wire.Encode(s.now().Add(ttl), value)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), entry)
	})
}

func (s *Store) Del(_ context.Context, key string) error {
	if s.closed.Load() {
		return backend.ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Sweep deletes expired and undecodable entries and returns how many were removed.
func (s *Store) Sweep() (int, error) {
	if s.closed.Load() {
		return 0, backend.ErrClosed
	}
	now := s.now()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var dead [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if _, live, err := wire.Live(v, now); err != nil || !live {
				dead = append(dead, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range dead {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(dead)
		return nil
	})
	return removed, err
}

func (s *Store) Close(_ context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop() // stop ticker before waiting
			s.wg.Wait()
		}
		s.closed.Store(true)
		err = s.db.Close()
	})
	return err
}
