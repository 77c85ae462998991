package genstore

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type localGenEntry struct {
	Gen       uint64
	UpdatedAt time.Time
}

// LocalGenStore keeps generations in-process.
// Optional cleanup loop to prune long-inactive entries.
type LocalGenStore struct {
	clock  clock.Clock
	mu     sync.RWMutex
	gens   map[string]localGenEntry
	ticker *clock.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	keep   func(key string) bool
}

var _ GenStore = (*LocalGenStore)(nil)

// LocalOption configures a LocalGenStore.
type LocalOption func(*LocalGenStore)

// KeepWhile protects keys from Cleanup while keep reports true for them.
// A key whose generation was observed by work still in progress must not be
// pruned: it would restart at 0 under that work. keep is called with the
// store lock held and must not call back into the store.
func KeepWhile(keep func(key string) bool) LocalOption {
	return func(s *LocalGenStore) { s.keep = keep }
}

// NewLocalGenStore builds a store on clk (nil => wall clock). The cleanup loop
// runs only when both cleanupInterval and retention are positive.
func NewLocalGenStore(clk clock.Clock, cleanupInterval, retention time.Duration, opts ...LocalOption) *LocalGenStore {
	if clk == nil {
		clk = clock.New()
	}
	s := &LocalGenStore{
		clock: clk,
		gens:  make(map[string]localGenEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = clk.Ticker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *LocalGenStore) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	e, ok := s.gens[k]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return e.Gen, nil
}

func (s *LocalGenStore) Bump(_ context.Context, k string) (uint64, error) {
	now := s.clock.Now()
	s.mu.Lock()
	e := s.gens[k]
	e.Gen++
	e.UpdatedAt = now
	s.gens[k] = e
	s.mu.Unlock()
	return e.Gen, nil
}

// Cleanup drops generations idle for longer than retention, except keys held
// by KeepWhile. A dropped key restarts at 0.
func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.clock.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.gens {
		if e.UpdatedAt.IsZero() || !e.UpdatedAt.Before(cutoff) {
			continue
		}
		if s.keep != nil && s.keep(k) {
			continue
		}
		delete(s.gens, k)
	}
	s.mu.Unlock()
}

// Len returns the number of tracked keys.
func (s *LocalGenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gens)
}

func (s *LocalGenStore) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop() // stop ticker before waiting
			s.wg.Wait()
		}
	})
	return nil
}
