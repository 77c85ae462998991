// Package asynchook moves hook delivery off the calling goroutine.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SweepEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	reg := freshness.NewRegistry(freshness.Options{Hooks: hooks})
//
// Events are dropped when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/freshness"
)

type Hooks struct {
	inner   freshness.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // excludes try from Close
	closed  bool
	dropped atomic.Uint64
}

var _ freshness.Hooks = (*Hooks)(nil)

// New starts workers goroutines draining a queue of qlen events into inner.
func New(inner freshness.Hooks, workers, qlen int) *Hooks {
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

// Close drains the queue and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
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

func (h *Hooks) BackgroundRefreshFailed(c, k string, err error) {
	h.try(func() { h.inner.BackgroundRefreshFailed(c, k, err) })
}
func (h *Hooks) SubscriberFailed(k string, err error) {
	h.try(func() { h.inner.SubscriberFailed(k, err) })
}
func (h *Hooks) EntriesSwept(c string, n int) { h.try(func() { h.inner.EntriesSwept(c, n) }) }
func (h *Hooks) ApplyTargetFailed(id string, err error) {
	h.try(func() { h.inner.ApplyTargetFailed(id, err) })
}
