package freshness

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	gen "github.com/unkn0wn-root/freshness/genstore"
)

// Coordinator serves values from a Registry with stale-while-revalidate
// semantics and keeps at most one producer call in flight per cache key.
type Coordinator struct {
	reg   *Registry
	gens  gen.GenStore
	log   Logger
	hooks Hooks

	sf      singleflight.Group
	mu      sync.Mutex        // guards pending and orders check-then-launch
	pending map[string]string // flight key -> singleflight key of the registered flight
	seq     uint64

	runMu   sync.Mutex     // leaf lock; taken by the gen store during cleanup
	running map[string]int // flight key -> flights still executing, detached ones included

	stats counters
}

// NewCoordinator builds a coordinator over reg. Without opts.GenStore it uses
// an in-process store that never prunes a key while a flight for it runs.
func NewCoordinator(reg *Registry, opts CoordinatorOptions) *Coordinator {
	co := &Coordinator{
		reg:     reg,
		log:     reg.log,
		hooks:   reg.hooks,
		pending: make(map[string]string),
		running: make(map[string]int),
	}
	if opts.GenStore != nil {
		co.gens = opts.GenStore
	} else {
		retention := coalesce(opts.GenRetention, defaultGenRetention)
		co.gens = gen.NewLocalGenStore(reg.clock, retention, retention, gen.KeepWhile(co.flying))
	}
	return co
}

// Registry returns the registry the coordinator serves from.
func (co *Coordinator) Registry() *Registry { return co.reg }

// Subscribe is a shortcut for Registry().Subscribe.
func (co *Coordinator) Subscribe(key string, fn Subscriber) (unsubscribe func()) {
	return co.reg.Subscribe(key, fn)
}

// Close releases the generation store.
func (co *Coordinator) Close(ctx context.Context) error {
	return co.gens.Close(ctx)
}

func flightKey(cacheName, key string) string {
	return cacheName + "\x00" + key
}

// CachedFetch returns the value for key in cacheName, creating the cache with
// the given expiry on first use.
//
//   - a flight for the key is pending: wait for it
//   - no entry: run producer and wait; failures are returned as *ProducerError
//   - fresh entry: return it
//   - stale entry: return it and refresh in the background
//
// A caller that already holds a cached value never sees a producer error;
// background failures go to Hooks.BackgroundRefreshFailed. Canceling ctx only
// stops this caller's wait: the producer keeps running for other callers.
func (co *Coordinator) CachedFetch(ctx context.Context, key, cacheName string, expiry time.Duration, producer Producer) (any, error) {
	cache := co.reg.GetOrCreateCache(cacheName, Settings{Expiry: expiry})
	fk := flightKey(cacheName, key)

	co.mu.Lock()
	val, ok := cache.Get(key)

	if sfk, inflight := co.pending[fk]; inflight {
		co.stats.shared.Add(1)
		// the flight cannot finish while co.mu is held, so DoChan joins it
		ch := co.sf.DoChan(sfk, func() (any, error) { return nil, errFlightDetached })
		co.mu.Unlock()
		return co.wait(ctx, ch, val, ok)
	}

	if !ok {
		co.stats.misses.Add(1)
		ch := co.launchLocked(ctx, cache, key, fk, producer, false)
		co.mu.Unlock()
		return co.wait(ctx, ch, nil, false)
	}

	if !cache.IsStale(key) {
		co.mu.Unlock()
		co.stats.hits.Add(1)
		return val, nil
	}

	co.stats.staleHits.Add(1)
	co.stats.refreshes.Add(1)
	co.launchLocked(ctx, cache, key, fk, producer, true)
	co.mu.Unlock()
	co.log.Debug("serving stale value, refreshing", Fields{"cache": cacheName, "key": key})
	return val, nil
}

// launchLocked registers and starts a new flight. co.mu must be held.
// Every flight gets its own singleflight key, so a new flight never joins one
// that is still unwinding after an Invalidate or completion.
func (co *Coordinator) launchLocked(ctx context.Context, cache *NamedCache, key, fk string, producer Producer, background bool) <-chan singleflight.Result {
	co.seq++
	sfk := fk + "#" + strconv.FormatUint(co.seq, 10)
	co.pending[fk] = sfk
	co.hold(fk)

	obs, err := co.gens.Snapshot(ctx, fk)
	if err != nil {
		co.log.Warn("generation snapshot failed; result will not be cached",
			Fields{"cache": cache.name, "key": key, "err": err})
	}
	return co.sf.DoChan(sfk, co.flight(ctx, cache, key, fk, sfk, obs, err, producer, background))
}

func (co *Coordinator) flight(ctx context.Context, cache *NamedCache, key, fk, sfk string, obs uint64, snapErr error, producer Producer, background bool) func() (any, error) {
	// the producer is shared by every waiter, so it must not die with the first one
	fctx := context.WithoutCancel(ctx)
	return func() (any, error) {
		defer co.finish(fk, sfk)

		v, err := co.produce(fctx, producer)
		if err != nil {
			perr := &ProducerError{Cache: cache.name, Key: key, Err: err}
			if background {
				co.stats.refreshFailures.Add(1)
				co.hooks.BackgroundRefreshFailed(cache.name, key, err)
				co.log.Warn("background refresh failed", Fields{"cache": cache.name, "key": key, "err": err})
			}
			return nil, perr
		}
		if snapErr == nil {
			co.store(fctx, cache, key, fk, obs, v)
		}
		return v, nil
	}
}

func (co *Coordinator) produce(ctx context.Context, producer Producer) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v, err = nil, panicError(rec)
		}
	}()
	return producer(ctx)
}

// store writes v unless the key was invalidated after the flight started.
func (co *Coordinator) store(ctx context.Context, cache *NamedCache, key, fk string, obs uint64, v any) {
	co.mu.Lock()
	cur, err := co.gens.Snapshot(ctx, fk)
	if err != nil || cur != obs {
		co.mu.Unlock()
		co.log.Debug("fetch result discarded (invalidated)", Fields{"cache": cache.name, "key": key, "obs": obs, "cur": cur})
		return
	}
	notify := cache.set(key, v)
	co.mu.Unlock()
	notify()
}

func (co *Coordinator) finish(fk, sfk string) {
	co.mu.Lock()
	if co.pending[fk] == sfk {
		delete(co.pending, fk)
	}
	co.mu.Unlock()
	co.release(fk)
}

func (co *Coordinator) hold(fk string) {
	co.runMu.Lock()
	co.running[fk]++
	co.runMu.Unlock()
}

func (co *Coordinator) release(fk string) {
	co.runMu.Lock()
	if co.running[fk]--; co.running[fk] <= 0 {
		delete(co.running, fk)
	}
	co.runMu.Unlock()
}

// flying reports whether a flight observed the generation of fk and has not
// finished yet.
func (co *Coordinator) flying(fk string) bool {
	co.runMu.Lock()
	defer co.runMu.Unlock()
	return co.running[fk] > 0
}

func (co *Coordinator) wait(ctx context.Context, ch <-chan singleflight.Result, cached any, hasCached bool) (any, error) {
	select {
	case r := <-ch:
		if r.Err != nil && hasCached {
			return cached, nil
		}
		return r.Val, r.Err
	case <-ctx.Done():
		if hasCached {
			return cached, nil
		}
		return nil, ctx.Err()
	}
}

// Invalidate removes key from cacheName and detaches any pending flight for
// it. The next fetch is a cold miss, and a flight started before this call
// will not write its result.
func (co *Coordinator) Invalidate(key, cacheName string) {
	fk := flightKey(cacheName, key)

	co.mu.Lock()
	defer co.mu.Unlock()
	if _, err := co.gens.Bump(context.Background(), fk); err != nil {
		co.log.Warn("generation bump failed", Fields{"cache": cacheName, "key": key, "err": err})
	}
	if c, ok := co.reg.Cache(cacheName); ok {
		c.Remove(key)
	}
	if sfk, ok := co.pending[fk]; ok {
		delete(co.pending, fk)
		co.sf.Forget(sfk)
	}
}

// Fetch is the typed form of CachedFetch. A cached value that is not a V
// yields ErrValueType.
func Fetch[V any](ctx context.Context, co *Coordinator, key, cacheName string, expiry time.Duration, producer func(ctx context.Context) (V, error)) (V, error) {
	var zero V
	v, err := co.CachedFetch(ctx, key, cacheName, expiry, func(ctx context.Context) (any, error) {
		return producer(ctx)
	})
	if err != nil || v == nil {
		return zero, err
	}
	out, ok := v.(V)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrValueType, key, v)
	}
	return out, nil
}
