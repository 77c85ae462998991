package freshness

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

// Registry owns the named caches and the key subscribers.
// Create one per application and pass it to the components that need it.
type Registry struct {
	clock    clock.Clock
	log      Logger
	hooks    Hooks
	equal    EqualFunc
	defaults Settings

	mu     sync.Mutex
	caches map[string]*NamedCache

	subMu  sync.RWMutex
	subs   map[string][]*subscription
	subSeq uint64

	closed   atomic.Bool
	sweepers sync.WaitGroup
}

type subscription struct {
	id uint64
	fn Subscriber
}

// NewRegistry returns an empty registry. Unset Options fields fall back to
// the wall clock, no logging, no hooks and reflect.DeepEqual.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		caches: make(map[string]*NamedCache),
		subs:   make(map[string][]*subscription),
	}
	r.clock = coalesce[clock.Clock](opts.Clock, clock.New())
	r.log = coalesce[Logger](opts.Logger, NopLogger{})
	r.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	r.defaults = opts.Defaults.merge(Settings{
		Expiry:          DefaultExpiry,
		CleanupInterval: DefaultCleanupInterval,
		GraceWindow:     DefaultGraceWindow,
	})
	if opts.Equal != nil {
		r.equal = opts.Equal
	} else {
		r.equal = reflect.DeepEqual
	}
	return r
}

// GetOrCreateCache returns the cache called name, creating it with s merged
// over the registry defaults. Settings of an existing cache are never changed.
func (r *Registry) GetOrCreateCache(name string, s Settings) *NamedCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[name]; ok {
		return c
	}
	c := newNamedCache(r, name, s.merge(r.defaults))
	r.caches[name] = c
	r.log.Debug("cache created", Fields{
		"cache":  name,
		"expiry": c.settings.Expiry,
		"sweep":  c.settings.CleanupInterval,
		"grace":  c.settings.GraceWindow,
	})
	return c
}

// Cache returns an existing cache.
func (r *Registry) Cache(name string) (*NamedCache, bool) {
	r.mu.Lock()
	c, ok := r.caches[name]
	r.mu.Unlock()
	return c, ok
}

// Names returns the names of all caches, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.caches))
	for name := range r.caches {
		out = append(out, name)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// Subscribe registers fn for changes to key in any cache of the registry.
// The returned func removes the subscription; calling it more than once is a no-op.
func (r *Registry) Subscribe(key string, fn Subscriber) (unsubscribe func()) {
	r.subMu.Lock()
	r.subSeq++
	s := &subscription{id: r.subSeq, fn: fn}
	r.subs[key] = append(r.subs[key], s)
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(key, s.id) })
	}
}

func (r *Registry) unsubscribe(key string, id uint64) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	list := r.subs[key]
	for i, s := range list {
		if s.id != id {
			continue
		}
		next := make([]*subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(r.subs, key)
		} else {
			r.subs[key] = next
		}
		return
	}
}

// Subscribe registers a typed subscriber. Changes whose new value is not a V
// are skipped; a missing old value is passed as the zero V.
func Subscribe[V any](r *Registry, key string, fn func(newValue, oldValue V)) (unsubscribe func()) {
	return r.Subscribe(key, func(nv, ov any) {
		n, ok := nv.(V)
		if !ok {
			return
		}
		o, _ := ov.(V)
		fn(n, o)
	})
}

// notify calls the subscribers of key in registration order. Must be called
// without holding a cache lock.
func (r *Registry) notify(key string, newValue, oldValue any) {
	r.subMu.RLock()
	list := r.subs[key]
	r.subMu.RUnlock()

	// list is never mutated in place, so it is safe to range without the lock
	for _, s := range list {
		r.call(key, s.fn, newValue, oldValue)
	}
}

func (r *Registry) call(key string, fn Subscriber, newValue, oldValue any) {
	defer func() {
		if rec := recover(); rec != nil {
			err := panicError(rec)
			r.hooks.SubscriberFailed(key, err)
			r.log.Error("subscriber panicked", Fields{"key": key, "err": err})
		}
	}()
	fn(newValue, oldValue)
}

// Close stops every sweep goroutine and waits for them to exit or ctx to end.
// Caches stay usable after Close; their entries just stop expiring out.
func (r *Registry) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.mu.Lock()
	caches := make([]*NamedCache, 0, len(r.caches))
	for _, c := range r.caches {
		caches = append(caches, c)
	}
	r.mu.Unlock()

	for _, c := range caches {
		c.stopSweep()
	}

	done := make(chan struct{})
	go func() {
		r.sweepers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
