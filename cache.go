package freshness

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type entry struct {
	value    any
	storedAt time.Time
	stale    bool
}

// NamedCache is a keyed store of values with a freshness policy.
// A cache runs a sweep goroutine only while it holds entries.
type NamedCache struct {
	reg      *Registry
	name     string
	settings Settings

	mu      sync.Mutex
	entries map[string]*entry
	ticker  *clock.Ticker
	stopCh  chan struct{}
}

func newNamedCache(reg *Registry, name string, s Settings) *NamedCache {
	return &NamedCache{
		reg:      reg,
		name:     name,
		settings: s,
		entries:  make(map[string]*entry),
	}
}

func (c *NamedCache) Name() string       { return c.name }
func (c *NamedCache) Settings() Settings { return c.settings }
func (c *NamedCache) clock() clock.Clock { return c.reg.clock }

func (c *NamedCache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.storedAt) > c.settings.Expiry
}

// Set stores value under key as fresh and notifies subscribers when the value
// differs from the previous one.
func (c *NamedCache) Set(key string, value any) {
	c.set(key, value)()
}

// set stores value and returns the subscriber notification to run once the
// caller has released its own locks.
func (c *NamedCache) set(key string, value any) (notify func()) {
	now := c.clock().Now()

	c.mu.Lock()
	prev, had := c.entries[key]
	c.entries[key] = &entry{value: value, storedAt: now}
	c.startSweepLocked()
	c.mu.Unlock()

	var old any
	if had {
		if c.reg.equal(prev.value, value) {
			return func() {}
		}
		old = prev.value
	}
	return func() { c.reg.notify(key, value, old) }
}

// Get returns the value stored under key, even if it has expired.
// Reading an expired entry flags it stale.
func (c *NamedCache) Get(key string) (any, bool) {
	now := c.clock().Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expired(e, now) {
		e.stale = true
	}
	return e.value, true
}

// IsStale reports whether key is absent, flagged stale or past expiry.
func (c *NamedCache) IsStale(key string) bool {
	now := c.clock().Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return true
	}
	return e.stale || c.expired(e, now)
}

// Entry returns the entry under key without touching its stale flag.
func (c *NamedCache) Entry(key string) (EntryInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return EntryInfo{}, false
	}
	return EntryInfo{Value: e.value, StoredAt: e.storedAt, Stale: e.stale}, true
}

// Remove deletes key. Subscribers are not notified.
func (c *NamedCache) Remove(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	if len(c.entries) == 0 {
		c.stopSweepLocked()
	}
	c.mu.Unlock()
}

// Clear deletes every entry and stops the sweep.
func (c *NamedCache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.stopSweepLocked()
	c.mu.Unlock()
}

// Len returns the number of entries, stale ones included.
func (c *NamedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ==== sweep

// startSweepLocked starts the sweep goroutine unless it is already running
// or the registry is closed. c.mu must be held.
func (c *NamedCache) startSweepLocked() {
	if c.stopCh != nil || c.reg.closed.Load() || c.settings.CleanupInterval <= 0 {
		return
	}
	c.ticker = c.clock().Ticker(c.settings.CleanupInterval)
	c.stopCh = make(chan struct{})
	c.reg.sweepers.Add(1)
	go c.sweepLoop(c.ticker, c.stopCh)
}

func (c *NamedCache) sweepLoop(ticker *clock.Ticker, stop <-chan struct{}) {
	defer c.reg.sweepers.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-stop:
			return
		}
	}
}

// stopSweepLocked signals the sweep goroutine to exit. c.mu must be held.
func (c *NamedCache) stopSweepLocked() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	c.stopCh = nil
	c.ticker = nil
}

func (c *NamedCache) stopSweep() {
	c.mu.Lock()
	c.stopSweepLocked()
	c.mu.Unlock()
}

func (c *NamedCache) sweeping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopCh != nil
}

// sweep flags expired entries stale and removes stale entries older than
// expiry+grace. An empty cache stops its own sweep.
func (c *NamedCache) sweep() {
	now := c.clock().Now()
	limit := c.settings.Expiry + c.settings.GraceWindow

	c.mu.Lock()
	removed := 0
	for k, e := range c.entries {
		age := now.Sub(e.storedAt)
		if age > c.settings.Expiry {
			e.stale = true
		}
		if e.stale && age > limit {
			delete(c.entries, k)
			removed++
		}
	}
	if len(c.entries) == 0 {
		c.stopSweepLocked()
	}
	c.mu.Unlock()

	if removed > 0 {
		c.reg.hooks.EntriesSwept(c.name, removed)
		c.reg.log.Debug("sweep removed entries", Fields{"cache": c.name, "removed": removed})
	}
}
