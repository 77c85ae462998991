package freshness

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	gen "github.com/unkn0wn-root/freshness/genstore"
)

// Settings configure a single named cache. Zero fields fall back to the
// registry defaults (see DefaultExpiry, DefaultCleanupInterval, DefaultGraceWindow).
type Settings struct {
	Expiry          time.Duration // entry becomes stale after this age
	CleanupInterval time.Duration // sweep period
	GraceWindow     time.Duration // stale entries are removed after Expiry+GraceWindow
}

// EntryInfo is a read-only view of a cache entry.
type EntryInfo struct {
	Value    any
	StoredAt time.Time
	Stale    bool
}

// Subscriber is notified when the value stored under a key changes.
// oldValue is nil when the key had no previous entry.
type Subscriber func(newValue, oldValue any)

// EqualFunc reports whether two cached values are structurally equal.
type EqualFunc func(a, b any) bool

// Producer loads the authoritative value for a key.
type Producer func(ctx context.Context) (any, error)

// Options tune a Registry. All fields are optional.
type Options struct {
	Clock    clock.Clock // nil => wall clock
	Logger   Logger      // nil => NopLogger
	Hooks    Hooks       // nil => NopHooks
	Equal    EqualFunc   // nil => reflect.DeepEqual
	Defaults Settings    // zero fields => package defaults
}

// CoordinatorOptions tune a Coordinator.
type CoordinatorOptions struct {
	GenStore     gen.GenStore  // nil => in-process LocalGenStore
	GenRetention time.Duration // 0 => 1h; generations idle longer are pruned
}
