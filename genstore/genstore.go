// Package genstore keeps per-key generation counters.
//
// A writer snapshots the generation before starting slow work and writes its
// result only if the generation is unchanged afterwards. Invalidation bumps
// the generation, so work started before it can never overwrite newer state.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes generations not bumped within retention.
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
