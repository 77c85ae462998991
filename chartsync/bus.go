package chartsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/unkn0wn-root/freshness"
)

const (
	DefaultDebounce = 200 * time.Millisecond
	DefaultSettle   = 100 * time.Millisecond
)

// ApplyFunc sets the visible range of the chart identified by targetID.
// It returns ErrUnknownTarget when the id does not resolve to a chart.
type ApplyFunc func(targetID string, r Range) error

// Options tune a Bus. All fields are optional.
type Options struct {
	Clock    clock.Clock      // nil => wall clock
	Debounce time.Duration    // 0 => DefaultDebounce
	Settle   time.Duration    // 0 => DefaultSettle
	Logger   freshness.Logger // nil => NopLogger
	Hooks    freshness.Hooks  // nil => NopHooks
}

// Bus debounces range reports and fans them out to linked charts.
// A Bus holds no per-group state; several groups can share one Bus, each
// with its own State.
type Bus struct {
	clock    clock.Clock
	debounce time.Duration
	settle   time.Duration
	log      freshness.Logger
	hooks    freshness.Hooks
}

// NewBus returns a bus with opts applied over the defaults.
func NewBus(opts Options) *Bus {
	b := &Bus{
		debounce: DefaultDebounce,
		settle:   DefaultSettle,
	}
	if opts.Clock != nil {
		b.clock = opts.Clock
	} else {
		b.clock = clock.New()
	}
	if opts.Debounce > 0 {
		b.debounce = opts.Debounce
	}
	if opts.Settle > 0 {
		b.settle = opts.Settle
	}
	if opts.Logger != nil {
		b.log = opts.Logger
	} else {
		b.log = freshness.NopLogger{}
	}
	if opts.Hooks != nil {
		b.hooks = opts.Hooks
	} else {
		b.hooks = freshness.NopHooks{}
	}
	return b
}

// ReportRangeChange records that sourceID now shows r and schedules its
// propagation to targetIDs. It never blocks on the targets.
//
// The report is dropped when r is degenerate or a propagation is in progress
// for st. A newer report replaces one still waiting for its debounce.
func (b *Bus) ReportRangeChange(st *State, sourceID string, targetIDs []string, r Range, apply ApplyFunc) {
	if !r.Valid() {
		b.log.Debug("degenerate range ignored", freshness.Fields{"source": sourceID, "range": r.String()})
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.syncing {
		return
	}
	if st.debounce != nil {
		st.debounce.Stop()
	}
	st.seq++
	seq := st.seq
	targets := append([]string(nil), targetIDs...)
	st.debounce = b.clock.AfterFunc(b.debounce, func() {
		b.propagate(st, seq, sourceID, targets, r, apply)
	})
}

func (b *Bus) propagate(st *State, seq uint64, sourceID string, targets []string, r Range, apply ApplyFunc) {
	st.mu.Lock()
	if st.seq != seq || st.syncing {
		st.mu.Unlock()
		return
	}
	st.debounce = nil
	st.syncing = true
	st.pending = &RangeUpdate{SourceID: sourceID, Range: r}
	st.mu.Unlock()

	// targets re-emit range events while we apply; the guard stays up until settle
	defer b.scheduleSettle(st, seq)

	for _, id := range targets {
		if id == sourceID {
			continue
		}
		b.applyOne(id, r, apply)
	}
	b.log.Debug("range propagated", freshness.Fields{"source": sourceID, "range": r.String(), "targets": len(targets)})
}

func (b *Bus) applyOne(id string, r Range, apply ApplyFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			b.report(&ApplyTargetError{TargetID: id, Range: r, Err: fmt.Errorf("panic: %v", rec)})
		}
	}()
	err := apply(id, r)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownTarget):
		b.log.Debug("unknown sync target skipped", freshness.Fields{"target": id})
	default:
		b.report(&ApplyTargetError{TargetID: id, Range: r, Err: err})
	}
}

func (b *Bus) report(err *ApplyTargetError) {
	b.hooks.ApplyTargetFailed(err.TargetID, err)
	b.log.Warn("apply range failed", freshness.Fields{"target": err.TargetID, "err": err.Err})
}

func (b *Bus) scheduleSettle(st *State, seq uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.seq != seq {
		return // stopped while applying
	}
	st.settle = b.clock.AfterFunc(b.settle, func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		if st.seq != seq {
			return
		}
		st.syncing = false
		st.pending = nil
		st.settle = nil
	})
}
