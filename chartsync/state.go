package chartsync

import (
	"sync"

	"github.com/benbjohnson/clock"
)

// State is the synchronization state shared by a group of linked charts.
// The zero value is ready to use.
type State struct {
	mu       sync.Mutex
	pending  *RangeUpdate
	syncing  bool
	debounce *clock.Timer
	settle   *clock.Timer
	seq      uint64 // identifies the latest scheduled debounce
}

// NewState returns an idle state for one group of linked charts.
func NewState() *State { return &State{} }

// IsSyncing reports whether a propagation is running or settling.
func (s *State) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// PendingRangeUpdate returns the update being propagated, if any.
func (s *State) PendingRangeUpdate() (RangeUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return RangeUpdate{}, false
	}
	return *s.pending, true
}

// Stop cancels outstanding timers and clears the guard. Reports made after
// Stop are accepted again.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	s.seq++ // orphan a debounce callback that already fired
	s.syncing = false
	s.pending = nil
}
