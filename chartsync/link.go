package chartsync

import (
	"sync"
)

// Target is a chart whose visible range can be set.
type Target interface {
	SetRange(r Range) error
}

// TargetFunc adapts a function to Target.
type TargetFunc func(r Range) error

func (f TargetFunc) SetRange(r Range) error { return f(r) }

type attached struct {
	seq uint64
	t   Target
}

// Link is a group of charts kept in step through a Bus. Targets are resolved
// when a propagation fires, so a chart detached in the meantime is skipped.
type Link struct {
	bus   *Bus
	state *State

	mu      sync.RWMutex
	targets map[string]attached
	order   []string
	seq     uint64
}

// NewLink returns an empty link whose reports go through bus.
func NewLink(bus *Bus) *Link {
	return &Link{
		bus:     bus,
		state:   NewState(),
		targets: make(map[string]attached),
	}
}

// State returns the sync state shared by the link's charts.
func (l *Link) State() *State { return l.state }

// Attach adds t under id, replacing any target attached under the same id.
func (l *Link) Attach(id string, t Target) (detach func()) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	if _, ok := l.targets[id]; !ok {
		l.order = append(l.order, id)
	}
	l.targets[id] = attached{seq: seq, t: t}
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { l.detach(id, seq) }) }
}

func (l *Link) detach(id string, seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.targets[id]; !ok || a.seq != seq {
		return
	}
	delete(l.targets, id)
	for i, o := range l.order {
		if o == id {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
}

// AttachView attaches v and reports its relayout events through the link.
// Detaching leaves the view's listener alone if it was replaced in the
// meantime, for example by attaching the view to another link.
func (l *Link) AttachView(v *View) (detach func()) {
	d := l.Attach(v.ID(), v)
	tok := v.listen(func(r Range) { l.Report(v.ID(), r) })
	return func() {
		v.unlisten(tok)
		d()
	}
}

// IDs returns the attached ids in attach order.
func (l *Link) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Report forwards a range change of sourceID to every other attached chart.
func (l *Link) Report(sourceID string, r Range) {
	l.bus.ReportRangeChange(l.state, sourceID, l.IDs(), r, l.apply)
}

func (l *Link) apply(id string, r Range) error {
	l.mu.RLock()
	a, ok := l.targets[id]
	l.mu.RUnlock()
	if !ok {
		return ErrUnknownTarget
	}
	return a.t.SetRange(r)
}

// Close cancels pending propagation.
func (l *Link) Close() { l.state.Stop() }
