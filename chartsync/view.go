package chartsync

import (
	"fmt"
	"sync"
)

// View is an in-memory chart viewport. Like a plotting widget it emits a
// relayout event for every range change, programmatic or user driven.
type View struct {
	id string

	mu         sync.Mutex
	r          Range
	onRelayout func(Range)
	listenSeq  uint64 // bumped whenever onRelayout is replaced
}

// NewView returns a view showing initial.
func NewView(id string, initial Range) *View {
	return &View{id: id, r: initial}
}

func (v *View) ID() string { return v.id }

func (v *View) Range() Range {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.r
}

// OnRelayout sets the relayout listener; nil removes it.
func (v *View) OnRelayout(fn func(Range)) { v.listen(fn) }

// listen installs fn and returns a token for unlisten.
func (v *View) listen(fn func(Range)) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listenSeq++
	v.onRelayout = fn
	return v.listenSeq
}

// unlisten removes the listener installed under tok, unless it was replaced since.
func (v *View) unlisten(tok uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listenSeq == tok {
		v.listenSeq++
		v.onRelayout = nil
	}
}

// SetRange applies r and emits a relayout event.
func (v *View) SetRange(r Range) error {
	if !r.Valid() {
		return fmt.Errorf("view %q: invalid range %s", v.id, r)
	}
	v.update(r)
	return nil
}

// Interact simulates a user zoom or pan.
func (v *View) Interact(r Range) { v.update(r) }

func (v *View) update(r Range) {
	v.mu.Lock()
	v.r = r
	fn := v.onRelayout
	v.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}
