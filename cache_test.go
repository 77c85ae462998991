package freshness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// ==== test helpers

type recHooks struct {
	mu           sync.Mutex
	refreshFails []error
	subFails     []string
	swept        map[string]int
	applyFails   []string
}

func newRecHooks() *recHooks { return &recHooks{swept: make(map[string]int)} }

func (h *recHooks) BackgroundRefreshFailed(_, _ string, err error) {
	h.mu.Lock()
	h.refreshFails = append(h.refreshFails, err)
	h.mu.Unlock()
}

func (h *recHooks) SubscriberFailed(key string, _ error) {
	h.mu.Lock()
	h.subFails = append(h.subFails, key)
	h.mu.Unlock()
}

func (h *recHooks) EntriesSwept(cache string, n int) {
	h.mu.Lock()
	h.swept[cache] += n
	h.mu.Unlock()
}

func (h *recHooks) ApplyTargetFailed(id string, _ error) {
	h.mu.Lock()
	h.applyFails = append(h.applyFails, id)
	h.mu.Unlock()
}

func (h *recHooks) refreshFailCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.refreshFails)
}

func (h *recHooks) sweptCount(cache string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.swept[cache]
}

func newTestRegistry(t *testing.T) (*Registry, *clock.Mock, *recHooks) {
	t.Helper()
	clk := clock.NewMock()
	hooks := newRecHooks()
	r := NewRegistry(Options{Clock: clk, Hooks: hooks})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r, clk, hooks
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// ==== registry

func TestGetOrCreateMergesDefaults(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	c := r.GetOrCreateCache("a", Settings{})
	want := Settings{Expiry: 5 * time.Minute, CleanupInterval: time.Minute, GraceWindow: 10 * time.Minute}
	if got := c.Settings(); got != want {
		t.Fatalf("defaults: got=%+v want=%+v", got, want)
	}

	b := r.GetOrCreateCache("b", Settings{Expiry: time.Second})
	if got := b.Settings(); got.Expiry != time.Second || got.CleanupInterval != time.Minute || got.GraceWindow != 10*time.Minute {
		t.Fatalf("partial merge: got=%+v", got)
	}
}

func TestGetOrCreateIsIdempotentAndKeepsFirstSettings(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	c1 := r.GetOrCreateCache("x", Settings{Expiry: time.Second})
	c2 := r.GetOrCreateCache("x", Settings{Expiry: time.Hour})
	if c1 != c2 {
		t.Fatalf("expected same cache instance")
	}
	if c2.Settings().Expiry != time.Second {
		t.Fatalf("settings changed on second create: %v", c2.Settings().Expiry)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "x" {
		t.Fatalf("names=%v", names)
	}
}

func TestRegistryDefaultsOverride(t *testing.T) {
	r := NewRegistry(Options{Clock: clock.NewMock(), Defaults: Settings{GraceWindow: time.Second}})
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	s := r.GetOrCreateCache("x", Settings{}).Settings()
	if s.GraceWindow != time.Second || s.Expiry != DefaultExpiry {
		t.Fatalf("got=%+v", s)
	}
}

// ==== entries

func TestSetGetFreshThenStaleOnRead(t *testing.T) {
	r, clk, _ := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{Expiry: time.Minute, CleanupInterval: time.Hour})

	if !c.IsStale("k") {
		t.Fatalf("absent key must be stale")
	}

	c.Set("k", 1)
	v, ok := c.Get("k")
	if !ok || v != 1 {
		t.Fatalf("Get after set: ok=%v got=%v", ok, v)
	}
	if c.IsStale("k") {
		t.Fatalf("fresh entry reported stale")
	}

	clk.Add(time.Minute + time.Millisecond)
	if e, _ := c.Entry("k"); e.Stale {
		t.Fatalf("flag set before any read")
	}
	if !c.IsStale("k") {
		t.Fatalf("expired entry must be stale")
	}
	v, ok = c.Get("k")
	if !ok || v != 1 {
		t.Fatalf("expired value must still be returned: ok=%v got=%v", ok, v)
	}
	if e, _ := c.Entry("k"); !e.Stale {
		t.Fatalf("read of expired entry must set stale flag")
	}
}

func TestSetResetsStaleness(t *testing.T) {
	r, clk, _ := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{Expiry: time.Minute})

	c.Set("k", "a")
	clk.Add(2 * time.Minute)
	c.Get("k")
	c.Set("k", "b")
	e, ok := c.Entry("k")
	if !ok || e.Stale || e.Value != "b" || !e.StoredAt.Equal(clk.Now()) {
		t.Fatalf("entry after overwrite: %+v ok=%v", e, ok)
	}
}

func TestExactlyAtExpiryIsFresh(t *testing.T) {
	r, clk, _ := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{Expiry: time.Minute})

	c.Set("k", 1)
	clk.Add(time.Minute)
	if c.IsStale("k") {
		t.Fatalf("age == expiry must still be fresh")
	}
}

func TestRemoveAndClear(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("removed key still present")
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d want 1", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("len after clear=%d", c.Len())
	}
	if c.sweeping() {
		t.Fatalf("sweep must stop when cache is cleared")
	}
}

// ==== sweep

func TestSweepKeepsStaleUntilGraceElapses(t *testing.T) {
	r, clk, hooks := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{Expiry: time.Minute, CleanupInterval: time.Hour, GraceWindow: 10 * time.Minute})

	c.Set("k", 1)

	clk.Set(clk.Now().Add(5 * time.Minute))
	c.sweep()
	e, ok := c.Entry("k")
	if !ok || !e.Stale {
		t.Fatalf("expired entry must be kept and flagged: ok=%v e=%+v", ok, e)
	}

	clk.Set(clk.Now().Add(6*time.Minute + time.Millisecond)) // age > expiry+grace
	c.sweep()
	if _, ok := c.Entry("k"); ok {
		t.Fatalf("entry older than expiry+grace must be removed")
	}
	if hooks.sweptCount("m") != 1 {
		t.Fatalf("swept hook count=%d want 1", hooks.sweptCount("m"))
	}
	if c.sweeping() {
		t.Fatalf("sweep must stop once cache is empty")
	}
}

func TestSetWithinGraceRestartsLifetime(t *testing.T) {
	r, clk, hooks := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{Expiry: time.Minute, CleanupInterval: time.Hour, GraceWindow: 10 * time.Minute})

	c.Set("k", 1)
	clk.Set(clk.Now().Add(5 * time.Minute)) // expired, inside grace
	c.sweep()
	if e, _ := c.Entry("k"); !e.Stale {
		t.Fatalf("entry must be stale before touch: %+v", e)
	}

	c.Set("k", 2)
	clk.Set(clk.Now().Add(6*time.Minute + time.Millisecond)) // past the first expiry+grace
	c.sweep()

	e, ok := c.Entry("k")
	if !ok {
		t.Fatalf("touched entry must survive the original expiry+grace")
	}
	if e.Value != 2 || !e.Stale {
		t.Fatalf("entry=%+v want value 2 flagged stale", e)
	}
	if hooks.sweptCount("m") != 0 {
		t.Fatalf("swept=%d want 0", hooks.sweptCount("m"))
	}

	clk.Set(clk.Now().Add(5 * time.Minute)) // 11m after the touch
	c.sweep()
	if _, ok := c.Entry("k"); ok {
		t.Fatalf("entry must be removed once its own expiry+grace elapses")
	}
}

func TestSweepRunsOnTickerAndRestartsOnSet(t *testing.T) {
	r, clk, hooks := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{Expiry: time.Minute, CleanupInterval: time.Minute, GraceWindow: time.Minute})

	if c.sweeping() {
		t.Fatalf("empty cache must not sweep")
	}
	c.Set("k", 1)
	if !c.sweeping() {
		t.Fatalf("set must start sweep")
	}

	for i := 0; i < 3; i++ {
		clk.Add(time.Minute)
	}
	waitFor(t, "ticker sweep", func() bool { return c.Len() == 0 && !c.sweeping() })
	if hooks.sweptCount("m") != 1 {
		t.Fatalf("swept=%d", hooks.sweptCount("m"))
	}

	c.Set("k2", 2)
	if !c.sweeping() {
		t.Fatalf("sweep must restart on next set")
	}
}

func TestCloseStopsSweepers(t *testing.T) {
	clk := clock.NewMock()
	r := NewRegistry(Options{Clock: clk})
	a := r.GetOrCreateCache("a", Settings{})
	b := r.GetOrCreateCache("b", Settings{})
	a.Set("k", 1)
	b.Set("k", 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.sweeping() || b.sweeping() {
		t.Fatalf("sweepers still registered after close")
	}
	a.Set("k2", 2)
	if a.sweeping() {
		t.Fatalf("closed registry must not start sweepers")
	}
	if v, ok := a.Get("k2"); !ok || v != 2 {
		t.Fatalf("cache must stay usable after close")
	}
}

// ==== subscribers

type change struct{ newV, oldV any }

func TestSubscriberFirstSetAndChanges(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{})

	var got []change
	unsub := r.Subscribe("k", func(n, o any) { got = append(got, change{n, o}) })

	c.Set("k", map[string]int{"a": 1})
	c.Set("k", map[string]int{"a": 1}) // structurally equal: no notification
	c.Set("k", map[string]int{"a": 2})
	c.Set("other", 1)

	if len(got) != 2 {
		t.Fatalf("notifications=%d want 2: %+v", len(got), got)
	}
	if got[0].oldV != nil {
		t.Fatalf("first set must pass nil old value, got %v", got[0].oldV)
	}
	if got[1].oldV.(map[string]int)["a"] != 1 || got[1].newV.(map[string]int)["a"] != 2 {
		t.Fatalf("second change: %+v", got[1])
	}

	unsub()
	unsub() // idempotent
	c.Set("k", map[string]int{"a": 3})
	if len(got) != 2 {
		t.Fatalf("unsubscribed callback still invoked")
	}
}

func TestSubscribersSpanCaches(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	n := 0
	r.Subscribe("k", func(any, any) { n++ })
	r.GetOrCreateCache("a", Settings{}).Set("k", 1)
	r.GetOrCreateCache("b", Settings{}).Set("k", 1)
	if n != 2 {
		t.Fatalf("notifications=%d want 2", n)
	}
}

func TestPanickingSubscriberDoesNotStopOthers(t *testing.T) {
	r, _, hooks := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{})

	var order []string
	r.Subscribe("k", func(any, any) { order = append(order, "first"); panic("boom") })
	r.Subscribe("k", func(any, any) { order = append(order, "second") })

	c.Set("k", 1)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order=%v", order)
	}
	if len(hooks.subFails) != 1 || hooks.subFails[0] != "k" {
		t.Fatalf("subscriber failure not reported: %v", hooks.subFails)
	}
	if v, ok := c.Get("k"); !ok || v != 1 {
		t.Fatalf("set must complete despite panicking subscriber")
	}
}

func TestSubscriberMaySetFromCallback(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{})

	r.Subscribe("src", func(n, _ any) { c.Set("mirror", n) })
	c.Set("src", 7)
	if v, _ := c.Get("mirror"); v != 7 {
		t.Fatalf("mirror=%v", v)
	}
}

func TestTypedSubscribe(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	c := r.GetOrCreateCache("m", Settings{})

	var last, prev int
	calls := 0
	Subscribe(r, "k", func(n, o int) { last, prev = n, o; calls++ })
	c.Set("k", 1)
	c.Set("k", "not an int")
	c.Set("k", 2)
	if calls != 2 || last != 2 || prev != 0 {
		t.Fatalf("calls=%d last=%d prev=%d", calls, last, prev)
	}
}

func TestCustomEqual(t *testing.T) {
	clk := clock.NewMock()
	r := NewRegistry(Options{Clock: clk, Equal: func(a, b any) bool { return true }})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	c := r.GetOrCreateCache("m", Settings{})

	n := 0
	r.Subscribe("k", func(any, any) { n++ })
	c.Set("k", 1)
	c.Set("k", 2)
	if n != 1 {
		t.Fatalf("equal func ignored: notifications=%d", n)
	}
}

func TestLogHooksNilLogger(t *testing.T) {
	h := LogHooks{}
	h.BackgroundRefreshFailed("c", "k", errors.New("x"))
	h.SubscriberFailed("k", errors.New("x"))
	h.EntriesSwept("c", 1)
	h.ApplyTargetFailed("t", errors.New("x"))
}
