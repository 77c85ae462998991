package genstore

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestLocalSnapshotZeroForMissingAndBumpIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(clock.NewMock(), 0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if g, _ := s.Snapshot(ctx, "a"); g != 0 {
		t.Fatalf("missing key gen=%d want 0", g)
	}
	// bump b twice -> gen=2
	for i := 0; i < 2; i++ {
		if _, err := s.Bump(ctx, "b"); err != nil {
			t.Fatal(err)
		}
	}
	g, err := s.Snapshot(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if g != 2 {
		t.Fatalf("gen=%d want 2", g)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	s := NewLocalGenStore(clk, 0, time.Second) // no loop
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	clk.Add(1200 * time.Millisecond)
	if _, err := s.Bump(ctx, "recent"); err != nil {
		t.Fatal(err)
	}
	s.Cleanup(time.Second)

	if g, _ := s.Snapshot(ctx, "old"); g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
	if g, _ := s.Snapshot(ctx, "recent"); g != 1 {
		t.Fatalf("recent gen=%d want 1", g)
	}
	if s.Len() != 1 {
		t.Fatalf("len=%d want 1", s.Len())
	}
}

func TestLocalCleanupSparesKeptKeys(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	busy := map[string]bool{"busy": true}
	s := NewLocalGenStore(clk, 0, time.Second, KeepWhile(func(k string) bool { return busy[k] }))
	t.Cleanup(func() { _ = s.Close(ctx) })

	for _, k := range []string{"busy", "idle"} {
		if _, err := s.Bump(ctx, k); err != nil {
			t.Fatal(err)
		}
	}
	clk.Add(2 * time.Second)
	s.Cleanup(time.Second)

	if g, _ := s.Snapshot(ctx, "busy"); g != 1 {
		t.Fatalf("kept key gen=%d want 1", g)
	}
	if g, _ := s.Snapshot(ctx, "idle"); g != 0 {
		t.Fatalf("idle key gen=%d want 0 (pruned)", g)
	}

	delete(busy, "busy")
	s.Cleanup(time.Second)
	if s.Len() != 0 {
		t.Fatalf("len=%d want 0 once released", s.Len())
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	s := NewLocalGenStore(clock.NewMock(), time.Minute, time.Hour)
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}
