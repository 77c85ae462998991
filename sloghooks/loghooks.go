// Package sloghooks logs freshness hook events with log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/freshness"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RefreshFailEvery uint64
	SweepEvery       uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	refreshFailCtr atomic.Uint64
	sweepCtr       atomic.Uint64
}

var _ freshness.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BackgroundRefreshFailed(cache, key string, err error) {
	if h.l == nil || !sample(h.opts.RefreshFailEvery, &h.refreshFailCtr) {
		return
	}
	h.l.Warn("freshness.background_refresh_failed",
		"cache", cache,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) SubscriberFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("freshness.subscriber_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) EntriesSwept(cache string, n int) {
	if h.l == nil || !sample(h.opts.SweepEvery, &h.sweepCtr) {
		return
	}
	h.l.Debug("freshness.entries_swept",
		"cache", cache,
		"removed", n)
}

func (h *Hooks) ApplyTargetFailed(targetID string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("freshness.apply_target_failed",
		"target", targetID,
		"err", err)
}
