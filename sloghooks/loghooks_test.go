package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestKeysAreRedacted(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})

	h.BackgroundRefreshFailed("monitoringData", "course:42:secret", errors.New("503"))
	out := buf.String()
	assert.Contains(t, out, "freshness.background_refresh_failed")
	assert.Contains(t, out, "cache=monitoringData")
	assert.NotContains(t, out, "secret")
}

func TestCustomRedact(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{Redact: strings.ToUpper})
	h.SubscriberFailed("k", errors.New("panic"))
	assert.Contains(t, buf.String(), "key=K")
}

func TestSweepSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{SweepEvery: 3})
	for i := 0; i < 6; i++ {
		h.EntriesSwept("m", 1)
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "freshness.entries_swept"))
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.ApplyTargetFailed("t", errors.New("x"))
	h.EntriesSwept("m", 1)
}
