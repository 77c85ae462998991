package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/freshness"
)

func TestWritesAttrsAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))}

	l.Debug("hidden", freshness.Fields{"a": 1})
	assert.Zero(t, buf.Len())

	l.Info("cache created", freshness.Fields{"cache": "m"})
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "cache created", rec["msg"])
	assert.Equal(t, "m", rec["cache"])
	assert.Equal(t, "INFO", rec["level"])
}
