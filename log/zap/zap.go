// Package zap adapts go.uber.org/zap to freshness.Logger.
package zap

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/freshness"
)

var _ freshness.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New wraps l; a nil l logs nothing.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l}
}

func (z Logger) Debug(msg string, f freshness.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f freshness.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f freshness.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f freshness.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f freshness.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
