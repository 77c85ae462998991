// Package logrus adapts github.com/sirupsen/logrus to freshness.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/freshness"
)

var _ freshness.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l with a component field.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "freshness")}
}

func (l Logger) Debug(msg string, f freshness.Fields) { l.entry(f).Debug(msg) }
func (l Logger) Info(msg string, f freshness.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f freshness.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f freshness.Fields) { l.entry(f).Error(msg) }

func (l Logger) entry(f freshness.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	if err, ok := f["err"].(error); ok {
		rest := make(logrus.Fields, len(f)-1)
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return l.E.WithError(err).WithFields(rest)
	}
	return l.E.WithFields(logrus.Fields(f))
}
