package freshness

import "time"

const (
	DefaultExpiry          = 5 * time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultGraceWindow     = 10 * time.Minute

	defaultGenRetention = time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// merge fills zero fields of s from def.
func (s Settings) merge(def Settings) Settings {
	return Settings{
		Expiry:          coalesce(s.Expiry, def.Expiry),
		CleanupInterval: coalesce(s.CleanupInterval, def.CleanupInterval),
		GraceWindow:     coalesce(s.GraceWindow, def.GraceWindow),
	}
}
