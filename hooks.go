package freshness

// Hooks lightweight callbacks for failures that never reach a caller.
// Implementations MUST be cheap and non-blocking; they run on refresh,
// notification and sweep paths.
type Hooks interface {
	// A background refresh of a stale entry failed. The stale value stays in place.
	BackgroundRefreshFailed(cache, key string, err error)

	// A subscriber panicked while being notified of a change to key.
	SubscriberFailed(key string, err error)

	// The sweep removed n entries from cache.
	EntriesSwept(cache string, n int)

	// Applying a synchronized range to a linked chart failed.
	ApplyTargetFailed(targetID string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BackgroundRefreshFailed(string, string, error) {}
func (NopHooks) SubscriberFailed(string, error)                {}
func (NopHooks) EntriesSwept(string, int)                      {}
func (NopHooks) ApplyTargetFailed(string, error)               {}

// LogHooks routes hook events to a Logger.
type LogHooks struct{ Log Logger }

var _ Hooks = LogHooks{}

func (h LogHooks) BackgroundRefreshFailed(cache, key string, err error) {
	h.logger().Warn("background refresh failed", Fields{"cache": cache, "key": key, "err": err})
}

func (h LogHooks) SubscriberFailed(key string, err error) {
	h.logger().Error("subscriber failed", Fields{"key": key, "err": err})
}

func (h LogHooks) EntriesSwept(cache string, n int) {
	h.logger().Debug("entries swept", Fields{"cache": cache, "removed": n})
}

func (h LogHooks) ApplyTargetFailed(targetID string, err error) {
	h.logger().Warn("apply range failed", Fields{"target": targetID, "err": err})
}

func (h LogHooks) logger() Logger {
	if h.Log == nil {
		return NopLogger{}
	}
	return h.Log
}
