package freshness

import (
	"errors"
	"fmt"
)

// ErrValueType is returned by Fetch when the cached value for a key is not of
// the requested type (two call sites sharing a key with different types).
var ErrValueType = errors.New("freshness: cached value has unexpected type")

// errFlightDetached is never observed by callers: a joined flight is always
// still registered with singleflight when DoChan is called.
var errFlightDetached = errors.New("freshness: flight detached")

// ProducerError wraps a producer failure seen by a blocking caller.
type ProducerError struct {
	Cache string
	Key   string
	Err   error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("fetch %q (cache %q): %v", e.Key, e.Cache, e.Err)
}

func (e *ProducerError) Unwrap() error { return e.Err }

// panicError converts a recovered panic value into an error.
func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}
