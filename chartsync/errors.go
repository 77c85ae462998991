package chartsync

import (
	"errors"
	"fmt"
)

// ErrUnknownTarget is returned by an ApplyFunc for a target id it cannot
// resolve. Such targets are skipped without being reported.
var ErrUnknownTarget = errors.New("chartsync: unknown target")

// ApplyTargetError wraps a failure to apply a range to one target.
type ApplyTargetError struct {
	TargetID string
	Range    Range
	Err      error
}

func (e *ApplyTargetError) Error() string {
	return fmt.Sprintf("apply range %s to %q: %v", e.Range, e.TargetID, e.Err)
}

func (e *ApplyTargetError) Unwrap() error { return e.Err }
