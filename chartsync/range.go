package chartsync

import (
	"fmt"
	"math"
)

// Range is a visible x-axis interval.
type Range struct {
	Min float64
	Max float64
}

// Valid reports whether r can be propagated: both bounds are numbers and the
// interval is not empty.
func (r Range) Valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) && r.Min != r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// RangeUpdate records which chart produced the range being propagated.
type RangeUpdate struct {
	SourceID string
	Range    Range
}
