package monitor

import (
	"math"
	"time"

	"github.com/unkn0wn-root/freshness/chartsync"
)

// ActivityPoint is one bucket of a student's repository activity.
type ActivityPoint struct {
	At        time.Time `json:"at"`
	Commits   int       `json:"commits"`
	Additions int       `json:"additions"`
	Deletions int       `json:"deletions"`
}

type StudentActivity struct {
	StudentID string          `json:"student_id"`
	Name      string          `json:"name"`
	Points    []ActivityPoint `json:"points"`
}

// CourseActivity is the payload cached per course and student filter.
type CourseActivity struct {
	CourseID string            `json:"course_id"`
	Students []StudentActivity `json:"students"`
}

type Totals struct {
	Commits   int `json:"commits"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

func (c CourseActivity) Totals() Totals {
	var t Totals
	for _, s := range c.Students {
		for _, p := range s.Points {
			t.Commits += p.Commits
			t.Additions += p.Additions
			t.Deletions += p.Deletions
		}
	}
	return t
}

// Span returns the time range covered by the activity as unix seconds,
// suitable as the initial range of linked charts. ok is false when there are
// fewer than two distinct timestamps.
func (c CourseActivity) Span() (r chartsync.Range, ok bool) {
	r = chartsync.Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, s := range c.Students {
		for _, p := range s.Points {
			x := float64(p.At.Unix())
			r.Min = math.Min(r.Min, x)
			r.Max = math.Max(r.Max, x)
		}
	}
	if math.IsInf(r.Min, 0) || !r.Valid() {
		return chartsync.Range{}, false
	}
	return r, true
}
