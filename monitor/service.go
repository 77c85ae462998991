package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/unkn0wn-root/freshness"
	"github.com/unkn0wn-root/freshness/internal/util"
)

// CacheName is the cache holding course activity.
const CacheName = "monitoringData"

const (
	defaultExpiry       = freshness.DefaultExpiry
	defaultPollInterval = 30 * time.Second
)

var ErrNoCourse = errors.New("monitor: course id required")

type ServiceOptions struct {
	Expiry time.Duration    // 0 => 5m
	Logger freshness.Logger // nil => NopLogger
	Clock  clock.Clock      // nil => wall clock; used by Poll
}

type Service struct {
	co     *freshness.Coordinator
	src    Source
	expiry time.Duration
	log    freshness.Logger
	clock  clock.Clock
}

// NewService reads course activity from src through co.
func NewService(co *freshness.Coordinator, src Source, opts ServiceOptions) *Service {
	s := &Service{co: co, src: src, expiry: defaultExpiry, log: freshness.NopLogger{}, clock: clock.New()}
	if opts.Expiry > 0 {
		s.expiry = opts.Expiry
	}
	if opts.Logger != nil {
		s.log = opts.Logger
	}
	if opts.Clock != nil {
		s.clock = opts.Clock
	}
	return s
}

// Key is the cache key for a course and student filter. Filter order does not matter.
func Key(courseID string, students []string) string {
	return util.Key("course", courseID, util.SetKey("students", students))
}

// CourseActivity returns activity for courseID, optionally restricted to students.
func (s *Service) CourseActivity(ctx context.Context, courseID string, students ...string) (CourseActivity, error) {
	if courseID == "" {
		return CourseActivity{}, ErrNoCourse
	}
	return freshness.Fetch(ctx, s.co, Key(courseID, students), CacheName, s.expiry,
		func(ctx context.Context) (CourseActivity, error) {
			return s.src.CourseActivity(ctx, courseID, students)
		})
}

// Watch calls fn whenever the cached activity for the course and filter changes.
// prev is the zero value on the first load.
func (s *Service) Watch(courseID string, students []string, fn func(cur, prev CourseActivity)) (unsubscribe func()) {
	return freshness.Subscribe(s.co.Registry(), Key(courseID, students), fn)
}

// Invalidate drops cached activity so the next read goes to the source.
func (s *Service) Invalidate(courseID string, students ...string) {
	s.co.Invalidate(Key(courseID, students), CacheName)
}

// Poll reads the course every interval until ctx ends. Reads of stale data
// trigger background refreshes, which reach watchers through Watch.
// Failures are logged and polling continues.
func (s *Service) Poll(ctx context.Context, courseID string, students []string, interval time.Duration) error {
	if courseID == "" {
		return ErrNoCourse
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.CourseActivity(ctx, courseID, students...); err != nil && ctx.Err() == nil {
			s.log.Warn("activity poll failed", freshness.Fields{"course": courseID, "err": err})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
