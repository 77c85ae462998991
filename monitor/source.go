package monitor

import (
	"context"
	"net/url"

	"github.com/unkn0wn-root/freshness/client"
)

// Source loads authoritative activity data.
type Source interface {
	CourseActivity(ctx context.Context, courseID string, students []string) (CourseActivity, error)
}

// HTTPSource reads activity from the monitoring API.
type HTTPSource struct {
	C *client.Client
}

var _ Source = HTTPSource{}

func (s HTTPSource) CourseActivity(ctx context.Context, courseID string, students []string) (CourseActivity, error) {
	q := url.Values{}
	for _, st := range students {
		q.Add("student", st)
	}
	return client.Get[CourseActivity](ctx, s.C, "/api/courses/"+url.PathEscape(courseID)+"/activity", q)
}
