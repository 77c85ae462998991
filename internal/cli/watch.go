package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/freshness"
	"github.com/unkn0wn-root/freshness/chartsync"
	"github.com/unkn0wn-root/freshness/monitor"
)

func newWatchCmd(env func() *environment) *cobra.Command {
	var courses []string
	var students []string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll courses and print activity changes until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := env()
			if interval <= 0 {
				interval = e.cfg.PollInterval
			}
			out := &lockedWriter{w: cmd.OutOrStdout()}

			g, ctx := errgroup.WithContext(cmd.Context())
			for _, course := range courses {
				tl := courseTimeline(e.bus, course, out)
				defer tl.Close()

				unsub := e.svc.Watch(course, students, func(cur, prev monitor.CourseActivity) {
					printChange(out, course, cur, prev)
					if span, ok := cur.Span(); ok {
						tl.Follow(span)
					}
				})
				defer unsub()
				g.Go(func() error {
					return e.svc.Poll(ctx, course, students, interval)
				})
			}
			err := g.Wait()

			st := e.co.Stats()
			e.log.Info("watch stopped", freshness.Fields{
				"hits":             st.Hits,
				"stale_hits":       st.StaleHits,
				"misses":           st.Misses,
				"refresh_failures": st.RefreshFailures,
			})
			return err
		},
	}

	cmd.Flags().StringSliceVar(&courses, "course", nil, "course id (repeatable)")
	cmd.Flags().StringSliceVar(&students, "student", nil, "restrict to student ids (repeatable)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func printChange(w io.Writer, course string, cur, prev monitor.CourseActivity) {
	now, before := cur.Totals(), prev.Totals()
	fmt.Fprintf(w, "course=%s students=%d commits=%d (%+d) additions=%d (%+d) deletions=%d (%+d)\n",
		course, len(cur.Students),
		now.Commits, now.Commits-before.Commits,
		now.Additions, now.Additions-before.Additions,
		now.Deletions, now.Deletions-before.Deletions)
}

// timeline links the activity chart of a course to its summary window, so a
// new activity span is reported once it has settled.
type timeline struct {
	link *chartsync.Link
	view *chartsync.View
}

func courseTimeline(bus *chartsync.Bus, course string, out io.Writer) *timeline {
	link := chartsync.NewLink(bus)
	view := chartsync.NewView(course+"/activity", chartsync.Range{Min: 0, Max: 1})
	link.AttachView(view)
	link.Attach(course+"/window", chartsync.TargetFunc(func(r chartsync.Range) error {
		_, err := fmt.Fprintf(out, "course=%s window=%s\n", course, r)
		return err
	}))
	return &timeline{link: link, view: view}
}

// Follow moves the activity chart to span as a user pan would.
func (t *timeline) Follow(span chartsync.Range) {
	if span != t.view.Range() {
		t.view.Interact(span)
	}
}

func (t *timeline) Close() { t.link.Close() }

// lockedWriter serializes writes from concurrent watchers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
