package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/freshness/monitor"
)

func newFetchCmd(env func() *environment) *cobra.Command {
	var course string
	var students []string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print course activity once as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			act, err := env().svc.CourseActivity(cmd.Context(), course, students...)
			if err != nil {
				return err
			}
			out := struct {
				monitor.CourseActivity
				Totals monitor.Totals `json:"totals"`
			}{act, act.Totals()}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&course, "course", "", "course id")
	cmd.Flags().StringSliceVar(&students, "student", nil, "restrict to student ids (repeatable)")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}
