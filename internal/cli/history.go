package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/labdesk/internal/journal"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history EXERCISE_ID",
		Short: "List recorded saves for an exercise, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exerciseID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts.cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.journal.List(cmd.Context(), exerciseID, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saves recorded")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tKIND\tROWS\tUPSERTED\tDELETED\tRESULT")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
					e.StartedAt.Local().Format(time.DateTime), e.Kind, len(e.StudentIDs), e.Upserted, e.Deleted, result(e))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultLimit, "maximum entries to print")
	return cmd
}

func result(e journal.Entry) string {
	if e.OK {
		return "ok"
	}
	return "failed: " + strings.TrimSpace(e.Error)
}
