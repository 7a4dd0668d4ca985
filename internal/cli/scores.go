package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/labdesk/internal/desk"
	"github.com/mind-engage/labdesk/internal/metrics"
	"github.com/mind-engage/labdesk/internal/scoring"
)

func newScoresCommand(opts *rootOptions) *cobra.Command {
	var courseID int64
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show and edit an exercise's scores",
	}
	cmd.PersistentFlags().Int64Var(&courseID, "course", 0, "lab course id (default: the exercise's own course)")

	var (
		query  string
		asJSON bool
	)
	show := &cobra.Command{
		Use:   "show EXERCISE_ID",
		Short: "Print the score sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, courseID, args[0], func(_ *desk.Desk, sess *scoring.Session) error {
				rows := sess.Search(query)
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(rows)
				}
				printRows(cmd.OutOrStdout(), rows)
				s := sess.Summary()
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d students, %d completed, %d graded, %d pending, %d errors\n",
					s.Total, s.Completed, s.Graded, s.Pending, s.Errors)
				return nil
			})
		},
	}
	show.Flags().StringVarP(&query, "query", "q", "", "filter by index or name")
	show.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")

	set := &cobra.Command{
		Use:   "set EXERCISE_ID INDEX=POINTS...",
		Short: "Set points for students and save",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, courseID, args[0], func(d *desk.Desk, sess *scoring.Session) error {
				for _, kv := range args[1:] {
					index, points, ok := strings.Cut(kv, "=")
					if !ok || index == "" {
						return fmt.Errorf("expected INDEX=POINTS, got %q", kv)
					}
					v, err := sess.ValidateAndUpdate(index, points)
					if err != nil {
						return err
					}
					if !v.Valid {
						return fmt.Errorf("%s: %s", index, v.Error)
					}
				}
				return save(cmd, d, sess)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear EXERCISE_ID INDEX...",
		Short: "Remove students' scores",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, courseID, args[0], func(d *desk.Desk, sess *scoring.Session) error {
				for _, index := range args[1:] {
					if err := sess.ClearScore(index); err != nil {
						return err
					}
				}
				return save(cmd, d, sess)
			})
		},
	}

	var all bool
	apply := &cobra.Command{
		Use:   "apply EXERCISE_ID POINTS [INDEX...]",
		Short: "Give the same points to several students",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) < 3 {
				return fmt.Errorf("name at least one student or pass --all")
			}
			return withSession(cmd, opts, courseID, args[0], func(d *desk.Desk, sess *scoring.Session) error {
				ids := args[2:]
				if all {
					ids = nil
					for _, r := range sess.Rows() {
						ids = append(ids, r.StudentID)
					}
				}
				if err := sess.SelectAll(true, ids); err != nil {
					return err
				}
				report, err := d.Apply(cmd.Context(), sess.ExerciseID(), args[1])
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	apply.Flags().BoolVar(&all, "all", false, "apply to every student on the roster")

	cmd.AddCommand(show, set, clearCmd, apply)
	return cmd
}

// withSession opens a desk session for one exercise, hands it to fn and
// closes it. Nothing unsaved survives the command.
func withSession(cmd *cobra.Command, opts *rootOptions, courseID int64, arg string, fn func(*desk.Desk, *scoring.Session) error) error {
	exerciseID, err := parseID(arg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.newDesk(metrics.NewNop())
	if err != nil {
		return err
	}
	sess, err := d.Open(ctx, courseID, exerciseID)
	if err != nil {
		return err
	}
	defer d.Close(exerciseID)
	return fn(d, sess)
}

func save(cmd *cobra.Command, d *desk.Desk, sess *scoring.Session) error {
	if sess.PendingCount() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to save")
		return nil
	}
	report, err := d.SaveAll(cmd.Context(), sess.ExerciseID())
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid exercise id %q", s)
	}
	return id, nil
}

func printRows(w io.Writer, rows []scoring.Row) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tPOINTS\tSTATUS\tLAST SAVED")
	for _, r := range rows {
		saved := "-"
		if r.LastSaved != nil {
			saved = r.LastSaved.Local().Format(time.DateTime)
		}
		points := r.CorePoints
		if !r.Validation.Valid {
			points += " (" + r.Validation.Error + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.StudentID, r.Student.FullName(), points, r.SaveStatus, saved)
	}
	_ = tw.Flush()
}

func printReport(w io.Writer, r scoring.SaveReport) {
	fmt.Fprintf(w, "saved %d, deleted %d in %s\n", r.Upserted, r.Deleted, r.Duration().Round(time.Millisecond))
}
