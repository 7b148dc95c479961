package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect apply and rollback run logs",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List run logs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		backupID, _ := cmd.Flags().GetString("backup")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRunLogs(ctx, store.RunFilter{
			Kind:     model.RunKind(kind),
			BackupID: backupID,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run log with every line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		log, err := st.GetRunLog(ctx, args[0])
		if err != nil {
			return err
		}
		return writeJSONOut(os.Stdout, log)
	},
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by kind (pct-apply, chain-apply, rollback)")
	runsListCmd.Flags().String("backup", "", "filter by backup id")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of run logs to w.
func formatRunsList(out io.Writer, runs []model.RunLog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tBACKUP\tUPDATED\tSKIPPED\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t-------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		if r.Cancelled {
			dur += " (cancelled)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.Kind,
			r.BackupID,
			r.Updated,
			r.Skipped,
			r.Errors,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}
