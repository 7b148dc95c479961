package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/reprice/internal/export"
)

var pctCmd = &cobra.Command{
	Use:   "pct",
	Short: "Percentage price changes",
	Long:  "Raise or lower every active variant's price by a percentage, rounding to the nearest 00/90 ending.",
}

// -- pct preview --

var pctPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the prices a percentage change would produce",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRunner(ctx, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		pct, _ := cmd.Flags().GetFloat64("pct")
		rows, err := env.Runner.PreviewPercent(ctx, pct)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if err := exportTable(out, export.PreviewTable(rows)); err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSONOut(os.Stdout, rows)
		}
		formatPreviewRows(os.Stdout, rows)
		return nil
	},
}

// -- pct backup --

var pctBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot every active variant before a percentage change",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRunner(ctx, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		pct, _ := cmd.Flags().GetFloat64("pct")
		res, err := env.Runner.BackupPercent(ctx, pct)
		if err != nil {
			return err
		}
		return writeJSONOut(os.Stdout, res)
	},
}

// -- pct apply --

var pctApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a percentage change to every active variant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRunner(ctx, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		pct, _ := cmd.Flags().GetFloat64("pct")
		backupID, _ := cmd.Flags().GetString("backup")
		res, err := env.Runner.ApplyPercent(ctx, pct, backupID)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSONOut(os.Stdout, res)
		}
		formatRunResult(os.Stdout, res)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pctPreviewCmd, pctBackupCmd, pctApplyCmd} {
		c.Flags().Float64("pct", 0, "percentage change, e.g. 10 or -5")
		_ = c.MarkFlagRequired("pct")
	}
	pctPreviewCmd.Flags().String("out", "", "also write the preview to a .csv or .xlsx file")
	pctPreviewCmd.Flags().Bool("json", false, "print rows as JSON")
	pctApplyCmd.Flags().String("backup", "", "backup id taken for this change (required)")
	pctApplyCmd.Flags().Bool("json", false, "print the result as JSON")

	pctCmd.AddCommand(pctPreviewCmd)
	pctCmd.AddCommand(pctBackupCmd)
	pctCmd.AddCommand(pctApplyCmd)
	rootCmd.AddCommand(pctCmd)
}
