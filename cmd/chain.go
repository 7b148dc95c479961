package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/reprice/internal/export"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Compare-at chain corrections",
	Long: "Rebuild compare-at prices across chain-style variant groups so every variant keeps " +
		"the baseline's gap between price and compare-at price.",
}

// -- chain preview --

var chainPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the compare-at corrections for qualifying products",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRunner(ctx, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := env.Runner.PreviewChain(ctx)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if err := exportTable(out, export.ChainTable(rows)); err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSONOut(os.Stdout, rows)
		}
		formatChainRows(os.Stdout, rows)
		return nil
	},
}

// -- chain backup --

var chainBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the variants of qualifying products",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRunner(ctx, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Runner.BackupChain(ctx)
		if err != nil {
			return err
		}
		return writeJSONOut(os.Stdout, res)
	},
}

// -- chain apply --

var chainApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply compare-at corrections to qualifying products",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRunner(ctx, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		backupID, _ := cmd.Flags().GetString("backup")
		res, err := env.Runner.ApplyChain(ctx, backupID)
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
	chainPreviewCmd.Flags().String("out", "", "also write the preview to a .csv or .xlsx file")
	chainPreviewCmd.Flags().Bool("json", false, "print rows as JSON")
	chainApplyCmd.Flags().String("backup", "", "chain backup id taken for this change (required)")
	chainApplyCmd.Flags().Bool("json", false, "print the result as JSON")

	chainCmd.AddCommand(chainPreviewCmd)
	chainCmd.AddCommand(chainBackupCmd)
	chainCmd.AddCommand(chainApplyCmd)
	rootCmd.AddCommand(chainCmd)
}
