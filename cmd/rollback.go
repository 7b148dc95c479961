package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <backup-id>",
	Short: "Restore every variant in a backup to its recorded prices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRunner(ctx, "catalog")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Runner.Rollback(ctx, args[0])
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
	rollbackCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(rollbackCmd)
}
