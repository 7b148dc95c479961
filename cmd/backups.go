package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/internal/store"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect stored backups",
}

// -- backups list --

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
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

		mode, _ := cmd.Flags().GetString("mode")
		limit, _ := cmd.Flags().GetInt("limit")

		backups, err := st.ListBackups(ctx, store.BackupFilter{Mode: model.Mode(mode), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "backups list")
		}

		if len(backups) == 0 {
			fmt.Fprintln(os.Stderr, "No backups found.")
			return nil
		}

		formatBackupsList(os.Stdout, backups)
		return nil
	},
}

// -- backups show --

var backupsShowCmd = &cobra.Command{
	Use:   "show <backup-id>",
	Short: "Show a backup and its items",
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

		rec, err := st.GetBackup(ctx, args[0])
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		return writeBackup(os.Stdout, rec, format)
	},
}

func init() {
	backupsListCmd.Flags().String("mode", "", "filter by mode (pct, chain)")
	backupsListCmd.Flags().Int("limit", 50, "max number of backups to display")
	backupsShowCmd.Flags().String("format", "json", "output format (json, yaml)")

	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsShowCmd)
	rootCmd.AddCommand(backupsCmd)
}

// formatBackupsList writes a tabular list of backups to w.
func formatBackupsList(out io.Writer, backups []store.BackupInfo) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tPCT\tITEMS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t---\t-----\t-------")
	for _, b := range backups {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			b.ID,
			b.Mode,
			formatPct(b.Pct),
			b.Items,
			b.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// writeBackup renders a backup record as JSON or YAML.
func writeBackup(out io.Writer, rec *model.BackupRecord, format string) error {
	switch format {
	case "", "json":
		return writeJSONOut(out, rec)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(backupYAML(rec)); err != nil {
			return eris.Wrap(err, "encode backup yaml")
		}
		return enc.Close()
	default:
		return model.NewValidationError("format", "must be json or yaml")
	}
}

type backupItemYAML struct {
	ProductID      int64  `yaml:"product_id"`
	ProductTitle   string `yaml:"product_title"`
	VariantID      int64  `yaml:"variant_id"`
	VariantTitle   string `yaml:"variant_title,omitempty"`
	SKU            string `yaml:"sku,omitempty"`
	Position       *int   `yaml:"position,omitempty"`
	Price          int64  `yaml:"price"`
	CompareAtPrice *int64 `yaml:"compare_at_price"`
}

type backupRecordYAML struct {
	BackupID  string           `yaml:"backupId"`
	Mode      string           `yaml:"mode"`
	CreatedAt string           `yaml:"created_at"`
	Pct       *float64         `yaml:"pct,omitempty"`
	Items     []backupItemYAML `yaml:"items"`
}

func backupYAML(rec *model.BackupRecord) backupRecordYAML {
	doc := backupRecordYAML{
		BackupID:  rec.ID,
		Mode:      string(rec.Mode),
		CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Pct:       rec.Pct,
		Items:     make([]backupItemYAML, 0, len(rec.Items)),
	}
	for _, it := range rec.Items {
		item := backupItemYAML{
			ProductID:    it.ProductID,
			ProductTitle: it.ProductTitle,
			VariantID:    it.VariantID,
			VariantTitle: it.VariantTitle,
			SKU:          it.SKU,
			Position:     it.Position,
			Price:        int64(it.Price),
		}
		if it.CompareAtPrice != nil {
			c := int64(*it.CompareAtPrice)
			item.CompareAtPrice = &c
		}
		doc.Items = append(doc.Items, item)
	}
	return doc
}

func formatPct(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
