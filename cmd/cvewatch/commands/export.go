package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pwnarch/cvewatch/vulndb"
)

func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <vendor-id>",
		Short: "Export a vendor's flat CVE rows as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("csv")

			app, err := newApp()
			if err != nil {
				return err
			}

			rows, err := app.cveRepository.FlatCVEsByVendor(args[0])
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				slog.Warn("no CVEs stored for vendor", "vendor", args[0])
				return nil
			}

			out := os.Stdout
			if outPath != "" {
				out, err = os.Create(outPath)
				if err != nil {
					return err
				}
				defer out.Close()
			}

			if err := vulndb.ExportCSV(out, rows); err != nil {
				return err
			}

			if outPath != "" {
				slog.Info("export complete", "rows", len(rows), "path", outPath)
			}
			return nil
		},
	}

	cmd.Flags().String("csv", "", "write to this file instead of stdout")
	return cmd
}
