package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <vendor-id> <vendor-name>",
		Short: "Ingest a vendor's CVE catalog from the directory pages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updateOnly, _ := cmd.Flags().GetBool("update")

			app, err := newApp()
			if err != nil {
				return err
			}

			saved, err := app.ingestService.BuildVendor(cmd.Context(), args[0], args[1], updateOnly)
			if err != nil {
				return err
			}

			slog.Info("build complete", "vendor", args[1], "saved", saved)
			return nil
		},
	}

	cmd.Flags().Bool("update", false, "only fetch CVEs not already stored for this vendor")
	return cmd
}
