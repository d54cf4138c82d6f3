package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func NewKEVCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kev",
		Short: "Flag stored CVEs that appear in the CISA KEV catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			updated, err := app.kevService.MarkExploited(cmd.Context())
			if err != nil {
				return err
			}

			slog.Info("KEV pass complete", "newlyFlagged", updated)
			return nil
		},
	}
}
