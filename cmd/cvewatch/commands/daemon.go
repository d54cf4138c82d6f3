package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pwnarch/cvewatch/daemons"
)

func NewDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the recurring KEV refresh and vendor update jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			daemon := daemons.NewDaemon(app.kevService, app.ingestService, app.vendorRepository)
			return daemon.Run(ctx)
		},
	}
}
