package commands

import (
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/pwnarch/cvewatch/controllers"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API for the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")

			app, err := newApp()
			if err != nil {
				return err
			}

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Recover())

			controller := controllers.NewVulnDBController(app.cveRepository, app.vendorRepository, app.kevService)
			controller.RegisterRoutes(e)

			slog.Info("serving read API", "port", port)
			return e.Start(fmt.Sprintf(":%d", port))
		},
	}

	cmd.Flags().Int("port", 8080, "listen port")
	return cmd
}
