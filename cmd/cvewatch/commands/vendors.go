package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewVendorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "List the vendor directory",
		Long:  "Prints the CVEDetails vendor directory, served from the 7-day local cache unless --refresh forces a fresh crawl.",
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")

			app, err := newApp()
			if err != nil {
				return err
			}

			vendors, err := app.scraper.DiscoverVendors(refresh)
			if err != nil {
				return err
			}

			for _, vendor := range vendors {
				fmt.Printf("%s\t%s\n", vendor.ID, vendor.Name)
			}
			fmt.Printf("%d vendors\n", len(vendors))
			return nil
		},
	}

	cmd.Flags().Bool("refresh", false, "ignore the cached vendor list and crawl the directory again")
	return cmd
}
