// Copyright (C) 2025 pwnarch
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pwnarch/cvewatch/database"
	"github.com/pwnarch/cvewatch/database/repositories"
	"github.com/pwnarch/cvewatch/shared"
	"github.com/pwnarch/cvewatch/vulndb"
)

var rootCmd = &cobra.Command{
	Use:   "cvewatch",
	Short: "Vendor-centric CVE ingestion and tracking",
	Long: `cvewatch builds a local vulnerability database per vendor from the
public sources: the NVD REST API, the CVE-list-v5 corpus, CVEDetails.com
directory pages and the CISA KEV feed. Configuration is read from the
environment (CVEWATCH_DB, CVEWATCH_CACHE_DIR, NVD_API_KEY) or a .env file.`,
	SilenceUsage: true,
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	viper.SetDefault("db", "cvewatch.db")
	viper.SetDefault("cacheDir", ".cvewatch-cache")
	viper.BindEnv("db", "CVEWATCH_DB")             // nolint: errcheck
	viper.BindEnv("cacheDir", "CVEWATCH_CACHE_DIR") // nolint: errcheck
	viper.BindEnv("nvdApiKey", "NVD_API_KEY")      // nolint: errcheck
}

// app bundles everything the commands wire together. Each command builds one
// app, uses it, and lets the process exit.
type app struct {
	db               shared.DB
	cveRepository    shared.CveRepository
	vendorRepository shared.VendorRepository
	scraper          *vulndb.VendorScraper
	detailsService   *vulndb.CVEDetailsService
	kevService       *vulndb.CISAKEVService
	ingestService    *vulndb.IngestService
}

func newApp() (*app, error) {
	db, err := database.NewConnection(viper.GetString("db"))
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, err
	}

	cacheDir := viper.GetString("cacheDir")
	payloadCache, err := vulndb.NewPayloadCache(cacheDir)
	if err != nil {
		return nil, err
	}

	cveRepository := repositories.NewCVERepository(db)
	vendorRepository := repositories.NewVendorRepository(db)

	detailsService := vulndb.NewCVEDetailsService()
	scraper := vulndb.NewVendorScraper(detailsService, cacheDir)

	return &app{
		db:               db,
		cveRepository:    cveRepository,
		vendorRepository: vendorRepository,
		scraper:          scraper,
		detailsService:   detailsService,
		kevService:       vulndb.NewCISAKEVService(cveRepository, cacheDir),
		ingestService: vulndb.NewIngestService(
			vulndb.NewNVDService(viper.GetString("nvdApiKey"), payloadCache),
			vulndb.NewCVEListService(payloadCache),
			detailsService,
			scraper,
			cveRepository,
			vendorRepository,
		),
	}, nil
}
