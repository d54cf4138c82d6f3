package commands

import (
	"bufio"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import CVEs by identifier from NVD and the cvelist corpus",
		Long: `Reads one CVE identifier per line from --input and ingests each from the
structured sources. With --scrape, the CVEDetails page of each CVE is also
fetched and its affected products merged in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			scrape, _ := cmd.Flags().GetBool("scrape")

			cveIDs, err := readCVEIDs(inputPath)
			if err != nil {
				return err
			}
			if len(cveIDs) == 0 {
				slog.Warn("input file contains no CVE identifiers", "path", inputPath)
				return nil
			}

			app, err := newApp()
			if err != nil {
				return err
			}

			var scrapedProducts map[string]map[string]struct{}
			if scrape {
				scrapedProducts = scrapeProducts(cmd, app, cveIDs)
			}

			saved, err := app.ingestService.ImportFromSources(cmd.Context(), cveIDs, scrapedProducts)
			if err != nil {
				return err
			}

			slog.Info("import complete", "requested", len(cveIDs), "saved", saved)
			return nil
		},
	}

	cmd.Flags().String("input", "", "path to a file with one CVE identifier per line")
	cmd.Flags().Bool("scrape", false, "enrich each CVE with affected products scraped from its detail page")
	cmd.MarkFlagRequired("input") // nolint: errcheck
	return cmd
}

func readCVEIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func scrapeProducts(cmd *cobra.Command, app *app, cveIDs []string) map[string]map[string]struct{} {
	scraped := make(map[string]map[string]struct{})

	results := app.detailsService.FetchDetails(cmd.Context(), cveIDs)
	for cveID, result := range results {
		if result.Err != nil {
			continue
		}
		for _, product := range result.Record.AffectedProducts {
			if scraped[cveID] == nil {
				scraped[cveID] = make(map[string]struct{})
			}
			scraped[cveID][product] = struct{}{}
		}
	}
	return scraped
}
