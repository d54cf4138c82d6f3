package vulndb

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/utils"
)

var csvHeader = []string{
	"cve", "vendor_id", "date_published", "date_last_modified", "description",
	"source_flags", "cvss_v31_base_score", "cvss_v31_severity", "epss",
	"is_kev", "cwe_list", "product_list",
}

// ExportCSV writes the flat rows of a vendor as CSV, one line per CVE with
// the aggregated weakness and product lists kept as their joined strings.
func ExportCSV(w io.Writer, rows []models.FlatCVE) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.CVE,
			utils.SafeDereference(row.VendorID),
			formatTime(row.DatePublished),
			formatTime(row.DateLastModified),
			row.Description,
			row.SourceFlags,
			formatScore(row.CVSSV31Score),
			row.CVSSV31Severity,
			formatScore(row.EPSS),
			strconv.FormatBool(row.IsKEV),
			row.CWEList,
			row.ProductList,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(utils.DateOnlyFormat)
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}
