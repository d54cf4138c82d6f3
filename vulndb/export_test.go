package vulndb

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/utils"
)

func TestExportCSV(t *testing.T) {
	t.Run("should write one line per row plus a header", func(t *testing.T) {
		published := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		rows := []models.FlatCVE{
			{
				CVE:             "CVE-2024-0001",
				VendorID:        utils.Ptr("42"),
				DatePublished:   &published,
				Description:     "contains, a comma",
				SourceFlags:     "nvd",
				CVSSV31Score:    utils.Ptr(9.8),
				CVSSV31Severity: "CRITICAL",
				IsKEV:           true,
				CWEList:         "CWE-89",
				ProductList:     "widget",
			},
			{CVE: "CVE-2024-0002"},
		}

		var buf bytes.Buffer
		assert.NoError(t, ExportCSV(&buf, rows))

		records, err := csv.NewReader(&buf).ReadAll()
		assert.NoError(t, err)
		assert.Len(t, records, 3)
		assert.Equal(t, csvHeader, records[0])
		assert.Equal(t, "CVE-2024-0001", records[1][0])
		assert.Equal(t, "2024-02-01", records[1][2])
		assert.Equal(t, "contains, a comma", records[1][4])
		assert.Equal(t, "true", records[1][9])

		// nil pointers degrade to empty cells
		assert.Equal(t, "", records[2][1])
		assert.Equal(t, "", records[2][6])
	})
}
