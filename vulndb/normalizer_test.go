package vulndb

import (
	"testing"

	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/utils"
	"github.com/stretchr/testify/assert"
)

var nvdFixture = []byte(`{
	"vulnerabilities": [{
		"cve": {
			"id": "CVE-2024-0001",
			"published": "2024-02-01T10:00:00.000",
			"lastModified": "2024-03-01T10:00:00.000",
			"descriptions": [
				{"lang": "es", "value": "descripcion"},
				{"lang": "en", "value": "nvd description"}
			],
			"metrics": {
				"cvssMetricV31": [{
					"cvssData": {
						"baseScore": 9.8,
						"vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"
					}
				}]
			},
			"weaknesses": [
				{"description": [{"lang": "en", "value": "CWE-89"}]},
				{"description": [{"lang": "en", "value": "NVD-CWE-noinfo"}]}
			],
			"references": [
				{"url": "https://example.com/advisory"},
				{"url": "https://example.com/patch"}
			],
			"configurations": [{
				"nodes": [{
					"cpeMatch": [
						{"criteria": "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*"},
						{"criteria": "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*"}
					]
				}]
			}]
		}
	}]
}`)

var v5Fixture = []byte(`{
	"cveMetadata": {
		"cveId": "CVE-2024-0001",
		"datePublished": "2024-01-15T08:00:00.000Z",
		"dateUpdated": "2024-01-20T08:00:00.000Z"
	},
	"containers": {
		"cna": {
			"descriptions": [{"lang": "en", "value": "v5 description"}],
			"metrics": [{"cvssV3_1": {"baseScore": 5.0, "baseSeverity": "MEDIUM"}}],
			"problemTypes": [{
				"descriptions": [
					{"cweId": "CWE-20", "description": "Improper Input Validation"},
					{"description": "CWE-89"},
					{"description": "some free text"}
				]
			}],
			"references": [
				{"url": "https://example.com/advisory"},
				{"url": "https://example.com/vendor-bulletin"}
			]
		}
	}
}`)

func TestNormalize(t *testing.T) {
	t.Run("should prefer the NVD description when both sources supply one", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nvdFixture, v5Fixture)
		assert.Equal(t, "nvd description", record.CVE.Description)
	})

	t.Run("should fall back to the v5 description and dates when NVD is absent", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nil, v5Fixture)
		assert.Equal(t, "v5 description", record.CVE.Description)
		assert.NotNil(t, record.CVE.DatePublished)
		assert.Equal(t, 2024, record.CVE.DatePublished.Year())
	})

	t.Run("should leave the description empty when neither source supplies one", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nil, nil)
		assert.Empty(t, record.CVE.Description)
		assert.Empty(t, record.CVE.SourceFlags)
	})

	t.Run("should derive the severity when NVD supplies a score without a label", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nvdFixture, nil)
		assert.Equal(t, 9.8, utils.SafeDereference(record.CVE.CVSSV31Score))
		assert.Equal(t, string(models.SeverityCritical), record.CVE.CVSSV31Severity)
	})

	t.Run("should never take CVSS metrics from the v5 payload", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nil, v5Fixture)
		assert.Nil(t, record.CVE.CVSSV31Score)
		assert.Empty(t, record.CVE.CVSSV31Severity)
	})

	t.Run("should union CWE ids in first-appearance order and drop non-CWE values", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nvdFixture, v5Fixture)

		cwes := utils.Map(record.Weaknesses, func(w models.Weakness) string { return w.CWEID })
		assert.Equal(t, []string{"CWE-89", "CWE-20"}, cwes)
	})

	t.Run("should union reference URLs with exact-match dedupe, order preserved", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nvdFixture, v5Fixture)

		urls := utils.Map(record.References, func(r models.Reference) string { return r.URL })
		assert.Equal(t, []string{
			"https://example.com/advisory",
			"https://example.com/patch",
			"https://example.com/vendor-bulletin",
		}, urls)
	})

	t.Run("should dedupe CPE criteria and parse them positionally", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nvdFixture, nil)

		assert.Len(t, record.Products, 1)
		assert.Equal(t, "acme", record.Products[0].Vendor)
		assert.Equal(t, "widget", record.Products[0].Product)
		assert.Equal(t, "1.0", record.Products[0].Version)
	})

	t.Run("should record every contributing source", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", nvdFixture, v5Fixture)
		assert.Equal(t, "nvd,v5", record.CVE.SourceFlags)

		record = Normalize("CVE-2024-0001", nvdFixture, nil)
		assert.Equal(t, "nvd", record.CVE.SourceFlags)
	})

	t.Run("should tolerate a garbage payload from one source", func(t *testing.T) {
		record := Normalize("CVE-2024-0001", []byte("{not json"), v5Fixture)
		assert.Equal(t, "v5 description", record.CVE.Description)
		assert.Equal(t, "v5", record.CVE.SourceFlags)
	})
}
