package vulndb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCPE(t *testing.T) {
	t.Run("should extract vendor, product and version by position", func(t *testing.T) {
		mapping := ParseCPE("CVE-2024-0001", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")

		assert.Equal(t, "CVE-2024-0001", mapping.CVEID)
		assert.Equal(t, "acme", mapping.Vendor)
		assert.Equal(t, "widget", mapping.Product)
		assert.Equal(t, "1.0", mapping.Version)
	})

	t.Run("should fall back to unknown for missing fields", func(t *testing.T) {
		mapping := ParseCPE("CVE-2024-0001", "cpe:2.3:a")

		assert.Equal(t, "unknown", mapping.Vendor)
		assert.Equal(t, "unknown", mapping.Product)
		assert.Equal(t, "unknown", mapping.Version)
	})

	t.Run("should keep wildcards as-is", func(t *testing.T) {
		mapping := ParseCPE("CVE-2024-0001", "cpe:2.3:a:acme:widget:*:*:*:*:*:*:*:*")
		assert.Equal(t, "*", mapping.Version)
	})
}

func TestSyntheticCPE(t *testing.T) {
	t.Run("should shape a scraped product name like a CPE string", func(t *testing.T) {
		cpe := SyntheticCPE("Acme Corp", "Road Runner Trap")
		assert.Equal(t, "cpe:2.3:a:acme_corp:road_runner_trap:*:*:*:*:*:*:*:*", cpe)
	})

	t.Run("should round-trip through the parser", func(t *testing.T) {
		mapping := ParseCPE("CVE-2024-0001", SyntheticCPE("", "Iphone Os"))
		assert.Equal(t, "unknown", mapping.Vendor)
		assert.Equal(t, "iphone_os", mapping.Product)
		assert.Equal(t, "*", mapping.Version)
	})
}
