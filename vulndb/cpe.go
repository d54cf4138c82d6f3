package vulndb

import (
	"fmt"
	"strings"

	"github.com/pwnarch/cvewatch/database/models"
)

// cpe:2.3:part:vendor:product:version:update:edition:language:sw_edition:target_sw:target_hw:other
const (
	cpeVendorIndex  = 3
	cpeProductIndex = 4
	cpeVersionIndex = 5
)

// ParseCPE extracts vendor, product and version from a CPE 2.3 string by
// fixed field position. Fields beyond the end of a short string fall back
// to "unknown"; wildcards are kept as-is.
func ParseCPE(cveID, rawCPE string) models.ProductMapping {
	parts := strings.Split(rawCPE, ":")

	field := func(idx int) string {
		if idx < len(parts) && parts[idx] != "" {
			return parts[idx]
		}
		return "unknown"
	}

	return models.ProductMapping{
		CVEID:   cveID,
		RawCPE:  rawCPE,
		Vendor:  field(cpeVendorIndex),
		Product: field(cpeProductIndex),
		Version: field(cpeVersionIndex),
	}
}

// SyntheticCPE converts a scraped product name into a CPE-shaped string so
// the downstream parser can treat structured and scraped product data
// uniformly.
func SyntheticCPE(vendorName, productName string) string {
	clean := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
	}
	return fmt.Sprintf("cpe:2.3:a:%s:%s:*:*:*:*:*:*:*:*", clean(vendorName), clean(productName))
}
