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
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package shared

import (
	"github.com/pwnarch/cvewatch/database/models"
)

type CveRepository interface {
	// SaveCVE upserts the scalar row and fully replaces the weakness,
	// reference and product associations in one transaction.
	SaveCVE(tx DB, cve *models.CVE, weaknesses []models.Weakness, references []models.Reference, products []models.ProductMapping) error
	// AppendProductMapping only ever inserts. The scraper discovers product
	// associations incrementally across many pages and must not clobber
	// rows written earlier in the same run.
	AppendProductMapping(tx DB, mapping models.ProductMapping) error
	FindByID(id string) (models.CVE, error)
	GetExistingCVEIDs(vendorID *string) (map[string]struct{}, error)
	GetCVEsByVendor(vendorID string) ([]models.CVE, error)
	FlatCVEsByVendor(vendorID string) ([]models.FlatCVE, error)
	UpdateKEVStatus(cveIDs []string) (int64, error)
	UpdateKEVDates(tx DB, cve models.CVE) error
	Transaction(fn func(tx DB) error) error
	GetDB(tx DB) DB
	Begin() DB
}

type VendorRepository interface {
	Upsert(vendor *models.VendorMetadata) error
	All() ([]models.VendorMetadata, error)
	FindByID(id string) (models.VendorMetadata, error)
}

// VendorDiscoverer enumerates the vendor catalog and the CVE/product map of
// a single vendor from the upstream directory pages.
type VendorDiscoverer interface {
	DiscoverVendors(forceRefresh bool) ([]Vendor, error)
	DiscoverVendorCVEs(vendorID, vendorName string) (map[string]map[string]struct{}, error)
}

type Vendor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}
