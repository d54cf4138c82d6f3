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

package vulndb

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/shared"
	"github.com/pwnarch/cvewatch/utils"
)

// scraped detail pages list far more outbound links than are worth keeping
const maxStoredReferences = 5

// IngestService drives the two ingestion pipelines: vendor-directory scraping
// via CVEDetails and structured import from NVD plus the cvelist corpus.
// Everything runs sequentially; the per-source rate gates are the only
// pacing.
type IngestService struct {
	nvdService       *NVDService
	cvelistService   *CVEListService
	detailsService   *CVEDetailsService
	discoverer       shared.VendorDiscoverer
	cveRepository    shared.CveRepository
	vendorRepository shared.VendorRepository
}

func NewIngestService(
	nvdService *NVDService,
	cvelistService *CVEListService,
	detailsService *CVEDetailsService,
	discoverer shared.VendorDiscoverer,
	cveRepository shared.CveRepository,
	vendorRepository shared.VendorRepository,
) *IngestService {
	return &IngestService{
		nvdService:       nvdService,
		cvelistService:   cvelistService,
		detailsService:   detailsService,
		discoverer:       discoverer,
		cveRepository:    cveRepository,
		vendorRepository: vendorRepository,
	}
}

// BuildVendor ingests one vendor's full CVE catalog from the directory
// pages. With updateOnly, identifiers already stored for the vendor are
// subtracted after discovery and only the difference is fetched; an empty
// difference is a no-op success. Returns how many records were saved.
func (s *IngestService) BuildVendor(ctx context.Context, vendorID, vendorName string, updateOnly bool) (int, error) {
	discovered, err := s.discoverer.DiscoverVendorCVEs(vendorID, vendorName)
	if err != nil {
		return 0, err
	}
	if len(discovered) == 0 {
		slog.Info("no CVEs found for vendor", "vendor", vendorName)
		return 0, nil
	}

	cveIDs := utils.Keys(discovered)
	sort.Strings(cveIDs)

	if updateOnly {
		existing, err := s.cveRepository.GetExistingCVEIDs(&vendorID)
		if err != nil {
			return 0, err
		}
		cveIDs = utils.Filter(cveIDs, func(id string) bool {
			_, known := existing[id]
			return !known
		})
		if len(cveIDs) == 0 {
			slog.Info("vendor already up to date", "vendor", vendorName)
			return 0, nil
		}
		slog.Info("incremental update", "vendor", vendorName, "new", len(cveIDs), "known", len(existing))
	}

	results := s.detailsService.FetchDetails(ctx, cveIDs)

	saved := 0
	for _, cveID := range cveIDs {
		result := results[cveID]
		if result.Err != nil {
			continue
		}

		if err := s.saveDetailRecord(vendorID, result.Record, discovered[cveID]); err != nil {
			slog.Error("could not save CVE", "cve", cveID, "err", err)
			continue
		}
		saved++
	}

	productCount := make(map[string]struct{})
	for _, names := range discovered {
		for name := range names {
			productCount[name] = struct{}{}
		}
	}

	// the metadata row carries the total stored count, not just this run's
	// discovery, so incremental updates keep it accurate
	stored, err := s.cveRepository.GetExistingCVEIDs(&vendorID)
	if err != nil {
		return saved, err
	}

	err = s.vendorRepository.Upsert(&models.VendorMetadata{
		VendorID:     vendorID,
		VendorName:   vendorName,
		CVECount:     len(stored),
		ProductCount: len(productCount),
		LastUpdated:  time.Now(),
	})
	if err != nil {
		return saved, err
	}

	slog.Info("vendor build finished", "vendor", vendorName, "saved", saved, "discovered", len(discovered))
	return saved, nil
}

// saveDetailRecord writes one scraped record and its incrementally
// discovered product associations. The structured save and the appends run
// in one transaction so a crash never leaves a CVE without its products.
func (s *IngestService) saveDetailRecord(vendorID string, record DetailRecord, productNames map[string]struct{}) error {
	// detail pages carry no last-modified date, so that column stays null
	// on the scrape path until a structured source fills it
	cve := models.CVE{
		CVE:             record.CVEID,
		VendorID:        utils.EmptyThenNil(vendorID),
		Description:     record.Description,
		SourceFlags:     sourceCVEDetails,
		CVSSV31Score:    record.CVSSV31Score,
		CVSSV31Severity: record.CVSSV31Severity,
		EPSS:            record.EPSSScore,
		DatePublished:   record.PublishedDate,
	}

	var weaknesses []models.Weakness
	if record.CWEID != "" {
		weaknesses = append(weaknesses, models.Weakness{CVEID: record.CVEID, CWEID: record.CWEID})
	}

	references := record.References
	if len(references) > maxStoredReferences {
		references = references[:maxStoredReferences]
	}
	referenceRows := utils.Map(references, func(u string) models.Reference {
		return models.Reference{CVEID: record.CVEID, URL: u}
	})

	names := utils.Keys(productNames)
	sort.Strings(names)

	return s.cveRepository.Transaction(func(tx shared.DB) error {
		if err := s.cveRepository.SaveCVE(tx, &cve, weaknesses, referenceRows, nil); err != nil {
			return err
		}
		for _, name := range names {
			mapping := ParseCPE(record.CVEID, SyntheticCPE("", name))
			if err := s.cveRepository.AppendProductMapping(tx, mapping); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportFromSources ingests a supplied identifier list from the structured
// sources. A CVE absent from both NVD and the cvelist corpus is skipped;
// scraped product names, when provided, are appended as synthetic CPEs so
// the whole product list goes through the same parser. Returns how many
// records were saved.
func (s *IngestService) ImportFromSources(ctx context.Context, cveIDs []string, scrapedProducts map[string]map[string]struct{}) (int, error) {
	nvdPayloads := s.nvdService.FetchBatch(ctx, cveIDs)
	v5Payloads := s.cvelistService.FetchBatch(ctx, cveIDs)

	saved := 0
	for _, cveID := range cveIDs {
		nvdPayload := nvdPayloads[cveID]
		v5Payload := v5Payloads[cveID]

		if nvdPayload == nil && v5Payload == nil {
			slog.Warn("no source has a record, skipping", "cve", cveID)
			continue
		}

		record := Normalize(cveID, nvdPayload, v5Payload)

		names := utils.Keys(scrapedProducts[cveID])
		sort.Strings(names)
		for _, name := range names {
			record.Products = append(record.Products, ParseCPE(cveID, SyntheticCPE("", name)))
		}

		if err := s.cveRepository.SaveCVE(nil, &record.CVE, record.Weaknesses, record.References, record.Products); err != nil {
			slog.Error("could not save CVE", "cve", cveID, "err", err)
			continue
		}
		saved++
	}

	slog.Info("import finished", "requested", len(cveIDs), "saved", saved)
	return saved, nil
}
