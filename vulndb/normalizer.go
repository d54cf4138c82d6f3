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
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	gocvss31 "github.com/pandatix/go-cvss/31"

	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/utils"
)

// CanonicalRecord is one reconciled CVE ready for storage: the scalar row
// plus the association rows that replace whatever a previous save wrote.
type CanonicalRecord struct {
	CVE        models.CVE
	Weaknesses []models.Weakness
	References []models.Reference
	Products   []models.ProductMapping
}

// Normalize merges an NVD payload and a CVE-list-v5 payload into one
// canonical record. NVD is the primary source; v5 only fills gaps - except
// for CWEs and references, which are unioned in first-appearance order.
// CVSS metrics are taken from NVD alone, v5 is never a CVSS fallback.
// Either payload may be nil.
func Normalize(cveID string, nvdPayload, v5Payload []byte) CanonicalRecord {
	record := CanonicalRecord{
		CVE: models.CVE{CVE: cveID},
	}

	var sources []string
	var cweIDs []string
	var referenceURLs []string
	var cpes []string

	if nvdPayload != nil {
		nvd, err := parseNVDPayload(nvdPayload)
		if err != nil {
			slog.Warn("could not parse cached NVD payload", "cve", cveID, "err", err)
		} else {
			sources = append(sources, sourceNVD)
			applyNVD(&record.CVE, nvd, &cweIDs, &referenceURLs, &cpes)
		}
	}

	if v5Payload != nil {
		var v5 cvelistCVE
		if err := json.Unmarshal(v5Payload, &v5); err != nil {
			slog.Warn("could not parse cached cvelist payload", "cve", cveID, "err", err)
		} else {
			sources = append(sources, sourceV5)
			applyV5(&record.CVE, &v5, &cweIDs, &referenceURLs)
		}
	}

	record.CVE.SourceFlags = strings.Join(sources, ",")

	record.Weaknesses = utils.Map(utils.Uniq(cweIDs), func(cwe string) models.Weakness {
		return models.Weakness{CVEID: cveID, CWEID: cwe}
	})
	record.References = utils.Map(utils.Uniq(referenceURLs), func(u string) models.Reference {
		return models.Reference{CVEID: cveID, URL: u}
	})
	record.Products = utils.Map(utils.Uniq(cpes), func(cpe string) models.ProductMapping {
		return ParseCPE(cveID, cpe)
	})

	return record
}

func applyNVD(cve *models.CVE, nvd *nvdCVE, cweIDs, referenceURLs, cpes *[]string) {
	cve.DatePublished = parseUpstreamTime(nvd.Published)
	cve.DateLastModified = parseUpstreamTime(nvd.LastModified)

	for _, d := range nvd.Descriptions {
		if d.Lang == "en" {
			cve.Description = d.Value
			break
		}
	}

	if len(nvd.Metrics.CvssMetricV31) > 0 {
		data := nvd.Metrics.CvssMetricV31[0].CvssData
		score := data.BaseScore
		if score == 0 && data.VectorString != "" {
			// some mirrored payloads carry only the vector
			if vec, err := gocvss31.ParseVector(data.VectorString); err == nil {
				score = vec.BaseScore()
			}
		}
		cve.CVSSV31Score = utils.Ptr(score)
		cve.CVSSV31Vector = data.VectorString
		cve.CVSSV31Severity = data.BaseSeverity
		if cve.CVSSV31Severity == "" {
			cve.CVSSV31Severity = string(DeriveSeverity(score))
		}
	}

	if len(nvd.Metrics.CvssMetricV40) > 0 {
		data := nvd.Metrics.CvssMetricV40[0].CvssData
		cve.CVSSV4Score = utils.Ptr(data.BaseScore)
		cve.CVSSV4Vector = data.VectorString
		cve.CVSSV4Severity = data.BaseSeverity
		if cve.CVSSV4Severity == "" {
			cve.CVSSV4Severity = string(DeriveSeverity(data.BaseScore))
		}
	}

	for _, w := range nvd.Weaknesses {
		for _, d := range w.Description {
			// NVD also lists non-CWE weakness sources, skip those
			if d.Lang == "en" && strings.HasPrefix(d.Value, "CWE-") {
				*cweIDs = append(*cweIDs, d.Value)
			}
		}
	}

	for _, ref := range nvd.References {
		if ref.URL != "" {
			*referenceURLs = append(*referenceURLs, ref.URL)
		}
	}

	for _, config := range nvd.Configurations {
		for _, node := range config.Nodes {
			for _, match := range node.CpeMatch {
				if match.Criteria != "" {
					*cpes = append(*cpes, match.Criteria)
				}
			}
		}
	}
}

func applyV5(cve *models.CVE, v5 *cvelistCVE, cweIDs, referenceURLs *[]string) {
	cna := v5.Containers.Cna

	if cve.DatePublished == nil {
		cve.DatePublished = parseUpstreamTime(v5.CveMetadata.DatePublished)
	}
	if cve.DateLastModified == nil {
		cve.DateLastModified = parseUpstreamTime(v5.CveMetadata.DateUpdated)
	}

	if cve.Description == "" {
		for _, d := range cna.Descriptions {
			if d.Lang == "en" {
				cve.Description = d.Value
				break
			}
		}
	}

	for _, ref := range cna.References {
		if ref.URL != "" {
			*referenceURLs = append(*referenceURLs, ref.URL)
		}
	}

	for _, problem := range cna.ProblemTypes {
		for _, d := range problem.Descriptions {
			val := d.CweID
			if val == "" {
				val = d.Description
			}
			// sometimes free text, sometimes a CWE id
			if strings.HasPrefix(val, "CWE") {
				*cweIDs = append(*cweIDs, val)
			}
		}
	}
}

var upstreamTimeLayouts = []string{
	utils.ISO8601Format,
	time.RFC3339,
	"2006-01-02T15:04:05",
	utils.DateOnlyFormat,
}

func parseUpstreamTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range upstreamTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	slog.Debug("could not parse upstream timestamp", "value", value)
	return nil
}
