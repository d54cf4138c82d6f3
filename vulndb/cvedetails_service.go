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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	cvedetailsRequestTimeout = 30 * time.Second
	// polite fixed delay between detail page fetches
	cvedetailsDelay = 500 * time.Millisecond

	maxReferenceURLs    = 10
	maxAffectedProducts = 4

	scraperUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	sourceCVEDetails = "cvedetails"
)

// DetailRecord holds everything extractable from one CVEDetails page. Any
// single field the page does not expose stays at its zero value.
type DetailRecord struct {
	CVEID            string
	Description      string
	CVSSV31Score     *float64
	CVSSV31Severity  string
	CWEID            string
	CWEName          string
	PublishedDate    *time.Time
	EPSSScore        *float64
	References       []string
	AffectedProducts []string
}

// DetailResult wraps a record with the per-CVE error marker: a page level
// failure must not abort the batch, the caller skips errored units.
type DetailResult struct {
	Record DetailRecord
	Err    error
}

// CVEDetailsService extracts structured vulnerability detail from
// CVEDetails.com HTML pages.
type CVEDetailsService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewCVEDetailsService() *CVEDetailsService {
	return &CVEDetailsService{
		baseURL: "https://www.cvedetails.com",
		limiter: rate.NewLimiter(rate.Every(cvedetailsDelay), 1),
		httpClient: &http.Client{
			Timeout: cvedetailsRequestTimeout,
		},
	}
}

var (
	cweHrefRe     = regexp.MustCompile(`/cwe-details/(\d+)/`)
	publishDateRe = regexp.MustCompile(`Publish Date\s*:\s*(\d{4}-\d{2}-\d{2})`)
	epssRe        = regexp.MustCompile(`EPSS\s*(?:Score|Percentile)?\s*:?\s*([\d.]+)%`)
)

// FetchDetails processes the identifiers sequentially in the supplied order,
// logging progress at fixed intervals. A per-CVE failure yields an error
// marker for that identifier only.
func (s *CVEDetailsService) FetchDetails(ctx context.Context, cveIDs []string) map[string]DetailResult {
	results := make(map[string]DetailResult, len(cveIDs))

	for i, cveID := range cveIDs {
		record, err := s.fetchOne(ctx, cveID)
		if err != nil {
			slog.Warn("could not fetch CVE detail page", "cve", cveID, "err", err)
			results[cveID] = DetailResult{Err: err}
		} else {
			results[cveID] = DetailResult{Record: record}
		}

		if (i+1)%10 == 0 {
			slog.Info("detail fetch progress", "done", i+1, "total", len(cveIDs))
		}
	}

	return results
}

func (s *CVEDetailsService) fetchOne(ctx context.Context, cveID string) (DetailRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return DetailRecord{}, err
	}

	pageURL := fmt.Sprintf("%s/cve/%s/", s.baseURL, cveID)
	body, err := s.get(ctx, pageURL)
	if err != nil {
		return DetailRecord{}, err
	}

	return s.extract(cveID, body), nil
}

func (s *CVEDetailsService) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not create request")
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load %s", pageURL)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not load %s. Status code: %d", pageURL, res.StatusCode)
	}

	return io.ReadAll(res.Body)
}

// extract pulls every field independently: a missing DOM region degrades
// that one field to its zero value, never the whole record.
func (s *CVEDetailsService) extract(cveID string, body []byte) DetailRecord {
	record := DetailRecord{CVEID: cveID}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		slog.Warn("could not parse detail page", "cve", cveID, "err", err)
		return record
	}

	record.Description = strings.TrimSpace(doc.Find("div.cvedetailssummary").First().Text())

	// the first parseable score badge is authoritative
	doc.Find("div.cvssbox").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		score, err := strconv.ParseFloat(strings.TrimSpace(sel.Text()), 64)
		if err != nil {
			return true
		}
		record.CVSSV31Score = &score
		record.CVSSV31Severity = string(DeriveSeverity(score))
		return false
	})

	doc.Find("a[href*='/cwe-details/']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		m := cweHrefRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		record.CWEID = "CWE-" + m[1]
		record.CWEName = strings.TrimSpace(sel.Text())
		return false
	})

	content := string(body)
	if m := publishDateRe.FindStringSubmatch(content); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]); err == nil {
			record.PublishedDate = &t
		}
	}
	if m := epssRe.FindStringSubmatch(content); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			record.EPSSScore = &score
		}
	}

	doc.Find("table.listtable a[href^='http']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(record.References) >= maxReferenceURLs {
			return false
		}
		href, ok := sel.Attr("href")
		if ok && !strings.Contains(href, "cvedetails.com") {
			record.References = append(record.References, href)
		}
		return true
	})

	doc.Find("table#vulnprodstable tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true // header row
		}
		if len(record.AffectedProducts) >= maxAffectedProducts {
			return false
		}
		cells := row.Find("td")
		if cells.Length() >= 3 {
			vendor := strings.TrimSpace(cells.Eq(1).Text())
			product := strings.TrimSpace(cells.Eq(2).Text())
			if vendor != "" && product != "" {
				record.AffectedProducts = append(record.AffectedProducts, vendor+" "+product)
			}
		}
		return true
	})

	return record
}
