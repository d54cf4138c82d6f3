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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

var nvdBaseURL = url.URL{
	Scheme: "https",
	Host:   "services.nvd.nist.gov",
	Path:   "/rest/json/cves/2.0",
}

const (
	// NVD allows 50 requests per 30s with an API key, 5 per 30s without.
	nvdDelayWithKey    = 600 * time.Millisecond
	nvdDelayWithoutKey = 6 * time.Second

	nvdRequestTimeout = 60 * time.Second
	sourceNVD         = "nvd"
)

// NVDService fetches single CVE records from the NVD REST API. Responses are
// cached on disk indefinitely; the limiter gate is waited on before every
// network call, never adaptively after one.
type NVDService struct {
	baseURL    url.URL
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *PayloadCache
}

func NewNVDService(apiKey string, cache *PayloadCache) *NVDService {
	delay := nvdDelayWithoutKey
	if apiKey != "" {
		delay = nvdDelayWithKey
	}

	return &NVDService{
		baseURL: nvdBaseURL,
		apiKey:  apiKey,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		httpClient: &http.Client{
			Timeout: nvdRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 3, // only allow 3 concurrent connections to the same host
			},
		},
	}
}

// FetchCVE returns the raw NVD payload for a single CVE. A response without
// any vulnerabilities is reported as ErrNotFound and NOT cached, so a later
// run can pick the record up once NVD publishes it.
func (s *NVDService) FetchCVE(ctx context.Context, cveID string) ([]byte, error) {
	if payload, ok := s.cache.Get(cveID, sourceNVD); ok {
		return payload, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := s.baseURL
	q := u.Query()
	q.Add("cveId", cveID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not create request before fetching from NVD")
	}
	if s.apiKey != "" {
		req.Header.Set("apiKey", s.apiKey)
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch %s from NVD", cveID)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not fetch from NVD. Status code: %d", res.StatusCode)
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read NVD response body")
	}

	var resp nistResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errors.Wrap(err, "could not decode response from NVD")
	}

	if len(resp.Vulnerabilities) == 0 {
		slog.Warn("NVD has no record", "cve", cveID)
		return nil, ErrNotFound
	}

	if err := s.cache.Put(cveID, sourceNVD, payload); err != nil {
		slog.Warn("could not cache NVD payload", "cve", cveID, "err", err)
	}

	return payload, nil
}

// FetchBatch fetches every given CVE sequentially. Failed units are simply
// absent from the result; a subsequent run re-requests them.
func (s *NVDService) FetchBatch(ctx context.Context, cveIDs []string) map[string][]byte {
	results := make(map[string][]byte, len(cveIDs))
	for _, cveID := range cveIDs {
		payload, err := s.FetchCVE(ctx, cveID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				slog.Error("could not fetch from NVD", "cve", cveID, "err", err)
			}
			continue
		}
		results[cveID] = payload
	}
	return results
}

func parseNVDPayload(payload []byte) (*nvdCVE, error) {
	var resp nistResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errors.Wrap(err, "could not parse NVD payload")
	}
	if len(resp.Vulnerabilities) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Vulnerabilities[0].Cve, nil
}
