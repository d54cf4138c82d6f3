package vulndb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var cvelistBaseURL = "https://raw.githubusercontent.com/CVEProject/cvelistV5/main/cves"

const (
	cvelistRequestTimeout = 10 * time.Second
	sourceV5              = "v5"
)

// CVEListService fetches single records from the CVE-list-v5 static JSON
// corpus, which is path-addressed by year and a thousands bucket.
type CVEListService struct {
	baseURL    string
	httpClient *http.Client
	cache      *PayloadCache
}

func NewCVEListService(cache *PayloadCache) *CVEListService {
	return &CVEListService{
		baseURL: cvelistBaseURL,
		cache:   cache,
		httpClient: &http.Client{
			Timeout: cvelistRequestTimeout,
		},
	}
}

// bucketPath computes the corpus path for a CVE ID following the
// <year>/<bucket>xxx/<cve-id>.json convention: the bucket is the numeric
// suffix with its last three digits stripped (the first digit for 4-digit
// suffixes). An ID that does not split into exactly three dash-separated
// parts is rejected.
func bucketPath(cveID string) (string, error) {
	parts := strings.Split(cveID, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid CVE ID format: %s", cveID)
	}

	year := parts[1]
	idNum := parts[2]

	var bucket string
	switch {
	case len(idNum) < 4:
		bucket = "0xxx"
	case len(idNum) == 4:
		bucket = idNum[:1] + "xxx"
	default:
		bucket = idNum[:len(idNum)-3] + "xxx"
	}

	return fmt.Sprintf("%s/%s/%s.json", year, bucket, cveID), nil
}

// FetchCVE returns the raw v5 payload for a CVE. A 404 means the record is
// not present and is returned as ErrNotFound without retrying.
func (s *CVEListService) FetchCVE(ctx context.Context, cveID string) ([]byte, error) {
	if payload, ok := s.cache.Get(cveID, sourceV5); ok {
		return payload, nil
	}

	path, err := bucketPath(cveID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not create request before fetching from cvelist")
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch %s from cvelist", cveID)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		slog.Debug("cvelist has no record", "cve", cveID)
		return nil, ErrNotFound
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not fetch from cvelist. Status code: %d", res.StatusCode)
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read cvelist response body")
	}

	if err := s.cache.Put(cveID, sourceV5, payload); err != nil {
		slog.Warn("could not cache cvelist payload", "cve", cveID, "err", err)
	}

	return payload, nil
}

// FetchBatch fetches every given CVE sequentially; failed units are absent
// from the result.
func (s *CVEListService) FetchBatch(ctx context.Context, cveIDs []string) map[string][]byte {
	results := make(map[string][]byte, len(cveIDs))
	for _, cveID := range cveIDs {
		payload, err := s.FetchCVE(ctx, cveID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				slog.Error("could not fetch from cvelist", "cve", cveID, "err", err)
			}
			continue
		}
		results[cveID] = payload
	}
	return results
}
