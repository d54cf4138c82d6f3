package vulndb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"

	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/shared"
)

var CisaKEVURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

const (
	kevCacheFile = "cisa_kev.json"
	kevCacheTTL  = 24 * time.Hour
)

type cisaKEVCatalog struct {
	Title           string     `json:"title"`
	CatalogVersion  string     `json:"catalogVersion"`
	DateReleased    string     `json:"dateReleased"`
	Count           int        `json:"count"`
	Vulnerabilities []KEVEntry `json:"vulnerabilities"`
}

type KEVEntry struct {
	CVEID             string `json:"cveID"`
	VendorProject     string `json:"vendorProject"`
	Product           string `json:"product"`
	VulnerabilityName string `json:"vulnerabilityName"`
	DateAdded         string `json:"dateAdded"`
	ShortDescription  string `json:"shortDescription"`
	RequiredAction    string `json:"requiredAction"`
	DueDate           string `json:"dueDate"`
}

type kevCachePayload struct {
	CachedAt time.Time      `json:"cachedAt"`
	Catalog  cisaKEVCatalog `json:"catalog"`
}

// CISAKEVService loads the CISA Known Exploited Vulnerabilities catalog and
// flags matching rows. The catalog is cached on disk for a day; construct
// one instance and pass it to whoever needs exploitation state.
type CISAKEVService struct {
	cveRepository shared.CveRepository
	httpClient    *http.Client
	cacheDir      string

	catalog *cisaKEVCatalog
	byID    map[string]KEVEntry
}

func NewCISAKEVService(cveRepository shared.CveRepository, cacheDir string) *CISAKEVService {
	return &CISAKEVService{
		cveRepository: cveRepository,
		httpClient:    &http.Client{},
		cacheDir:      cacheDir,
	}
}

// Load makes the catalog available, from the disk cache when fresh enough,
// otherwise from CISA.
func (s *CISAKEVService) Load(ctx context.Context) error {
	if s.catalog != nil {
		return nil
	}

	if catalog, ok := s.readCache(); ok {
		s.index(catalog)
		return nil
	}

	catalog, err := s.fetchCatalog(ctx)
	if err != nil {
		return err
	}
	s.index(catalog)

	if err := s.writeCache(catalog); err != nil {
		slog.Warn("could not persist KEV cache", "err", err)
	}
	return nil
}

func (s *CISAKEVService) index(catalog *cisaKEVCatalog) {
	s.catalog = catalog
	s.byID = make(map[string]KEVEntry, len(catalog.Vulnerabilities))
	for _, entry := range catalog.Vulnerabilities {
		s.byID[entry.CVEID] = entry
	}
}

// CVESet returns the identifiers of every cataloged vulnerability.
func (s *CISAKEVService) CVESet(ctx context.Context) (map[string]struct{}, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(s.byID))
	for cveID := range s.byID {
		set[cveID] = struct{}{}
	}
	return set, nil
}

// Detail returns the catalog entry of a single CVE, if cataloged.
func (s *CISAKEVService) Detail(ctx context.Context, cveID string) (KEVEntry, bool, error) {
	if err := s.Load(ctx); err != nil {
		return KEVEntry{}, false, err
	}
	entry, ok := s.byID[cveID]
	return entry, ok, nil
}

// MarkExploited flips the exploitation flag on every stored CVE the catalog
// names and returns how many rows actually changed. Re-running against an
// unchanged catalog changes nothing and reports zero.
func (s *CISAKEVService) MarkExploited(ctx context.Context) (int64, error) {
	if err := s.Load(ctx); err != nil {
		return 0, err
	}

	cveIDs := make([]string, 0, len(s.byID))
	for cveID := range s.byID {
		cveIDs = append(cveIDs, cveID)
	}

	flipped, err := s.cveRepository.UpdateKEVStatus(cveIDs)
	if err != nil {
		return 0, err
	}

	for _, entry := range s.catalog.Vulnerabilities {
		dateAdded, err := parseKEVDate(entry.DateAdded)
		if err != nil {
			slog.Warn("could not parse dateAdded", "cve", entry.CVEID, "date", entry.DateAdded)
			continue
		}
		dueDate, err := parseKEVDate(entry.DueDate)
		if err != nil {
			slog.Warn("could not parse dueDate", "cve", entry.CVEID, "date", entry.DueDate)
			continue
		}

		err = s.cveRepository.UpdateKEVDates(nil, models.CVE{
			CVE:          entry.CVEID,
			KEVDateAdded: dateAdded,
			KEVDueDate:   dueDate,
		})
		if err != nil {
			slog.Warn("could not update KEV dates", "cve", entry.CVEID, "err", err)
		}
	}

	slog.Info("applied CISA KEV catalog", "cataloged", len(cveIDs), "newlyFlagged", flipped)
	return flipped, nil
}

func (s *CISAKEVService) fetchCatalog(ctx context.Context) (*cisaKEVCatalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, CisaKEVURL, nil)
	if err != nil {
		return nil, err
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not load KEV catalog. Status code: %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	var catalog cisaKEVCatalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("could not parse JSON: %w", err)
	}

	return &catalog, nil
}

func (s *CISAKEVService) readCache() (*cisaKEVCatalog, bool) {
	raw, err := os.ReadFile(filepath.Join(s.cacheDir, kevCacheFile))
	if err != nil {
		return nil, false
	}

	var payload kevCachePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	if time.Since(payload.CachedAt) > kevCacheTTL {
		return nil, false
	}

	return &payload.Catalog, true
}

func (s *CISAKEVService) writeCache(catalog *cisaKEVCatalog) error {
	if err := os.MkdirAll(s.cacheDir, 0750); err != nil {
		return err
	}

	raw, err := json.Marshal(kevCachePayload{CachedAt: time.Now(), Catalog: *catalog})
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(s.cacheDir, kevCacheFile), raw, 0640)
}

func parseKEVDate(dateStr string) (*datatypes.Date, error) {
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, err
	}
	d := datatypes.Date(t)
	return &d, nil
}
