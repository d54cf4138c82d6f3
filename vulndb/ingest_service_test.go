package vulndb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/pwnarch/cvewatch/database"
	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/database/repositories"
	"github.com/pwnarch/cvewatch/shared"
	"github.com/pwnarch/cvewatch/utils"
)

type stubDiscoverer struct {
	cveProducts map[string]map[string]struct{}
}

func (s stubDiscoverer) DiscoverVendors(forceRefresh bool) ([]shared.Vendor, error) {
	return nil, nil
}

func (s stubDiscoverer) DiscoverVendorCVEs(vendorID, vendorName string) (map[string]map[string]struct{}, error) {
	return s.cveProducts, nil
}

func newIngestTestEnv(t *testing.T, detailHandler http.HandlerFunc, discovered map[string]map[string]struct{}) (*IngestService, shared.CveRepository, shared.VendorRepository) {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	assert.NoError(t, err)
	assert.NoError(t, database.RunMigrations(db))

	cveRepository := repositories.NewCVERepository(db)
	vendorRepository := repositories.NewVendorRepository(db)

	cache, err := NewPayloadCache(t.TempDir())
	assert.NoError(t, err)

	nvdSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, string(nvdFixture))
	}))
	t.Cleanup(nvdSrv.Close)
	nvdService := NewNVDService("", cache)
	parsed, _ := url.Parse(nvdSrv.URL)
	nvdService.baseURL = *parsed
	nvdService.limiter = rate.NewLimiter(rate.Inf, 1)

	v5Srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(v5Srv.Close)
	cvelistService := NewCVEListService(cache)
	cvelistService.baseURL = v5Srv.URL

	detailSrv := httptest.NewServer(detailHandler)
	t.Cleanup(detailSrv.Close)
	detailsService := NewCVEDetailsService()
	detailsService.baseURL = detailSrv.URL
	detailsService.limiter = rate.NewLimiter(rate.Inf, 1)

	ingest := NewIngestService(
		nvdService,
		cvelistService,
		detailsService,
		stubDiscoverer{cveProducts: discovered},
		cveRepository,
		vendorRepository,
	)
	return ingest, cveRepository, vendorRepository
}

func TestImportFromSources(t *testing.T) {
	t.Run("should normalize, derive severity and parse configuration CPEs end to end", func(t *testing.T) {
		ingest, cveRepository, _ := newIngestTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, nil)

		saved, err := ingest.ImportFromSources(context.Background(), []string{"CVE-2024-0001"}, nil)
		assert.NoError(t, err)
		assert.Equal(t, 1, saved)

		stored, err := cveRepository.FindByID("CVE-2024-0001")
		assert.NoError(t, err)
		assert.Equal(t, "nvd description", stored.Description)
		assert.Equal(t, "CRITICAL", stored.CVSSV31Severity, "severity is derived from the 9.8 base score")
		assert.Equal(t, 9.8, utils.SafeDereference(stored.CVSSV31Score))

		assert.Len(t, stored.Weaknesses, 1)
		assert.Equal(t, "CWE-89", stored.Weaknesses[0].CWEID)

		assert.Len(t, stored.Products, 1)
		assert.Equal(t, "acme", stored.Products[0].Vendor)
		assert.Equal(t, "widget", stored.Products[0].Product)
		assert.Equal(t, "1.0", stored.Products[0].Version)
	})

	t.Run("should merge scraped product names as synthetic CPEs", func(t *testing.T) {
		ingest, cveRepository, _ := newIngestTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, nil)

		scraped := map[string]map[string]struct{}{
			"CVE-2024-0001": {"Widget Cloud": {}},
		}
		saved, err := ingest.ImportFromSources(context.Background(), []string{"CVE-2024-0001"}, scraped)
		assert.NoError(t, err)
		assert.Equal(t, 1, saved)

		stored, err := cveRepository.FindByID("CVE-2024-0001")
		assert.NoError(t, err)
		assert.Len(t, stored.Products, 2)

		products := utils.Map(stored.Products, func(p models.ProductMapping) string { return p.Product })
		assert.Contains(t, products, "widget")
		assert.Contains(t, products, "widget_cloud")
	})
}

func TestBuildVendor(t *testing.T) {
	detailPage := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, string(detailPageFixture))
	}

	t.Run("should save discovered CVEs with their product associations and vendor metadata", func(t *testing.T) {
		discovered := map[string]map[string]struct{}{
			"CVE-2024-1001": {"P1": {}},
			"CVE-2024-1002": {"P1": {}, "P2": {}},
		}
		ingest, cveRepository, vendorRepository := newIngestTestEnv(t, detailPage, discovered)

		saved, err := ingest.BuildVendor(context.Background(), "42", "Acme", false)
		assert.NoError(t, err)
		assert.Equal(t, 2, saved)

		stored, err := cveRepository.FindByID("CVE-2024-1002")
		assert.NoError(t, err)
		assert.Equal(t, "cvedetails", stored.SourceFlags)
		assert.Equal(t, "42", utils.SafeDereference(stored.VendorID))
		assert.Len(t, stored.Products, 2, "one mapping per discovered product")
		assert.Equal(t, "CRITICAL", stored.CVSSV31Severity)
		assert.Nil(t, stored.DateLastModified, "detail pages carry no last-modified date")

		metadata, err := vendorRepository.FindByID("42")
		assert.NoError(t, err)
		assert.Equal(t, 2, metadata.CVECount)
		assert.Equal(t, 2, metadata.ProductCount)
	})

	t.Run("should only fetch the difference in update-only mode", func(t *testing.T) {
		discovered := map[string]map[string]struct{}{
			"CVE-2024-1001": {"P1": {}},
			"CVE-2024-1002": {"P1": {}},
		}
		ingest, cveRepository, vendorRepository := newIngestTestEnv(t, detailPage, discovered)

		vendorID := "42"
		assert.NoError(t, cveRepository.SaveCVE(nil, &models.CVE{CVE: "CVE-2024-1001", VendorID: &vendorID, Description: "already stored"}, nil, nil, nil))

		saved, err := ingest.BuildVendor(context.Background(), "42", "Acme", true)
		assert.NoError(t, err)
		assert.Equal(t, 1, saved)

		untouched, err := cveRepository.FindByID("CVE-2024-1001")
		assert.NoError(t, err)
		assert.Equal(t, "already stored", untouched.Description, "records outside the diff stay untouched")

		metadata, err := vendorRepository.FindByID("42")
		assert.NoError(t, err)
		assert.Equal(t, 2, metadata.CVECount, "metadata counts everything stored, not just this run")
	})

	t.Run("should be a no-op when everything is already stored", func(t *testing.T) {
		discovered := map[string]map[string]struct{}{
			"CVE-2024-1001": {"P1": {}},
		}
		ingest, cveRepository, _ := newIngestTestEnv(t, detailPage, discovered)

		vendorID := "42"
		assert.NoError(t, cveRepository.SaveCVE(nil, &models.CVE{CVE: "CVE-2024-1001", VendorID: &vendorID}, nil, nil, nil))

		saved, err := ingest.BuildVendor(context.Background(), "42", "Acme", true)
		assert.NoError(t, err)
		assert.Equal(t, 0, saved)
	})
}
