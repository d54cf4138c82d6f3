package vulndb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pwnarch/cvewatch/database"
	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/database/repositories"
)

const kevCatalogFixture = `{
	"title": "CISA Catalog of Known Exploited Vulnerabilities",
	"count": 2,
	"vulnerabilities": [
		{
			"cveID": "CVE-2021-44228",
			"vendorProject": "Apache",
			"product": "Log4j",
			"vulnerabilityName": "Apache Log4j2 Remote Code Execution Vulnerability",
			"dateAdded": "2021-12-10",
			"dueDate": "2021-12-24",
			"requiredAction": "Apply updates per vendor instructions."
		},
		{
			"cveID": "CVE-2024-0001",
			"vendorProject": "Acme",
			"product": "Widget",
			"vulnerabilityName": "Acme Widget SQL Injection",
			"dateAdded": "2024-03-01",
			"dueDate": "2024-03-22",
			"requiredAction": "Apply updates per vendor instructions."
		}
	]
}`

func TestCISAKEVService(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, kevCatalogFixture)
	}))
	t.Cleanup(srv.Close)

	originalURL := CisaKEVURL
	CisaKEVURL = srv.URL
	t.Cleanup(func() { CisaKEVURL = originalURL })

	db, err := database.NewConnection(":memory:")
	assert.NoError(t, err)
	assert.NoError(t, database.RunMigrations(db))

	cveRepository := repositories.NewCVERepository(db)
	for _, id := range []string{"CVE-2021-44228", "CVE-2024-0001", "CVE-2024-9999"} {
		assert.NoError(t, cveRepository.SaveCVE(nil, &models.CVE{CVE: id}, nil, nil, nil))
	}

	cacheDir := t.TempDir()
	service := NewCISAKEVService(cveRepository, cacheDir)

	t.Run("should expose the catalog identifier set", func(t *testing.T) {
		set, err := service.CVESet(context.Background())
		assert.NoError(t, err)
		assert.Len(t, set, 2)
		assert.Contains(t, set, "CVE-2021-44228")
	})

	t.Run("should flip matching rows once and report zero on the second pass", func(t *testing.T) {
		flipped, err := service.MarkExploited(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int64(2), flipped)

		flipped, err = service.MarkExploited(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int64(0), flipped)

		cve, err := cveRepository.FindByID("CVE-2021-44228")
		assert.NoError(t, err)
		assert.True(t, cve.IsKEV)
		assert.NotNil(t, cve.KEVDateAdded)

		unlisted, err := cveRepository.FindByID("CVE-2024-9999")
		assert.NoError(t, err)
		assert.False(t, unlisted.IsKEV)
	})

	t.Run("should expose the catalog detail of a single CVE", func(t *testing.T) {
		entry, ok, err := service.Detail(context.Background(), "CVE-2024-0001")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Acme", entry.VendorProject)
		assert.Equal(t, "Acme Widget SQL Injection", entry.VulnerabilityName)

		_, ok, err = service.Detail(context.Background(), "CVE-2024-9999")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("should serve a second instance from the disk cache within the TTL", func(t *testing.T) {
		before := requests

		fresh := NewCISAKEVService(cveRepository, cacheDir)
		set, err := fresh.CVESet(context.Background())
		assert.NoError(t, err)
		assert.Len(t, set, 2)
		assert.Equal(t, before, requests)
	})

	t.Run("should refetch once the disk cache is stale", func(t *testing.T) {
		// age the cached catalog beyond the TTL
		raw, err := json.Marshal(kevCachePayload{
			CachedAt: time.Now().Add(-25 * time.Hour),
			Catalog:  cisaKEVCatalog{},
		})
		assert.NoError(t, err)
		assert.NoError(t, os.WriteFile(filepath.Join(cacheDir, kevCacheFile), raw, 0640))

		before := requests
		expired := NewCISAKEVService(cveRepository, cacheDir)
		set, err := expired.CVESet(context.Background())
		assert.NoError(t, err)
		assert.Len(t, set, 2)
		assert.Equal(t, before+1, requests)
	})
}
