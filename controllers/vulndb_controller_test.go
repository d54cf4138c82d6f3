package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/pwnarch/cvewatch/database"
	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/database/repositories"
	"github.com/pwnarch/cvewatch/shared"
	"github.com/pwnarch/cvewatch/vulndb"
)

func newTestController(t *testing.T) (*VulnDBController, shared.CveRepository, shared.VendorRepository) {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	assert.NoError(t, err)
	assert.NoError(t, database.RunMigrations(db))

	cveRepository := repositories.NewCVERepository(db)
	vendorRepository := repositories.NewVendorRepository(db)
	kevService := vulndb.NewCISAKEVService(cveRepository, t.TempDir())

	return NewVulnDBController(cveRepository, vendorRepository, kevService), cveRepository, vendorRepository
}

func newEchoContext(path string, paramNames []string, paramValues []string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames(paramNames...)
	ctx.SetParamValues(paramValues...)
	return ctx, rec
}

func TestListVendors(t *testing.T) {
	t.Run("should return the stored vendors with their counts", func(t *testing.T) {
		controller, _, vendorRepository := newTestController(t)

		assert.NoError(t, vendorRepository.Upsert(&models.VendorMetadata{
			VendorID: "42", VendorName: "Acme", CVECount: 3, ProductCount: 1,
		}))

		ctx, rec := newEchoContext("/api/v1/vendors", nil, nil)
		assert.NoError(t, controller.ListVendors(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)

		var vendors []models.VendorMetadata
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vendors))
		assert.Len(t, vendors, 1)
		assert.Equal(t, 3, vendors[0].CVECount)
	})
}

func TestListVendorCVEs(t *testing.T) {
	t.Run("should return the flattened rows of one vendor", func(t *testing.T) {
		controller, cveRepository, _ := newTestController(t)

		vendorID := "42"
		assert.NoError(t, cveRepository.SaveCVE(nil,
			&models.CVE{CVE: "CVE-2024-0001", VendorID: &vendorID},
			[]models.Weakness{{CVEID: "CVE-2024-0001", CWEID: "CWE-89"}},
			nil, nil,
		))

		ctx, rec := newEchoContext("/api/v1/vendors/42/cves", []string{"id"}, []string{"42"})
		assert.NoError(t, controller.ListVendorCVEs(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)

		var rows []models.FlatCVE
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		assert.Len(t, rows, 1)
		assert.Equal(t, "CWE-89", rows[0].CWEList)
	})

	t.Run("should return an empty list for an unknown vendor", func(t *testing.T) {
		controller, _, _ := newTestController(t)

		ctx, rec := newEchoContext("/api/v1/vendors/404/cves", []string{"id"}, []string{"404"})
		assert.NoError(t, controller.ListVendorCVEs(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})
}

func TestListVendorCVEIDs(t *testing.T) {
	t.Run("should return the identifier set of a vendor", func(t *testing.T) {
		controller, cveRepository, _ := newTestController(t)

		vendorID := "42"
		for _, id := range []string{"CVE-2024-0001", "CVE-2024-0002"} {
			assert.NoError(t, cveRepository.SaveCVE(nil, &models.CVE{CVE: id, VendorID: &vendorID}, nil, nil, nil))
		}

		ctx, rec := newEchoContext("/api/v1/vendors/42/cve-ids", []string{"id"}, []string{"42"})
		assert.NoError(t, controller.ListVendorCVEIDs(ctx))

		var resp struct {
			Total int      `json:"total"`
			Data  []string `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Total)
		assert.ElementsMatch(t, []string{"CVE-2024-0001", "CVE-2024-0002"}, resp.Data)
	})
}
