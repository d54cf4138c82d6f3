package controllers

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pwnarch/cvewatch/shared"
	"github.com/pwnarch/cvewatch/vulndb"
)

// VulnDBController exposes the read surface the dashboard consumes. All
// filtering, charting and export belongs to the caller; these handlers only
// hand out stored rows.
type VulnDBController struct {
	cveRepository    shared.CveRepository
	vendorRepository shared.VendorRepository
	kevService       *vulndb.CISAKEVService
}

func NewVulnDBController(cveRepository shared.CveRepository, vendorRepository shared.VendorRepository, kevService *vulndb.CISAKEVService) *VulnDBController {
	return &VulnDBController{
		cveRepository:    cveRepository,
		vendorRepository: vendorRepository,
		kevService:       kevService,
	}
}

func (c *VulnDBController) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")
	api.GET("/vendors", c.ListVendors)
	api.GET("/vendors/:id/cves", c.ListVendorCVEs)
	api.GET("/vendors/:id/cve-ids", c.ListVendorCVEIDs)
	api.GET("/cves/:cveID", c.ReadCVE)
	api.GET("/kev/:cveID", c.ReadKEVDetail)
	api.POST("/kev/refresh", c.RefreshKEV)
}

// ListVendors returns every stored vendor with its summary counts.
func (c *VulnDBController) ListVendors(ctx shared.Context) error {
	vendors, err := c.vendorRepository.All()
	if err != nil {
		return echo.NewHTTPError(500, "could not get vendors").WithInternal(err)
	}
	return ctx.JSON(200, vendors)
}

// ListVendorCVEs returns the flattened rows of one vendor; weaknesses and
// products arrive pre-aggregated by the view.
func (c *VulnDBController) ListVendorCVEs(ctx shared.Context) error {
	rows, err := c.cveRepository.FlatCVEsByVendor(ctx.Param("id"))
	if err != nil {
		return echo.NewHTTPError(500, "could not get CVEs").WithInternal(err)
	}
	return ctx.JSON(200, rows)
}

// ListVendorCVEIDs returns the identifier set of a vendor. The incremental
// update path uses this to decide what still needs fetching.
func (c *VulnDBController) ListVendorCVEIDs(ctx shared.Context) error {
	vendorID := ctx.Param("id")
	ids, err := c.cveRepository.GetExistingCVEIDs(&vendorID)
	if err != nil {
		return echo.NewHTTPError(500, "could not get cve ids").WithInternal(err)
	}

	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	return ctx.JSON(200, map[string]any{
		"total": len(list),
		"data":  list,
	})
}

func (c *VulnDBController) ReadCVE(ctx shared.Context) error {
	cve, err := c.cveRepository.FindByID(ctx.Param("cveID"))
	if err != nil {
		return echo.NewHTTPError(500, "could not get CVE").WithInternal(err)
	}
	return ctx.JSON(200, cve)
}

// ReadKEVDetail returns the CISA catalog entry of a CVE, or 404 when the CVE
// is not cataloged as exploited.
func (c *VulnDBController) ReadKEVDetail(ctx shared.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 30*time.Second)
	defer cancel()

	entry, ok, err := c.kevService.Detail(reqCtx, ctx.Param("cveID"))
	if err != nil {
		return echo.NewHTTPError(500, "could not load KEV catalog").WithInternal(err)
	}
	if !ok {
		return echo.NewHTTPError(404, "CVE is not in the KEV catalog")
	}
	return ctx.JSON(200, entry)
}

// RefreshKEV re-applies the KEV catalog to the stored rows and reports how
// many were newly flagged.
func (c *VulnDBController) RefreshKEV(ctx shared.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Minute)
	defer cancel()

	updated, err := c.kevService.MarkExploited(reqCtx)
	if err != nil {
		return echo.NewHTTPError(500, "could not refresh KEV status").WithInternal(err)
	}
	return ctx.JSON(200, map[string]any{"updated": updated})
}
