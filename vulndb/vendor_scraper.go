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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/pwnarch/cvewatch/shared"
)

const (
	vendorCacheFile = "vendors.json"
	vendorCacheTTL  = 7 * 24 * time.Hour

	// product-list pages beyond the canonical first one are probed blindly
	// as page-2..page-9, bounded so a vendor with few products costs at
	// most a handful of 404s
	maxProductListProbes = 9
)

// vendorIndexChars are the 27 directory buckets: one per letter plus the
// numeric bucket.
var vendorIndexChars = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
	"0-9",
}

var (
	vendorHrefRe = regexp.MustCompile(`/vendor/(\d+)/([^/]+)\.html`)
	cveHrefRe    = regexp.MustCompile(`/cve/(CVE-\d{4}-\d{4,})/?`)
)

type vendorCachePayload struct {
	CachedAt time.Time       `json:"cachedAt"`
	Vendors  []shared.Vendor `json:"vendors"`
}

// VendorScraper walks the CVEDetails vendor directory and product catalog
// pages. It shares the detail service's rate gate and HTTP client so the
// whole scrape surface presents a single polite request stream.
type VendorScraper struct {
	details  *CVEDetailsService
	cacheDir string
}

func NewVendorScraper(details *CVEDetailsService, cacheDir string) *VendorScraper {
	return &VendorScraper{
		details:  details,
		cacheDir: cacheDir,
	}
}

// DiscoverVendors returns the full vendor directory, served from the local
// cache when it is younger than seven days and forceRefresh is false.
func (v *VendorScraper) DiscoverVendors(forceRefresh bool) ([]shared.Vendor, error) {
	if !forceRefresh {
		if vendors, ok := v.CachedVendors(); ok {
			return vendors, nil
		}
	}

	ctx := context.Background()
	byID := make(map[string]shared.Vendor)

	for _, char := range vendorIndexChars {
		pageURL := fmt.Sprintf("%s/vendor-list/firstchar-%s/vendors.html", v.details.baseURL, char)
		for pageURL != "" {
			next, err := v.collectVendorPage(ctx, pageURL, byID)
			if err != nil {
				slog.Warn("could not walk vendor index page", "url", pageURL, "err", err)
				break
			}
			pageURL = next
		}
	}

	vendors := make([]shared.Vendor, 0, len(byID))
	for _, vendor := range byID {
		vendors = append(vendors, vendor)
	}
	sort.Slice(vendors, func(i, j int) bool {
		return strings.ToLower(vendors[i].Name) < strings.ToLower(vendors[j].Name)
	})

	if err := v.writeVendorCache(vendors); err != nil {
		slog.Warn("could not persist vendor cache", "err", err)
	}

	return vendors, nil
}

// CachedVendors reads the on-disk vendor directory without any network
// traffic. The second return is false when the cache is absent, unreadable
// or older than the freshness window.
func (v *VendorScraper) CachedVendors() ([]shared.Vendor, bool) {
	raw, err := os.ReadFile(filepath.Join(v.cacheDir, vendorCacheFile))
	if err != nil {
		return nil, false
	}

	var payload vendorCachePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	if time.Since(payload.CachedAt) > vendorCacheTTL {
		return nil, false
	}

	return payload.Vendors, true
}

func (v *VendorScraper) writeVendorCache(vendors []shared.Vendor) error {
	if err := os.MkdirAll(v.cacheDir, 0750); err != nil {
		return errors.Wrap(err, "could not create cache directory")
	}

	raw, err := json.Marshal(vendorCachePayload{
		CachedAt: time.Now(),
		Vendors:  vendors,
	})
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(v.cacheDir, vendorCacheFile), raw, 0640)
}

// collectVendorPage adds every vendor anchor of one index page into byID and
// returns the absolute URL of the next page, or "" on the last page.
func (v *VendorScraper) collectVendorPage(ctx context.Context, pageURL string, byID map[string]shared.Vendor) (string, error) {
	if err := v.details.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := v.details.get(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "could not parse vendor index page")
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		m := vendorHrefRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		if _, seen := byID[m[1]]; seen {
			return
		}
		byID[m[1]] = shared.Vendor{
			ID:   m[1],
			Name: nameFromSlug(m[2]),
			URL:  v.details.baseURL + m[0],
		}
	})

	next, ok := doc.Find("a[title='Next page']").First().Attr("href")
	if !ok {
		return "", nil
	}
	return v.absoluteURL(next), nil
}

// DiscoverVendorCVEs builds the many-to-many map of CVE identifier to the
// product names whose vulnerability listings mention it.
func (v *VendorScraper) DiscoverVendorCVEs(vendorID, vendorName string) (map[string]map[string]struct{}, error) {
	ctx := context.Background()

	products, err := v.discoverProducts(ctx, vendorID, vendorName)
	if err != nil {
		return nil, err
	}
	slog.Info("discovered product catalog", "vendor", vendorName, "products", len(products))

	cveProducts := make(map[string]map[string]struct{})
	for _, product := range products {
		cveIDs, err := v.collectProductCVEs(ctx, product.listURL)
		if err != nil {
			slog.Warn("skipping product after scrape failure", "vendor", vendorName, "product", product.name, "err", err)
			continue
		}
		for _, cveID := range cveIDs {
			if cveProducts[cveID] == nil {
				cveProducts[cveID] = make(map[string]struct{})
			}
			cveProducts[cveID][product.name] = struct{}{}
		}
	}

	return cveProducts, nil
}

type scrapedProduct struct {
	name    string
	listURL string
}

// discoverProducts enumerates the vendor's product-list pages. The canonical
// first page is addressed by vendor id and name and must exist; further pages
// are probed in the numbered form and kept when they actually contain product
// links.
func (v *VendorScraper) discoverProducts(ctx context.Context, vendorID, vendorName string) ([]scrapedProduct, error) {
	var products []scrapedProduct
	seen := make(map[string]struct{})

	firstURL := fmt.Sprintf("%s/product-list/vendor_id-%s/%s.html",
		v.details.baseURL, vendorID, slugFromName(vendorName))
	if _, err := v.collectProductPage(ctx, firstURL, seen, &products); err != nil {
		return nil, errors.Wrap(err, "could not load product list")
	}

	for page := 2; page <= maxProductListProbes; page++ {
		pageURL := fmt.Sprintf("%s/product-list/product_type-/vendor_id-%s/firstchar-/page-%d/products.html",
			v.details.baseURL, vendorID, page)

		found, err := v.collectProductPage(ctx, pageURL, seen, &products)
		if err != nil || !found {
			break
		}
	}

	return products, nil
}

func (v *VendorScraper) collectProductPage(ctx context.Context, pageURL string, seen map[string]struct{}, products *[]scrapedProduct) (bool, error) {
	if err := v.details.limiter.Wait(ctx); err != nil {
		return false, err
	}

	body, err := v.details.get(ctx, pageURL)
	if err != nil {
		return false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false, errors.Wrap(err, "could not parse product list page")
	}

	found := false
	doc.Find("a[href*='vulnerability-list']").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		listURL := v.absoluteURL(href)
		if _, dup := seen[listURL]; dup {
			return
		}
		seen[listURL] = struct{}{}
		found = true
		// the anchor text on these pages is the vulnerability count, the
		// product name only survives in the URL slug
		*products = append(*products, scrapedProduct{
			name:    productNameFromURL(href),
			listURL: listURL,
		})
	})

	return found, nil
}

// collectProductCVEs walks every page of one product's vulnerability listing
// and returns the CVE identifiers it mentions.
func (v *VendorScraper) collectProductCVEs(ctx context.Context, listURL string) ([]string, error) {
	var cveIDs []string
	seen := make(map[string]struct{})

	pageURL := listURL
	for pageURL != "" {
		if err := v.details.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := v.details.get(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "could not parse vulnerability list page")
		}

		doc.Find("a[href^='/cve/CVE-']").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			m := cveHrefRe.FindStringSubmatch(href)
			if m == nil {
				return
			}
			if _, dup := seen[m[1]]; dup {
				return
			}
			seen[m[1]] = struct{}{}
			cveIDs = append(cveIDs, m[1])
		})

		next, ok := doc.Find("a[title='Next page']").First().Attr("href")
		if !ok {
			break
		}
		pageURL = v.absoluteURL(next)
	}

	return cveIDs, nil
}

func (v *VendorScraper) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return v.details.baseURL + href
}

// productNameFromURL derives a display name from the trailing slug of a
// vulnerability-list URL, e.g. ".../Iphone-Os.html" becomes "Iphone Os".
func productNameFromURL(href string) string {
	return nameFromSlug(strings.TrimSuffix(filepath.Base(href), ".html"))
}

// slugFromName reverses nameFromSlug far enough to address the canonical
// product-list page, which embeds the vendor name dash-separated.
func slugFromName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
}

func nameFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.TrimSpace(strings.Join(words, " "))
}
