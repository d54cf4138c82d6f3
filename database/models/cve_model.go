package models

import (
	"time"

	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityNone     Severity = "NONE"
)

// CVE is one row per CVE identifier. Scalar fields are overwritten wholesale
// on every save; the association tables are replaced via delete-then-insert
// so repeated syncs never accumulate duplicates.
type CVE struct {
	CVE       string    `json:"cve" gorm:"primaryKey;not null;type:text;"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// nil in single-tenant mode. A CVE discovered under two vendors keeps
	// whichever vendor ingested it last.
	VendorID *string `json:"vendorId" gorm:"type:text;index;"`

	DatePublished    *time.Time `json:"datePublished"`
	DateLastModified *time.Time `json:"dateLastModified"`

	Description string `json:"description" gorm:"type:text;"`
	// comma joined list of upstream sources which contributed to this row,
	// e.g. "nvd,v5". Provenance only - never used to route storage.
	SourceFlags string `json:"sourceFlags" gorm:"type:text;"`

	CVSSV31Score    *float64 `json:"cvssV31BaseScore" gorm:"column:cvss_v31_base_score;type:decimal(4,2);"`
	CVSSV31Severity string   `json:"cvssV31Severity" gorm:"column:cvss_v31_severity;type:text;"`
	CVSSV31Vector   string   `json:"cvssV31Vector" gorm:"column:cvss_v31_vector;type:text;"`

	CVSSV4Score    *float64 `json:"cvssV4BaseScore" gorm:"column:cvss_v4_base_score;type:decimal(4,2);"`
	CVSSV4Severity string   `json:"cvssV4Severity" gorm:"column:cvss_v4_severity;type:text;"`
	CVSSV4Vector   string   `json:"cvssV4Vector" gorm:"column:cvss_v4_vector;type:text;"`

	EPSS *float64 `json:"epss" gorm:"type:decimal(6,5);"`

	IsKEV        bool            `json:"isKev" gorm:"column:is_kev;not null;default:false;"`
	KEVDateAdded *datatypes.Date `json:"kevDateAdded" gorm:"column:kev_date_added;type:date;" swaggertype:"string" format:"date"`
	KEVDueDate   *datatypes.Date `json:"kevDueDate" gorm:"column:kev_due_date;type:date;" swaggertype:"string" format:"date"`

	Weaknesses []Weakness       `json:"weaknesses" gorm:"foreignKey:CVEID;constraint:OnDelete:CASCADE;"`
	References []Reference      `json:"references" gorm:"foreignKey:CVEID;constraint:OnDelete:CASCADE;"`
	Products   []ProductMapping `json:"products" gorm:"foreignKey:CVEID;constraint:OnDelete:CASCADE;"`
}

func (m CVE) TableName() string {
	return "cves"
}

type Weakness struct {
	CVEID string `json:"cve" gorm:"primaryKey;not null;type:text;column:cve_id;"`
	CWEID string `json:"cwe" gorm:"primaryKey;not null;type:text;column:cwe_id;"`
}

func (m Weakness) TableName() string {
	return "weaknesses"
}

// Reference rows are not unique per (cve, url) on purpose: the set is deleted
// and reinserted wholesale on every save, so duplicates cannot survive a sync.
type Reference struct {
	ID    uint   `json:"id" gorm:"primaryKey;autoIncrement;"`
	CVEID string `json:"cve" gorm:"not null;type:text;index;column:cve_id;"`
	URL   string `json:"url" gorm:"type:text;"`
}

func (m Reference) TableName() string {
	return "cve_references"
}

// ProductMapping associates a CVE with an affected vendor/product/version.
// Populated either from parsed CPE strings (replaced wholesale per save) or
// additively from the vendor scraper.
type ProductMapping struct {
	ID      uint   `json:"id" gorm:"primaryKey;autoIncrement;"`
	CVEID   string `json:"cve" gorm:"not null;type:text;index;column:cve_id;"`
	RawCPE  string `json:"rawCpe" gorm:"type:text;column:raw_cpe;"`
	Vendor  string `json:"vendor" gorm:"type:text;"`
	Product string `json:"product" gorm:"type:text;index;"`
	Version string `json:"version" gorm:"type:text;"`
}

func (m ProductMapping) TableName() string {
	return "products"
}
