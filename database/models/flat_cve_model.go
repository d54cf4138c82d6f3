package models

import "time"

// FlatCVE maps the flat_cves view: one row per CVE with its weakness and
// product sets aggregated into comma separated strings. The view is not
// materialized - aggregation is recomputed on every query.
type FlatCVE struct {
	CVE              string     `json:"cve" gorm:"column:cve;"`
	VendorID         *string    `json:"vendorId" gorm:"column:vendor_id;"`
	DatePublished    *time.Time `json:"datePublished" gorm:"column:date_published;"`
	DateLastModified *time.Time `json:"dateLastModified" gorm:"column:date_last_modified;"`
	Description      string     `json:"description" gorm:"column:description;"`
	SourceFlags      string     `json:"sourceFlags" gorm:"column:source_flags;"`
	CVSSV31Score     *float64   `json:"cvssV31BaseScore" gorm:"column:cvss_v31_base_score;"`
	CVSSV31Severity  string     `json:"cvssV31Severity" gorm:"column:cvss_v31_severity;"`
	CVSSV31Vector    string     `json:"cvssV31Vector" gorm:"column:cvss_v31_vector;"`
	CVSSV4Score      *float64   `json:"cvssV4BaseScore" gorm:"column:cvss_v4_base_score;"`
	CVSSV4Severity   string     `json:"cvssV4Severity" gorm:"column:cvss_v4_severity;"`
	CVSSV4Vector     string     `json:"cvssV4Vector" gorm:"column:cvss_v4_vector;"`
	EPSS             *float64   `json:"epss" gorm:"column:epss;"`
	IsKEV            bool       `json:"isKev" gorm:"column:is_kev;"`
	CWEList          string     `json:"cweList" gorm:"column:cwe_list;"`
	ProductList      string     `json:"productList" gorm:"column:product_list;"`
}

func (m FlatCVE) TableName() string {
	return "flat_cves"
}
