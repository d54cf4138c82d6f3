package models

import (
	"time"
)

// VendorMetadata is created or refreshed after every successful ingestion
// batch for a vendor. Rows are never deleted by the ingestion core.
type VendorMetadata struct {
	VendorID     string    `json:"vendorId" gorm:"primaryKey;not null;type:text;column:vendor_id;"`
	VendorName   string    `json:"vendorName" gorm:"type:text;column:vendor_name;"`
	CVECount     int       `json:"cveCount" gorm:"column:cve_count;"`
	ProductCount int       `json:"productCount" gorm:"column:product_count;"`
	LastUpdated  time.Time `json:"lastUpdated" gorm:"column:last_updated;"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m VendorMetadata) TableName() string {
	return "vendor_metadata"
}
