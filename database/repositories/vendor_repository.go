package repositories

import (
	"time"

	"github.com/pwnarch/cvewatch/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type vendorRepository struct {
	db *gorm.DB
	*GormRepository[string, models.VendorMetadata]
}

func NewVendorRepository(db *gorm.DB) *vendorRepository {
	return &vendorRepository{
		db:             db,
		GormRepository: newGormRepository[string, models.VendorMetadata](db),
	}
}

// Upsert refreshes the summary row after an ingestion batch.
func (g *vendorRepository) Upsert(vendor *models.VendorMetadata) error {
	if vendor.LastUpdated.IsZero() {
		vendor.LastUpdated = time.Now()
	}
	return g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vendor_id"}},
		UpdateAll: true,
	}).Create(vendor).Error
}

func (g *vendorRepository) FindByID(id string) (models.VendorMetadata, error) {
	var v models.VendorMetadata
	err := g.db.First(&v, "vendor_id = ?", id).Error
	return v, err
}
