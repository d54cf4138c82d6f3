package repositories

import (
	"github.com/pwnarch/cvewatch/database/models"
	"github.com/pwnarch/cvewatch/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cveRepository struct {
	db *gorm.DB
	*GormRepository[string, models.CVE]
}

func NewCVERepository(db *gorm.DB) *cveRepository {
	return &cveRepository{
		db:             db,
		GormRepository: newGormRepository[string, models.CVE](db),
	}
}

func (g *cveRepository) FindByID(id string) (models.CVE, error) {
	var t models.CVE
	err := g.db.Preload("Weaknesses").Preload("References").Preload("Products").
		First(&t, "cve = ?", id).Error
	return t, err
}

// SaveCVE upserts the scalar row by primary key and fully replaces the
// association rows. Delete-then-insert keeps weaknesses, references and
// products from accumulating duplicates across repeated full syncs.
func (g *cveRepository) SaveCVE(tx *gorm.DB, cve *models.CVE, weaknesses []models.Weakness, references []models.Reference, products []models.ProductMapping) error {
	run := func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cve"}},
			UpdateAll: true,
		}).Create(cve).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.Weakness{}, "cve_id = ?", cve.CVE).Error; err != nil {
			return err
		}
		uniqueWeaknesses := utils.UniqBy(weaknesses, func(w models.Weakness) string { return w.CWEID })
		if len(uniqueWeaknesses) > 0 {
			if err := tx.Create(&uniqueWeaknesses).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.Reference{}, "cve_id = ?", cve.CVE).Error; err != nil {
			return err
		}
		if len(references) > 0 {
			if err := tx.Create(&references).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.ProductMapping{}, "cve_id = ?", cve.CVE).Error; err != nil {
			return err
		}
		uniqueProducts := utils.UniqBy(products, func(p models.ProductMapping) [4]string {
			return [4]string{p.RawCPE, p.Vendor, p.Product, p.Version}
		})
		if len(uniqueProducts) > 0 {
			if err := tx.Create(&uniqueProducts).Error; err != nil {
				return err
			}
		}

		return nil
	}

	if tx != nil {
		return run(tx)
	}
	return g.Transaction(run)
}

// AppendProductMapping is a pure insert. See shared.CveRepository.
func (g *cveRepository) AppendProductMapping(tx *gorm.DB, mapping models.ProductMapping) error {
	return g.GetDB(tx).Create(&mapping).Error
}

// GetExistingCVEIDs returns the set of stored CVE identifiers, optionally
// limited to one vendor. The incremental update path subtracts this set from
// a fresh discovery run to decide what is new.
func (g *cveRepository) GetExistingCVEIDs(vendorID *string) (map[string]struct{}, error) {
	var ids []string
	q := g.db.Model(&models.CVE{})
	if vendorID != nil {
		q = q.Where("vendor_id = ?", *vendorID)
	}
	if err := q.Pluck("cve", &ids).Error; err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (g *cveRepository) GetCVEsByVendor(vendorID string) ([]models.CVE, error) {
	var cves []models.CVE
	err := g.db.Preload("Weaknesses").Preload("References").Preload("Products").
		Find(&cves, "vendor_id = ?", vendorID).Error
	return cves, err
}

func (g *cveRepository) FlatCVEsByVendor(vendorID string) ([]models.FlatCVE, error) {
	rows := []models.FlatCVE{}
	err := g.db.Find(&rows, "vendor_id = ?", vendorID).Error
	return rows, err
}

// UpdateKEVStatus flips is_kev for every supplied CVE that is currently not
// flagged and returns how many rows actually changed. Running it twice with
// the same set updates zero rows the second time.
func (g *cveRepository) UpdateKEVStatus(cveIDs []string) (int64, error) {
	if len(cveIDs) == 0 {
		return 0, nil
	}

	res := g.db.Model(&models.CVE{}).
		Where("cve IN ? AND is_kev = ?", cveIDs, false).
		Update("is_kev", true)
	return res.RowsAffected, res.Error
}

// UpdateKEVDates carries the catalog dates onto an already stored row without
// touching any other column. Missing rows are silently skipped by the filter.
func (g *cveRepository) UpdateKEVDates(tx *gorm.DB, cve models.CVE) error {
	return g.GetDB(tx).Model(&models.CVE{}).
		Where("cve = ?", cve.CVE).
		Updates(map[string]any{
			"kev_date_added": cve.KEVDateAdded,
			"kev_due_date":   cve.KEVDueDate,
		}).Error
}
