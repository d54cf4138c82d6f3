package database

import (
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/pwnarch/cvewatch/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens (and creates, if missing) the embedded sqlite database.
// The special path ":memory:" is used by tests.
func NewConnection(dbPath string) (*gorm.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.Wrap(err, "could not create database directory")
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not open sqlite database")
	}

	return db, nil
}

// RunMigrations creates the five tables and the derived flat view.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.VendorMetadata{},
		&models.CVE{},
		&models.Weakness{},
		&models.Reference{},
		&models.ProductMapping{},
	); err != nil {
		return errors.Wrap(err, "could not run migrations")
	}

	return createFlatView(db)
}

// flat_cves joins every CVE row with its aggregated, deduplicated weakness
// and product lists. Defined once; the aggregation runs on each query.
func createFlatView(db *gorm.DB) error {
	stmt := `CREATE VIEW IF NOT EXISTS flat_cves AS
	SELECT
		c.cve,
		c.vendor_id,
		c.date_published,
		c.date_last_modified,
		c.description,
		c.source_flags,
		c.cvss_v31_base_score,
		c.cvss_v31_severity,
		c.cvss_v31_vector,
		c.cvss_v4_base_score,
		c.cvss_v4_severity,
		c.cvss_v4_vector,
		c.epss,
		c.is_kev,
		GROUP_CONCAT(DISTINCT w.cwe_id) AS cwe_list,
		GROUP_CONCAT(DISTINCT p.product) AS product_list
	FROM cves c
	LEFT JOIN weaknesses w ON c.cve = w.cve_id
	LEFT JOIN products p ON c.cve = p.cve_id
	GROUP BY c.cve`

	return db.Exec(stmt).Error
}
