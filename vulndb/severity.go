package vulndb

import (
	"github.com/pwnarch/cvewatch/database/models"
)

// DeriveSeverity maps a CVSS base score onto its qualitative rating. Used
// whenever an upstream source supplies a score without a severity label.
// The thresholds are open-ended downwards so off-grid scores like 8.99
// still land in a band instead of erroring.
func DeriveSeverity(score float64) models.Severity {
	switch {
	case score >= 9.0:
		return models.SeverityCritical
	case score >= 7.0:
		return models.SeverityHigh
	case score >= 4.0:
		return models.SeverityMedium
	case score > 0:
		return models.SeverityLow
	default:
		return models.SeverityNone
	}
}
