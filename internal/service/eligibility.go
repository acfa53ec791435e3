package service

import (
	"github.com/noah-isme/gms-api/internal/models"
	"github.com/noah-isme/gms-api/pkg/config"
)

// EvaluateEligibility classifies an academic record against the configured
// thresholds. The result is stamped on the application at draft creation and
// refreshed on finalize; the approval chain reads it but never recomputes it.
//
// Classification rules:
//   - any outstanding hold forces NOT_ELIGIBLE
//   - full credits and GPA >= MinGPA is ELIGIBLE
//   - full credits and GPA >= IrregularMinGPA is IRREGULAR_ELIGIBLE
//   - everything else is NOT_ELIGIBLE
func EvaluateEligibility(record models.AcademicRecord, cfg config.EligibilityConfig) models.Eligibility {
	if record.OutstandingHolds > 0 {
		return models.EligibilityNotEligible
	}

	required := record.RequiredCredits
	if required <= 0 {
		required = cfg.RequiredCredits
	}
	if record.CompletedCredits < required {
		return models.EligibilityNotEligible
	}

	switch {
	case record.GPA >= cfg.MinGPA:
		return models.EligibilityEligible
	case record.GPA >= cfg.IrregularMinGPA:
		return models.EligibilityIrregularEligible
	default:
		return models.EligibilityNotEligible
	}
}
