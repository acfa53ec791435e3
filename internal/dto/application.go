package dto

import "github.com/noah-isme/gms-api/internal/models"

// UpsertDraftRequest creates or updates a student's draft application.
type UpsertDraftRequest struct {
	StudentRemarks string `json:"studentRemarks"`
}

// ReviewRequest carries one approver decision for the current step.
type ReviewRequest struct {
	Approved bool   `json:"approved"`
	Remarks  string `json:"remarks"`
}

// BulkReviewRequest applies the same decision to many applications. Items are
// processed independently, there is no cross-item atomicity.
type BulkReviewRequest struct {
	ApplicationIDs []string `json:"applicationIds" validate:"required,min=1"`
	Approved       bool     `json:"approved"`
	Remarks        string   `json:"remarks"`
}

// BulkReviewItem reports the outcome for one application in a bulk request.
type BulkReviewItem struct {
	ApplicationID string                  `json:"applicationId"`
	Status        models.GraduationStatus `json:"status,omitempty"`
	Error         string                  `json:"error,omitempty"`
	ErrorCode     string                  `json:"errorCode,omitempty"`
}

// BulkReviewResult is the per-item result list of a bulk review.
type BulkReviewResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []BulkReviewItem `json:"items"`
}

// TerminationFormRequest records submission of the clearance form.
type TerminationFormRequest struct {
	FormPath string `json:"formPath" validate:"required"`
}

// CapabilitiesResponse exposes the role/state capability table entry for the
// caller against a concrete application.
type CapabilitiesResponse struct {
	ApplicationID string                  `json:"applicationId"`
	Status        models.GraduationStatus `json:"status"`
	Role          models.UserRole         `json:"role"`
	Capabilities  models.Capabilities     `json:"capabilities"`
}
