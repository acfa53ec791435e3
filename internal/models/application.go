package models

import "time"

// GraduationStatus captures the application-level workflow state.
type GraduationStatus string

const (
	GraduationStatusDraft            GraduationStatus = "DRAFT"
	GraduationStatusPendingAdvisor   GraduationStatus = "PENDING_ADVISOR"
	GraduationStatusPendingSecretary GraduationStatus = "PENDING_SECRETARY"
	GraduationStatusPendingDean      GraduationStatus = "PENDING_DEAN"
	GraduationStatusApproved         GraduationStatus = "APPROVED"
	GraduationStatusRejected         GraduationStatus = "REJECTED"
)

// Terminal reports whether no further review transitions are possible.
func (s GraduationStatus) Terminal() bool {
	return s == GraduationStatusApproved || s == GraduationStatusRejected
}

// Pending reports whether the status is one of the PENDING_* review states.
func (s GraduationStatus) Pending() bool {
	switch s {
	case GraduationStatusPendingAdvisor, GraduationStatusPendingSecretary, GraduationStatusPendingDean:
		return true
	}
	return false
}

// PendingStatusFor maps an approver role to the application status that blocks
// on that role's decision.
func PendingStatusFor(role UserRole) GraduationStatus {
	switch role {
	case RoleAdvisor:
		return GraduationStatusPendingAdvisor
	case RoleSecretary:
		return GraduationStatusPendingSecretary
	case RoleDean:
		return GraduationStatusPendingDean
	}
	return ""
}

// Eligibility is the precomputed graduation readiness classification. The
// approval chain consumes it but never recomputes it.
type Eligibility string

const (
	EligibilityEligible          Eligibility = "ELIGIBLE"
	EligibilityIrregularEligible Eligibility = "IRREGULAR_ELIGIBLE"
	EligibilityNotEligible       Eligibility = "NOT_ELIGIBLE"
)

// GraduationApplication is the one-per-student graduation request. The student
// owns mutation while the status is DRAFT; finalize hands ownership to the
// approval chain.
type GraduationApplication struct {
	ID                       string           `db:"id" json:"id"`
	StudentID                string           `db:"student_id" json:"studentId"`
	Status                   GraduationStatus `db:"status" json:"status"`
	Eligibility              Eligibility      `db:"eligibility" json:"eligibility"`
	CurrentStep              *UserRole        `db:"current_step" json:"currentStep,omitempty"`
	IsVisible                bool             `db:"is_visible" json:"isVisible"`
	StudentRemarks           *string          `db:"student_remarks" json:"studentRemarks,omitempty"`
	AdvisorRemarks           *string          `db:"advisor_remarks" json:"advisorRemarks,omitempty"`
	SecretaryRemarks         *string          `db:"secretary_remarks" json:"secretaryRemarks,omitempty"`
	DeanRemarks              *string          `db:"dean_remarks" json:"deanRemarks,omitempty"`
	RejectionReason          *string          `db:"rejection_reason" json:"rejectionReason,omitempty"`
	TerminationFormSubmitted bool             `db:"termination_form_submitted" json:"terminationFormSubmitted"`
	TerminationFormPath      *string          `db:"termination_form_path" json:"terminationFormPath,omitempty"`
	CeremonyApplied          bool             `db:"ceremony_applied" json:"ceremonyApplied"`
	CeremonyAppliedAt        *time.Time       `db:"ceremony_applied_at" json:"ceremonyAppliedAt,omitempty"`
	SubmittedAt              *time.Time       `db:"submitted_at" json:"submittedAt,omitempty"`
	FinalizedAt              *time.Time       `db:"finalized_at" json:"finalizedAt,omitempty"`
	CreatedAt                time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt                time.Time        `db:"updated_at" json:"updatedAt"`

	Documents     []GraduationDocument `db:"-" json:"documents,omitempty"`
	ApprovalSteps []ApprovalStep       `db:"-" json:"approvalSteps,omitempty"`
}

// ApplicationFilter constrains listing queries.
type ApplicationFilter struct {
	Status      []GraduationStatus
	CurrentStep UserRole
	StudentID   string
	VisibleOnly bool
	Limit       int
	Offset      int
}
