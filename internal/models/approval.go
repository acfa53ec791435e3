package models

import "time"

// StepStatus is the decision state of a single approval step.
type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusRejected StepStatus = "REJECTED"
)

// ApprovalStep is one decision record by one role in the review chain.
// Steps are append-only: once decided they are never re-decided, corrections
// require a new review cycle.
type ApprovalStep struct {
	ID            string     `db:"id" json:"id"`
	ApplicationID string     `db:"application_id" json:"applicationId"`
	StepOrder     int        `db:"step_order" json:"stepOrder"`
	ApproverRole  UserRole   `db:"approver_role" json:"approverRole"`
	Status        StepStatus `db:"status" json:"status"`
	Remarks       *string    `db:"remarks" json:"remarks,omitempty"`
	ActedBy       *string    `db:"acted_by" json:"actedBy,omitempty"`
	ActedAt       *time.Time `db:"acted_at" json:"actedAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// Capabilities lists the actions a role may take on an application in a given
// state. Front ends consume this instead of re-deriving role/state legality.
type Capabilities struct {
	Approve       bool `json:"approve"`
	Reject        bool `json:"reject"`
	Upload        bool `json:"upload"`
	Finalize      bool `json:"finalize"`
	FinalizeIssue bool `json:"finalizeIssue"`
}
