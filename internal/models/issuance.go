package models

import "time"

// IssuanceStatus is the shared lifecycle of diploma and certificate requests.
type IssuanceStatus string

const (
	IssuanceStatusRequested  IssuanceStatus = "REQUESTED"
	IssuanceStatusProcessing IssuanceStatus = "PROCESSING"
	IssuanceStatusReady      IssuanceStatus = "READY"
	IssuanceStatusDelivered  IssuanceStatus = "DELIVERED"
)

// NextIssuanceStatus returns the single legal successor of a status, or empty
// when the status is terminal.
func NextIssuanceStatus(s IssuanceStatus) IssuanceStatus {
	switch s {
	case IssuanceStatusRequested:
		return IssuanceStatusProcessing
	case IssuanceStatusProcessing:
		return IssuanceStatusReady
	case IssuanceStatusReady:
		return IssuanceStatusDelivered
	}
	return ""
}

// SignatureType distinguishes wet-ink from electronic signing.
type SignatureType string

const (
	SignatureTypeWet        SignatureType = "WET"
	SignatureTypeElectronic SignatureType = "ELECTRONIC"
)

// CertificateKind enumerates issued certificate categories.
type CertificateKind string

const (
	CertificateKindHonor     CertificateKind = "HONOR"
	CertificateKindHighHonor CertificateKind = "HIGH_HONOR"
	CertificateKindBerat     CertificateKind = "BERAT"
)

// AppointmentStatus tracks the wet-signature sub-machine.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusRequested AppointmentStatus = "REQUESTED"
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
)

// ForwardTarget names the office a wet-signature document is forwarded to.
type ForwardTarget string

const (
	ForwardTargetFaculty   ForwardTarget = "FACULTY"
	ForwardTargetRectorate ForwardTarget = "RECTORATE"
)

// WetSignatureAppointment gates READY for wet-signature diplomas.
type WetSignatureAppointment struct {
	ID            string            `db:"id" json:"id"`
	DiplomaID     string            `db:"diploma_id" json:"diplomaId"`
	Status        AppointmentStatus `db:"status" json:"status"`
	RequestedDate *time.Time        `db:"requested_date" json:"requestedDate,omitempty"`
	ScheduledDate *time.Time        `db:"scheduled_date" json:"scheduledDate,omitempty"`
	Location      *string           `db:"location" json:"location,omitempty"`
	ForwardedTo   *ForwardTarget    `db:"forwarded_to" json:"forwardedTo,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updatedAt"`
}

// DiplomaRequest is a student-affairs issuance record for a diploma.
type DiplomaRequest struct {
	ID            string         `db:"id" json:"id"`
	ApplicationID string         `db:"application_id" json:"applicationId"`
	StudentID     string         `db:"student_id" json:"studentId"`
	StudentName   string         `db:"student_name" json:"studentName"`
	Department    string         `db:"department" json:"department"`
	Faculty       string         `db:"faculty" json:"faculty"`
	Status        IssuanceStatus `db:"status" json:"status"`
	SignatureType SignatureType  `db:"signature_type" json:"signatureType"`
	RequestedAt   time.Time      `db:"requested_at" json:"requestedAt"`
	DeliveredAt   *time.Time     `db:"delivered_at" json:"deliveredAt,omitempty"`
	Notes         *string        `db:"notes" json:"notes,omitempty"`

	Appointment *WetSignatureAppointment `db:"-" json:"wetSignatureAppointment,omitempty"`
}

// CertificateRequest is a student-affairs issuance record for a certificate.
// Certificates are always electronically signed.
type CertificateRequest struct {
	ID            string          `db:"id" json:"id"`
	ApplicationID string          `db:"application_id" json:"applicationId"`
	StudentID     string          `db:"student_id" json:"studentId"`
	StudentName   string          `db:"student_name" json:"studentName"`
	Department    string          `db:"department" json:"department"`
	Faculty       string          `db:"faculty" json:"faculty"`
	Kind          CertificateKind `db:"kind" json:"kind"`
	Status        IssuanceStatus  `db:"status" json:"status"`
	RequestedAt   time.Time       `db:"requested_at" json:"requestedAt"`
	DeliveredAt   *time.Time      `db:"delivered_at" json:"deliveredAt,omitempty"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
}
