package dto

import (
	"time"

	"github.com/noah-isme/gms-api/internal/models"
)

// FinalizeIssueRequest finalizes an approved application and opens its
// issuance requests.
type FinalizeIssueRequest struct {
	SignatureType    models.SignatureType     `json:"signatureType" validate:"required,oneof=WET ELECTRONIC"`
	CertificateKinds []models.CertificateKind `json:"certificateKinds" validate:"dive,oneof=HONOR HIGH_HONOR BERAT"`
}

// AdvanceIssuanceRequest moves a diploma or certificate to its next status.
type AdvanceIssuanceRequest struct {
	Notes string `json:"notes"`
}

// RequestAppointmentRequest opens the wet-signature appointment window.
type RequestAppointmentRequest struct {
	RequestedDate time.Time `json:"requestedDate" validate:"required"`
}

// ScheduleAppointmentRequest books a wet-signature appointment.
type ScheduleAppointmentRequest struct {
	ScheduledDate time.Time            `json:"scheduledDate" validate:"required"`
	Location      string               `json:"location" validate:"required"`
	ForwardedTo   models.ForwardTarget `json:"forwardedTo" validate:"required,oneof=FACULTY RECTORATE"`
}

// IssuanceQuery filters issuance listings.
type IssuanceQuery struct {
	Status  models.IssuanceStatus `form:"status"`
	Faculty string                `form:"faculty"`
}
