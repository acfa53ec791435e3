package models

import "time"

// DocumentType enumerates the accepted graduation document categories.
type DocumentType string

const (
	DocumentTypeSupporting     DocumentType = "SUPPORTING_DOCUMENT"
	DocumentTypeTranscript     DocumentType = "TRANSCRIPT"
	DocumentTypeIdentification DocumentType = "IDENTIFICATION"
	DocumentTypeTermination    DocumentType = "TERMINATION_FORM"
)

// ValidDocumentType reports whether the given type is in the enumerated set.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeSupporting, DocumentTypeTranscript, DocumentTypeIdentification, DocumentTypeTermination:
		return true
	}
	return false
}

// VerificationStatus tracks staff review of an uploaded document.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "PENDING"
	VerificationStatusVerified VerificationStatus = "VERIFIED"
	VerificationStatusRejected VerificationStatus = "REJECTED"
)

// GraduationDocument is one uploaded file belonging to an application. It is
// created on upload and immutable once verified; re-uploads of a type are
// allowed only while the owning application is in DRAFT.
type GraduationDocument struct {
	ID                  string             `db:"id" json:"id"`
	ApplicationID       string             `db:"application_id" json:"applicationId"`
	DocumentType        DocumentType       `db:"document_type" json:"documentType"`
	FileName            string             `db:"file_name" json:"fileName"`
	FilePath            string             `db:"file_path" json:"filePath"`
	FileSize            int64              `db:"file_size" json:"fileSize"`
	MimeType            string             `db:"mime_type" json:"mimeType"`
	VerificationStatus  VerificationStatus `db:"verification_status" json:"verificationStatus"`
	VerificationDetails *string            `db:"verification_details" json:"verificationDetails,omitempty"`
	UploadedAt          time.Time          `db:"uploaded_at" json:"uploadedAt"`
}
