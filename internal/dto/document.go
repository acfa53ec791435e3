package dto

import "github.com/noah-isme/gms-api/internal/models"

// VerifyDocumentRequest records a staff verification decision.
type VerifyDocumentRequest struct {
	Verified bool   `json:"verified"`
	Details  string `json:"details"`
}

// DocumentDownload carries the signed URL for a stored document.
type DocumentDownload struct {
	DocumentID string `json:"documentId"`
	URL        string `json:"url"`
	ExpiresAt  string `json:"expiresAt"`
}

// UploadMeta is the multipart form metadata accompanying a document upload.
type UploadMeta struct {
	ApplicationID string              `form:"applicationId" validate:"required"`
	DocumentType  models.DocumentType `form:"documentType" validate:"required"`
}
