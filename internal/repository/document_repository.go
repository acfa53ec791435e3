package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gms-api/internal/models"
)

const documentColumns = `id, application_id, document_type, file_name, file_path, file_size,
       mime_type, verification_status, verification_details, uploaded_at`

// DocumentRepository persists graduation document metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.GraduationDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.VerificationStatus == "" {
		doc.VerificationStatus = models.VerificationStatusPending
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO graduation_documents
	(id, application_id, document_type, file_name, file_path, file_size, mime_type, verification_status, verification_details, uploaded_at)
	VALUES (:id, :application_id, :document_type, :file_name, :file_path, :file_size, :mime_type, :verification_status, :verification_details, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID fetches one document.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.GraduationDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM graduation_documents WHERE id = $1`, documentColumns)
	var doc models.GraduationDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByApplication returns all documents for an application.
func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.GraduationDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM graduation_documents WHERE application_id = $1 ORDER BY uploaded_at ASC`, documentColumns)
	var docs []models.GraduationDocument
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// CountByApplication returns the number of documents attached to an application.
func (r *DocumentRepository) CountByApplication(ctx context.Context, applicationID string) (int, error) {
	const query = `SELECT COUNT(*) FROM graduation_documents WHERE application_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, applicationID); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// HasType reports whether a document of the given type exists for an application.
func (r *DocumentRepository) HasType(ctx context.Context, applicationID string, docType models.DocumentType) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM graduation_documents WHERE application_id = $1 AND document_type = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, applicationID, docType); err != nil {
		return false, fmt.Errorf("check document type: %w", err)
	}
	return exists, nil
}

// DeleteUnverifiedByType removes a prior unverified upload of the same type,
// returning its file path so the caller can reclaim the stored file. Verified
// documents are immutable and never removed by re-uploads.
func (r *DocumentRepository) DeleteUnverifiedByType(ctx context.Context, applicationID string, docType models.DocumentType) (string, error) {
	const query = `DELETE FROM graduation_documents
	WHERE application_id = $1 AND document_type = $2 AND verification_status <> 'VERIFIED'
	RETURNING file_path`
	var filePath string
	err := r.db.QueryRowxContext(ctx, query, applicationID, docType).Scan(&filePath)
	if err != nil {
		return "", err
	}
	return filePath, nil
}

// UpdateVerification records the staff decision on a pending document. The
// PENDING guard makes a verified document write-once.
func (r *DocumentRepository) UpdateVerification(ctx context.Context, id string, status models.VerificationStatus, details *string) error {
	const query = `UPDATE graduation_documents
	SET verification_status = $2, verification_details = $3
	WHERE id = $1 AND verification_status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, id, status, details)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	return requireRow(result)
}
