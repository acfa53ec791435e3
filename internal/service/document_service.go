package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	"github.com/noah-isme/gms-api/pkg/config"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.GraduationDocument) error
	GetByID(ctx context.Context, id string) (*models.GraduationDocument, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.GraduationDocument, error)
	DeleteUnverifiedByType(ctx context.Context, applicationID string, docType models.DocumentType) (string, error)
	UpdateVerification(ctx context.Context, id string, status models.VerificationStatus, details *string) error
}

type documentApplicationRepository interface {
	GetByID(ctx context.Context, id string) (*models.GraduationApplication, error)
}

type documentStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type urlSigner interface {
	Generate(documentID, relPath string) (string, time.Time, error)
	Parse(token string) (documentID, relPath string, expiresAt time.Time, err error)
}

// DocumentService handles graduation document uploads, verification and
// signed-URL downloads. Uploads are only accepted while the owning
// application is a draft; re-uploading a type replaces the previous file
// unless it was already verified.
type DocumentService struct {
	docs      documentRepository
	apps      documentApplicationRepository
	store     documentStore
	signer    urlSigner
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.DocumentsConfig
}

// NewDocumentService constructs the service.
func NewDocumentService(
	docs documentRepository,
	apps documentApplicationRepository,
	store documentStore,
	signer urlSigner,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.DocumentsConfig,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DocumentService{
		docs:      docs,
		apps:      apps,
		store:     store,
		signer:    signer,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Upload stores one file for the student's draft application. On any failure
// after the file hit disk, the stored file is reclaimed.
func (s *DocumentService) Upload(ctx context.Context, student *models.User, meta dto.UploadMeta, header *multipart.FileHeader) (*models.GraduationDocument, error) {
	if err := s.validator.Struct(meta); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload metadata")
	}
	if !models.ValidDocumentType(meta.DocumentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document type")
	}
	if header.Size <= 0 || header.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file size must be between 1 byte and %d bytes", s.cfg.MaxFileSizeBytes))
	}

	mimeType := header.Header.Get("Content-Type")
	if !s.allowedMIME(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type")
	}

	app, err := s.apps.GetByID(ctx, meta.ApplicationID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.StudentID != student.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	if app.Status != models.GraduationStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrState, "documents may only change while the application is a draft")
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer file.Close() //nolint:errcheck

	docID := uuid.NewString()
	relPath := filepath.Join(app.ID, fmt.Sprintf("%s%s", docID, filepath.Ext(header.Filename)))
	if _, err := s.store.SaveStream(relPath, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}

	// A new upload of the same type supersedes the previous unverified one.
	if oldPath, err := s.docs.DeleteUnverifiedByType(ctx, app.ID, meta.DocumentType); err == nil {
		if err := s.store.Delete(oldPath); err != nil {
			s.logger.Warn("failed to remove superseded upload", zap.String("path", oldPath), zap.Error(err))
		}
	} else if !isNoRows(err) {
		s.cleanup(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace previous upload")
	}

	doc := &models.GraduationDocument{
		ID:                 docID,
		ApplicationID:      app.ID,
		DocumentType:       meta.DocumentType,
		FileName:           header.Filename,
		FilePath:           relPath,
		FileSize:           header.Size,
		MimeType:           mimeType,
		VerificationStatus: models.VerificationStatusPending,
		UploadedAt:         time.Now().UTC(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.cleanup(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upload")
	}

	s.recordAudit(ctx, student.ID, models.AuditActionDocumentUpload, doc.ID)
	return doc, nil
}

// Verify records the staff decision on a pending document.
func (s *DocumentService) Verify(ctx context.Context, staff *models.User, documentID string, req dto.VerifyDocumentRequest) (*models.GraduationDocument, error) {
	status := models.VerificationStatusRejected
	if req.Verified {
		status = models.VerificationStatusVerified
	}
	var details *string
	if req.Details != "" {
		details = &req.Details
	}

	if err := s.docs.UpdateVerification(ctx, documentID, status, details); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrState, "document is not pending verification")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record verification")
	}

	s.recordAudit(ctx, staff.ID, models.AuditActionDocumentVerify, documentID)
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload document")
	}
	return doc, nil
}

// List returns an application's documents after an ownership check for
// students; staff roles may list any application.
func (s *DocumentService) List(ctx context.Context, caller *models.User, applicationID string) ([]models.GraduationDocument, error) {
	if caller.Role == models.RoleStudent {
		app, err := s.apps.GetByID(ctx, applicationID)
		if err != nil {
			if isNoRows(err) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
		}
		if app.StudentID != caller.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
		}
	}
	docs, err := s.docs.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// DownloadURL issues a short-lived signed token for one document.
func (s *DocumentService) DownloadURL(ctx context.Context, caller *models.User, documentID string) (*dto.DocumentDownload, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	if caller.Role == models.RoleStudent {
		app, err := s.apps.GetByID(ctx, doc.ApplicationID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
		}
		if app.StudentID != caller.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "document belongs to another student")
		}
	}

	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &dto.DocumentDownload{
		DocumentID: doc.ID,
		URL:        fmt.Sprintf("/api/graduation/documents/download?token=%s", token),
		ExpiresAt:  expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// OpenSigned resolves a signed token back to the stored file.
func (s *DocumentService) OpenSigned(ctx context.Context, token string) (*models.GraduationDocument, *os.File, error) {
	documentID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match document")
	}

	file, err := s.store.Open(doc.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return doc, file, nil
}

func (s *DocumentService) allowedMIME(mimeType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	for _, allowed := range s.cfg.AllowedMIMEs {
		if mimeType == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (s *DocumentService) cleanup(relPath string) {
	if err := s.store.Delete(relPath); err != nil {
		s.logger.Warn("failed to reclaim stored file", zap.String("path", relPath), zap.Error(err))
	}
}

func (s *DocumentService) recordAudit(ctx context.Context, userID, action, resourceID string) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "graduation_document",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
