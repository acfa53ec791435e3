package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	"github.com/noah-isme/gms-api/pkg/config"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
)

type applicationRepository interface {
	Create(ctx context.Context, app *models.GraduationApplication) error
	UpdateDraftRemarks(ctx context.Context, id, remarks string, updatedAt time.Time) error
	GetByID(ctx context.Context, id string) (*models.GraduationApplication, error)
	GetActiveByStudent(ctx context.Context, studentID string) (*models.GraduationApplication, error)
	Finalize(ctx context.Context, id string, submittedAt time.Time) error
	ListSteps(ctx context.Context, applicationID string) ([]models.ApprovalStep, error)
	SetTerminationForm(ctx context.Context, id, formPath string, updatedAt time.Time) error
	SetCeremonyApplied(ctx context.Context, id string, appliedAt time.Time) error
}

type applicationDocumentRepository interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.GraduationDocument, error)
	HasType(ctx context.Context, applicationID string, docType models.DocumentType) (bool, error)
}

type academicRecordRepository interface {
	GetByStudent(ctx context.Context, studentID string) (*models.AcademicRecord, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type workflowNotifier interface {
	Notify(recipientID, notifType, subject, body string)
	NotifyRole(ctx context.Context, role models.UserRole, department, notifType, subject, body string)
}

// ApplicationService owns the student side of the graduation lifecycle: draft
// creation, finalize, the termination form and the ceremony application.
type ApplicationService struct {
	apps      applicationRepository
	docs      applicationDocumentRepository
	academics academicRecordRepository
	users     userFinder
	audit     auditRecorder
	notifier  workflowNotifier
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.EligibilityConfig
}

// NewApplicationService constructs the service.
func NewApplicationService(
	apps applicationRepository,
	docs applicationDocumentRepository,
	academics academicRecordRepository,
	users userFinder,
	audit auditRecorder,
	notifier workflowNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.EligibilityConfig,
) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApplicationService{
		apps:      apps,
		docs:      docs,
		academics: academics,
		users:     users,
		audit:     audit,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// MyApplication returns the student's current application with its documents
// and approval history attached.
func (s *ApplicationService) MyApplication(ctx context.Context, studentID string) (*models.GraduationApplication, error) {
	app, err := s.apps.GetActiveByStudent(ctx, studentID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no graduation application found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if err := s.attachRelations(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Get loads one application with relations. Callers enforce who may see it.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.GraduationApplication, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if err := s.attachRelations(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// UpsertDraft creates the student's draft application or updates its remarks.
// Eligibility is recomputed from the academic record on every save so the
// student sees the current classification before finalizing.
func (s *ApplicationService) UpsertDraft(ctx context.Context, studentID string, req dto.UpsertDraftRequest) (*models.GraduationApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload")
	}

	eligibility, err := s.evaluate(ctx, studentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.apps.GetActiveByStudent(ctx, studentID)
	switch {
	case err == nil && !existing.Status.Terminal():
		if existing.Status != models.GraduationStatusDraft {
			return nil, appErrors.Clone(appErrors.ErrState, "application already finalized")
		}
		if err := s.apps.UpdateDraftRemarks(ctx, existing.ID, req.StudentRemarks, time.Now().UTC()); err != nil {
			if isNoRows(err) {
				return nil, appErrors.Clone(appErrors.ErrState, "application is no longer a draft")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update draft")
		}
		s.recordAudit(ctx, studentID, models.AuditActionDraftSave, existing.ID)
		return s.Get(ctx, existing.ID)
	case err != nil && !isNoRows(err):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	remarks := req.StudentRemarks
	app := &models.GraduationApplication{
		StudentID:      studentID,
		Status:         models.GraduationStatusDraft,
		Eligibility:    eligibility,
		StudentRemarks: &remarks,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create draft")
	}
	s.recordAudit(ctx, studentID, models.AuditActionDraftSave, app.ID)
	return app, nil
}

// Finalize seals the identified draft and hands it to the advisor. The
// application must belong to the caller; gates are that eligibility must not
// be NOT_ELIGIBLE and a transcript must be uploaded.
func (s *ApplicationService) Finalize(ctx context.Context, studentID, applicationID string) (*models.GraduationApplication, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	if app.Status != models.GraduationStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrState, "application already finalized")
	}

	eligibility, err := s.evaluate(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if eligibility == models.EligibilityNotEligible {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "academic record does not meet graduation requirements")
	}

	hasTranscript, err := s.docs.HasType(ctx, app.ID, models.DocumentTypeTranscript)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check documents")
	}
	if !hasTranscript {
		return nil, appErrors.Clone(appErrors.ErrValidation, "transcript upload is required before finalizing")
	}

	if err := s.apps.Finalize(ctx, app.ID, time.Now().UTC()); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrState, "application already finalized")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize application")
	}

	s.recordAudit(ctx, studentID, models.AuditActionFinalize, app.ID)
	s.notifier.NotifyRole(ctx, models.RoleAdvisor, student.Department,
		models.NotificationTypeStatusChange,
		"Graduation application awaiting review",
		fmt.Sprintf("%s submitted a graduation application for review.", student.FullName))

	return s.Get(ctx, app.ID)
}

// SubmitTerminationForm records the clearance form for an application owned by
// the student.
func (s *ApplicationService) SubmitTerminationForm(ctx context.Context, studentID string, req dto.TerminationFormRequest) (*models.GraduationApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid termination form payload")
	}

	app, err := s.ownedApplication(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if err := s.apps.SetTerminationForm(ctx, app.ID, req.FormPath, time.Now().UTC()); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record termination form")
	}
	return s.Get(ctx, app.ID)
}

// ApplyCeremony records the student's one-time graduation ceremony application.
// Only an approved application may apply.
func (s *ApplicationService) ApplyCeremony(ctx context.Context, studentID string) (*models.GraduationApplication, error) {
	app, err := s.ownedApplication(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.GraduationStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrState, "only approved applications may apply for the ceremony")
	}

	if err := s.apps.SetCeremonyApplied(ctx, app.ID, time.Now().UTC()); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrState, "ceremony application already recorded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record ceremony application")
	}
	return s.Get(ctx, app.ID)
}

func (s *ApplicationService) ownedApplication(ctx context.Context, studentID string) (*models.GraduationApplication, error) {
	app, err := s.apps.GetActiveByStudent(ctx, studentID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no graduation application found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

func (s *ApplicationService) attachRelations(ctx context.Context, app *models.GraduationApplication) error {
	docs, err := s.docs.ListByApplication(ctx, app.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	app.Documents = docs

	steps, err := s.apps.ListSteps(ctx, app.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval steps")
	}
	app.ApprovalSteps = steps
	return nil
}

func (s *ApplicationService) evaluate(ctx context.Context, userID string) (models.Eligibility, error) {
	record, err := s.academics.GetByStudent(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "no academic record on file")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic record")
	}
	return EvaluateEligibility(*record, s.cfg), nil
}

func (s *ApplicationService) recordAudit(ctx context.Context, userID, action, resourceID string) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "graduation_application",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
