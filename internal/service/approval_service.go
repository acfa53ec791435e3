package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	"github.com/noah-isme/gms-api/internal/repository"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
)

type approvalRepository interface {
	GetByID(ctx context.Context, id string) (*models.GraduationApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.GraduationApplication, error)
	Decide(ctx context.Context, params repository.DecideParams) (*models.ApprovalStep, error)
}

type approvalUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type decisionObserver interface {
	ObserveDecision(role string, approved bool)
}

// ApprovalService drives the sequential review chain. A decision only lands
// when the application is still pending on the caller's role; a lost race
// surfaces as a state conflict and never produces a second decision.
type ApprovalService struct {
	apps      approvalRepository
	users     approvalUserRepository
	audit     auditRecorder
	notifier  workflowNotifier
	stats     overviewInvalidator
	metrics   decisionObserver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(
	apps approvalRepository,
	users approvalUserRepository,
	audit auditRecorder,
	notifier workflowNotifier,
	stats overviewInvalidator,
	metrics decisionObserver,
	validate *validator.Validate,
	logger *zap.Logger,
) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApprovalService{
		apps:      apps,
		users:     users,
		audit:     audit,
		notifier:  notifier,
		stats:     stats,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Pending lists the applications currently blocked on the caller's role.
func (s *ApprovalService) Pending(ctx context.Context, approver *models.User, limit, offset int) ([]models.GraduationApplication, error) {
	expected := models.PendingStatusFor(approver.Role)
	if expected == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role is not part of the review chain")
	}
	apps, err := s.apps.List(ctx, models.ApplicationFilter{
		Status:      []models.GraduationStatus{expected},
		CurrentStep: approver.Role,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending applications")
	}
	return apps, nil
}

// Review applies one decision by the caller's role to one application.
func (s *ApprovalService) Review(ctx context.Context, approver *models.User, applicationID string, req dto.ReviewRequest) (*models.GraduationApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	if !req.Approved && req.Remarks == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires remarks")
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	expected := models.PendingStatusFor(approver.Role)
	if expected == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role is not part of the review chain")
	}
	if app.Status != expected {
		if app.Status.Pending() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "application is pending a different role")
		}
		return nil, appErrors.Clone(appErrors.ErrState, "application is not awaiting review")
	}

	params := s.decideParams(approver, applicationID, req)
	if _, err := s.apps.Decide(ctx, params); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrState, "application state changed, decision not applied")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply decision")
	}

	s.recordReviewAudit(ctx, approver.ID, applicationID, req.Approved)
	s.notifyDecision(ctx, approver, app, params)
	if s.metrics != nil {
		s.metrics.ObserveDecision(string(approver.Role), req.Approved)
	}
	if s.stats != nil {
		s.stats.InvalidateOverview(ctx)
	}

	updated, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload application")
	}
	return updated, nil
}

// BulkReview applies the same decision to many applications independently.
// One failed item never rolls back the others; callers get a per-item report.
func (s *ApprovalService) BulkReview(ctx context.Context, approver *models.User, req dto.BulkReviewRequest) (*dto.BulkReviewResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk review payload")
	}

	result := &dto.BulkReviewResult{Items: make([]dto.BulkReviewItem, 0, len(req.ApplicationIDs))}
	for _, id := range req.ApplicationIDs {
		item := dto.BulkReviewItem{ApplicationID: id}
		updated, err := s.Review(ctx, approver, id, dto.ReviewRequest{Approved: req.Approved, Remarks: req.Remarks})
		if err != nil {
			appErr := appErrors.FromError(err)
			item.Error = appErr.Message
			item.ErrorCode = appErr.Code
			result.Failed++
		} else {
			item.Status = updated.Status
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// CanAct returns the capability table entry for the caller against one
// application.
func (s *ApprovalService) CanAct(ctx context.Context, user *models.User, applicationID string) (*dto.CapabilitiesResponse, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	caps := models.Capabilities{}
	switch user.Role {
	case models.RoleStudent:
		if app.StudentID == user.ID && app.Status == models.GraduationStatusDraft {
			caps.Upload = true
			caps.Finalize = true
		}
	case models.RoleAdvisor, models.RoleSecretary, models.RoleDean:
		if app.Status == models.PendingStatusFor(user.Role) {
			caps.Approve = true
			caps.Reject = true
		}
	case models.RoleStudentAffairs:
		if app.Status == models.GraduationStatusApproved && app.FinalizedAt == nil {
			caps.FinalizeIssue = true
		}
	}

	return &dto.CapabilitiesResponse{
		ApplicationID: app.ID,
		Status:        app.Status,
		Role:          user.Role,
		Capabilities:  caps,
	}, nil
}

func (s *ApprovalService) decideParams(approver *models.User, applicationID string, req dto.ReviewRequest) repository.DecideParams {
	now := time.Now().UTC()
	var remarks *string
	if req.Remarks != "" {
		remarks = &req.Remarks
	}

	params := repository.DecideParams{
		ApplicationID:  applicationID,
		ExpectedStatus: models.PendingStatusFor(approver.Role),
		ExpectedStep:   approver.Role,
		Remarks:        remarks,
		ActedBy:        approver.ID,
		ActedAt:        now,
	}

	if !req.Approved {
		params.NewStatus = models.GraduationStatusRejected
		params.StepStatus = models.StepStatusRejected
		params.Rejection = true
		return params
	}

	params.StepStatus = models.StepStatusApproved
	if next := nextApprover(approver.Role); next != "" {
		params.NewStatus = models.PendingStatusFor(next)
		params.NewStep = &next
	} else {
		params.NewStatus = models.GraduationStatusApproved
	}
	return params
}

func (s *ApprovalService) notifyDecision(ctx context.Context, approver *models.User, app *models.GraduationApplication, params repository.DecideParams) {
	switch params.NewStatus {
	case models.GraduationStatusRejected:
		s.notifier.Notify(app.StudentID, models.NotificationTypeDecision,
			"Graduation application rejected",
			fmt.Sprintf("Your graduation application was rejected at the %s step.", approver.Role))
	case models.GraduationStatusApproved:
		s.notifier.Notify(app.StudentID, models.NotificationTypeDecision,
			"Graduation application approved",
			"Your graduation application passed the full review chain.")
		s.notifier.NotifyRole(ctx, models.RoleStudentAffairs, "",
			models.NotificationTypeStatusChange,
			"Application ready for issuance",
			fmt.Sprintf("Application %s completed review and awaits finalization.", app.ID))
	default:
		if params.NewStep != nil {
			department := s.studentDepartment(ctx, app.StudentID)
			s.notifier.NotifyRole(ctx, *params.NewStep, department,
				models.NotificationTypeStatusChange,
				"Graduation application awaiting review",
				fmt.Sprintf("Application %s advanced to your review step.", app.ID))
		}
	}
}

func (s *ApprovalService) studentDepartment(ctx context.Context, studentID string) string {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		s.logger.Warn("failed to resolve student department", zap.String("student_id", studentID), zap.Error(err))
		return ""
	}
	return student.Department
}

func (s *ApprovalService) recordReviewAudit(ctx context.Context, userID, applicationID string, approved bool) {
	payload := []byte(`{"decision":"rejected"}`)
	if approved {
		payload = []byte(`{"decision":"approved"}`)
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionReview,
		Resource:   "graduation_application",
		ResourceID: &applicationID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record review audit log", zap.Error(err))
	}
}

func nextApprover(role models.UserRole) models.UserRole {
	for i, r := range models.ReviewChain {
		if r == role && i+1 < len(models.ReviewChain) {
			return models.ReviewChain[i+1]
		}
	}
	return ""
}
