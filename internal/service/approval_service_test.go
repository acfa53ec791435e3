package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	"github.com/noah-isme/gms-api/internal/repository"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
)

type stubAuditRecorder struct {
	logs []*models.AuditLog
}

func (s *stubAuditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

type roleNotice struct {
	role       models.UserRole
	department string
	subject    string
}

type stubNotifier struct {
	direct []string
	roles  []roleNotice
}

func (s *stubNotifier) Notify(recipientID, notifType, subject, body string) {
	s.direct = append(s.direct, recipientID)
}

func (s *stubNotifier) NotifyRole(ctx context.Context, role models.UserRole, department, notifType, subject, body string) {
	s.roles = append(s.roles, roleNotice{role: role, department: department, subject: subject})
}

type stubInvalidator struct {
	calls int
}

func (s *stubInvalidator) InvalidateOverview(ctx context.Context) {
	s.calls++
}

type decisionRecord struct {
	role     string
	approved bool
}

type stubDecisionObserver struct {
	decisions []decisionRecord
}

func (s *stubDecisionObserver) ObserveDecision(role string, approved bool) {
	s.decisions = append(s.decisions, decisionRecord{role: role, approved: approved})
}

type stubUserDirectory struct {
	users map[string]*models.User
}

func (s *stubUserDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type stubApprovalRepo struct {
	apps      map[string]*models.GraduationApplication
	decided   []repository.DecideParams
	decideErr error
}

func (s *stubApprovalRepo) GetByID(ctx context.Context, id string) (*models.GraduationApplication, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (s *stubApprovalRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.GraduationApplication, error) {
	var out []models.GraduationApplication
	for _, app := range s.apps {
		for _, status := range filter.Status {
			if app.Status == status {
				out = append(out, *app)
			}
		}
	}
	return out, nil
}

func (s *stubApprovalRepo) Decide(ctx context.Context, params repository.DecideParams) (*models.ApprovalStep, error) {
	if s.decideErr != nil {
		return nil, s.decideErr
	}
	app, ok := s.apps[params.ApplicationID]
	if !ok || app.Status != params.ExpectedStatus {
		return nil, sql.ErrNoRows
	}
	s.decided = append(s.decided, params)
	app.Status = params.NewStatus
	app.CurrentStep = params.NewStep
	return &models.ApprovalStep{
		ApplicationID: params.ApplicationID,
		ApproverRole:  params.ExpectedStep,
		Status:        params.StepStatus,
	}, nil
}

func newApprovalFixture(status models.GraduationStatus) (*ApprovalService, *stubApprovalRepo, *stubNotifier, *stubInvalidator) {
	step := models.RoleAdvisor
	repo := &stubApprovalRepo{apps: map[string]*models.GraduationApplication{
		"app-1": {ID: "app-1", StudentID: "student-1", Status: status, CurrentStep: &step},
	}}
	users := &stubUserDirectory{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, Department: "Computer Engineering"},
	}}
	notifier := &stubNotifier{}
	stats := &stubInvalidator{}
	svc := NewApprovalService(repo, users, &stubAuditRecorder{}, notifier, stats, nil, validator.New(), zap.NewNop())
	return svc, repo, notifier, stats
}

func approver(role models.UserRole) *models.User {
	return &models.User{ID: "approver-" + string(role), Role: role, FullName: "Reviewer"}
}

func TestApprovalServiceReviewAdvancesToNextStep(t *testing.T) {
	svc, repo, notifier, stats := newApprovalFixture(models.GraduationStatusPendingAdvisor)

	updated, err := svc.Review(context.Background(), approver(models.RoleAdvisor), "app-1", dto.ReviewRequest{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, models.GraduationStatusPendingSecretary, updated.Status)

	require.Len(t, repo.decided, 1)
	params := repo.decided[0]
	assert.Equal(t, models.GraduationStatusPendingAdvisor, params.ExpectedStatus)
	assert.Equal(t, models.RoleAdvisor, params.ExpectedStep)
	require.NotNil(t, params.NewStep)
	assert.Equal(t, models.RoleSecretary, *params.NewStep)

	require.Len(t, notifier.roles, 1)
	assert.Equal(t, models.RoleSecretary, notifier.roles[0].role)
	assert.Equal(t, "Computer Engineering", notifier.roles[0].department)
	assert.Equal(t, 1, stats.calls)
}

func TestApprovalServiceReviewDeanApprovalCompletesChain(t *testing.T) {
	svc, repo, notifier, _ := newApprovalFixture(models.GraduationStatusPendingDean)

	updated, err := svc.Review(context.Background(), approver(models.RoleDean), "app-1", dto.ReviewRequest{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, models.GraduationStatusApproved, updated.Status)
	assert.Nil(t, repo.decided[0].NewStep)

	assert.Equal(t, []string{"student-1"}, notifier.direct)
	require.Len(t, notifier.roles, 1)
	assert.Equal(t, models.RoleStudentAffairs, notifier.roles[0].role)
}

func TestApprovalServiceReviewRejectionIsTerminal(t *testing.T) {
	svc, repo, notifier, _ := newApprovalFixture(models.GraduationStatusPendingSecretary)

	updated, err := svc.Review(context.Background(), approver(models.RoleSecretary), "app-1", dto.ReviewRequest{Approved: false, Remarks: "missing courses"})
	require.NoError(t, err)
	assert.Equal(t, models.GraduationStatusRejected, updated.Status)
	assert.True(t, repo.decided[0].Rejection)
	assert.Equal(t, []string{"student-1"}, notifier.direct)
	assert.Empty(t, notifier.roles)
}

func TestApprovalServiceReviewRejectionRequiresRemarks(t *testing.T) {
	svc, _, _, _ := newApprovalFixture(models.GraduationStatusPendingAdvisor)

	_, err := svc.Review(context.Background(), approver(models.RoleAdvisor), "app-1", dto.ReviewRequest{Approved: false})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceReviewWrongRoleForbidden(t *testing.T) {
	svc, _, _, _ := newApprovalFixture(models.GraduationStatusPendingSecretary)

	_, err := svc.Review(context.Background(), approver(models.RoleAdvisor), "app-1", dto.ReviewRequest{Approved: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceReviewTerminalStateConflict(t *testing.T) {
	svc, _, _, _ := newApprovalFixture(models.GraduationStatusApproved)

	_, err := svc.Review(context.Background(), approver(models.RoleDean), "app-1", dto.ReviewRequest{Approved: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrState.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceReviewLostRaceMapsToStateConflict(t *testing.T) {
	svc, repo, _, stats := newApprovalFixture(models.GraduationStatusPendingAdvisor)
	repo.decideErr = sql.ErrNoRows

	_, err := svc.Review(context.Background(), approver(models.RoleAdvisor), "app-1", dto.ReviewRequest{Approved: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrState.Code, appErrors.FromError(err).Code)
	assert.Zero(t, stats.calls)
}

func TestApprovalServiceReviewRoleOutsideChain(t *testing.T) {
	svc, _, _, _ := newApprovalFixture(models.GraduationStatusPendingAdvisor)

	_, err := svc.Review(context.Background(), approver(models.RoleStudent), "app-1", dto.ReviewRequest{Approved: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceReviewRecordsDecisionMetric(t *testing.T) {
	step := models.RoleAdvisor
	repo := &stubApprovalRepo{apps: map[string]*models.GraduationApplication{
		"app-1": {ID: "app-1", StudentID: "student-1", Status: models.GraduationStatusPendingAdvisor, CurrentStep: &step},
		"app-2": {ID: "app-2", StudentID: "student-1", Status: models.GraduationStatusPendingAdvisor, CurrentStep: &step},
	}}
	users := &stubUserDirectory{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, Department: "Computer Engineering"},
	}}
	metrics := &stubDecisionObserver{}
	svc := NewApprovalService(repo, users, &stubAuditRecorder{}, &stubNotifier{}, &stubInvalidator{}, metrics, validator.New(), zap.NewNop())

	_, err := svc.Review(context.Background(), approver(models.RoleAdvisor), "app-1", dto.ReviewRequest{Approved: true})
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), approver(models.RoleAdvisor), "app-2", dto.ReviewRequest{Approved: false, Remarks: "incomplete file"})
	require.NoError(t, err)

	require.Len(t, metrics.decisions, 2)
	assert.Equal(t, decisionRecord{role: string(models.RoleAdvisor), approved: true}, metrics.decisions[0])
	assert.Equal(t, decisionRecord{role: string(models.RoleAdvisor), approved: false}, metrics.decisions[1])
}

func TestApprovalServiceReviewLostRaceSkipsDecisionMetric(t *testing.T) {
	step := models.RoleAdvisor
	repo := &stubApprovalRepo{
		apps: map[string]*models.GraduationApplication{
			"app-1": {ID: "app-1", StudentID: "student-1", Status: models.GraduationStatusPendingAdvisor, CurrentStep: &step},
		},
		decideErr: sql.ErrNoRows,
	}
	users := &stubUserDirectory{users: map[string]*models.User{}}
	metrics := &stubDecisionObserver{}
	svc := NewApprovalService(repo, users, &stubAuditRecorder{}, &stubNotifier{}, &stubInvalidator{}, metrics, validator.New(), zap.NewNop())

	_, err := svc.Review(context.Background(), approver(models.RoleAdvisor), "app-1", dto.ReviewRequest{Approved: true})
	require.Error(t, err)
	assert.Empty(t, metrics.decisions)
}

func TestApprovalServiceBulkReviewReportsPerItem(t *testing.T) {
	svc, repo, _, _ := newApprovalFixture(models.GraduationStatusPendingAdvisor)
	repo.apps["app-2"] = &models.GraduationApplication{ID: "app-2", StudentID: "student-1", Status: models.GraduationStatusApproved}

	result, err := svc.BulkReview(context.Background(), approver(models.RoleAdvisor), dto.BulkReviewRequest{
		ApplicationIDs: []string{"app-1", "app-2", "missing"},
		Approved:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Items, 3)
	assert.Equal(t, models.GraduationStatusPendingSecretary, result.Items[0].Status)
	assert.Equal(t, appErrors.ErrState.Code, result.Items[1].ErrorCode)
	assert.Equal(t, appErrors.ErrNotFound.Code, result.Items[2].ErrorCode)
}

func TestApprovalServicePendingRejectsNonChainRole(t *testing.T) {
	svc, _, _, _ := newApprovalFixture(models.GraduationStatusPendingAdvisor)

	_, err := svc.Pending(context.Background(), approver(models.RoleStudentAffairs), 10, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceCanAct(t *testing.T) {
	svc, repo, _, _ := newApprovalFixture(models.GraduationStatusDraft)

	caps, err := svc.CanAct(context.Background(), &models.User{ID: "student-1", Role: models.RoleStudent}, "app-1")
	require.NoError(t, err)
	assert.True(t, caps.Capabilities.Upload)
	assert.True(t, caps.Capabilities.Finalize)
	assert.False(t, caps.Capabilities.Approve)

	repo.apps["app-1"].Status = models.GraduationStatusPendingDean
	caps, err = svc.CanAct(context.Background(), approver(models.RoleDean), "app-1")
	require.NoError(t, err)
	assert.True(t, caps.Capabilities.Approve)
	assert.True(t, caps.Capabilities.Reject)

	repo.apps["app-1"].Status = models.GraduationStatusApproved
	caps, err = svc.CanAct(context.Background(), approver(models.RoleStudentAffairs), "app-1")
	require.NoError(t, err)
	assert.True(t, caps.Capabilities.FinalizeIssue)
}
