package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gms-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func applicationRows(id, studentID string, status models.GraduationStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "student_id", "status", "eligibility", "current_step", "is_visible",
		"student_remarks", "advisor_remarks", "secretary_remarks", "dean_remarks", "rejection_reason",
		"termination_form_submitted", "termination_form_path", "ceremony_applied", "ceremony_applied_at",
		"submitted_at", "finalized_at", "created_at", "updated_at",
	}).AddRow(id, studentID, status, "ELIGIBLE", nil, false,
		nil, nil, nil, nil, nil,
		false, nil, false, nil,
		nil, nil, now, now)
}

func TestApplicationRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO graduation_applications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.GraduationApplication{StudentID: "student-1", Eligibility: models.EligibilityEligible}
	require.NoError(t, repo.Create(context.Background(), app))
	require.NotEmpty(t, app.ID)
	require.Equal(t, models.GraduationStatusDraft, app.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, status, eligibility")).
		WithArgs(app.ID).
		WillReturnRows(applicationRows(app.ID, "student-1", models.GraduationStatusDraft))

	found, err := repo.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	require.Equal(t, app.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFinalizeGuardsDraft(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE graduation_applications")).
		WithArgs("app-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Finalize(context.Background(), "app-1", now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE graduation_applications")).
		WithArgs("app-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Finalize(context.Background(), "app-1", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryDecideWinsRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	now := time.Now()
	next := models.RoleSecretary
	remarks := "looks complete"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE graduation_applications SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO approval_steps")).
		WillReturnRows(sqlmock.NewRows([]string{"step_order"}).AddRow(1))
	mock.ExpectCommit()

	step, err := repo.Decide(context.Background(), DecideParams{
		ApplicationID:  "app-1",
		ExpectedStatus: models.GraduationStatusPendingAdvisor,
		ExpectedStep:   models.RoleAdvisor,
		NewStatus:      models.GraduationStatusPendingSecretary,
		NewStep:        &next,
		StepStatus:     models.StepStatusApproved,
		Remarks:        &remarks,
		ActedBy:        "advisor-1",
		ActedAt:        now,
	})
	require.NoError(t, err)
	require.Equal(t, 1, step.StepOrder)
	require.Equal(t, models.RoleAdvisor, step.ApproverRole)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryDecideLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE graduation_applications SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Decide(context.Background(), DecideParams{
		ApplicationID:  "app-1",
		ExpectedStatus: models.GraduationStatusPendingAdvisor,
		ExpectedStep:   models.RoleAdvisor,
		NewStatus:      models.GraduationStatusRejected,
		StepStatus:     models.StepStatusRejected,
		ActedBy:        "advisor-1",
		ActedAt:        time.Now(),
		Rejection:      true,
	})
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryDecideRejectsUnknownRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := repo.Decide(context.Background(), DecideParams{
		ApplicationID: "app-1",
		ExpectedStep:  models.RoleStudent,
	})
	require.Error(t, err)
}

func TestApplicationRepositoryMarkFinalizedIsIdempotentGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE graduation_applications")).
		WithArgs("app-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkFinalized(context.Background(), "app-1", now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE graduation_applications")).
		WithArgs("app-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkFinalized(context.Background(), "app-1", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, status, eligibility")).
		WithArgs("PENDING_ADVISOR", "ADVISOR").
		WillReturnRows(applicationRows("app-1", "student-1", models.GraduationStatusPendingAdvisor))

	list, err := repo.List(context.Background(), models.ApplicationFilter{
		Status:      []models.GraduationStatus{models.GraduationStatusPendingAdvisor},
		CurrentStep: models.RoleAdvisor,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "app-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
