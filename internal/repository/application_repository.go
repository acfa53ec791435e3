package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gms-api/internal/models"
)

const applicationColumns = `id, student_id, status, eligibility, current_step, is_visible,
       student_remarks, advisor_remarks, secretary_remarks, dean_remarks, rejection_reason,
       termination_form_submitted, termination_form_path, ceremony_applied, ceremony_applied_at,
       submitted_at, finalized_at, created_at, updated_at`

// ApplicationRepository persists graduation applications and their approval
// steps. All status transitions go through compare-and-swap updates so that
// concurrent decisions on the same pending step cannot both win.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new draft application.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.GraduationApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.GraduationStatusDraft
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	const query = `INSERT INTO graduation_applications
	(id, student_id, status, eligibility, current_step, is_visible, student_remarks,
	 termination_form_submitted, ceremony_applied, created_at, updated_at)
	VALUES (:id, :student_id, :status, :eligibility, :current_step, :is_visible, :student_remarks,
	 :termination_form_submitted, :ceremony_applied, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateDraftRemarks updates student remarks while the application is still a
// draft. Editing after finalize fails with sql.ErrNoRows.
func (r *ApplicationRepository) UpdateDraftRemarks(ctx context.Context, id, remarks string, updatedAt time.Time) error {
	const query = `UPDATE graduation_applications
	SET student_remarks = $2, updated_at = $3
	WHERE id = $1 AND status = 'DRAFT'`
	result, err := r.db.ExecContext(ctx, query, id, remarks, updatedAt)
	if err != nil {
		return fmt.Errorf("update draft remarks: %w", err)
	}
	return requireRow(result)
}

// GetByID fetches an application by identifier.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.GraduationApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM graduation_applications WHERE id = $1`, applicationColumns)
	var app models.GraduationApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// GetActiveByStudent returns the student's current application. At most one
// non-terminal application exists per student; when only terminal ones exist
// the most recent is returned.
func (r *ApplicationRepository) GetActiveByStudent(ctx context.Context, studentID string) (*models.GraduationApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM graduation_applications
	WHERE student_id = $1
	ORDER BY (status IN ('APPROVED','REJECTED')), created_at DESC
	LIMIT 1`, applicationColumns)
	var app models.GraduationApplication
	if err := r.db.GetContext(ctx, &app, query, studentID); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications matching the filter, newest first.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.GraduationApplication, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM graduation_applications`, applicationColumns))

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CurrentStep != "" {
		args = append(args, filter.CurrentStep)
		conditions = append(conditions, fmt.Sprintf("current_step = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.VisibleOnly {
		conditions = append(conditions, "is_visible = TRUE")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC NULLS LAST, created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var apps []models.GraduationApplication
	if err := r.db.SelectContext(ctx, &apps, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// Finalize seals a draft and hands it to the advisor. The WHERE clause on
// DRAFT makes double-finalize lose with sql.ErrNoRows.
func (r *ApplicationRepository) Finalize(ctx context.Context, id string, submittedAt time.Time) error {
	const query = `UPDATE graduation_applications
	SET status = 'PENDING_ADVISOR', current_step = 'ADVISOR', submitted_at = $2, updated_at = $2
	WHERE id = $1 AND status = 'DRAFT'`
	result, err := r.db.ExecContext(ctx, query, id, submittedAt)
	if err != nil {
		return fmt.Errorf("finalize application: %w", err)
	}
	return requireRow(result)
}

// DecideParams groups the columns written by one review decision.
type DecideParams struct {
	ApplicationID  string
	ExpectedStatus models.GraduationStatus
	ExpectedStep   models.UserRole
	NewStatus      models.GraduationStatus
	NewStep        *models.UserRole
	StepStatus     models.StepStatus
	Remarks        *string
	ActedBy        string
	ActedAt        time.Time
	Rejection      bool
}

// Decide atomically applies one reviewer decision: a compare-and-swap update
// of the application row guarded by (status, current_step), then an approval
// step insert in the same transaction. A lost race or an already-decided step
// surfaces as sql.ErrNoRows and writes nothing.
func (r *ApplicationRepository) Decide(ctx context.Context, params DecideParams) (*models.ApprovalStep, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin decide tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	remarksColumn, err := remarksColumnFor(params.ExpectedStep)
	if err != nil {
		return nil, err
	}

	set := []string{
		"status = $2",
		"current_step = $3",
		fmt.Sprintf("%s = $4", remarksColumn),
		"updated_at = $5",
	}
	args := []interface{}{params.ApplicationID, params.NewStatus, params.NewStep, params.Remarks, params.ActedAt}
	if params.Rejection {
		set = append(set, "rejection_reason = $6")
		args = append(args, params.Remarks)
	}
	query := fmt.Sprintf(`UPDATE graduation_applications SET %s WHERE id = $1 AND status = '%s' AND current_step = '%s'`,
		strings.Join(set, ", "), params.ExpectedStatus, params.ExpectedStep)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("decide update: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}

	step := &models.ApprovalStep{
		ID:            uuid.NewString(),
		ApplicationID: params.ApplicationID,
		ApproverRole:  params.ExpectedStep,
		Status:        params.StepStatus,
		Remarks:       params.Remarks,
		ActedBy:       &params.ActedBy,
		ActedAt:       &params.ActedAt,
		CreatedAt:     params.ActedAt,
	}
	const insertStep = `INSERT INTO approval_steps
	(id, application_id, step_order, approver_role, status, remarks, acted_by, acted_at, created_at)
	VALUES ($1, $2,
	 (SELECT COALESCE(MAX(step_order), 0) + 1 FROM approval_steps WHERE application_id = $2),
	 $3, $4, $5, $6, $7, $8)
	RETURNING step_order`
	if err := tx.QueryRowxContext(ctx, insertStep,
		step.ID, step.ApplicationID, step.ApproverRole, step.Status,
		step.Remarks, step.ActedBy, step.ActedAt, step.CreatedAt,
	).Scan(&step.StepOrder); err != nil {
		return nil, fmt.Errorf("insert approval step: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decide tx: %w", err)
	}
	return step, nil
}

// ListSteps returns the approval history of an application ordered by step.
func (r *ApplicationRepository) ListSteps(ctx context.Context, applicationID string) ([]models.ApprovalStep, error) {
	const query = `SELECT id, application_id, step_order, approver_role, status, remarks, acted_by, acted_at, created_at
	FROM approval_steps WHERE application_id = $1 ORDER BY step_order ASC`
	var steps []models.ApprovalStep
	if err := r.db.SelectContext(ctx, &steps, query, applicationID); err != nil {
		return nil, fmt.Errorf("list approval steps: %w", err)
	}
	return steps, nil
}

// SetTerminationForm marks the clearance form as submitted.
func (r *ApplicationRepository) SetTerminationForm(ctx context.Context, id, formPath string, updatedAt time.Time) error {
	const query = `UPDATE graduation_applications
	SET termination_form_submitted = TRUE, termination_form_path = $2, updated_at = $3
	WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, formPath, updatedAt)
	if err != nil {
		return fmt.Errorf("set termination form: %w", err)
	}
	return requireRow(result)
}

// SetCeremonyApplied records the ceremony application exactly once.
func (r *ApplicationRepository) SetCeremonyApplied(ctx context.Context, id string, appliedAt time.Time) error {
	const query = `UPDATE graduation_applications
	SET ceremony_applied = TRUE, ceremony_applied_at = $2, updated_at = $2
	WHERE id = $1 AND ceremony_applied = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, appliedAt)
	if err != nil {
		return fmt.Errorf("set ceremony applied: %w", err)
	}
	return requireRow(result)
}

// MarkFinalized stamps student-affairs finalization of an approved
// application and exposes it to later stages.
func (r *ApplicationRepository) MarkFinalized(ctx context.Context, id string, finalizedAt time.Time) error {
	const query = `UPDATE graduation_applications
	SET finalized_at = $2, is_visible = TRUE, updated_at = $2
	WHERE id = $1 AND status = 'APPROVED' AND finalized_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, finalizedAt)
	if err != nil {
		return fmt.Errorf("mark finalized: %w", err)
	}
	return requireRow(result)
}

// Delete removes an application. Documents and approval steps cascade at the
// schema level.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM graduation_applications WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return requireRow(result)
}

func remarksColumnFor(role models.UserRole) (string, error) {
	switch role {
	case models.RoleAdvisor:
		return "advisor_remarks", nil
	case models.RoleSecretary:
		return "secretary_remarks", nil
	case models.RoleDean:
		return "dean_remarks", nil
	}
	return "", fmt.Errorf("no remarks column for role %s", role)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
