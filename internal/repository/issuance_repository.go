package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gms-api/internal/models"
)

const diplomaColumns = `id, application_id, student_id, student_name, department, faculty,
       status, signature_type, requested_at, delivered_at, notes`

const certificateColumns = `id, application_id, student_id, student_name, department, faculty,
       kind, status, requested_at, delivered_at, notes`

const appointmentColumns = `id, diploma_id, status, requested_date, scheduled_date, location,
       forwarded_to, created_at, updated_at`

// IssuanceRepository persists diploma/certificate requests and wet-signature
// appointments for the student-affairs stage.
type IssuanceRepository struct {
	db *sqlx.DB
}

// NewIssuanceRepository constructs the repository.
func NewIssuanceRepository(db *sqlx.DB) *IssuanceRepository {
	return &IssuanceRepository{db: db}
}

// CreateDiploma inserts a diploma request. Wet-signature diplomas start with
// a PENDING appointment row in the same transaction.
func (r *IssuanceRepository) CreateDiploma(ctx context.Context, d *models.DiplomaRequest) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.IssuanceStatusRequested
	}
	if d.RequestedAt.IsZero() {
		d.RequestedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create diploma tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO diploma_requests
	(id, application_id, student_id, student_name, department, faculty, status, signature_type, requested_at, notes)
	VALUES (:id, :application_id, :student_id, :student_name, :department, :faculty, :status, :signature_type, :requested_at, :notes)`
	if _, err := tx.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("create diploma request: %w", err)
	}

	if d.SignatureType == models.SignatureTypeWet {
		appt := &models.WetSignatureAppointment{
			ID:        uuid.NewString(),
			DiplomaID: d.ID,
			Status:    models.AppointmentStatusPending,
			CreatedAt: d.RequestedAt,
			UpdatedAt: d.RequestedAt,
		}
		const apptQuery = `INSERT INTO wet_signature_appointments
		(id, diploma_id, status, created_at, updated_at)
		VALUES (:id, :diploma_id, :status, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, apptQuery, appt); err != nil {
			return fmt.Errorf("create wet signature appointment: %w", err)
		}
		d.Appointment = appt
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create diploma tx: %w", err)
	}
	return nil
}

// CreateCertificate inserts a certificate request.
func (r *IssuanceRepository) CreateCertificate(ctx context.Context, c *models.CertificateRequest) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.IssuanceStatusRequested
	}
	if c.RequestedAt.IsZero() {
		c.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificate_requests
	(id, application_id, student_id, student_name, department, faculty, kind, status, requested_at, notes)
	VALUES (:id, :application_id, :student_id, :student_name, :department, :faculty, :kind, :status, :requested_at, :notes)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create certificate request: %w", err)
	}
	return nil
}

// GetDiploma fetches a diploma with its appointment when present.
func (r *IssuanceRepository) GetDiploma(ctx context.Context, id string) (*models.DiplomaRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM diploma_requests WHERE id = $1`, diplomaColumns)
	var d models.DiplomaRequest
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		return nil, err
	}
	appt, err := r.GetAppointmentByDiploma(ctx, d.ID)
	switch {
	case err == nil:
		d.Appointment = appt
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("load appointment for diploma %s: %w", d.ID, err)
	}
	return &d, nil
}

// GetCertificate fetches one certificate request.
func (r *IssuanceRepository) GetCertificate(ctx context.Context, id string) (*models.CertificateRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificate_requests WHERE id = $1`, certificateColumns)
	var c models.CertificateRequest
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListDiplomas returns diploma requests filtered by status/faculty.
func (r *IssuanceRepository) ListDiplomas(ctx context.Context, status models.IssuanceStatus, faculty string) ([]models.DiplomaRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM diploma_requests`, diplomaColumns))
	args, conditions := issuanceConditions(status, faculty)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")
	var list []models.DiplomaRequest
	if err := r.db.SelectContext(ctx, &list, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list diploma requests: %w", err)
	}
	return list, nil
}

// ListCertificates returns certificate requests filtered by status/faculty.
func (r *IssuanceRepository) ListCertificates(ctx context.Context, status models.IssuanceStatus, faculty string) ([]models.CertificateRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM certificate_requests`, certificateColumns))
	args, conditions := issuanceConditions(status, faculty)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")
	var list []models.CertificateRequest
	if err := r.db.SelectContext(ctx, &list, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list certificate requests: %w", err)
	}
	return list, nil
}

// AdvanceDiploma moves a diploma from an expected status to the next one.
// The guard on the expected status rejects stale or repeated transitions.
func (r *IssuanceRepository) AdvanceDiploma(ctx context.Context, id string, from, to models.IssuanceStatus, notes *string, at time.Time) error {
	query := `UPDATE diploma_requests SET status = $2, notes = COALESCE($3, notes)`
	args := []interface{}{id, to, notes}
	if to == models.IssuanceStatusDelivered {
		query += `, delivered_at = $4`
		args = append(args, at)
	}
	query += fmt.Sprintf(` WHERE id = $1 AND status = '%s'`, from)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("advance diploma: %w", err)
	}
	return requireRow(result)
}

// AdvanceCertificate moves a certificate between statuses with the same guard.
func (r *IssuanceRepository) AdvanceCertificate(ctx context.Context, id string, from, to models.IssuanceStatus, notes *string, at time.Time) error {
	query := `UPDATE certificate_requests SET status = $2, notes = COALESCE($3, notes)`
	args := []interface{}{id, to, notes}
	if to == models.IssuanceStatusDelivered {
		query += `, delivered_at = $4`
		args = append(args, at)
	}
	query += fmt.Sprintf(` WHERE id = $1 AND status = '%s'`, from)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("advance certificate: %w", err)
	}
	return requireRow(result)
}

// GetAppointmentByDiploma fetches the wet-signature appointment of a diploma.
func (r *IssuanceRepository) GetAppointmentByDiploma(ctx context.Context, diplomaID string) (*models.WetSignatureAppointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM wet_signature_appointments WHERE diploma_id = $1`, appointmentColumns)
	var appt models.WetSignatureAppointment
	if err := r.db.GetContext(ctx, &appt, query, diplomaID); err != nil {
		return nil, err
	}
	return &appt, nil
}

// AdvanceAppointment transitions the appointment sub-machine with a guard on
// the expected status.
func (r *IssuanceRepository) AdvanceAppointment(ctx context.Context, diplomaID string, from, to models.AppointmentStatus, params AppointmentParams) error {
	set := []string{"status = $2", "updated_at = $3"}
	args := []interface{}{diplomaID, to, params.At}
	if params.RequestedDate != nil {
		args = append(args, params.RequestedDate)
		set = append(set, fmt.Sprintf("requested_date = $%d", len(args)))
	}
	if params.ScheduledDate != nil {
		args = append(args, params.ScheduledDate)
		set = append(set, fmt.Sprintf("scheduled_date = $%d", len(args)))
	}
	if params.Location != nil {
		args = append(args, params.Location)
		set = append(set, fmt.Sprintf("location = $%d", len(args)))
	}
	if params.ForwardedTo != nil {
		args = append(args, params.ForwardedTo)
		set = append(set, fmt.Sprintf("forwarded_to = $%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE wet_signature_appointments SET %s WHERE diploma_id = $1 AND status = '%s'`,
		strings.Join(set, ", "), from)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("advance appointment: %w", err)
	}
	return requireRow(result)
}

// AppointmentParams groups optional columns written by appointment transitions.
type AppointmentParams struct {
	At            time.Time
	RequestedDate *time.Time
	ScheduledDate *time.Time
	Location      *string
	ForwardedTo   *models.ForwardTarget
}

func issuanceConditions(status models.IssuanceStatus, faculty string) ([]interface{}, []string) {
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if faculty != "" {
		args = append(args, faculty)
		conditions = append(conditions, fmt.Sprintf("faculty = $%d", len(args)))
	}
	return args, conditions
}
