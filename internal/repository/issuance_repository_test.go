package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gms-api/internal/models"
)

func TestIssuanceRepositoryCreateWetDiplomaOpensAppointment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO diploma_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wet_signature_appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	d := &models.DiplomaRequest{
		ApplicationID: "app-1",
		StudentID:     "20180001",
		StudentName:   "Ayşe Yılmaz",
		Department:    "Computer Engineering",
		Faculty:       "Engineering",
		SignatureType: models.SignatureTypeWet,
	}
	require.NoError(t, repo.CreateDiploma(context.Background(), d))
	require.NotEmpty(t, d.ID)
	require.Equal(t, models.IssuanceStatusRequested, d.Status)
	require.NotNil(t, d.Appointment)
	require.Equal(t, d.ID, d.Appointment.DiplomaID)
	require.Equal(t, models.AppointmentStatusPending, d.Appointment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceRepositoryCreateElectronicDiplomaSkipsAppointment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO diploma_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	d := &models.DiplomaRequest{
		ApplicationID: "app-1",
		StudentID:     "20180001",
		SignatureType: models.SignatureTypeElectronic,
	}
	require.NoError(t, repo.CreateDiploma(context.Background(), d))
	require.Nil(t, d.Appointment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceRepositoryAdvanceDiplomaGuardsFromStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE diploma_requests SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AdvanceDiploma(context.Background(), "dip-1",
		models.IssuanceStatusRequested, models.IssuanceStatusProcessing, nil, now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE diploma_requests SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.AdvanceDiploma(context.Background(), "dip-1",
		models.IssuanceStatusRequested, models.IssuanceStatusProcessing, nil, now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceRepositoryAdvanceDiplomaStampsDelivery(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)
	now := time.Now()
	notes := "picked up in person"

	mock.ExpectExec(regexp.QuoteMeta("delivered_at = $4")).
		WithArgs("dip-1", "DELIVERED", &notes, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AdvanceDiploma(context.Background(), "dip-1",
		models.IssuanceStatusReady, models.IssuanceStatusDelivered, &notes, now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceRepositoryAdvanceCertificate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificate_requests SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AdvanceCertificate(context.Background(), "cert-1",
		models.IssuanceStatusRequested, models.IssuanceStatusProcessing, nil, time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceRepositoryAdvanceAppointmentWritesOptionalColumns(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)
	now := time.Now()
	scheduled := now.Add(48 * time.Hour)
	location := "Rectorate signing office"
	target := models.ForwardTargetRectorate

	mock.ExpectExec(regexp.QuoteMeta("UPDATE wet_signature_appointments SET status = $2, updated_at = $3, scheduled_date = $4, location = $5, forwarded_to = $6")).
		WithArgs("dip-1", "SCHEDULED", now, &scheduled, &location, &target).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AdvanceAppointment(context.Background(), "dip-1",
		models.AppointmentStatusRequested, models.AppointmentStatusScheduled, AppointmentParams{
			At:            now,
			ScheduledDate: &scheduled,
			Location:      &location,
			ForwardedTo:   &target,
		})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceRepositoryAdvanceAppointmentLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE wet_signature_appointments SET status = $2, updated_at = $3")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AdvanceAppointment(context.Background(), "dip-1",
		models.AppointmentStatusScheduled, models.AppointmentStatusCompleted, AppointmentParams{At: time.Now()})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func diplomaSelectRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "application_id", "student_id", "student_name", "department", "faculty",
		"status", "signature_type", "requested_at", "delivered_at", "notes",
	}).AddRow("dip-1", "app-1", "20180001", "Ayşe Yılmaz", "Computer Engineering", "Engineering",
		"PROCESSING", "WET", time.Now(), nil, nil)
}

func TestIssuanceRepositoryGetDiplomaWithoutAppointment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM diploma_requests WHERE id = $1")).
		WithArgs("dip-1").
		WillReturnRows(diplomaSelectRows())
	mock.ExpectQuery(regexp.QuoteMeta("FROM wet_signature_appointments WHERE diploma_id = $1")).
		WithArgs("dip-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "diploma_id", "status", "requested_date", "scheduled_date", "location",
			"forwarded_to", "created_at", "updated_at",
		}))

	d, err := repo.GetDiploma(context.Background(), "dip-1")
	require.NoError(t, err)
	require.Nil(t, d.Appointment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceRepositoryGetDiplomaPropagatesAppointmentError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM diploma_requests WHERE id = $1")).
		WithArgs("dip-1").
		WillReturnRows(diplomaSelectRows())
	mock.ExpectQuery(regexp.QuoteMeta("FROM wet_signature_appointments WHERE diploma_id = $1")).
		WithArgs("dip-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetDiploma(context.Background(), "dip-1")
	require.Error(t, err)
	require.ErrorContains(t, err, "load appointment for diploma dip-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceRepositoryListDiplomasFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIssuanceRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "application_id", "student_id", "student_name", "department", "faculty",
		"status", "signature_type", "requested_at", "delivered_at", "notes",
	}).AddRow("dip-1", "app-1", "20180001", "Ayşe Yılmaz", "Computer Engineering", "Engineering",
		"PROCESSING", "WET", time.Now(), nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, application_id, student_id")).
		WithArgs("PROCESSING", "Engineering").
		WillReturnRows(rows)

	list, err := repo.ListDiplomas(context.Background(), models.IssuanceStatusProcessing, "Engineering")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.SignatureTypeWet, list[0].SignatureType)
	require.NoError(t, mock.ExpectationsWereMet())
}
