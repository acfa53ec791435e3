package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	"github.com/noah-isme/gms-api/internal/repository"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
)

type stubIssuanceApps struct {
	apps         map[string]*models.GraduationApplication
	finalized    []string
	finalizedErr error
}

func (s *stubIssuanceApps) GetByID(ctx context.Context, id string) (*models.GraduationApplication, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (s *stubIssuanceApps) MarkFinalized(ctx context.Context, id string, finalizedAt time.Time) error {
	if s.finalizedErr != nil {
		return s.finalizedErr
	}
	s.finalized = append(s.finalized, id)
	return nil
}

type stubIssuanceRepo struct {
	diplomas     map[string]*models.DiplomaRequest
	certificates map[string]*models.CertificateRequest
	appointments map[string]*models.WetSignatureAppointment

	advanceErr error
}

func (s *stubIssuanceRepo) CreateDiploma(ctx context.Context, d *models.DiplomaRequest) error {
	if d.ID == "" {
		d.ID = "diploma-1"
	}
	d.Status = models.IssuanceStatusRequested
	s.diplomas[d.ID] = d
	if d.SignatureType == models.SignatureTypeWet {
		s.appointments[d.ID] = &models.WetSignatureAppointment{DiplomaID: d.ID, Status: models.AppointmentStatusPending}
	}
	return nil
}

func (s *stubIssuanceRepo) CreateCertificate(ctx context.Context, c *models.CertificateRequest) error {
	if c.ID == "" {
		c.ID = "cert-" + string(c.Kind)
	}
	c.Status = models.IssuanceStatusRequested
	s.certificates[c.ID] = c
	return nil
}

func (s *stubIssuanceRepo) GetDiploma(ctx context.Context, id string) (*models.DiplomaRequest, error) {
	d, ok := s.diplomas[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *d
	return &copied, nil
}

func (s *stubIssuanceRepo) GetCertificate(ctx context.Context, id string) (*models.CertificateRequest, error) {
	c, ok := s.certificates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (s *stubIssuanceRepo) ListDiplomas(ctx context.Context, status models.IssuanceStatus, faculty string) ([]models.DiplomaRequest, error) {
	var out []models.DiplomaRequest
	for _, d := range s.diplomas {
		out = append(out, *d)
	}
	return out, nil
}

func (s *stubIssuanceRepo) ListCertificates(ctx context.Context, status models.IssuanceStatus, faculty string) ([]models.CertificateRequest, error) {
	var out []models.CertificateRequest
	for _, c := range s.certificates {
		out = append(out, *c)
	}
	return out, nil
}

func (s *stubIssuanceRepo) AdvanceDiploma(ctx context.Context, id string, from, to models.IssuanceStatus, notes *string, at time.Time) error {
	if s.advanceErr != nil {
		return s.advanceErr
	}
	d, ok := s.diplomas[id]
	if !ok || d.Status != from {
		return sql.ErrNoRows
	}
	d.Status = to
	return nil
}

func (s *stubIssuanceRepo) AdvanceCertificate(ctx context.Context, id string, from, to models.IssuanceStatus, notes *string, at time.Time) error {
	c, ok := s.certificates[id]
	if !ok || c.Status != from {
		return sql.ErrNoRows
	}
	c.Status = to
	return nil
}

func (s *stubIssuanceRepo) GetAppointmentByDiploma(ctx context.Context, diplomaID string) (*models.WetSignatureAppointment, error) {
	a, ok := s.appointments[diplomaID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (s *stubIssuanceRepo) AdvanceAppointment(ctx context.Context, diplomaID string, from, to models.AppointmentStatus, params repository.AppointmentParams) error {
	a, ok := s.appointments[diplomaID]
	if !ok || a.Status != from {
		return sql.ErrNoRows
	}
	a.Status = to
	return nil
}

func newIssuanceFixture(appStatus models.GraduationStatus) (*IssuanceService, *stubIssuanceRepo, *stubIssuanceApps, *stubNotifier, *stubInvalidator) {
	apps := &stubIssuanceApps{apps: map[string]*models.GraduationApplication{
		"app-1": {ID: "app-1", StudentID: "student-1", Status: appStatus},
	}}
	issuance := &stubIssuanceRepo{
		diplomas:     map[string]*models.DiplomaRequest{},
		certificates: map[string]*models.CertificateRequest{},
		appointments: map[string]*models.WetSignatureAppointment{},
	}
	studentNo := "20180001"
	users := &stubUserDirectory{users: map[string]*models.User{
		"student-1": {
			ID: "student-1", Role: models.RoleStudent, FullName: "Ayşe Yılmaz",
			Department: "Computer Engineering", Faculty: "Engineering", StudentID: &studentNo,
		},
	}}
	notifier := &stubNotifier{}
	stats := &stubInvalidator{}
	svc := NewIssuanceService(issuance, apps, users, &stubAuditRecorder{}, notifier, stats, validator.New(), zap.NewNop())
	return svc, issuance, apps, notifier, stats
}

func staffUser() *models.User {
	return &models.User{ID: "staff-1", Role: models.RoleStudentAffairs, FullName: "Affairs Officer"}
}

func TestIssuanceServiceFinalizeApproved(t *testing.T) {
	svc, issuance, apps, notifier, stats := newIssuanceFixture(models.GraduationStatusApproved)

	diploma, certs, err := svc.FinalizeApproved(context.Background(), staffUser(), "app-1", dto.FinalizeIssueRequest{
		SignatureType:    models.SignatureTypeWet,
		CertificateKinds: []models.CertificateKind{models.CertificateKindHonor},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app-1"}, apps.finalized)
	assert.Equal(t, models.IssuanceStatusRequested, diploma.Status)
	assert.Equal(t, "Ayşe Yılmaz", diploma.StudentName)
	assert.Equal(t, "Engineering", diploma.Faculty)
	require.Len(t, certs, 1)
	assert.Equal(t, models.CertificateKindHonor, certs[0].Kind)

	appt, err := issuance.GetAppointmentByDiploma(context.Background(), diploma.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusPending, appt.Status)

	assert.Equal(t, []string{"student-1"}, notifier.direct)
	assert.Equal(t, 1, stats.calls)
}

func TestIssuanceServiceFinalizeRejectsUnapproved(t *testing.T) {
	svc, _, apps, _, _ := newIssuanceFixture(models.GraduationStatusPendingDean)

	_, _, err := svc.FinalizeApproved(context.Background(), staffUser(), "app-1", dto.FinalizeIssueRequest{SignatureType: models.SignatureTypeElectronic})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, apps.finalized)
}

func TestIssuanceServiceFinalizeLostRace(t *testing.T) {
	svc, _, apps, _, stats := newIssuanceFixture(models.GraduationStatusApproved)
	apps.finalizedErr = sql.ErrNoRows

	_, _, err := svc.FinalizeApproved(context.Background(), staffUser(), "app-1", dto.FinalizeIssueRequest{SignatureType: models.SignatureTypeElectronic})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrState.Code, appErrors.FromError(err).Code)
	assert.Zero(t, stats.calls)
}

func TestIssuanceServiceWetDiplomaHeldBeforeReady(t *testing.T) {
	svc, issuance, _, _, _ := newIssuanceFixture(models.GraduationStatusApproved)
	issuance.diplomas["dip-1"] = &models.DiplomaRequest{
		ID: "dip-1", StudentID: "student-1",
		Status: models.IssuanceStatusProcessing, SignatureType: models.SignatureTypeWet,
	}
	issuance.appointments["dip-1"] = &models.WetSignatureAppointment{DiplomaID: "dip-1", Status: models.AppointmentStatusScheduled}

	_, err := svc.AdvanceDiploma(context.Background(), staffUser(), "dip-1", dto.AdvanceIssuanceRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrState.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.IssuanceStatusProcessing, issuance.diplomas["dip-1"].Status)

	issuance.appointments["dip-1"].Status = models.AppointmentStatusCompleted
	diploma, err := svc.AdvanceDiploma(context.Background(), staffUser(), "dip-1", dto.AdvanceIssuanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.IssuanceStatusReady, diploma.Status)
}

func TestIssuanceServiceElectronicDiplomaSkipsAppointment(t *testing.T) {
	svc, issuance, _, notifier, _ := newIssuanceFixture(models.GraduationStatusApproved)
	issuance.diplomas["dip-1"] = &models.DiplomaRequest{
		ID: "dip-1", StudentID: "student-1",
		Status: models.IssuanceStatusProcessing, SignatureType: models.SignatureTypeElectronic,
	}

	diploma, err := svc.AdvanceDiploma(context.Background(), staffUser(), "dip-1", dto.AdvanceIssuanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.IssuanceStatusReady, diploma.Status)
	assert.Equal(t, []string{"student-1"}, notifier.direct)
}

func TestIssuanceServiceAdvanceDeliveredDiplomaConflicts(t *testing.T) {
	svc, issuance, _, _, _ := newIssuanceFixture(models.GraduationStatusApproved)
	issuance.diplomas["dip-1"] = &models.DiplomaRequest{
		ID: "dip-1", StudentID: "student-1",
		Status: models.IssuanceStatusDelivered, SignatureType: models.SignatureTypeElectronic,
	}

	_, err := svc.AdvanceDiploma(context.Background(), staffUser(), "dip-1", dto.AdvanceIssuanceRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrState.Code, appErrors.FromError(err).Code)
}

func TestIssuanceServiceAdvanceCertificate(t *testing.T) {
	svc, issuance, _, _, _ := newIssuanceFixture(models.GraduationStatusApproved)
	issuance.certificates["cert-1"] = &models.CertificateRequest{
		ID: "cert-1", StudentID: "student-1", Kind: models.CertificateKindHighHonor,
		Status: models.IssuanceStatusRequested,
	}

	cert, err := svc.AdvanceCertificate(context.Background(), staffUser(), "cert-1", dto.AdvanceIssuanceRequest{Notes: "printing"})
	require.NoError(t, err)
	assert.Equal(t, models.IssuanceStatusProcessing, cert.Status)
}

func TestIssuanceServiceAppointmentLifecycle(t *testing.T) {
	svc, issuance, _, _, _ := newIssuanceFixture(models.GraduationStatusApproved)
	issuance.diplomas["dip-1"] = &models.DiplomaRequest{
		ID: "dip-1", StudentID: "student-1",
		Status: models.IssuanceStatusProcessing, SignatureType: models.SignatureTypeWet,
	}
	issuance.appointments["dip-1"] = &models.WetSignatureAppointment{DiplomaID: "dip-1", Status: models.AppointmentStatusPending}

	appt, err := svc.RequestAppointment(context.Background(), staffUser(), "dip-1", dto.RequestAppointmentRequest{RequestedDate: time.Now().Add(48 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusRequested, appt.Status)

	appt, err = svc.ScheduleAppointment(context.Background(), staffUser(), "dip-1", dto.ScheduleAppointmentRequest{
		ScheduledDate: time.Now().Add(72 * time.Hour),
		Location:      "Rectorate signing office",
		ForwardedTo:   models.ForwardTargetRectorate,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusScheduled, appt.Status)

	appt, err = svc.CompleteAppointment(context.Background(), staffUser(), "dip-1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCompleted, appt.Status)
}

func TestIssuanceServiceAppointmentOutOfOrder(t *testing.T) {
	svc, issuance, _, _, _ := newIssuanceFixture(models.GraduationStatusApproved)
	issuance.appointments["dip-1"] = &models.WetSignatureAppointment{DiplomaID: "dip-1", Status: models.AppointmentStatusPending}

	_, err := svc.CompleteAppointment(context.Background(), staffUser(), "dip-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrState.Code, appErrors.FromError(err).Code)
}
