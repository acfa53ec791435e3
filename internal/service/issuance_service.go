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

type issuanceRepository interface {
	CreateDiploma(ctx context.Context, d *models.DiplomaRequest) error
	CreateCertificate(ctx context.Context, c *models.CertificateRequest) error
	GetDiploma(ctx context.Context, id string) (*models.DiplomaRequest, error)
	GetCertificate(ctx context.Context, id string) (*models.CertificateRequest, error)
	ListDiplomas(ctx context.Context, status models.IssuanceStatus, faculty string) ([]models.DiplomaRequest, error)
	ListCertificates(ctx context.Context, status models.IssuanceStatus, faculty string) ([]models.CertificateRequest, error)
	AdvanceDiploma(ctx context.Context, id string, from, to models.IssuanceStatus, notes *string, at time.Time) error
	AdvanceCertificate(ctx context.Context, id string, from, to models.IssuanceStatus, notes *string, at time.Time) error
	GetAppointmentByDiploma(ctx context.Context, diplomaID string) (*models.WetSignatureAppointment, error)
	AdvanceAppointment(ctx context.Context, diplomaID string, from, to models.AppointmentStatus, params repository.AppointmentParams) error
}

type issuanceApplicationRepository interface {
	GetByID(ctx context.Context, id string) (*models.GraduationApplication, error)
	MarkFinalized(ctx context.Context, id string, finalizedAt time.Time) error
}

type issuanceUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type overviewInvalidator interface {
	InvalidateOverview(ctx context.Context)
}

// IssuanceService is the student-affairs stage: finalizing approved
// applications into diploma/certificate requests and walking those requests
// through their lifecycle. Wet-signature diplomas cannot reach READY before
// their appointment is COMPLETED.
type IssuanceService struct {
	issuance  issuanceRepository
	apps      issuanceApplicationRepository
	users     issuanceUserRepository
	audit     auditRecorder
	notifier  workflowNotifier
	stats     overviewInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIssuanceService constructs the service.
func NewIssuanceService(
	issuance issuanceRepository,
	apps issuanceApplicationRepository,
	users issuanceUserRepository,
	audit auditRecorder,
	notifier workflowNotifier,
	stats overviewInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *IssuanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &IssuanceService{
		issuance:  issuance,
		apps:      apps,
		users:     users,
		audit:     audit,
		notifier:  notifier,
		stats:     stats,
		validator: validate,
		logger:    logger,
	}
}

// FinalizeApproved stamps finalized_at on an approved application, makes it
// visible, and opens its diploma and certificate requests.
func (s *IssuanceService) FinalizeApproved(ctx context.Context, staff *models.User, applicationID string, req dto.FinalizeIssueRequest) (*models.DiplomaRequest, []models.CertificateRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid finalize payload")
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status != models.GraduationStatusApproved {
		return nil, nil, appErrors.Clone(appErrors.ErrState, "only approved applications can be finalized")
	}

	student, err := s.users.FindByID(ctx, app.StudentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	now := time.Now().UTC()
	if err := s.apps.MarkFinalized(ctx, app.ID, now); err != nil {
		if isNoRows(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrState, "application already finalized")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize application")
	}

	diploma := &models.DiplomaRequest{
		ApplicationID: app.ID,
		StudentID:     student.ID,
		StudentName:   student.FullName,
		Department:    student.Department,
		Faculty:       student.Faculty,
		SignatureType: req.SignatureType,
		RequestedAt:   now,
	}
	if err := s.issuance.CreateDiploma(ctx, diploma); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open diploma request")
	}

	certs := make([]models.CertificateRequest, 0, len(req.CertificateKinds))
	for _, kind := range req.CertificateKinds {
		cert := models.CertificateRequest{
			ApplicationID: app.ID,
			StudentID:     student.ID,
			StudentName:   student.FullName,
			Department:    student.Department,
			Faculty:       student.Faculty,
			Kind:          kind,
			RequestedAt:   now,
		}
		if err := s.issuance.CreateCertificate(ctx, &cert); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate request")
		}
		certs = append(certs, cert)
	}

	s.recordAudit(ctx, staff.ID, app.ID, "finalized")
	s.notifier.Notify(student.ID, models.NotificationTypeIssuance,
		"Graduation finalized",
		"Your graduation was finalized and document issuance has started.")
	s.invalidate(ctx)

	return diploma, certs, nil
}

// ListDiplomas lists diploma requests for student-affairs dashboards.
func (s *IssuanceService) ListDiplomas(ctx context.Context, query dto.IssuanceQuery) ([]models.DiplomaRequest, error) {
	list, err := s.issuance.ListDiplomas(ctx, query.Status, query.Faculty)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list diplomas")
	}
	return list, nil
}

// ListCertificates lists certificate requests.
func (s *IssuanceService) ListCertificates(ctx context.Context, query dto.IssuanceQuery) ([]models.CertificateRequest, error) {
	list, err := s.issuance.ListCertificates(ctx, query.Status, query.Faculty)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return list, nil
}

// AdvanceDiploma moves a diploma to the next lifecycle status. A WET diploma
// is held before READY until its appointment completes.
func (s *IssuanceService) AdvanceDiploma(ctx context.Context, staff *models.User, id string, req dto.AdvanceIssuanceRequest) (*models.DiplomaRequest, error) {
	diploma, err := s.issuance.GetDiploma(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "diploma request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load diploma")
	}

	next := models.NextIssuanceStatus(diploma.Status)
	if next == "" {
		return nil, appErrors.Clone(appErrors.ErrState, "diploma already delivered")
	}

	if next == models.IssuanceStatusReady && diploma.SignatureType == models.SignatureTypeWet {
		appt, err := s.issuance.GetAppointmentByDiploma(ctx, diploma.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
		}
		if appt.Status != models.AppointmentStatusCompleted {
			return nil, appErrors.Clone(appErrors.ErrState, "wet signature appointment must be completed first")
		}
	}

	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}
	if err := s.issuance.AdvanceDiploma(ctx, diploma.ID, diploma.Status, next, notes, time.Now().UTC()); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrState, "diploma status changed, transition not applied")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance diploma")
	}

	s.recordAudit(ctx, staff.ID, diploma.ID, fmt.Sprintf("diploma %s", next))
	if next == models.IssuanceStatusReady || next == models.IssuanceStatusDelivered {
		s.notifier.Notify(diploma.StudentID, models.NotificationTypeIssuance,
			"Diploma status update",
			fmt.Sprintf("Your diploma is now %s.", next))
	}

	return s.issuance.GetDiploma(ctx, diploma.ID)
}

// AdvanceCertificate moves a certificate to the next lifecycle status.
func (s *IssuanceService) AdvanceCertificate(ctx context.Context, staff *models.User, id string, req dto.AdvanceIssuanceRequest) (*models.CertificateRequest, error) {
	cert, err := s.issuance.GetCertificate(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	next := models.NextIssuanceStatus(cert.Status)
	if next == "" {
		return nil, appErrors.Clone(appErrors.ErrState, "certificate already delivered")
	}

	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}
	if err := s.issuance.AdvanceCertificate(ctx, cert.ID, cert.Status, next, notes, time.Now().UTC()); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrState, "certificate status changed, transition not applied")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance certificate")
	}

	s.recordAudit(ctx, staff.ID, cert.ID, fmt.Sprintf("certificate %s", next))
	if next == models.IssuanceStatusReady || next == models.IssuanceStatusDelivered {
		s.notifier.Notify(cert.StudentID, models.NotificationTypeIssuance,
			"Certificate status update",
			fmt.Sprintf("Your %s certificate is now %s.", cert.Kind, next))
	}

	return s.issuance.GetCertificate(ctx, cert.ID)
}

// RequestAppointment opens the wet-signature appointment window
// (PENDING → REQUESTED).
func (s *IssuanceService) RequestAppointment(ctx context.Context, staff *models.User, diplomaID string, req dto.RequestAppointmentRequest) (*models.WetSignatureAppointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	requested := req.RequestedDate
	err := s.issuance.AdvanceAppointment(ctx, diplomaID,
		models.AppointmentStatusPending, models.AppointmentStatusRequested,
		repository.AppointmentParams{At: time.Now().UTC(), RequestedDate: &requested})
	if err != nil {
		return s.appointmentTransitionError(err)
	}
	s.recordAudit(ctx, staff.ID, diplomaID, "appointment requested")
	return s.issuance.GetAppointmentByDiploma(ctx, diplomaID)
}

// ScheduleAppointment books the signing slot (REQUESTED → SCHEDULED).
func (s *IssuanceService) ScheduleAppointment(ctx context.Context, staff *models.User, diplomaID string, req dto.ScheduleAppointmentRequest) (*models.WetSignatureAppointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	scheduled := req.ScheduledDate
	location := req.Location
	target := req.ForwardedTo
	err := s.issuance.AdvanceAppointment(ctx, diplomaID,
		models.AppointmentStatusRequested, models.AppointmentStatusScheduled,
		repository.AppointmentParams{
			At:            time.Now().UTC(),
			ScheduledDate: &scheduled,
			Location:      &location,
			ForwardedTo:   &target,
		})
	if err != nil {
		return s.appointmentTransitionError(err)
	}
	s.recordAudit(ctx, staff.ID, diplomaID, "appointment scheduled")
	return s.issuance.GetAppointmentByDiploma(ctx, diplomaID)
}

// CompleteAppointment records the signing as done (SCHEDULED → COMPLETED),
// unblocking READY for the diploma.
func (s *IssuanceService) CompleteAppointment(ctx context.Context, staff *models.User, diplomaID string) (*models.WetSignatureAppointment, error) {
	err := s.issuance.AdvanceAppointment(ctx, diplomaID,
		models.AppointmentStatusScheduled, models.AppointmentStatusCompleted,
		repository.AppointmentParams{At: time.Now().UTC()})
	if err != nil {
		return s.appointmentTransitionError(err)
	}
	s.recordAudit(ctx, staff.ID, diplomaID, "appointment completed")
	return s.issuance.GetAppointmentByDiploma(ctx, diplomaID)
}

func (s *IssuanceService) appointmentTransitionError(err error) (*models.WetSignatureAppointment, error) {
	if isNoRows(err) {
		return nil, appErrors.Clone(appErrors.ErrState, "appointment is not in the expected state")
	}
	return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
}

func (s *IssuanceService) invalidate(ctx context.Context) {
	if s.stats != nil {
		s.stats.InvalidateOverview(ctx)
	}
}

func (s *IssuanceService) recordAudit(ctx context.Context, userID, resourceID, detail string) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionIssuance,
		Resource:   "issuance",
		ResourceID: &resourceID,
		NewValues:  []byte(fmt.Sprintf(`{"detail":%q}`, detail)),
	}); err != nil {
		s.logger.Warn("failed to record issuance audit log", zap.Error(err))
	}
}
