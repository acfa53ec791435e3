package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
	"github.com/noah-isme/gms-api/pkg/response"
)

type issuanceService interface {
	FinalizeApproved(ctx context.Context, staff *models.User, applicationID string, req dto.FinalizeIssueRequest) (*models.DiplomaRequest, []models.CertificateRequest, error)
	ListDiplomas(ctx context.Context, query dto.IssuanceQuery) ([]models.DiplomaRequest, error)
	ListCertificates(ctx context.Context, query dto.IssuanceQuery) ([]models.CertificateRequest, error)
	AdvanceDiploma(ctx context.Context, staff *models.User, id string, req dto.AdvanceIssuanceRequest) (*models.DiplomaRequest, error)
	AdvanceCertificate(ctx context.Context, staff *models.User, id string, req dto.AdvanceIssuanceRequest) (*models.CertificateRequest, error)
	RequestAppointment(ctx context.Context, staff *models.User, diplomaID string, req dto.RequestAppointmentRequest) (*models.WetSignatureAppointment, error)
	ScheduleAppointment(ctx context.Context, staff *models.User, diplomaID string, req dto.ScheduleAppointmentRequest) (*models.WetSignatureAppointment, error)
	CompleteAppointment(ctx context.Context, staff *models.User, diplomaID string) (*models.WetSignatureAppointment, error)
}

// IssuanceHandler exposes the student-affairs issuance endpoints.
type IssuanceHandler struct {
	service issuanceService
}

// NewIssuanceHandler constructs the handler.
func NewIssuanceHandler(service issuanceService) *IssuanceHandler {
	return &IssuanceHandler{service: service}
}

// Finalize godoc
// @Summary Finalize an approved application and open issuance
// @Tags Issuance
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.FinalizeIssueRequest true "Issuance options"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issuance/applications/{id}/finalize [post]
func (h *IssuanceHandler) Finalize(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.FinalizeIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid finalize payload"))
		return
	}
	diploma, certs, err := h.service.FinalizeApproved(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"diploma": diploma, "certificates": certs}, nil)
}

// ListDiplomas godoc
// @Summary List diploma requests
// @Tags Issuance
// @Produce json
// @Param status query string false "Issuance status"
// @Param faculty query string false "Faculty"
// @Success 200 {object} response.Envelope
// @Router /issuance/diplomas [get]
func (h *IssuanceHandler) ListDiplomas(c *gin.Context) {
	var query dto.IssuanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query"))
		return
	}
	list, err := h.service.ListDiplomas(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// ListCertificates godoc
// @Summary List certificate requests
// @Tags Issuance
// @Produce json
// @Param status query string false "Issuance status"
// @Param faculty query string false "Faculty"
// @Success 200 {object} response.Envelope
// @Router /issuance/certificates [get]
func (h *IssuanceHandler) ListCertificates(c *gin.Context) {
	var query dto.IssuanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query"))
		return
	}
	list, err := h.service.ListCertificates(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// AdvanceDiploma godoc
// @Summary Move a diploma to its next status
// @Tags Issuance
// @Accept json
// @Produce json
// @Param id path string true "Diploma ID"
// @Param payload body dto.AdvanceIssuanceRequest true "Transition notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issuance/diplomas/{id}/advance [post]
func (h *IssuanceHandler) AdvanceDiploma(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AdvanceIssuanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	diploma, err := h.service.AdvanceDiploma(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diploma, nil)
}

// AdvanceCertificate godoc
// @Summary Move a certificate to its next status
// @Tags Issuance
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body dto.AdvanceIssuanceRequest true "Transition notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issuance/certificates/{id}/advance [post]
func (h *IssuanceHandler) AdvanceCertificate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AdvanceIssuanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	cert, err := h.service.AdvanceCertificate(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// RequestAppointment godoc
// @Summary Open the wet-signature appointment window
// @Tags Issuance
// @Accept json
// @Produce json
// @Param id path string true "Diploma ID"
// @Param payload body dto.RequestAppointmentRequest true "Requested date"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issuance/diplomas/{id}/appointment/request [post]
func (h *IssuanceHandler) RequestAppointment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RequestAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid appointment payload"))
		return
	}
	appt, err := h.service.RequestAppointment(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// ScheduleAppointment godoc
// @Summary Schedule the wet-signature appointment
// @Tags Issuance
// @Accept json
// @Produce json
// @Param id path string true "Diploma ID"
// @Param payload body dto.ScheduleAppointmentRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issuance/diplomas/{id}/appointment/schedule [post]
func (h *IssuanceHandler) ScheduleAppointment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ScheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid schedule payload"))
		return
	}
	appt, err := h.service.ScheduleAppointment(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// CompleteAppointment godoc
// @Summary Record the wet-signature appointment as completed
// @Tags Issuance
// @Produce json
// @Param id path string true "Diploma ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issuance/diplomas/{id}/appointment/complete [post]
func (h *IssuanceHandler) CompleteAppointment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	appt, err := h.service.CompleteAppointment(c.Request.Context(), actorFromClaims(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}
