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

type applicationService interface {
	MyApplication(ctx context.Context, studentID string) (*models.GraduationApplication, error)
	Get(ctx context.Context, id string) (*models.GraduationApplication, error)
	UpsertDraft(ctx context.Context, studentID string, req dto.UpsertDraftRequest) (*models.GraduationApplication, error)
	Finalize(ctx context.Context, studentID, applicationID string) (*models.GraduationApplication, error)
	SubmitTerminationForm(ctx context.Context, studentID string, req dto.TerminationFormRequest) (*models.GraduationApplication, error)
	ApplyCeremony(ctx context.Context, studentID string) (*models.GraduationApplication, error)
}

// ApplicationHandler exposes the student-facing graduation request endpoints.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Me godoc
// @Summary Current student's graduation application
// @Tags Graduation
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /graduation/request/me [get]
func (h *ApplicationHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.service.MyApplication(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Get godoc
// @Summary Application detail
// @Tags Graduation
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /graduation/request/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role == models.RoleStudent && app.StudentID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Upsert godoc
// @Summary Create or update the draft application
// @Tags Graduation
// @Accept json
// @Produce json
// @Param payload body dto.UpsertDraftRequest true "Draft payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /graduation/request [post]
func (h *ApplicationHandler) Upsert(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid draft payload"))
		return
	}
	app, err := h.service.UpsertDraft(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Finalize godoc
// @Summary Finalize the draft and hand it to the advisor
// @Tags Graduation
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /graduation/request/{id}/finalize [post]
func (h *ApplicationHandler) Finalize(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.service.Finalize(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// TerminationForm godoc
// @Summary Record the clearance form submission
// @Tags Graduation
// @Accept json
// @Produce json
// @Param payload body dto.TerminationFormRequest true "Termination form payload"
// @Success 200 {object} response.Envelope
// @Router /graduation/request/termination-form [post]
func (h *ApplicationHandler) TerminationForm(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.TerminationFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid termination form payload"))
		return
	}
	app, err := h.service.SubmitTerminationForm(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Ceremony godoc
// @Summary Apply for the graduation ceremony
// @Tags Graduation
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /graduation/request/ceremony [post]
func (h *ApplicationHandler) Ceremony(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.service.ApplyCeremony(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}
