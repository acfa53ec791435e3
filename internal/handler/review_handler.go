package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
	"github.com/noah-isme/gms-api/pkg/response"
)

type approvalService interface {
	Pending(ctx context.Context, approver *models.User, limit, offset int) ([]models.GraduationApplication, error)
	Review(ctx context.Context, approver *models.User, applicationID string, req dto.ReviewRequest) (*models.GraduationApplication, error)
	BulkReview(ctx context.Context, approver *models.User, req dto.BulkReviewRequest) (*dto.BulkReviewResult, error)
	CanAct(ctx context.Context, user *models.User, applicationID string) (*dto.CapabilitiesResponse, error)
}

// ReviewHandler exposes the approver-side endpoints of the review chain.
type ReviewHandler struct {
	service approvalService
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(service approvalService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Pending godoc
// @Summary Applications awaiting the caller's review
// @Tags Review
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /graduation/requests/pending [get]
func (h *ReviewHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	apps, err := h.service.Pending(c.Request.Context(), actorFromClaims(claims), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Review godoc
// @Summary Approve or reject one application
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ReviewRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /graduation/request/{id}/review [post]
func (h *ReviewHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	app, err := h.service.Review(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// BulkReview godoc
// @Summary Apply one decision to many applications
// @Tags Review
// @Accept json
// @Produce json
// @Param payload body dto.BulkReviewRequest true "Bulk decision payload"
// @Success 200 {object} response.Envelope
// @Router /graduation/review/bulk [post]
func (h *ReviewHandler) BulkReview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BulkReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk review payload"))
		return
	}
	result, err := h.service.BulkReview(c.Request.Context(), actorFromClaims(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Capabilities godoc
// @Summary Actions the caller may take on an application
// @Tags Review
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /graduation/request/{id}/capabilities [get]
func (h *ReviewHandler) Capabilities(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	caps, err := h.service.CanAct(c.Request.Context(), actorFromClaims(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, caps, nil)
}
