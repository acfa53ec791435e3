package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
	"github.com/noah-isme/gms-api/pkg/response"
)

type statsService interface {
	Overview(ctx context.Context, query dto.StatsQuery) (*models.GraduationOverview, error)
	Export(ctx context.Context, query dto.StatsQuery, format string) ([]byte, string, error)
}

// StatsHandler exposes the graduation statistics endpoints.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(service statsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Overview godoc
// @Summary Graduation statistics overview
// @Tags Statistics
// @Produce json
// @Param faculty query string false "Faculty filter"
// @Param year query int false "Year filter"
// @Success 200 {object} response.Envelope
// @Router /statistics/graduation [get]
func (h *StatsHandler) Overview(c *gin.Context) {
	var query dto.StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid statistics query"))
		return
	}
	overview, err := h.service.Overview(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Export godoc
// @Summary Export graduation statistics as CSV or PDF
// @Tags Statistics
// @Produce octet-stream
// @Param faculty query string false "Faculty filter"
// @Param year query int false "Year filter"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /statistics/graduation/export [get]
func (h *StatsHandler) Export(c *gin.Context) {
	var query dto.StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid statistics query"))
		return
	}
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.service.Export(c.Request.Context(), query, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("graduation-statistics-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, payload)
}
