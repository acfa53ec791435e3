package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
	"github.com/noah-isme/gms-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, student *models.User, meta dto.UploadMeta, header *multipart.FileHeader) (*models.GraduationDocument, error)
	Verify(ctx context.Context, staff *models.User, documentID string, req dto.VerifyDocumentRequest) (*models.GraduationDocument, error)
	List(ctx context.Context, caller *models.User, applicationID string) ([]models.GraduationDocument, error)
	DownloadURL(ctx context.Context, caller *models.User, documentID string) (*dto.DocumentDownload, error)
	OpenSigned(ctx context.Context, token string) (*models.GraduationDocument, *os.File, error)
}

// DocumentHandler exposes upload/verify/download endpoints for graduation
// documents.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload godoc
// @Summary Upload a graduation document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param applicationId formData string true "Application ID"
// @Param documentType formData string true "Document type"
// @Param file formData file true "Document file"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /graduation/request/document [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var meta dto.UploadMeta
	if err := c.ShouldBind(&meta); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload metadata"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	doc, err := h.service.Upload(c.Request.Context(), actorFromClaims(claims), meta, header)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Verify godoc
// @Summary Verify or reject an uploaded document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.VerifyDocumentRequest true "Verification decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /graduation/documents/{id}/verify [post]
func (h *DocumentHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.VerifyDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid verification payload"))
		return
	}
	doc, err := h.service.Verify(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// List godoc
// @Summary List documents of an application
// @Tags Documents
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /graduation/request/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docs, err := h.service.List(c.Request.Context(), actorFromClaims(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// DownloadURL godoc
// @Summary Issue a signed download URL for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /graduation/documents/{id}/url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	download, err := h.service.DownloadURL(c.Request.Context(), actorFromClaims(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, download, nil)
}

// Download godoc
// @Summary Download a document via a signed token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /graduation/documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	doc, file, err := h.service.OpenSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.Header("Content-Type", doc.MimeType)
	http.ServeContent(c.Writer, c.Request, doc.FileName, doc.UploadedAt, file)
}
