package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/middleware"
	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
)

type documentServiceMock struct {
	doc *models.GraduationDocument
	err error

	uploadMeta dto.UploadMeta
}

func (m *documentServiceMock) Upload(ctx context.Context, student *models.User, meta dto.UploadMeta, header *multipart.FileHeader) (*models.GraduationDocument, error) {
	m.uploadMeta = meta
	return m.doc, m.err
}

func (m *documentServiceMock) Verify(ctx context.Context, staff *models.User, documentID string, req dto.VerifyDocumentRequest) (*models.GraduationDocument, error) {
	return m.doc, m.err
}

func (m *documentServiceMock) List(ctx context.Context, caller *models.User, applicationID string) ([]models.GraduationDocument, error) {
	return nil, m.err
}

func (m *documentServiceMock) DownloadURL(ctx context.Context, caller *models.User, documentID string) (*dto.DocumentDownload, error) {
	return nil, m.err
}

func (m *documentServiceMock) OpenSigned(ctx context.Context, token string) (*models.GraduationDocument, *os.File, error) {
	return nil, nil, m.err
}

func uploadRequest(t *testing.T) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("applicationId", "app-1"))
	require.NoError(t, mw.WriteField("documentType", string(models.DocumentTypeTranscript)))
	part, err := mw.CreateFormFile("file", "transcript.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/graduation/request/document", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentHandlerUploadAnswersOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &documentServiceMock{doc: &models.GraduationDocument{ID: "doc-1", ApplicationID: "app-1"}}
	handler := NewDocumentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = uploadRequest(t)
	c.Set(middleware.ContextUserKey, studentClaims())

	handler.Upload(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "app-1", mockSvc.uploadMeta.ApplicationID)
	assert.Equal(t, models.DocumentTypeTranscript, mockSvc.uploadMeta.DocumentType)
}

func TestDocumentHandlerUploadStateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &documentServiceMock{err: appErrors.ErrState}
	handler := NewDocumentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = uploadRequest(t)
	c.Set(middleware.ContextUserKey, studentClaims())

	handler.Upload(c)
	require.Equal(t, http.StatusConflict, w.Code)
}
