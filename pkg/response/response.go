package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
)

// Envelope represents the common response contract for data endpoints.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// AuthEnvelope is the contract for auth endpoints: an explicit success flag
// plus token and user payloads.
type AuthEnvelope struct {
	Success bool             `json:"success"`
	Token   string           `json:"token,omitempty"`
	User    interface{}      `json:"user,omitempty"`
	Error   *appErrors.Error `json:"error,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Auth sends an auth success response with the issued token and user info.
func Auth(c *gin.Context, token string, user interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, AuthEnvelope{Success: true, Token: token, User: user})
}

// Success sends a bare success acknowledgement.
func Success(c *gin.Context) {
	c.JSON(http.StatusOK, AuthEnvelope{Success: true})
}

// AuthError sends an auth failure preserving the explicit success=false flag.
func AuthError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, AuthEnvelope{Success: false, Error: appErr})
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
