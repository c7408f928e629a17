package delivery

import (
	"errors"
	"net/http"

	"deenice_finds/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SuccessResponse writes {success: true, message, ...fields}.
func SuccessResponse(c *gin.Context, statusCode int, message string, fields gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(statusCode, body)
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"success": false, "error": message})
}

func mapErrorToStatus(err error) int {
	var (
		verr     *domain.ValidationError
		nf       *domain.NotFoundError
		conflict *domain.ConflictError
		aerr     *domain.AuthError
		mbe      *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &aerr):
		if aerr.Code == domain.AuthInvalidToken {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps err to a status and body. Internal errors are logged and hidden.
func respondError(c *gin.Context, log *logrus.Logger, err error, action string) {
	status := mapErrorToStatus(err)

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(status, gin.H{"success": false, "error": "Validation failed", "errors": verr.Messages(), "fields": verr.Fields})
		return
	}
	if status == http.StatusInternalServerError {
		log.Errorf("Failed to %s: %v", action, err)
		ErrorResponse(c, status, "Failed to "+action)
		return
	}
	log.Warnf("Failed to %s: %v", action, err)
	ErrorResponse(c, status, err.Error())
}

// bindJSON decodes the body into dst and answers 400 or 413 itself on failure.
func bindJSON(c *gin.Context, log *logrus.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			log.Warnf("Request body over %d bytes on %s", mbe.Limit, c.Request.URL.Path)
			ErrorResponse(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		log.Warnf("Failed to bind JSON on %s: %v", c.Request.URL.Path, err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
