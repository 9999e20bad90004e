package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"boopsite/internal/domain"
)

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) (int, error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, domain.ErrInvalidInput
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, domain.ErrUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, domain.ErrForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, domain.ErrConflict
	default:
		return http.StatusInternalServerError, nil
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, sentinel := statusFor(err)

	var msg string
	switch sentinel {
	case nil:
		h.log.WithField("request_id", c.GetString(requestIDKey)).WithError(err).Error("request failed")
		msg = "internal server error"
	case domain.ErrNotFound:
		msg = "user not found"
	default:
		msg = strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	}

	c.JSON(status, gin.H{"error": msg})
}

// bindJSON decodes the request body into dst. Decoder and validator details
// stay in the log; the client only learns the body was rejected.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.log.WithField("request_id", c.GetString(requestIDKey)).WithError(err).Debug("request body rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}
