package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"boopsite/internal/domain"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
	identityKey     = "identity"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := h.log.WithFields(logrus.Fields{
			"request_id":  c.GetString(requestIDKey),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("http request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("http request completed")
		default:
			entry.Info("http request completed")
		}
	}
}

// authenticate verifies the bearer token and attaches the caller's identity.
// Requests without a valid, unexpired token never reach the route handler.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		identity, err := h.tokens.Verify(token)
		if err != nil {
			h.log.WithField("request_id", c.GetString(requestIDKey)).WithError(err).Debug("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// authorize must run after authenticate.
func authorize(roles []domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := identityFrom(c)
		if err := Authorize(identity, roles); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// Authorize reports whether identity may use a route restricted to roles.
// An empty role set places no restriction.
func Authorize(identity domain.Identity, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if identity.Role == r {
			return nil
		}
	}
	return fmt.Errorf("role %q not permitted: %w", identity.Role, domain.ErrForbidden)
}

func identityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := v.(domain.Identity)
	return identity, ok
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("invalid authorization format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("invalid authorization format")
	}
	return token, nil
}
