package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"boopsite/internal/domain"
	"boopsite/internal/service"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users  service.UserService
	auth   service.AuthService
	tokens TokenVerifier
	log    logrus.FieldLogger
}

func NewHandler(users service.UserService, auth service.AuthService, tokens TokenVerifier, log logrus.FieldLogger) *Handler {
	return &Handler{
		users:  users,
		auth:   auth,
		tokens: tokens,
		log:    log,
	}
}

// Route is one entry of the routing table. Public routes skip token
// verification entirely; Roles, when non-empty, restricts a protected route
// to callers holding one of the listed roles.
type Route struct {
	Method  string
	Path    string
	Public  bool
	Roles   []domain.Role
	Handler gin.HandlerFunc
}

var adminOnly = []domain.Role{domain.RoleAdmin}

// Routes returns the routing table served by RegisterRoutes.
func (h *Handler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/health", Public: true, Handler: h.health},

		{Method: http.MethodPost, Path: "/auth/register", Public: true, Handler: h.register},
		{Method: http.MethodPost, Path: "/auth/login", Public: true, Handler: h.login},
		{Method: http.MethodPost, Path: "/auth/login/fingerprint", Public: true, Handler: h.loginWithFingerprint},
		{Method: http.MethodPost, Path: "/auth/fingerprint/register", Public: true, Handler: h.registerFingerprint},
		{Method: http.MethodGet, Path: "/auth/profile", Handler: h.profile},

		{Method: http.MethodGet, Path: "/users", Roles: adminOnly, Handler: h.listUsers},
		{Method: http.MethodGet, Path: "/users/:id", Roles: adminOnly, Handler: h.getUser},
		{Method: http.MethodPost, Path: "/users", Roles: adminOnly, Handler: h.createUser},
		{Method: http.MethodPatch, Path: "/users/:id", Roles: adminOnly, Handler: h.updateUser},
		{Method: http.MethodDelete, Path: "/users/:id", Roles: adminOnly, Handler: h.deleteUser},
		// ownership is checked in the handler
		{Method: http.MethodPatch, Path: "/users/:id/profile", Handler: h.updateProfile},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestIDMiddleware(), h.requestLogger(), corsMiddleware())

	for _, r := range h.Routes() {
		chain := make([]gin.HandlerFunc, 0, 3)
		if !r.Public {
			chain = append(chain, h.authenticate())
			if len(r.Roles) > 0 {
				chain = append(chain, authorize(r.Roles))
			}
		}
		chain = append(chain, r.Handler)
		router.Handle(r.Method, r.Path, chain...)
	}
}

// NewRouter builds a gin engine serving the handler's routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": "ok"})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-Id")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
