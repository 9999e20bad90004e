package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"boopsite/internal/service"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type fingerprintRequest struct {
	FingerprintHash string `json:"fingerprintHash" binding:"required"`
}

type registerFingerprintRequest struct {
	User        loginRequest       `json:"user"`
	Fingerprint fingerprintRequest `json:"fingerprint"`
}

// LoginResponse is returned by both login endpoints.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// MessageResponse pairs a status message with the affected user.
type MessageResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// FailureResponse is the in-band failure body of fingerprint registration.
type FailureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// IdentityResponse describes the caller behind a verified token.
type IdentityResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.Create(c.Request.Context(), service.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{
		Message: "User registered successfully",
		User:    userToResponse(*user),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	log := h.log.WithField("email", req.Email)
	log.Info("login request received")

	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.WithError(err).Warn("login failed")
		h.respondError(c, err)
		return
	}

	log.WithField("user_id", sess.User.ID).Info("login successful")
	c.JSON(http.StatusOK, sessionToResponse(sess))
}

func (h *Handler) loginWithFingerprint(c *gin.Context) {
	var req fingerprintRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sess, err := h.auth.LoginWithFingerprint(c.Request.Context(), req.FingerprintHash)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.WithField("user_id", sess.User.ID).Info("fingerprint login successful")
	c.JSON(http.StatusOK, sessionToResponse(sess))
}

// registerFingerprint answers bad credentials with a 200 failure body rather
// than an HTTP error; clients depend on that shape.
func (h *Handler) registerFingerprint(c *gin.Context) {
	var req registerFingerprintRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.auth.ValidateCredentials(ctx, req.User.Email, req.User.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusOK, FailureResponse{Success: false, Message: "Invalid credentials"})
		return
	}

	linked, err := h.auth.RegisterFingerprint(ctx, req.User.Email, req.Fingerprint.FingerprintHash)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{
		Message: "Fingerprint registered successfully",
		User:    userToResponse(*linked),
	})
}

func (h *Handler) profile(c *gin.Context) {
	identity, _ := identityFrom(c)
	c.JSON(http.StatusOK, IdentityResponse{
		ID:    identity.UserID,
		Email: identity.Email,
		Role:  string(identity.Role),
	})
}

func sessionToResponse(sess *service.Session) LoginResponse {
	return LoginResponse{
		AccessToken: sess.AccessToken,
		User:        userToResponse(*sess.User),
	}
}
