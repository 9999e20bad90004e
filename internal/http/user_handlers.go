package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"boopsite/internal/domain"
	"boopsite/internal/service"
)

type createUserRequest struct {
	Email     string      `json:"email" binding:"required,email"`
	Password  string      `json:"password" binding:"required"`
	Role      domain.Role `json:"role"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
}

type updateUserRequest struct {
	Email     *string      `json:"email" binding:"omitempty,email"`
	Password  *string      `json:"password"`
	Role      *domain.Role `json:"role"`
	FirstName *string      `json:"firstName"`
	LastName  *string      `json:"lastName"`
}

func (r updateUserRequest) input() service.UpdateUserInput {
	return service.UpdateUserInput{
		Email:     r.Email,
		Password:  r.Password,
		Role:      r.Role,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// UserResponse is the public view of a user; hashes are never included.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.FindAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.Create(c.Request.Context(), service.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) updateUser(c *gin.Context) {
	var req updateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.users.Remove(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// updateProfile lets a user edit their own record; admins may edit anyone's.
// The role field is never applied on this path.
func (h *Handler) updateProfile(c *gin.Context) {
	id := c.Param("id")
	identity, _ := identityFrom(c)
	if identity.UserID != id && !identity.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only update your own profile"})
		return
	}

	var req updateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), id, req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func userToResponse(user domain.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
	}
	if !user.CreatedAt.IsZero() {
		resp.CreatedAt = user.CreatedAt.Format(time.RFC3339)
	}
	if !user.UpdatedAt.IsZero() {
		resp.UpdatedAt = user.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}
