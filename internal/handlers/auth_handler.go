package handlers

import (
	"errors"
	"net/http"

	"groundstation/internal/middleware"
	"groundstation/internal/models"
	"groundstation/internal/repository"
	"groundstation/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth   service.AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger.Named("auth_handler")}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createUserRequest struct {
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

// userError maps account errors onto HTTP statuses.
func (h *AuthHandler) userError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrProtectedUser):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("user store failure",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user store failure"})
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ok, role, err := h.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.userError(c, err)
		return
	}
	if !ok {
		h.logger.Info("login failed", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"username": req.Username,
		"role":     role,
	})
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if err := h.auth.CreateUser(c.Request.Context(), req.Username, req.Password, req.Role); err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "username": req.Username})
}

func (h *AuthHandler) DeleteUser(c *gin.Context) {
	name := c.Param("name")
	if err := h.auth.DeleteUser(c.Request.Context(), name); err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdatePassword lets a caller change their own password; the superadmin
// may change anyone's.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	name := c.Param("name")
	caller, role := middleware.CurrentUser(c)
	if caller != name && role != models.RoleSuperadmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}

	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if err := h.auth.UpdatePassword(c.Request.Context(), name, req.Password); err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
