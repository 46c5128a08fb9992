package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scienceprep/exam-backend/internal/middleware"
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/response"
	"github.com/scienceprep/exam-backend/internal/service"
	"github.com/scienceprep/exam-backend/internal/validator"
)

// Authenticator issues student and admin tokens.
type Authenticator interface {
	StudentLogin(ctx context.Context, req *model.StudentLoginRequest) (*model.StudentLoginResponse, error)
	StudentProfile(ctx context.Context, phone string) (*model.Student, error)
	AdminLogin(req *model.AdminLoginRequest) (*model.AdminLoginResponse, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// StudentLogin godoc
// POST /api/v1/auth/student/login
// Registers a self-declared student (or refreshes a known phone) and issues
// their token. Nothing is verified.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req model.StudentLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.auth.StudentLogin(c.Request.Context(), &req)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.auth.AdminLogin(&req)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// GetStudentProfile godoc
// GET /api/v1/auth/student/me
// Returns the student's registry entry. A student removed by the admin
// still holds a valid token and gets the identity carried by it.
func (h *AuthHandler) GetStudentProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	student, err := h.auth.StudentProfile(c.Request.Context(), claims.Phone)
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		student = &model.Student{Name: claims.Name, Phone: claims.Phone, LevelID: claims.LevelID}
	case err != nil:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// GetAdminProfile godoc
// GET /api/v1/auth/admin/me
func (h *AuthHandler) GetAdminProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.TokenType != service.TokenTypeAdmin {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var expiresAt string
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	response.Success(c, http.StatusOK, gin.H{
		"role":       service.TokenTypeAdmin,
		"expires_at": expiresAt,
	})
}
