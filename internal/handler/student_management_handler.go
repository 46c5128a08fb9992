package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/response"
	"github.com/scienceprep/exam-backend/internal/validator"
)

// StudentDirectory is the admin view of the student registry.
type StudentDirectory interface {
	List(ctx context.Context, search string, page, perPage int) ([]model.Student, *response.Pagination, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateStudentRequest) (*model.Student, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StudentManagementHandler handles admin-facing student management.
type StudentManagementHandler struct {
	students StudentDirectory
}

// NewStudentManagementHandler creates a new StudentManagementHandler.
func NewStudentManagementHandler(students StudentDirectory) *StudentManagementHandler {
	return &StudentManagementHandler{students: students}
}

// ListStudents godoc
// GET /api/v1/admin/students?q=&page=&per_page=
// Lists registered students, newest first. q matches part of a name or phone.
func (h *StudentManagementHandler) ListStudents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	students, pagination, err := h.students.List(c.Request.Context(), c.Query("q"), page, perPage)
	if err != nil {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, pagination)
}

// GetStudent godoc
// GET /api/v1/admin/students/:id
func (h *StudentManagementHandler) GetStudent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	student, err := h.students.GetByID(c.Request.Context(), id)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// UpdateStudent godoc
// PUT /api/v1/admin/students/:id
// Corrects a student's name, phone or level. A phone already owned by
// another student is rejected with 409.
func (h *StudentManagementHandler) UpdateStudent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req model.UpdateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.students.Update(c.Request.Context(), id, &req)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// DeleteStudent godoc
// DELETE /api/v1/admin/students/:id
// Removes a student from the registry. Their results are kept.
func (h *StudentManagementHandler) DeleteStudent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student deleted successfully"})
}
