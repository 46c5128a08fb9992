package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/response"
	"github.com/scienceprep/exam-backend/internal/service"
	"github.com/scienceprep/exam-backend/internal/validator"
)

// ExamAdmin is the administrator's view of the catalog.
type ExamAdmin interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	List(ctx context.Context, level *model.PrepLevel, page, perPage int) ([]service.AdminExamItem, *response.Pagination, error)
	Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error)
	Update(ctx context.Context, examID uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error)
	SetPublished(ctx context.Context, examID uuid.UUID, published bool) error
	Delete(ctx context.Context, examID uuid.UUID) error
	PrewarmAllCaches(ctx context.Context) error
}

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	exams ExamAdmin
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(exams ExamAdmin) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// ListExams godoc
// GET /api/v1/admin/exams?level_id=&page=&per_page=
// Lists exams with pagination and result stats.
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	var level *model.PrepLevel
	if raw := c.Query("level_id"); raw != "" {
		l := model.PrepLevel(raw)
		if !l.Valid() {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"level_id": "level_id must be one of 1st-prep, 2nd-prep, 3rd-prep",
			})
			return
		}
		level = &l
	}

	exams, pagination, err := h.exams.List(c.Request.Context(), level, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
// Returns the full definition, answer keys included.
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := parseID(c)
	if !ok {
		return
	}

	exam, err := h.exams.GetExam(c.Request.Context(), examID)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CreateExam godoc
// POST /api/v1/admin/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Create(c.Request.Context(), &req)
	if err != nil {
		failExamWrite(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/admin/exams/:id
// Merges the given fields. time_limit_minutes=0 removes the time limit.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	examID, ok := parseID(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Update(c.Request.Context(), examID, &req)
	if err != nil {
		failExamWrite(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// PublishExam godoc
// POST /api/v1/admin/exams/:id/publish
func (h *ExamHandler) PublishExam(c *gin.Context) {
	h.setPublished(c, true)
}

// UnpublishExam godoc
// POST /api/v1/admin/exams/:id/unpublish
func (h *ExamHandler) UnpublishExam(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *ExamHandler) setPublished(c *gin.Context, published bool) {
	examID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.exams.SetPublished(c.Request.Context(), examID, published); err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam_id": examID, "published": published})
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:id
// Removes the exam together with its results.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	examID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.exams.Delete(c.Request.Context(), examID); err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam deleted"})
}

// RefreshExamCache godoc
// POST /api/v1/admin/exams/refresh-cache
// Reloads every published exam into Redis.
func (h *ExamHandler) RefreshExamCache(c *gin.Context) {
	if err := h.exams.PrewarmAllCaches(c.Request.Context()); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam cache refreshed"})
}

// failExamWrite reports invalid definitions with the validation detail.
func failExamWrite(c *gin.Context, err error) {
	status, code := classify(err)
	if code == response.ErrInvalidExam {
		response.FailWithFields(c, status, code, map[string]string{"questions": err.Error()})
		return
	}
	response.Fail(c, status, code)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
