package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/scienceprep/exam-backend/internal/middleware"
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/response"
)

// ExamReader serves the student-facing catalog.
type ExamReader interface {
	ListForLevel(ctx context.Context, level model.PrepLevel) ([]model.ExamSummary, error)
	GetPaper(ctx context.Context, examID uuid.UUID, level model.PrepLevel) (*model.ExamPaper, error)
}

// StudentPortalHandler handles the student lobby and exam paper.
type StudentPortalHandler struct {
	exams ExamReader
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(exams ExamReader) *StudentPortalHandler {
	return &StudentPortalHandler{exams: exams}
}

// GetLobby godoc
// GET /api/v1/student/lobby
// Lists the published exams of the student's level.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exams, err := h.exams.ListForLevel(c.Request.Context(), claims.LevelID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Returns the questions without answer keys.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.exams.GetPaper(c.Request.Context(), examID, claims.LevelID)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}
