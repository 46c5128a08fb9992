package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/examsession"
	"github.com/scienceprep/exam-backend/internal/model"
	"github.com/scienceprep/exam-backend/internal/response"
)

const keepAliveInterval = 30 * time.Second

// ResultReader serves stored results to the administrator.
type ResultReader interface {
	Get(ctx context.Context, resultID uuid.UUID) (*model.ExamResult, error)
	List(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamResult, *response.Pagination, error)
	Stats(ctx context.Context, examID uuid.UUID) (*model.ResultStats, error)
	ExportCSV(ctx context.Context, examID uuid.UUID, w io.Writer) error
	Subscribe(ctx context.Context, examID uuid.UUID) (<-chan *model.ExamResult, func())
}

// ResultHandler handles results review, export and the live feed.
type ResultHandler struct {
	results ResultReader
	exams   examsession.ExamCatalog
	log     zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results ResultReader, exams examsession.ExamCatalog, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		results: results,
		exams:   exams,
		log:     log.With().Str("component", "result_handler").Logger(),
	}
}

// ListResults godoc
// GET /api/v1/admin/exams/:id/results?page=&per_page=
// Newest first.
func (h *ResultHandler) ListResults(c *gin.Context) {
	exam, ok := h.loadExam(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	results, pagination, err := h.results.List(c.Request.Context(), exam.ID, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("List results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// GetResult godoc
// GET /api/v1/admin/results/:id
func (h *ResultHandler) GetResult(c *gin.Context) {
	resultID, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.results.Get(c.Request.Context(), resultID)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetStats godoc
// GET /api/v1/admin/exams/:id/stats
// Count, average, highest and lowest score. All zero without results.
func (h *ResultHandler) GetStats(c *gin.Context) {
	exam, ok := h.loadExam(c)
	if !ok {
		return
	}

	stats, err := h.results.Stats(c.Request.Context(), exam.ID)
	if err != nil {
		h.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("Result stats failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats, "max_score": exam.MaxScore()})
}

// ExportCSV godoc
// GET /api/v1/admin/exams/:id/results/export
func (h *ResultHandler) ExportCSV(c *gin.Context) {
	exam, ok := h.loadExam(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-results.csv"`, exportName(exam)))
	c.Status(http.StatusOK)

	if err := h.results.ExportCSV(c.Request.Context(), exam.ID, c.Writer); err != nil {
		// Headers are already sent.
		h.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("CSV export aborted")
		_ = c.Error(err)
	}
}

// LiveResults godoc
// GET /api/v1/admin/exams/:id/live  (Accept: text/event-stream)
// Streams every result of the exam as it is stored.
func (h *ResultHandler) LiveResults(c *gin.Context) {
	if !strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		response.Fail(c, http.StatusNotAcceptable, response.ErrStreamingNotAllowed)
		return
	}

	exam, ok := h.loadExam(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	feed, unsubscribe := h.results.Subscribe(reqCtx, exam.ID)
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	examLog := h.log.With().Str("exam_id", exam.ID.String()).Logger()
	examLog.Info().Msg("Admin attached to live results")

	writeSSE(c, "ready", gin.H{"exam_id": exam.ID, "max_score": exam.MaxScore()})

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-reqCtx.Done():
			examLog.Info().Msg("Admin detached from live results")
			return

		case res, open := <-feed:
			if !open {
				return
			}
			writeSSE(c, "result", res)

		case <-keepAlive.C:
			c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		}
	}
}

func (h *ResultHandler) loadExam(c *gin.Context) (*model.Exam, bool) {
	examID, ok := parseID(c)
	if !ok {
		return nil, false
	}

	exam, err := h.exams.GetExam(c.Request.Context(), examID)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return nil, false
	}
	return exam, true
}

func writeSSE(c *gin.Context, event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Writer.WriteString("event: " + event + "\n")
	c.Writer.WriteString("data: ")
	c.Writer.Write(data)
	c.Writer.WriteString("\n\n")
	c.Writer.Flush()
}

// exportName turns the exam title into a safe file name.
func exportName(exam *model.Exam) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, exam.Title)
	name = strings.Trim(name, "-")
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	if name == "" {
		return exam.ID.String()
	}
	return name
}
