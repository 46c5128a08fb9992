package handler

import (
	"errors"
	"net/http"

	"github.com/scienceprep/exam-backend/internal/examsession"
	"github.com/scienceprep/exam-backend/internal/response"
	"github.com/scienceprep/exam-backend/internal/service"
)

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, examsession.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, service.ErrResultNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrInvalidExam):
		return http.StatusUnprocessableEntity, response.ErrInvalidExam
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrInvalidPhone):
		return http.StatusBadRequest, response.ErrInvalidPhone
	case errors.Is(err, service.ErrInvalidLevel), errors.Is(err, service.ErrInvalidStudent):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, service.ErrStudentNotFound):
		return http.StatusNotFound, response.ErrStudentNotFound
	case errors.Is(err, service.ErrPhoneTaken):
		return http.StatusConflict, response.ErrPhoneTaken
	case errors.Is(err, examsession.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion
	case errors.Is(err, examsession.ErrInvalidChoice):
		return http.StatusBadRequest, response.ErrInvalidChoice
	case errors.Is(err, examsession.ErrSubmissionInFlight):
		return http.StatusConflict, response.ErrSubmissionInFlight
	case errors.Is(err, examsession.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, examsession.ErrSessionClosed):
		return http.StatusGone, response.ErrAttemptClosed
	case errors.Is(err, examsession.ErrSubmissionFailed):
		return http.StatusBadGateway, response.ErrSubmissionFailed
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
