package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/examsession"
	"github.com/scienceprep/exam-backend/internal/middleware"
	"github.com/scienceprep/exam-backend/internal/response"
	ws "github.com/scienceprep/exam-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams exam attempts over WebSocket.
type WSHandler struct {
	sessions *examsession.Manager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *examsession.Manager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamSessionStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Opens (or resumes) the student's attempt and streams its state. The
// client sends answer, submit, leave and ping actions.
func (h *WSHandler) ExamSessionStream(c *gin.Context) {
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

	who := claims.Identity()
	sess, err := h.sessions.Open(c.Request.Context(), examID, who)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Open attempt failed")
		}
		response.Fail(c, status, code)
		return
	}
	defer h.sessions.Release(examID, who)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("exam_id", examID.String()).
		Str("student_phone", who.Phone).
		Logger()
	wsLog.Info().Msg("Student connected")

	views, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	out := make(chan interface{}, 8)
	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, sess, views, out, stop, wsLog)
	}()

	ws.KeepAlive(conn)
	for {
		var req ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply, leave := h.dispatch(c.Request.Context(), sess, examID, who, &req, wsLog)
		if reply != nil {
			select {
			case out <- reply:
			case <-writerDone:
			}
		}
		if leave {
			break
		}
	}

	close(stop)
	<-writerDone
}

// dispatch runs one client action and returns the direct reply, if any.
func (h *WSHandler) dispatch(ctx context.Context, sess *examsession.Session, examID uuid.UUID, who examsession.Identity, req *ws.RequestEnvelope, log zerolog.Logger) (interface{}, bool) {
	switch req.Action {
	case ws.ActionAnswer:
		if req.QuestionID == "" {
			return errorEvent(response.ErrInvalidPayload), false
		}
		if err := sess.SetAnswer(req.QuestionID, req.Answer()); err != nil {
			return errorFor(err), false
		}
		return nil, false

	case ws.ActionSubmit:
		// The result write is not tied to this connection.
		result, err := sess.Submit(context.WithoutCancel(ctx))
		if err != nil {
			return errorFor(err), false
		}
		return ws.SubmittedResponse{
			Event:    ws.EventSubmitted,
			View:     sess.View(),
			ResultID: result.ID.String(),
		}, false

	case ws.ActionLeave:
		if err := h.sessions.Abandon(ctx, examID, who); err != nil {
			log.Warn().Err(err).Msg("Abandon failed")
		}
		log.Info().Msg("Student left the attempt")
		return nil, true

	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}, false

	default:
		log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
		return errorEvent(response.ErrUnknownAction), false
	}
}

// writeLoop is the only writer on conn. It forwards attempt views, direct
// replies and keepalive pings until stop is closed or a write fails.
func (h *WSHandler) writeLoop(conn *websocket.Conn, sess *examsession.Session, views <-chan examsession.View, out <-chan interface{}, stop <-chan struct{}, log zerolog.Logger) {
	defer conn.Close()

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	finished := sess.Done()
	for {
		var err error
		select {
		case <-stop:
			return

		case v := <-views:
			err = ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, View: v})

		case msg := <-out:
			err = ws.WriteTyped(conn, msg)

		case <-ticker.C:
			err = ws.WritePing(conn)

		case <-finished:
			finished = nil
			if sess.Closed() && sess.View().State != examsession.StateSubmitted {
				_ = ws.WriteError(conn, string(response.ErrAttemptClosed), response.GetMessage(response.ErrAttemptClosed))
				_ = ws.WriteClose(conn, "attempt closed")
				return
			}
		}
		if err != nil {
			log.Debug().Err(err).Msg("Write failed, dropping connection")
			return
		}
	}
}

func errorEvent(code response.ErrCode) ws.ErrorResponse {
	return ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)}
}

func errorFor(err error) ws.ErrorResponse {
	_, code := classify(err)
	if errors.Is(err, examsession.ErrSubmissionFailed) {
		return ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: examsession.FailureNotice}
	}
	return errorEvent(code)
}
