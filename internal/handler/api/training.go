package api

import (
	"errors"
	"net/http"
	"time"

	"AgriCast/internal/domain/models"
	"AgriCast/internal/usecase"
	xhttp "AgriCast/pkg/http"
	applogger "AgriCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const streamWriteWait = 5 * time.Second

type TrainingHandler struct {
	orch     *usecase.Orchestrator
	interval time.Duration
	upgrader websocket.Upgrader
	log      *applogger.Logger
}

// NewTrainingHandler serves the training endpoints. interval paces the
// progress stream.
func NewTrainingHandler(orch *usecase.Orchestrator, interval time.Duration, l *applogger.Logger) *TrainingHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &TrainingHandler{
		orch:     orch,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// CORS middleware already governs browser origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: l.With(applogger.String("component", "api")),
	}
}

func (h *TrainingHandler) Train(c echo.Context) error {
	req := &models.TrainingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.orch.Create(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, h.log, "training job creation", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *TrainingHandler) Status(c echo.Context) error {
	job, err := h.orch.Get(c.Request().Context(), c.Param("job_id"))
	if err != nil {
		return errorResponse(c, h.log, "training status", err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *TrainingHandler) List(c echo.Context) error {
	list, err := h.orch.List(c.Request().Context())
	if err != nil {
		return errorResponse(c, h.log, "training list", err)
	}
	return xhttp.SuccessResponse(c, list)
}

// Stream pushes the job snapshot over a websocket every interval until the
// job is terminal, then closes normally.
func (h *TrainingHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	jobID := c.Param("job_id")
	job, err := h.orch.Get(ctx, jobID)
	if err != nil {
		return errorResponse(c, h.log, "training stream", err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.log.Warn("websocket upgrade failed", applogger.String("job_id", jobID), applogger.Error(err))
		return nil
	}
	defer conn.Close()

	// drain client frames so close and ping control messages are processed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(job); err != nil {
			h.log.Debug("training stream write", applogger.String("job_id", jobID), applogger.Error(err))
			return nil
		}
		if job.Status.Terminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
			return nil
		}

		select {
		case <-gone:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if job, err = h.orch.Get(ctx, jobID); err != nil {
			code := websocket.CloseInternalServerErr
			if errors.Is(err, usecase.ErrJobNotFound) {
				code = websocket.ClosePolicyViolation
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, "job unavailable"), time.Now().Add(streamWriteWait))
			return nil
		}
	}
}
