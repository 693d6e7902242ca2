package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agentbench/internal/submission/model"
	"agentbench/internal/submission/service"
	"agentbench/pkg/utils/logger"
	"agentbench/pkg/utils/response"
)

const (
	watchWriteTimeout = 5 * time.Second
	watchMaxDuration  = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth already ran; browser clients connect cross-origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WatchController streams submission status changes over a websocket until
// the submission reaches a terminal state.
type WatchController struct {
	submissionService *service.SubmissionService
}

// NewWatchController creates a new WatchController.
func NewWatchController(submissionService *service.SubmissionService) *WatchController {
	return &WatchController{submissionService: submissionService}
}

// StatusEvent is one websocket frame of the watch stream.
type StatusEvent struct {
	SubmissionID int64  `json:"submission_id"`
	Status       string `json:"status"`
	Terminal     bool   `json:"terminal"`
}

// Watch upgrades the connection and pushes every status change of the
// submission, closing after the terminal state is delivered.
func (h *WatchController) Watch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid submission id")
		return
	}

	// Verify the submission exists before upgrading, so the client gets a
	// proper HTTP error instead of an immediate close frame.
	if _, err := h.submissionService.GetStatus(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed",
			zap.Int64("submission_id", id),
			zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), watchMaxDuration)
	defer cancel()

	err = h.submissionService.WatchStatus(ctx, id, func(status model.Status) error {
		_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
		return conn.WriteJSON(StatusEvent{
			SubmissionID: id,
			Status:       string(status),
			Terminal:     status.Terminal(),
		})
	})
	if err != nil {
		logger.Debug(ctx, "watch stream ended",
			zap.Int64("submission_id", id),
			zap.Error(err))
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "evaluation finished"))
}
