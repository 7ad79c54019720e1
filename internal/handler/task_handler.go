package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/service"
	"k8s-simplify/pkg/utils"
)

const writeWait = 10 * time.Second

type TaskHandler struct {
	tasks    *service.TaskService
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

func NewTaskHandler(tasks *service.TaskService, log *logger.Logger, allowedOrigins []string) *TaskHandler {
	return &TaskHandler{
		tasks:  tasks,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *TaskHandler) Progress(c *gin.Context) {
	id := c.Param("taskId")
	progress, ok := h.tasks.Progress(id)
	if !ok {
		writeError(c, http.StatusNotFound, utils.NewNotFoundError("任务", id))
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Stream sends the task log over a websocket, starting with the lines logged so far, and closes
// the connection when the task ends.
func (h *TaskHandler) Stream(c *gin.Context) {
	id := c.Param("taskId")
	backlog, lines, cancel, ok := h.tasks.Subscribe(id)
	if !ok {
		writeError(c, http.StatusNotFound, utils.NewNotFoundError("任务", id))
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("task_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	// 读循环只用于感知客户端断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, line := range backlog {
		if err := h.write(conn, line); err != nil {
			return
		}
	}
	for {
		select {
		case <-closed:
			return
		case line, open := <-lines:
			if !open {
				if progress, ok := h.tasks.Progress(id); ok {
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = conn.WriteJSON(progress)
				}
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.write(conn, line); err != nil {
				return
			}
		}
	}
}

func (h *TaskHandler) write(conn *websocket.Conn, line string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
