package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todohabit/internal/service/tasks"
)

type TaskHandler struct {
	logger *zap.Logger
}

func NewTaskHandler(logger *zap.Logger) *TaskHandler {
	return &TaskHandler{logger: logger}
}

type createTaskRequest struct {
	Text     string     `json:"text"`
	Category string     `json:"category"`
	Reminder *time.Time `json:"reminder"`
}

type updateTaskRequest struct {
	Text      *string      `json:"text"`
	Category  *string      `json:"category"`
	Completed *bool        `json:"completed"`
	Reminder  optionalTime `json:"reminder"`
}

func (h *TaskHandler) engine(c *gin.Context, op string) (*tasks.Engine, bool) {
	s, ok := requireSession(c)
	if !ok {
		return nil, false
	}
	e, err := s.Tasks()
	if err != nil {
		respondError(c, h.logger, op, err)
		return nil, false
	}
	return e, true
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	e, err := s.Tasks()
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}
	filter := c.DefaultQuery("filter", tasks.FilterAll)
	list := e.Filter(filter)
	h.logger.Debug("ListTasks: success",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.String("filter", filter),
		zap.Int("task_count", len(list)),
	)
	c.JSON(http.StatusOK, withBanner(s, gin.H{"tasks": list}))
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	e, ok := h.engine(c, "CreateTask")
	if !ok {
		return
	}
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateTask: invalid body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	t, err := e.Add(tasks.Input{Text: req.Text, Category: req.Category, Reminder: req.Reminder})
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}
	h.logger.Info("CreateTask: success",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.String("task_id", t.ID),
	)
	c.JSON(http.StatusCreated, gin.H{"task": t})
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	e, ok := h.engine(c, "UpdateTask")
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("UpdateTask: invalid body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	t, err := e.Update(c.Param("id"), tasks.Update{
		Text:        req.Text,
		Category:    req.Category,
		Completed:   req.Completed,
		SetReminder: req.Reminder.Set,
		Reminder:    req.Reminder.Value,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

func (h *TaskHandler) ToggleTask(c *gin.Context) {
	e, ok := h.engine(c, "ToggleTask")
	if !ok {
		return
	}
	t, err := e.ToggleCompleted(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "ToggleTask", err)
		return
	}
	h.logger.Info("ToggleTask: success",
		zap.String("task_id", t.ID),
		zap.Bool("completed", t.Completed),
	)
	c.JSON(http.StatusOK, gin.H{"task": t})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	e, ok := h.engine(c, "DeleteTask")
	if !ok {
		return
	}
	if err := e.Remove(c.Param("id")); err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	c.Status(http.StatusNoContent)
}
