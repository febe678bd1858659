package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/internal/service/habits"
)

type HabitHandler struct {
	logger *zap.Logger
}

func NewHabitHandler(logger *zap.Logger) *HabitHandler {
	return &HabitHandler{logger: logger}
}

type createHabitRequest struct {
	Name       string          `json:"name"`
	Frequency  model.Frequency `json:"frequency"`
	CustomDays []string        `json:"customDays"`
	Reminder   *time.Time      `json:"reminder"`
}

type updateHabitRequest struct {
	Name       *string          `json:"name"`
	Frequency  *model.Frequency `json:"frequency"`
	CustomDays []string         `json:"customDays"`
	Reminder   optionalTime     `json:"reminder"`
}

func (h *HabitHandler) engine(c *gin.Context, op string) (*habits.Engine, bool) {
	s, ok := requireSession(c)
	if !ok {
		return nil, false
	}
	e, err := s.Habits()
	if err != nil {
		respondError(c, h.logger, op, err)
		return nil, false
	}
	return e, true
}

func (h *HabitHandler) view(e *habits.Engine, id string) habits.View {
	for _, v := range e.Views() {
		if v.ID == id {
			return v
		}
	}
	return habits.View{}
}

func (h *HabitHandler) ListHabits(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	e, err := s.Habits()
	if err != nil {
		respondError(c, h.logger, "ListHabits", err)
		return
	}
	c.JSON(http.StatusOK, withBanner(s, gin.H{
		"today":  e.Today(),
		"habits": e.Views(),
	}))
}

func (h *HabitHandler) CreateHabit(c *gin.Context) {
	e, ok := h.engine(c, "CreateHabit")
	if !ok {
		return
	}
	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateHabit: invalid body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := e.Add(habits.Input{
		Name:       req.Name,
		Frequency:  req.Frequency,
		CustomDays: req.CustomDays,
		Reminder:   req.Reminder,
	})
	if err != nil {
		respondError(c, h.logger, "CreateHabit", err)
		return
	}
	h.logger.Info("CreateHabit: success",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.String("habit_id", created.ID),
		zap.String("frequency", string(created.Frequency)),
	)
	c.JSON(http.StatusCreated, gin.H{"habit": h.view(e, created.ID)})
}

func (h *HabitHandler) UpdateHabit(c *gin.Context) {
	e, ok := h.engine(c, "UpdateHabit")
	if !ok {
		return
	}
	var req updateHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("UpdateHabit: invalid body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := e.Update(c.Param("id"), habits.Update{
		Name:        req.Name,
		Frequency:   req.Frequency,
		CustomDays:  req.CustomDays,
		SetReminder: req.Reminder.Set,
		Reminder:    req.Reminder.Value,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateHabit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": h.view(e, updated.ID)})
}

// ToggleHabit flips today's completion. Habits not scheduled today answer 409.
func (h *HabitHandler) ToggleHabit(c *gin.Context) {
	e, ok := h.engine(c, "ToggleHabit")
	if !ok {
		return
	}
	toggled, err := e.ToggleCompletion(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "ToggleHabit", err)
		return
	}
	h.logger.Info("ToggleHabit: success",
		zap.String("habit_id", toggled.ID),
		zap.Int("streak", toggled.Streak),
	)
	c.JSON(http.StatusOK, gin.H{"habit": h.view(e, toggled.ID)})
}

func (h *HabitHandler) DeleteHabit(c *gin.Context) {
	e, ok := h.engine(c, "DeleteHabit")
	if !ok {
		return
	}
	if err := e.Remove(c.Param("id")); err != nil {
		respondError(c, h.logger, "DeleteHabit", err)
		return
	}
	c.Status(http.StatusNoContent)
}
