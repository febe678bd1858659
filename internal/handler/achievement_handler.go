package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todohabit/internal/model"
)

type AchievementHandler struct {
	logger *zap.Logger
}

func NewAchievementHandler(logger *zap.Logger) *AchievementHandler {
	return &AchievementHandler{logger: logger}
}

func (h *AchievementHandler) ListAchievements(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": s.Achievements()})
}

func (h *AchievementHandler) DismissAchievement(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	kind, err := model.ParseAchievementKind(c.Param("kind"))
	if err != nil {
		h.logger.Warn("DismissAchievement: invalid kind", zap.String("kind", c.Param("kind")))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := model.AchievementKey{Kind: kind, HabitID: c.Param("habit_id")}
	if !s.DismissAchievement(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "achievement not active"})
		return
	}
	h.logger.Info("DismissAchievement: success",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.String("achievement", key.String()),
	)
	c.Status(http.StatusNoContent)
}
