package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionCloser signs a user out.
type SessionCloser interface {
	Logout(ctx context.Context, uid string) bool
}

type SessionHandler struct {
	sessions SessionCloser
	logger   *zap.Logger
}

func NewSessionHandler(sessions SessionCloser, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	state, loadErr := s.State()
	body := gin.H{
		"state":    state,
		"identity": s.Identity(),
	}
	if settings, err := s.Settings(); err == nil {
		body["settings"] = settings
	}
	if loadErr != nil {
		body["loadError"] = loadErr.Error()
	}
	c.JSON(http.StatusOK, withBanner(s, body))
}

func (h *SessionHandler) Refresh(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	if err := s.Refresh(c.Request.Context()); err != nil {
		respondError(c, h.logger, "Refresh", err)
		return
	}
	state, _ := s.State()
	h.logger.Info("Refresh: success",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.Stringer("state", state),
	)
	c.JSON(http.StatusOK, withBanner(s, gin.H{"state": state}))
}

func (h *SessionHandler) Logout(c *gin.Context) {
	uid := c.GetString(ContextUserID)
	h.sessions.Logout(c.Request.Context(), uid)
	h.logger.Info("Logout: success", zap.String("user_id", uid))
	c.Status(http.StatusNoContent)
}
