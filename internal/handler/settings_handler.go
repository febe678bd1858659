package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/internal/session"
)

type SettingsHandler struct {
	logger *zap.Logger
}

func NewSettingsHandler(logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{logger: logger}
}

type calendarRequest struct {
	Enabled    *bool `json:"enabled"`
	SyncTodos  *bool `json:"syncTodos"`
	SyncHabits *bool `json:"syncHabits"`
}

type connectRequest struct {
	Provider string `json:"provider"`
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *SettingsHandler) bind(c *gin.Context, op string, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		h.logger.Warn(op+": invalid body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func (h *SettingsHandler) UpdateTheme(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req model.Settings
	if !h.bind(c, "UpdateTheme", &req) {
		return
	}
	if err := s.UpdateTheme(c.Request.Context(), req.Theme); err != nil {
		respondError(c, h.logger, "UpdateTheme", err)
		return
	}
	c.JSON(http.StatusOK, withBanner(s, gin.H{"settings": req}))
}

func (h *SettingsHandler) UpdateNotifications(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req model.NotificationPreferences
	if !h.bind(c, "UpdateNotifications", &req) {
		return
	}
	if err := s.UpdateNotificationPreferences(c.Request.Context(), req); err != nil {
		respondError(c, h.logger, "UpdateNotifications", err)
		return
	}
	c.JSON(http.StatusOK, withBanner(s, gin.H{"notificationPreferences": req}))
}

func (h *SettingsHandler) UpdatePrivacy(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req model.PrivacySettings
	if !h.bind(c, "UpdatePrivacy", &req) {
		return
	}
	if err := s.UpdatePrivacySettings(c.Request.Context(), req); err != nil {
		respondError(c, h.logger, "UpdatePrivacy", err)
		return
	}
	c.JSON(http.StatusOK, withBanner(s, gin.H{"privacySettings": req}))
}

func (h *SettingsHandler) UpdateCalendar(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req calendarRequest
	if !h.bind(c, "UpdateCalendar", &req) {
		return
	}
	cs, err := s.UpdateCalendarSync(c.Request.Context(), session.CalendarSyncUpdate{
		Enabled:    req.Enabled,
		SyncTodos:  req.SyncTodos,
		SyncHabits: req.SyncHabits,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateCalendar", err)
		return
	}
	c.JSON(http.StatusOK, withBanner(s, gin.H{"calendarSync": cs}))
}

func (h *SettingsHandler) ConnectCalendar(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req connectRequest
	// an empty body selects the default provider
	if c.Request.ContentLength > 0 && !h.bind(c, "ConnectCalendar", &req) {
		return
	}
	cs, err := s.ConnectCalendar(c.Request.Context(), req.Provider)
	if err != nil {
		respondError(c, h.logger, "ConnectCalendar", err)
		return
	}
	h.logger.Info("ConnectCalendar: success",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.String("provider", *cs.Provider),
	)
	c.JSON(http.StatusOK, withBanner(s, gin.H{"calendarSync": cs}))
}

func (h *SettingsHandler) DisconnectCalendar(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	cs, err := s.DisconnectCalendar(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "DisconnectCalendar", err)
		return
	}
	c.JSON(http.StatusOK, withBanner(s, gin.H{"calendarSync": cs}))
}

func (h *SettingsHandler) UpdateProfile(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req profileRequest
	if !h.bind(c, "UpdateProfile", &req) {
		return
	}
	if err := s.UpdateProfile(c.Request.Context(), req.DisplayName); err != nil {
		respondError(c, h.logger, "UpdateProfile", err)
		return
	}
	c.JSON(http.StatusOK, withBanner(s, gin.H{"displayName": req.DisplayName}))
}
