package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todohabit/internal/identity"
	"todohabit/internal/service/habits"
	"todohabit/internal/service/tasks"
	"todohabit/internal/service/transfer"
	"todohabit/internal/session"
	"todohabit/pkg/logger"
)

// Gin context keys set by the auth middleware.
const (
	ContextSession = "session"
	ContextUserID  = "user_id"
)

func currentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}

// requireSession aborts with 401 when the middleware did not attach a session.
func requireSession(c *gin.Context) (*session.Session, bool) {
	s, ok := currentSession(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return nil, false
	}
	return s, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tasks.ErrValidation),
		errors.Is(err, habits.ErrValidation),
		errors.Is(err, session.ErrValidation),
		errors.Is(err, transfer.ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, tasks.ErrUnknownTask),
		errors.Is(err, habits.ErrUnknownHabit):
		return http.StatusNotFound
	case errors.Is(err, habits.ErrNotEligible):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnauthenticated),
		errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrReloading),
		errors.Is(err, tasks.ErrClosed),
		errors.Is(err, habits.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError maps domain errors to status codes. Client errors and retryable
// reload conflicts log at Warn.
func respondError(c *gin.Context, log *zap.Logger, op string, err error) {
	status := statusFor(err)
	log = logger.WithTrace(c.Request.Context(), log)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	if status == http.StatusInternalServerError {
		log.Error(op+": failed",
			zap.String("user_id", c.GetString(ContextUserID)),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	log.Warn(op+": rejected",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.Int("status", status),
		zap.Error(err),
	)
	c.JSON(status, gin.H{"error": err.Error()})
}

// withBanner adds the degraded-mode banner to a response body.
func withBanner(s *session.Session, body gin.H) gin.H {
	if b := s.Banner(); b != "" {
		body["banner"] = b
	}
	return body
}

// optionalTime tells an absent JSON field apart from an explicit null.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}
