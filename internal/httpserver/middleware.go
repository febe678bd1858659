package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todohabit/internal/handler"
	"todohabit/internal/identity"
	"todohabit/internal/model"
	"todohabit/internal/session"
	"todohabit/pkg/logger"
	"todohabit/pkg/metrics"
	"todohabit/pkg/trace"
)

// TokenParser turns a bearer token into an identity.
type TokenParser interface {
	Parse(token string) (*model.Identity, error)
}

// Sessions resolves and drops per-user sessions.
type Sessions interface {
	Ensure(ctx context.Context, ident model.Identity) (*session.Session, error)
	Logout(ctx context.Context, uid string) bool
}

// TraceMiddleware carries the caller's trace id, or a new one, on the request
// context and echoes it back.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := trace.FromHeader(c.GetHeader(trace.HeaderName))
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName, traceID)
		c.Next()
	}
}

func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.WithTrace(c.Request.Context(), log).Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// MetricsMiddleware records request latency by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// AuthMiddleware verifies the bearer token and attaches the user's session,
// loading it on first sight.
func AuthMiddleware(tokens TokenParser, sessions Sessions, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := identity.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		ident, err := tokens.Parse(token)
		if err != nil {
			logger.WithTrace(c.Request.Context(), log).Warn("Rejected bearer token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		s, err := sessions.Ensure(c.Request.Context(), *ident)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		c.Set(handler.ContextUserID, ident.ID)
		c.Set(handler.ContextSession, s)
		c.Next()
	}
}
