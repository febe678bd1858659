package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"todohabit/internal/handler"
	"todohabit/pkg/otel"
)

// ReadinessCheck is probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Tokens      TokenParser
	Sessions    Sessions
	Ready       []ReadinessCheck
	CORSOrigins []string
	Now         func() time.Time
	Logger      *zap.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(deps.CORSOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Trace-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(TraceMiddleware(), otel.GinMiddleware(), MetricsMiddleware(), RequestLogMiddleware(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		for _, rc := range deps.Ready {
			if err := rc.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": rc.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessionHandler := handler.NewSessionHandler(deps.Sessions, log)
	taskHandler := handler.NewTaskHandler(log)
	habitHandler := handler.NewHabitHandler(log)
	achievementHandler := handler.NewAchievementHandler(log)
	settingsHandler := handler.NewSettingsHandler(log)
	transferHandler := handler.NewTransferHandler(deps.Now, log)

	api := r.Group("/api")
	api.Use(AuthMiddleware(deps.Tokens, deps.Sessions, log))
	{
		api.GET("/session", sessionHandler.GetSession)
		api.POST("/session/refresh", sessionHandler.Refresh)
		api.DELETE("/session", sessionHandler.Logout)

		api.GET("/tasks", taskHandler.ListTasks)
		api.POST("/tasks", taskHandler.CreateTask)
		api.PATCH("/tasks/:id", taskHandler.UpdateTask)
		api.POST("/tasks/:id/toggle", taskHandler.ToggleTask)
		api.DELETE("/tasks/:id", taskHandler.DeleteTask)

		api.GET("/habits", habitHandler.ListHabits)
		api.POST("/habits", habitHandler.CreateHabit)
		api.PATCH("/habits/:id", habitHandler.UpdateHabit)
		api.POST("/habits/:id/toggle", habitHandler.ToggleHabit)
		api.DELETE("/habits/:id", habitHandler.DeleteHabit)

		api.GET("/achievements", achievementHandler.ListAchievements)
		api.DELETE("/achievements/:kind/:habit_id", achievementHandler.DismissAchievement)

		api.PUT("/settings/theme", settingsHandler.UpdateTheme)
		api.PUT("/settings/notifications", settingsHandler.UpdateNotifications)
		api.PUT("/settings/privacy", settingsHandler.UpdatePrivacy)
		api.PUT("/settings/calendar", settingsHandler.UpdateCalendar)
		api.POST("/settings/calendar/connect", settingsHandler.ConnectCalendar)
		api.POST("/settings/calendar/disconnect", settingsHandler.DisconnectCalendar)
		api.PATCH("/profile", settingsHandler.UpdateProfile)

		api.GET("/export", transferHandler.Export)
		api.POST("/import", transferHandler.Import)
	}

	return r
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
