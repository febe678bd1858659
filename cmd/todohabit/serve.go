package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"todohabit/internal/httpserver"
)

func serveCmd() *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), shutdownTimeout)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "grace period for in-flight requests and pending writes")
	return cmd
}

func runServe(ctx context.Context, shutdownTimeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	if a.postgres != nil {
		if err := a.postgres.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	if !a.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpserver.NewRouter(httpserver.Deps{
		Tokens:      a.jwtProvider(),
		Sessions:    a.registry,
		Ready:       a.ready,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		log.Error("HTTP server failed", zap.Error(err))
		return err
	}

	log.Info("Shutting down todohabit gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	// flush every session's pending writes before the stores close
	log.Info("Closing sessions...", zap.Int("sessions", a.registry.Len()))
	a.registry.Close(shutdownCtx)

	log.Info("todohabit shutdown complete")
	return nil
}
