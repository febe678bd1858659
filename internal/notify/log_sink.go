package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink 将通知写入日志，用于无界面部署
type LogSink struct {
	permissionState
	userID string
	logger *zap.Logger
}

func NewLogSink(userID string, initial Permission, logger *zap.Logger) *LogSink {
	s := &LogSink{userID: userID, logger: logger}
	s.setupPermission(initial, PermissionGranted)
	return s
}

func (s *LogSink) Show(ctx context.Context, title, body string) error {
	s.logger.Info("Notification",
		zap.String("user_id", s.userID),
		zap.String("title", title),
		zap.String("body", body),
	)
	return nil
}
