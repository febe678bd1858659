package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RoutingKeyNotification 通知消息的 routing key
const RoutingKeyNotification = "notification.local"

// Publisher is the subset of pkg/mq.Publisher the sink needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NotificationPayload 投递 worker 消费的消息体
type NotificationPayload struct {
	UserID string    `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// MQSink hands notifications to a RabbitMQ exchange for delivery elsewhere.
type MQSink struct {
	permissionState
	userID    string
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

func NewMQSink(userID string, publisher Publisher, initial Permission, logger *zap.Logger) *MQSink {
	s := &MQSink{
		userID:    userID,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
	}
	s.setupPermission(initial, PermissionGranted)
	return s
}

func (s *MQSink) Show(ctx context.Context, title, body string) error {
	payload := NotificationPayload{
		UserID: s.userID,
		Title:  title,
		Body:   body,
		SentAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, RoutingKeyNotification, payload); err != nil {
		s.logger.Warn("Failed to publish notification",
			zap.String("user_id", s.userID),
			zap.String("title", title),
			zap.Error(err),
		)
		return fmt.Errorf("publish notification: %w", err)
	}
	s.logger.Debug("Notification published",
		zap.String("user_id", s.userID),
		zap.String("title", title),
	)
	return nil
}

// SinkFactory 为单个用户会话创建 sink
type SinkFactory func(userID string) Sink
