package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type mockPublisher struct {
	mu         sync.Mutex
	FailOnCall int
	calls      []NotificationPayload
	keys       []string
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, payload.(NotificationPayload))
	m.keys = append(m.keys, routingKey)
	if m.FailOnCall == len(m.calls) {
		return errors.New("channel closed")
	}
	return nil
}

func TestPermissionRequestResolvesUndetermined(t *testing.T) {
	tests := []struct {
		initial Permission
		want    Permission
	}{
		{PermissionUndetermined, PermissionGranted},
		{PermissionDenied, PermissionDenied},
		{PermissionGranted, PermissionGranted},
	}
	for _, tt := range tests {
		s := NewLogSink("u1", tt.initial, zap.NewNop())
		if got := s.RequestPermission(context.Background()); got != tt.want {
			t.Errorf("RequestPermission from %s = %s, want %s", tt.initial, got, tt.want)
		}
		if s.PermissionState() != tt.want {
			t.Errorf("state after request = %s", s.PermissionState())
		}
	}
}

func TestParsePermission(t *testing.T) {
	if p, err := ParsePermission(""); err != nil || p != PermissionUndetermined {
		t.Errorf("ParsePermission(\"\") = %s, %v", p, err)
	}
	if _, err := ParsePermission("maybe"); err == nil {
		t.Error("expected error")
	}
}

func TestMQSinkPublishes(t *testing.T) {
	pub := &mockPublisher{FailOnCall: 2}
	s := NewMQSink("u1", pub, PermissionGranted, zap.NewNop())

	if err := s.Show(context.Background(), "Todo Reminder", "Buy milk"); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if err := s.Show(context.Background(), "Habit Reminder", "Run"); err == nil {
		t.Error("expected publish failure to surface")
	}

	if len(pub.calls) != 2 || pub.keys[0] != RoutingKeyNotification {
		t.Fatalf("calls = %+v keys = %v", pub.calls, pub.keys)
	}
	if got := pub.calls[0]; got.UserID != "u1" || got.Title != "Todo Reminder" || got.Body != "Buy milk" {
		t.Errorf("payload = %+v", got)
	}
}
