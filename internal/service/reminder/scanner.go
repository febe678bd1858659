package reminder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/internal/notify"
	"todohabit/pkg/metrics"
)

// DefaultInterval 扫描周期
const DefaultInterval = time.Minute

const (
	TitleTask  = "Todo Reminder"
	TitleHabit = "Habit Reminder"
)

type TaskSource interface {
	DueReminders(now time.Time) []model.Task
	MarkReminderShown(id string, now time.Time) bool
}

type HabitSource interface {
	DueReminders(now time.Time) []model.Habit
	MarkReminderShown(id string, now time.Time) bool
}

// Deduper 防止多个进程重复触发同一条提醒
type Deduper interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
}

// Result 一次扫描的统计：标记为已提醒的数量，以及其中实际通过 sink 展示的数量
type Result struct {
	Fired    int
	Notified int
}

// Scanner 按周期为单个会话触发到期提醒
type Scanner struct {
	userID   string
	tasks    TaskSource
	habits   HabitSource
	sink     notify.Sink
	dedup    Deduper
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Scanner)

func WithInterval(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithDeduper(d Deduper) Option {
	return func(s *Scanner) { s.dedup = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

func NewScanner(userID string, tasks TaskSource, habits HabitSource, sink notify.Sink, logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		userID:   userID,
		tasks:    tasks,
		habits:   habits,
		sink:     sink,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start requests notification permission if still undetermined, scans once
// and then every interval until Stop or ctx is done. Calling Start twice is a no-op.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	if s.sink.PermissionState() == notify.PermissionUndetermined {
		p := s.sink.RequestPermission(ctx)
		s.logger.Info("Notification permission requested",
			zap.String("user_id", s.userID),
			zap.String("permission", string(p)),
		)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx, s.done)
}

func (s *Scanner) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 启动时立即执行一次
	s.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Reminder scanner stopped", zap.String("user_id", s.userID))
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Stop 取消循环并等待进行中的扫描结束
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Scan fires every due reminder once. Reminders are marked shown even when
// permission is not granted.
func (s *Scanner) Scan(ctx context.Context) Result {
	now := s.now()
	granted := s.sink.PermissionState() == notify.PermissionGranted
	var res Result

	for _, t := range s.tasks.DueReminders(now) {
		if !s.tasks.MarkReminderShown(t.ID, now) {
			continue
		}
		res.Fired++
		if s.fire(ctx, "task", t.ID, t.Reminder, TitleTask, t.Text, granted) {
			res.Notified++
		}
	}
	for _, h := range s.habits.DueReminders(now) {
		if !s.habits.MarkReminderShown(h.ID, now) {
			continue
		}
		res.Fired++
		if s.fire(ctx, "habit", h.ID, h.Reminder, TitleHabit, h.Name, granted) {
			res.Notified++
		}
	}

	if res.Fired > 0 {
		s.logger.Info("Reminder scan fired",
			zap.String("user_id", s.userID),
			zap.Int("fired", res.Fired),
			zap.Int("notified", res.Notified),
		)
	}
	return res
}

func (s *Scanner) fire(ctx context.Context, source, id string, at *time.Time, title, body string, granted bool) bool {
	if !granted {
		metrics.IncrementReminderFired(source, false)
		return false
	}
	if s.dedup != nil {
		key := id
		if at != nil {
			key += "@" + at.UTC().Format(time.RFC3339)
		}
		if !s.dedup.AcquireOnce(ctx, "reminder:"+s.userID+":"+source, key) {
			metrics.IncrementReminderFired(source, false)
			return false
		}
	}

	if err := s.sink.Show(ctx, title, body); err != nil {
		s.logger.Warn("Failed to show reminder",
			zap.String("user_id", s.userID),
			zap.String("source", source),
			zap.String("id", id),
			zap.Error(err),
		)
		metrics.IncrementReminderFired(source, false)
		return false
	}
	metrics.IncrementReminderFired(source, true)
	return true
}
