package syncloop

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/pkg/metrics"
)

// Writer persists a partial aggregate.
type Writer interface {
	Write(ctx context.Context, uid string, patch model.Patch) error
}

// Loop persists collection snapshots in the background for one session.
// Pending values are coalesced per field, so a burst of mutations becomes one
// write carrying the latest snapshot. Failed writes are logged and reported to
// the error hook; they are not retried, the next mutation's write is the retry.
type Loop struct {
	userID  string
	writer  Writer
	timeout time.Duration
	onError func(error)
	onDrop  func(model.Patch)
	logger  *zap.Logger

	mu      sync.Mutex
	pending model.Patch
	busy    bool
	closed  bool
	waiters []chan struct{}

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Loop)

// WithTimeout 限制单次写入时长
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) { l.timeout = d }
}

// WithErrorHook 每次写入失败后在循环 goroutine 中调用
func WithErrorHook(fn func(error)) Option {
	return func(l *Loop) { l.onError = fn }
}

// WithDropHook 接收 Close 在截止时间前未能写出的值
func WithDropHook(fn func(model.Patch)) Option {
	return func(l *Loop) { l.onDrop = fn }
}

// New 启动循环 goroutine，Close 停止它
func New(userID string, writer Writer, logger *zap.Logger, opts ...Option) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		userID:  userID,
		writer:  writer,
		logger:  logger,
		pending: model.Patch{},
		wake:    make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run(ctx)
	return l
}

// Submit queues value as the new content of field. It never blocks on I/O.
func (l *Loop) Submit(field model.Field, value any) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Warn("Sync loop closed, dropping write",
			zap.String("user_id", l.userID),
			zap.String("field", string(field)),
		)
		return
	}
	l.pending[field] = value
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			l.drain(ctx)
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.busy = false
			waiters := l.waiters
			l.waiters = nil
			l.mu.Unlock()
			for _, w := range waiters {
				close(w)
			}
			return
		}
		patch := l.pending
		l.pending = model.Patch{}
		l.busy = true
		l.mu.Unlock()

		l.write(ctx, patch)
	}
}

// write does not inherit cancellation from Close: a write already in flight
// finishes, fallback included, bounded only by the write timeout.
func (l *Loop) write(ctx context.Context, patch model.Patch) {
	ctx = context.WithoutCancel(ctx)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	err := l.writer.Write(ctx, l.userID, patch)
	metrics.IncrementSyncWrite(err)
	if err != nil {
		l.logger.Warn("Background sync write failed",
			zap.String("user_id", l.userID),
			zap.Int("fields", len(patch)),
			zap.Error(err),
		)
		if l.onError != nil {
			l.onError(err)
		}
		return
	}
	l.logger.Debug("Background sync write done",
		zap.String("user_id", l.userID),
		zap.Int("fields", len(patch)),
	)
}

// Flush waits until every value submitted before the call has been written.
func (l *Loop) Flush(ctx context.Context) error {
	l.mu.Lock()
	if len(l.pending) == 0 && !l.busy {
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending writes and stops the goroutine. Later submits are
// dropped. If ctx ends first, values not yet picked up by the goroutine go to
// the drop hook; a write already in flight still completes.
func (l *Loop) Close(ctx context.Context) error {
	err := l.Flush(ctx)

	l.mu.Lock()
	l.closed = true
	dropped := l.pending
	l.pending = model.Patch{}
	l.mu.Unlock()

	if len(dropped) > 0 {
		fields := make([]string, 0, len(dropped))
		for f := range dropped {
			fields = append(fields, string(f))
			metrics.IncrementSyncDropped(string(f))
		}
		sort.Strings(fields)
		l.logger.Error("Sync loop closed before writing pending changes",
			zap.String("user_id", l.userID),
			zap.Strings("fields", fields),
			zap.Error(err),
		)
		if l.onDrop != nil {
			l.onDrop(dropped)
		}
	}

	l.cancel()
	<-l.done
	return err
}
