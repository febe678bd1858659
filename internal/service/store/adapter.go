package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/pkg/circuitbreaker"
	"todohabit/pkg/metrics"
	"todohabit/pkg/util"
)

// DefaultCollection holds one document per user.
const DefaultCollection = "users"

// DefaultFallbackTimeout bounds local fallback I/O.
const DefaultFallbackTimeout = 5 * time.Second

// DocumentStore is the remote per-user document database.
type DocumentStore interface {
	GetDocument(ctx context.Context, collection, id string) (json.RawMessage, error)
	SetDocument(ctx context.Context, collection, id string, body json.RawMessage) error
	UpdateFields(ctx context.Context, collection, id string, fields map[string]json.RawMessage) error
}

// FallbackStore is the on-device key/value store.
type FallbackStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Adapter reads and writes the user aggregate, falling back to the local
// store whenever a remote write fails.
type Adapter struct {
	remote     DocumentStore
	fallback   FallbackStore
	breaker    *circuitbreaker.CircuitBreaker
	collection string
	timeout    time.Duration
	fbTimeout  time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Adapter)

func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(a *Adapter) { a.breaker = cb }
}

func WithCollection(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.collection = name
		}
	}
}

// WithTimeout bounds every remote call. Zero leaves the caller's deadline alone.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithFallbackTimeout bounds each fallback read or write.
func WithFallbackTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.fbTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func NewAdapter(remote DocumentStore, fallback FallbackStore, logger *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		remote:     remote,
		fallback:   fallback,
		collection: DefaultCollection,
		fbTimeout:  DefaultFallbackTimeout,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.breaker == nil {
		a.breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}
	return a
}

// fallbackContext detaches from the caller's deadline. Fallback I/O runs after
// a remote failure, often a timeout that already expired ctx.
func (a *Adapter) fallbackContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), a.fbTimeout)
}

// call runs fn through the breaker. Not-found is an answer, not a failure, so it
// does not count against the breaker.
func (a *Adapter) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	var notFound error
	err := a.breaker.Execute(func() error {
		err := fn(ctx)
		if util.IsNotFound(err) {
			notFound = err
			return nil
		}
		return err
	})
	if err == nil && notFound != nil {
		err = notFound
	}
	metrics.RecordStoreOperation(op, err, time.Since(start))
	return err
}

// Read loads the aggregate for ident, creating it with defaults when the
// remote record does not exist yet.
func (a *Adapter) Read(ctx context.Context, ident model.Identity) (*model.Aggregate, error) {
	agg, err := a.get(ctx, ident)
	if err == nil {
		return agg, nil
	}
	if !util.IsNotFound(err) {
		kind, reason := util.ClassifyStoreError(err)
		a.logRemoteFailure("Failed to load user document", ident.ID, kind, reason, err)
		return nil, err
	}

	a.logger.Info("User document missing, creating",
		zap.String("user_id", ident.ID),
	)
	return a.Create(ctx, ident)
}

// Create writes the default document for ident. On an existing record only
// lastLogin is touched and the stored data is returned.
func (a *Adapter) Create(ctx context.Context, ident model.Identity) (*model.Aggregate, error) {
	now := a.now().UTC()

	existing, err := a.get(ctx, ident)
	switch {
	case err == nil:
		raw, _ := json.Marshal(now)
		err = a.call(ctx, "update_fields", func(ctx context.Context) error {
			return a.remote.UpdateFields(ctx, a.collection, ident.ID, map[string]json.RawMessage{
				string(model.FieldLastLogin): raw,
			})
		})
		if err != nil {
			return nil, fmt.Errorf("touch lastLogin for %s: %w", ident.ID, err)
		}
		existing.LastLogin = now
		a.logger.Debug("User document exists, lastLogin updated", zap.String("user_id", ident.ID))
		return existing, nil
	case !util.IsNotFound(err):
		return nil, err
	}

	agg := model.NewAggregate(ident, now)
	body, err := json.Marshal(agg)
	if err != nil {
		return nil, fmt.Errorf("encode default document: %w", err)
	}
	err = a.call(ctx, "set_document", func(ctx context.Context) error {
		return a.remote.SetDocument(ctx, a.collection, ident.ID, body)
	})
	if err != nil {
		kind, reason := util.ClassifyStoreError(err)
		a.logRemoteFailure("Failed to create user document", ident.ID, kind, reason, err)
		return nil, fmt.Errorf("create document for %s: %w", ident.ID, err)
	}

	a.logger.Info("User document created", zap.String("user_id", ident.ID))
	return agg, nil
}

func (a *Adapter) get(ctx context.Context, ident model.Identity) (*model.Aggregate, error) {
	var body json.RawMessage
	err := a.call(ctx, "get_document", func(ctx context.Context) error {
		var err error
		body, err = a.remote.GetDocument(ctx, a.collection, ident.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var agg model.Aggregate
	if err := json.Unmarshal(body, &agg); err != nil {
		return nil, fmt.Errorf("decode document for %s: %w", ident.ID, err)
	}
	if agg.UID == "" {
		agg.UID = ident.ID
	}
	agg.Normalize()
	return &agg, nil
}

// Write persists a partial aggregate. When the remote write fails, every field
// is written to its fallback key with the same JSON and a *WriteError is returned.
func (a *Adapter) Write(ctx context.Context, uid string, patch model.Patch) error {
	if len(patch) == 0 {
		return nil
	}

	fields := make(map[string]json.RawMessage, len(patch))
	names := make([]model.Field, 0, len(patch))
	for field, value := range patch {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", field, err)
		}
		fields[string(field)] = raw
		names = append(names, field)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	err := a.call(ctx, "update_fields", func(ctx context.Context) error {
		return a.remote.UpdateFields(ctx, a.collection, uid, fields)
	})
	if err == nil {
		a.logger.Debug("Remote write succeeded",
			zap.String("user_id", uid),
			zap.Int("fields", len(names)),
		)
		return nil
	}

	kind, reason := util.ClassifyStoreError(err)
	metrics.IncrementStoreWriteFailure(string(kind))
	a.logRemoteFailure("Remote write failed, using local fallback", uid, kind, reason, err)

	fbCtx, cancel := a.fallbackContext(ctx)
	defer cancel()
	for _, field := range names {
		a.writeFallback(fbCtx, uid, field, fields[string(field)])
	}
	return &WriteError{UserID: uid, Fields: names, Kind: kind, Err: err}
}

// WriteFallback stores patch in the fallback keys only. It is used for changes
// that never reached a remote write attempt.
func (a *Adapter) WriteFallback(ctx context.Context, uid string, patch model.Patch) error {
	fbCtx, cancel := a.fallbackContext(ctx)
	defer cancel()

	var firstErr error
	for field, value := range patch {
		raw, err := json.Marshal(value)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("encode %s: %w", field, err)
			}
			continue
		}
		if err := a.writeFallback(fbCtx, uid, field, raw); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *Adapter) writeFallback(ctx context.Context, uid string, field model.Field, raw json.RawMessage) error {
	key := FallbackKey(field, uid)
	value := string(raw)
	if field == model.FieldSettings {
		var s model.Settings
		if err := json.Unmarshal(raw, &s); err != nil {
			a.logger.Error("Failed to decode settings for fallback", zap.String("user_id", uid), zap.Error(err))
			metrics.IncrementFallbackWrite(string(field), err)
			return err
		}
		value = string(s.Theme)
	}

	err := a.fallback.Set(ctx, key, value)
	metrics.IncrementFallbackWrite(string(field), err)
	if err != nil {
		a.logger.Error("Fallback write failed",
			zap.String("user_id", uid),
			zap.String("field", string(field)),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("fallback %s: %w", key, err)
	}
	a.logger.Info("Fallback write stored",
		zap.String("user_id", uid),
		zap.String("field", string(field)),
		zap.String("key", key),
	)
	return nil
}

// WriteLocalTheme stores the theme in the device-wide fallback key.
func (a *Adapter) WriteLocalTheme(ctx context.Context, theme model.Theme) error {
	ctx, cancel := a.fallbackContext(ctx)
	defer cancel()
	err := a.fallback.Set(ctx, ThemeKey, string(theme))
	metrics.IncrementFallbackWrite(string(model.FieldSettings), err)
	return err
}

// ReadFallback builds a best-effort aggregate from the local fallback keys.
// Missing or unreadable keys keep their defaults.
func (a *Adapter) ReadFallback(ctx context.Context, ident model.Identity) *model.Aggregate {
	ctx, cancel := a.fallbackContext(ctx)
	defer cancel()
	agg := model.NewAggregate(ident, a.now())

	targets := []struct {
		field model.Field
		into  any
	}{
		{model.FieldTodos, &agg.Todos},
		{model.FieldHabits, &agg.Habits},
		{model.FieldNotificationPreferences, &agg.NotificationPreferences},
		{model.FieldPrivacySettings, &agg.PrivacySettings},
		{model.FieldCalendarSync, &agg.CalendarSync},
	}
	for _, t := range targets {
		key := FallbackKey(t.field, ident.ID)
		value, ok, err := a.fallback.Get(ctx, key)
		if err != nil {
			a.logger.Warn("Fallback read failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(value), t.into); err != nil {
			a.logger.Warn("Ignoring malformed fallback value", zap.String("key", key), zap.Error(err))
		}
	}

	if theme, ok, err := a.fallback.Get(ctx, ThemeKey); err == nil && ok {
		agg.Settings.Theme = model.Theme(theme)
	}
	agg.Normalize()
	return agg
}

func (a *Adapter) logRemoteFailure(msg, uid string, kind util.ErrorKind, reason string, err error) {
	fields := []zap.Field{
		zap.String("user_id", uid),
		zap.String("kind", string(kind)),
		zap.String("reason", reason),
		zap.Error(err),
	}
	if kind == util.KindPermission {
		a.logger.Error(msg, fields...)
		return
	}
	a.logger.Warn(msg, fields...)
}

// IsWriteError reports whether err came from a failed remote write.
func IsWriteError(err error) (*WriteError, bool) {
	var we *WriteError
	ok := errors.As(err, &we)
	return we, ok
}
