package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/internal/notify"
	"todohabit/internal/service/habits"
	"todohabit/internal/service/reminder"
	"todohabit/internal/service/store"
	"todohabit/internal/service/syncloop"
	"todohabit/internal/service/tasks"
	"todohabit/internal/service/transfer"
	"todohabit/pkg/metrics"
	"todohabit/pkg/util"
)

// AchievementTitle is the notification title for unlocked achievements.
const AchievementTitle = "Achievement Unlocked!"

// Store is the persistence surface a session needs.
type Store interface {
	Read(ctx context.Context, ident model.Identity) (*model.Aggregate, error)
	Write(ctx context.Context, uid string, patch model.Patch) error
	ReadFallback(ctx context.Context, ident model.Identity) *model.Aggregate
	WriteFallback(ctx context.Context, uid string, patch model.Patch) error
	WriteLocalTheme(ctx context.Context, theme model.Theme) error
}

// Deps are shared by every session of a process.
type Deps struct {
	Store            Store
	Dedup            reminder.Deduper
	Now              func() time.Time
	Location         *time.Location
	ReminderInterval time.Duration
	WriteTimeout     time.Duration
	// LoadTimeout bounds a load. Loads never inherit the caller's cancellation.
	LoadTimeout time.Duration
	Logger      *zap.Logger
}

// Session owns one user's in-memory aggregate and the engines, sync loop and
// reminder scanner built from it.
type Session struct {
	deps Deps
	sink notify.Sink

	// lifecycle serializes identity changes, refreshes and Close.
	lifecycle sync.Mutex

	mu               sync.RWMutex
	reloading        bool
	state            State
	loadErr          error
	banner           string
	permissionDenied bool
	ident            *model.Identity
	agg              *model.Aggregate
	tasks            *tasks.Engine
	habits           *habits.Engine
	loop             *syncloop.Loop
	scanner          *reminder.Scanner
	stop             context.CancelFunc
}

func New(deps Deps, sink notify.Sink) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Session{deps: deps, sink: sink, state: StateUnauthenticated}
}

// OnIdentityChange is the identity listener. nil resets to Unauthenticated;
// any identity (re)loads the aggregate.
func (s *Session) OnIdentityChange(ctx context.Context, ident *model.Identity) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.teardown(ctx, false)

	if ident == nil {
		s.mu.Lock()
		s.state = StateUnauthenticated
		s.ident, s.agg, s.loadErr, s.banner, s.permissionDenied = nil, nil, nil, "", false
		s.mu.Unlock()
		s.deps.Logger.Info("Session reset")
		return
	}

	c := *ident
	s.mu.Lock()
	s.state = StateLoading
	s.ident = &c
	s.mu.Unlock()

	s.load(ctx, c)
}

// Refresh flushes pending writes and re-reads the aggregate without passing
// through Loading. The old engines stay readable until the new ones are in
// place; mutations against them fail with a closed error instead of being
// lost.
func (s *Session) Refresh(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	ident := s.ident
	state := s.state
	if ident == nil || (state != StateReady && state != StateDegraded) {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	c := *ident
	s.reloading = true
	s.mu.Unlock()

	s.teardown(ctx, true)
	s.load(ctx, c)

	s.mu.Lock()
	s.reloading = false
	s.mu.Unlock()
	return nil
}

func (s *Session) load(ctx context.Context, ident model.Identity) {
	log := s.deps.Logger.With(zap.String("user_id", ident.ID))

	ctx = context.WithoutCancel(ctx)
	if s.deps.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.LoadTimeout)
		defer cancel()
	}

	agg, err := s.deps.Store.Read(ctx, ident)
	if err == nil {
		s.hydrate(agg)
		s.mu.Lock()
		s.state, s.loadErr, s.banner, s.permissionDenied = StateReady, nil, "", false
		s.mu.Unlock()
		log.Info("Session ready",
			zap.Int("todos", len(agg.Todos)),
			zap.Int("habits", len(agg.Habits)),
		)
		return
	}

	kind, reason := util.ClassifyStoreError(err)
	banner := BannerLoadError
	if kind == util.KindPermission {
		banner = BannerPermission
	}
	fallback := s.deps.Store.ReadFallback(ctx, ident)
	s.hydrate(fallback)

	s.mu.Lock()
	s.state, s.loadErr, s.banner = StateDegraded, err, banner
	s.permissionDenied = kind == util.KindPermission
	s.mu.Unlock()
	log.Warn("Session degraded, using local fallback data",
		zap.String("kind", string(kind)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (s *Session) hydrate(agg *model.Aggregate) {
	uid := agg.UID
	log := s.deps.Logger.With(zap.String("user_id", uid))

	te := tasks.NewEngine(agg.Todos, s.deps.Now, log)
	he := habits.NewEngine(agg.Habits, s.deps.Now, s.deps.Location, log)

	loopOpts := []syncloop.Option{
		syncloop.WithErrorHook(s.onWriteError),
		syncloop.WithDropHook(func(p model.Patch) {
			if err := s.deps.Store.WriteFallback(context.Background(), uid, p); err != nil {
				log.Error("Failed to keep unwritten changes in fallback", zap.Error(err))
			}
		}),
	}
	if s.deps.WriteTimeout > 0 {
		loopOpts = append(loopOpts, syncloop.WithTimeout(s.deps.WriteTimeout))
	}
	loop := syncloop.New(uid, s.deps.Store, log, loopOpts...)

	te.OnChange(func(snapshot []model.Task) { loop.Submit(model.FieldTodos, snapshot) })
	he.OnChange(func(snapshot []model.Habit) { loop.Submit(model.FieldHabits, snapshot) })
	he.OnAchievement(s.onAchievements)

	scanOpts := []reminder.Option{
		reminder.WithInterval(s.deps.ReminderInterval),
		reminder.WithClock(s.deps.Now),
	}
	if s.deps.Dedup != nil {
		scanOpts = append(scanOpts, reminder.WithDeduper(s.deps.Dedup))
	}
	scanner := reminder.NewScanner(uid, te, he, s.sink, log, scanOpts...)

	rootCtx, stop := context.WithCancel(context.Background())

	held := agg.Clone()
	held.Todos, held.Habits = nil, nil

	s.mu.Lock()
	s.agg, s.tasks, s.habits, s.loop, s.scanner, s.stop = held, te, he, loop, scanner, stop
	s.mu.Unlock()

	scanner.Start(rootCtx)
}

// teardown closes the engines, stops the scanner, then flushes and closes the
// sync loop. keepEngines leaves the closed engines in place for readers.
func (s *Session) teardown(ctx context.Context, keepEngines bool) {
	s.mu.Lock()
	loop, scanner, stop := s.loop, s.scanner, s.stop
	te, he := s.tasks, s.habits
	s.loop, s.scanner, s.stop = nil, nil, nil
	if !keepEngines {
		s.tasks, s.habits = nil, nil
	}
	s.mu.Unlock()

	if te != nil {
		te.Close()
	}
	if he != nil {
		he.Close()
	}
	if scanner != nil {
		scanner.Stop()
	}
	if stop != nil {
		stop()
	}
	if loop != nil {
		if err := loop.Close(ctx); err != nil {
			s.deps.Logger.Warn("Sync loop did not drain before teardown", zap.Error(err))
		}
	}
}

func (s *Session) onWriteError(err error) {
	we, ok := store.IsWriteError(err)
	if !ok || !we.Permission() {
		return
	}
	s.mu.Lock()
	s.permissionDenied = true
	s.banner = BannerPermission
	s.mu.Unlock()
}

func (s *Session) onAchievements(events []model.Achievement) {
	granted := s.sink.PermissionState() == notify.PermissionGranted
	for _, a := range events {
		metrics.IncrementAchievement(a.Key.Kind.String())
		if !granted {
			continue
		}
		if err := s.sink.Show(context.Background(), AchievementTitle, a.Title+": "+a.Description); err != nil {
			s.deps.Logger.Warn("Failed to show achievement", zap.String("habit_id", a.Key.HabitID), zap.Error(err))
		}
	}
}

// Close tears the session down, flushing pending writes.
func (s *Session) Close(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.teardown(ctx, false)
}

// inactiveErr explains a missing sync loop. Callers hold s.mu.
func (s *Session) inactiveErr() error {
	if s.reloading {
		return ErrReloading
	}
	return ErrUnauthenticated
}

// State returns the loader state and, for Degraded, the load error.
func (s *Session) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.loadErr
}

// Banner is the degraded-mode message, or "".
func (s *Session) Banner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.banner
}

func (s *Session) Identity() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ident == nil {
		return nil
	}
	c := *s.ident
	return &c
}

func (s *Session) Tasks() (*tasks.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tasks == nil {
		return nil, ErrUnauthenticated
	}
	return s.tasks, nil
}

func (s *Session) Habits() (*habits.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.habits == nil {
		return nil, ErrUnauthenticated
	}
	return s.habits, nil
}

func (s *Session) Achievements() []model.Achievement {
	he, err := s.Habits()
	if err != nil {
		return []model.Achievement{}
	}
	return he.Achievements()
}

func (s *Session) DismissAchievement(key model.AchievementKey) bool {
	he, err := s.Habits()
	if err != nil {
		return false
	}
	return he.DismissAchievement(key)
}

// Snapshot returns a copy of the full aggregate, collections included.
func (s *Session) Snapshot() (*model.Aggregate, error) {
	s.mu.RLock()
	if s.agg == nil || s.tasks == nil || s.habits == nil {
		s.mu.RUnlock()
		return nil, ErrUnauthenticated
	}
	out := s.agg.Clone()
	te, he := s.tasks, s.habits
	s.mu.RUnlock()

	out.Todos = te.List()
	out.Habits = he.List()
	return out, nil
}

// Flush waits for pending background writes.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.RLock()
	loop := s.loop
	s.mu.RUnlock()
	if loop == nil {
		return nil
	}
	return loop.Flush(ctx)
}

// Export snapshots the aggregate into an export document.
func (s *Session) Export() (transfer.Document, error) {
	agg, err := s.Snapshot()
	if err != nil {
		return transfer.Document{}, err
	}
	return transfer.Export(agg, s.deps.Now()), nil
}

// Import validates the whole file, then replaces tasks, habits and any
// settings sections it carries. Invalid files change nothing.
func (s *Session) Import(ctx context.Context, data []byte) error {
	doc, err := transfer.Parse(data)
	if err != nil {
		return err
	}
	te, err := s.Tasks()
	if err != nil {
		return err
	}
	he, err := s.Habits()
	if err != nil {
		return err
	}

	if err := te.Replace(doc.Todos); err != nil {
		return err
	}
	if err := he.Replace(doc.Habits); err != nil {
		return err
	}

	if doc.Settings != nil {
		if err := s.UpdateTheme(ctx, doc.Settings.Theme); err != nil {
			return err
		}
	}
	if doc.NotificationPreferences != nil {
		if err := s.UpdateNotificationPreferences(ctx, *doc.NotificationPreferences); err != nil {
			return err
		}
	}
	if doc.PrivacySettings != nil {
		if err := s.UpdatePrivacySettings(ctx, *doc.PrivacySettings); err != nil {
			return err
		}
	}
	if doc.CalendarSync != nil {
		if err := s.mutate(model.FieldCalendarSync, func(agg *model.Aggregate) (any, error) {
			agg.CalendarSync = *doc.CalendarSync
			return agg.CalendarSync, nil
		}); err != nil {
			return err
		}
	}

	s.deps.Logger.Info("Import applied",
		zap.Int("todos", len(doc.Todos)),
		zap.Int("habits", len(doc.Habits)),
	)
	return nil
}

// ensure *store.Adapter satisfies Store.
var _ Store = (*store.Adapter)(nil)

func (s *Session) String() string {
	state, _ := s.State()
	if id := s.Identity(); id != nil {
		return fmt.Sprintf("session(%s, %s)", id.ID, state)
	}
	return fmt.Sprintf("session(%s)", state)
}
