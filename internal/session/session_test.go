package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/internal/notify"
	"todohabit/internal/service/habits"
	"todohabit/internal/service/store"
	"todohabit/internal/service/tasks"
	"todohabit/internal/service/transfer"
	"todohabit/pkg/util"
)

var testNow = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

type mockStore struct {
	mu             sync.Mutex
	agg            *model.Aggregate
	fallback       *model.Aggregate
	readErr        error
	writeErr       error
	reads          int
	readCtxErrs    []error
	writes         []model.Patch
	fallbackWrites []model.Patch
	localTheme     []model.Theme

	// When set, reads after the first and the first write block until the
	// matching release channel closes. The started channels close on entry.
	readStarted  chan struct{}
	releaseRead  chan struct{}
	writeStarted chan struct{}
	releaseWrite chan struct{}
}

func (m *mockStore) Read(ctx context.Context, ident model.Identity) (*model.Aggregate, error) {
	m.mu.Lock()
	m.reads++
	n := m.reads
	started, release := m.readStarted, m.releaseRead
	m.mu.Unlock()
	if release != nil && n > 1 {
		close(started)
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCtxErrs = append(m.readCtxErrs, ctx.Err())
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.agg == nil {
		return model.NewAggregate(ident, testNow), nil
	}
	return m.agg.Clone(), nil
}

func (m *mockStore) Write(ctx context.Context, uid string, patch model.Patch) error {
	m.mu.Lock()
	first := len(m.writes) == 0
	started, release := m.writeStarted, m.releaseWrite
	m.mu.Unlock()
	if release != nil && first {
		close(started)
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, patch)
	if m.writeErr != nil {
		return &store.WriteError{UserID: uid, Kind: util.KindPermission, Err: m.writeErr}
	}
	return nil
}

func (m *mockStore) ReadFallback(ctx context.Context, ident model.Identity) *model.Aggregate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fallback == nil {
		return model.NewAggregate(ident, testNow)
	}
	return m.fallback.Clone()
}

func (m *mockStore) WriteFallback(ctx context.Context, uid string, patch model.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackWrites = append(m.fallbackWrites, patch)
	return nil
}

func (m *mockStore) FallbackWrites() []model.Patch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Patch(nil), m.fallbackWrites...)
}

func (m *mockStore) WriteLocalTheme(ctx context.Context, theme model.Theme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localTheme = append(m.localTheme, theme)
	return nil
}

func (m *mockStore) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns every patch that carried field.
func (m *mockStore) Writes(field model.Field) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, p := range m.writes {
		if v, ok := p[field]; ok {
			out = append(out, v)
		}
	}
	return out
}

type shown struct{ title, body string }

type mockSink struct {
	mu         sync.Mutex
	permission notify.Permission
	shown      []shown
}

func (m *mockSink) PermissionState() notify.Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission
}

func (m *mockSink) RequestPermission(ctx context.Context) notify.Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.permission == notify.PermissionUndetermined {
		m.permission = notify.PermissionGranted
	}
	return m.permission
}

func (m *mockSink) Show(ctx context.Context, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, shown{title, body})
	return nil
}

func (m *mockSink) Shown() []shown {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]shown(nil), m.shown...)
}

var alice = model.Identity{ID: "u1", Email: "alice@example.com", DisplayName: "Alice"}

func newTestSession(t *testing.T, st *mockStore, sink *mockSink) *Session {
	t.Helper()
	s := New(Deps{
		Store:            st,
		Now:              func() time.Time { return testNow },
		Location:         time.UTC,
		ReminderInterval: time.Hour,
		Logger:           zap.NewNop(),
	}, sink)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestLoadStates(t *testing.T) {
	stored := model.NewAggregate(alice, testNow)
	stored.Todos = []model.Task{{ID: "1", Text: "remote", Category: "work", CreatedAt: testNow}}
	local := model.NewAggregate(alice, testNow)
	local.Todos = []model.Task{{ID: "2", Text: "local", Category: "work", CreatedAt: testNow}}

	tests := []struct {
		name      string
		readErr   error
		wantState State
		wantText  string
		banner    string
	}{
		{"ready", nil, StateReady, "remote", ""},
		{"permission denied", fmt.Errorf("get users/u1: %w", util.ErrPermissionDenied), StateDegraded, "local", BannerPermission},
		{"transient", errors.New("connection refused"), StateDegraded, "local", BannerLoadError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &mockStore{agg: stored, fallback: local, readErr: tt.readErr}
			s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})

			if got, _ := s.State(); got != StateUnauthenticated {
				t.Fatalf("initial state = %v", got)
			}
			s.OnIdentityChange(context.Background(), &alice)

			state, err := s.State()
			if state != tt.wantState {
				t.Fatalf("state = %v, want %v", state, tt.wantState)
			}
			if (err != nil) != (tt.readErr != nil) {
				t.Errorf("load error = %v", err)
			}
			if got := s.Banner(); got != tt.banner {
				t.Errorf("banner = %q, want %q", got, tt.banner)
			}
			te, err := s.Tasks()
			if err != nil {
				t.Fatalf("Tasks: %v", err)
			}
			list := te.List()
			if len(list) != 1 || list[0].Text != tt.wantText {
				t.Errorf("tasks = %+v", list)
			}
		})
	}
}

func TestHydrateDoesNotWrite(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)
	flush(t, s)

	if n := len(st.Writes(model.FieldTodos)) + len(st.Writes(model.FieldHabits)); n != 0 {
		t.Errorf("hydrate issued %d writes", n)
	}
}

func TestMutationsArePersisted(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)

	te, _ := s.Tasks()
	if _, err := te.Add(tasks.Input{Text: "Buy milk", Category: "shopping"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	he, _ := s.Habits()
	if _, err := he.Add(habits.Input{Name: "Read", Frequency: model.FrequencyDaily}); err != nil {
		t.Fatalf("Add habit: %v", err)
	}
	flush(t, s)

	todos := st.Writes(model.FieldTodos)
	if len(todos) == 0 {
		t.Fatal("no todos write")
	}
	last := todos[len(todos)-1].([]model.Task)
	if len(last) != 1 || last[0].Text != "Buy milk" {
		t.Errorf("last todos write = %+v", last)
	}
	if len(st.Writes(model.FieldHabits)) == 0 {
		t.Error("no habits write")
	}
}

func TestSignOutFlushesAndResets(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)

	te, _ := s.Tasks()
	te.Add(tasks.Input{Text: "pending"})
	s.OnIdentityChange(context.Background(), nil)

	if state, _ := s.State(); state != StateUnauthenticated {
		t.Errorf("state = %v", state)
	}
	if _, err := s.Tasks(); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Tasks err = %v", err)
	}
	if len(st.Writes(model.FieldTodos)) != 1 {
		t.Error("pending write was not flushed on sign out")
	}
	// the detached engine rejects further changes
	if _, err := te.Add(tasks.Input{Text: "late"}); !errors.Is(err, tasks.ErrClosed) {
		t.Errorf("Add after sign out err = %v, want ErrClosed", err)
	}
	if len(st.Writes(model.FieldTodos)) != 1 {
		t.Error("write after sign out reached the store")
	}
}

func TestRefreshReloads(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})

	if err := s.Refresh(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Refresh before load = %v", err)
	}
	s.OnIdentityChange(context.Background(), &alice)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if st.ReadCount() != 2 {
		t.Errorf("reads = %d, want 2", st.ReadCount())
	}
	if state, _ := s.State(); state != StateReady {
		t.Errorf("state = %v", state)
	}
}

func TestPermissionWriteFailureKeepsThemeLocal(t *testing.T) {
	st := &mockStore{writeErr: util.ErrPermissionDenied}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)

	if err := s.UpdateNotificationPreferences(context.Background(), model.NotificationPreferences{Email: true}); err != nil {
		t.Fatalf("UpdateNotificationPreferences: %v", err)
	}
	flush(t, s)
	if got := s.Banner(); got != BannerPermission {
		t.Fatalf("banner = %q", got)
	}

	if err := s.UpdateTheme(context.Background(), model.ThemeDark); err != nil {
		t.Fatalf("UpdateTheme: %v", err)
	}
	flush(t, s)

	if len(st.Writes(model.FieldSettings)) != 0 {
		t.Error("theme was written remotely after permission denial")
	}
	if len(st.localTheme) != 1 || st.localTheme[0] != model.ThemeDark {
		t.Errorf("local theme writes = %v", st.localTheme)
	}
	settings, _ := s.Settings()
	if settings.Theme != model.ThemeDark {
		t.Errorf("theme = %q", settings.Theme)
	}
}

func TestUpdateThemeValidation(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)

	if err := s.UpdateTheme(context.Background(), "neon"); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v", err)
	}
	if len(st.localTheme) != 0 {
		t.Error("invalid theme stored locally")
	}

	err := s.UpdatePrivacySettings(context.Background(), model.PrivacySettings{ProfileVisibility: "everyone"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("privacy err = %v", err)
	}
}

func TestCalendarConnectDisconnect(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)
	ctx := context.Background()

	cs, err := s.ConnectCalendar(ctx, "")
	if err != nil {
		t.Fatalf("ConnectCalendar: %v", err)
	}
	if !cs.Enabled || cs.LastSynced == nil || !cs.LastSynced.Equal(testNow) || cs.Provider == nil || *cs.Provider != DefaultCalendarProvider {
		t.Errorf("connected = %+v", cs)
	}

	cs, _ = s.DisconnectCalendar(ctx)
	if cs.Enabled || cs.LastSynced != nil || cs.Provider != nil {
		t.Errorf("disconnected = %+v", cs)
	}

	on := true
	cs, _ = s.UpdateCalendarSync(ctx, CalendarSyncUpdate{Enabled: &on})
	if cs.LastSynced == nil {
		t.Error("enabling sync did not stamp lastSynced")
	}
	flush(t, s)
	if n := len(st.Writes(model.FieldCalendarSync)); n == 0 {
		t.Error("calendar changes were not persisted")
	}
}

func TestAchievementIsShown(t *testing.T) {
	sink := &mockSink{permission: notify.PermissionGranted}
	s := newTestSession(t, &mockStore{}, sink)
	s.OnIdentityChange(context.Background(), &alice)

	he, _ := s.Habits()
	h, _ := he.Add(habits.Input{Name: "Read", Frequency: model.FrequencyDaily})
	if _, err := he.ToggleCompletion(h.ID); err != nil {
		t.Fatalf("ToggleCompletion: %v", err)
	}

	got := s.Achievements()
	if len(got) != 1 || got[0].Key.Kind != model.AchievementFirst {
		t.Fatalf("achievements = %+v", got)
	}
	var found bool
	for _, n := range sink.Shown() {
		if n.title == AchievementTitle && strings.HasPrefix(n.body, "First Step: ") {
			found = true
		}
	}
	if !found {
		t.Errorf("achievement notification missing: %+v", sink.Shown())
	}

	if !s.DismissAchievement(got[0].Key) {
		t.Error("DismissAchievement returned false")
	}
	if len(s.Achievements()) != 0 {
		t.Error("achievement still active after dismissal")
	}
}

func TestExportImport(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)
	ctx := context.Background()

	te, _ := s.Tasks()
	te.Add(tasks.Input{Text: "old"})

	if err := s.Import(ctx, []byte(`{"todos": {}}`)); !errors.Is(err, transfer.ErrInvalidFormat) {
		t.Fatalf("invalid import err = %v", err)
	}
	if len(te.List()) != 1 {
		t.Fatal("invalid import changed tasks")
	}

	data := []byte(`{
		"todos": [{"id": "10", "text": "imported", "category": "work", "completed": false}],
		"habits": [],
		"settings": {"theme": "dark"},
		"exportDate": "2024-03-01T00:00:00Z"
	}`)
	if err := s.Import(ctx, data); err != nil {
		t.Fatalf("Import: %v", err)
	}
	flush(t, s)

	doc, err := s.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(doc.Todos) != 1 || doc.Todos[0].Text != "imported" {
		t.Errorf("exported todos = %+v", doc.Todos)
	}
	if doc.Settings == nil || doc.Settings.Theme != model.ThemeDark {
		t.Errorf("exported settings = %+v", doc.Settings)
	}
	if !doc.ExportDate.Equal(testNow) {
		t.Errorf("exportDate = %v", doc.ExportDate)
	}
	todos := st.Writes(model.FieldTodos)
	last := todos[len(todos)-1].([]model.Task)
	if len(last) != 1 || last[0].ID != "10" {
		t.Errorf("imported tasks not persisted: %+v", last)
	}
}

func TestImportRejectedFileChangesNothing(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown visibility", data: `{"todos": [], "habits": [], "privacySettings": {"profileVisibility": "bogus"}}`},
		{name: "unknown theme", data: `{"todos": [], "habits": [], "settings": {"theme": "neon"}}`},
		{name: "custom habit without days", data: `{"todos": [], "habits": [{"id": "1", "name": "Run", "frequency": "custom"}]}`},
		{name: "duplicate task ids", data: `{"todos": [{"id": "1", "text": "a"}, {"id": "1", "text": "b"}], "habits": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &mockStore{}
			s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
			s.OnIdentityChange(context.Background(), &alice)
			ctx := context.Background()

			te, _ := s.Tasks()
			if _, err := te.Add(tasks.Input{Text: "keep me"}); err != nil {
				t.Fatalf("Add: %v", err)
			}
			flush(t, s)
			before := len(st.Writes(model.FieldTodos))

			if err := s.Import(ctx, []byte(tt.data)); !errors.Is(err, transfer.ErrInvalidFormat) {
				t.Fatalf("Import err = %v, want ErrInvalidFormat", err)
			}
			flush(t, s)

			if list := te.List(); len(list) != 1 || list[0].Text != "keep me" {
				t.Errorf("tasks after rejected import = %+v", list)
			}
			if got := len(st.Writes(model.FieldTodos)); got != before {
				t.Errorf("todos writes = %d, want %d", got, before)
			}
			if n := len(st.Writes(model.FieldPrivacySettings)) + len(st.Writes(model.FieldSettings)); n != 0 {
				t.Errorf("settings written by rejected import: %d", n)
			}
		})
	}
}

func TestRefreshRetiresOldEngines(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)
	ctx := context.Background()

	old, _ := s.Tasks()
	if _, err := old.Add(tasks.Input{Text: "before refresh"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	st.mu.Lock()
	st.readStarted, st.releaseRead = make(chan struct{}), make(chan struct{})
	st.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	<-st.readStarted

	// mid-reload: readers still get data, writers get a retryable error
	during, err := s.Tasks()
	if err != nil {
		t.Fatalf("Tasks during reload: %v", err)
	}
	if list := during.List(); len(list) != 1 {
		t.Errorf("tasks during reload = %+v", list)
	}
	if _, err := during.Add(tasks.Input{Text: "Buy milk"}); !errors.Is(err, tasks.ErrClosed) {
		t.Errorf("Add during reload err = %v, want ErrClosed", err)
	}
	if err := s.UpdateTheme(ctx, model.ThemeDark); !errors.Is(err, ErrReloading) {
		t.Errorf("UpdateTheme during reload err = %v, want ErrReloading", err)
	}

	close(st.releaseRead)
	if err := <-done; err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, err := old.Add(tasks.Input{Text: "Buy milk"}); !errors.Is(err, tasks.ErrClosed) {
		t.Errorf("Add on retired engine err = %v, want ErrClosed", err)
	}
	fresh, err := s.Tasks()
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if _, err := fresh.Add(tasks.Input{Text: "after refresh"}); err != nil {
		t.Fatalf("Add after refresh: %v", err)
	}
	flush(t, s)
	todos := st.Writes(model.FieldTodos)
	last := todos[len(todos)-1].([]model.Task)
	if len(last) != 1 || last[0].Text != "after refresh" {
		t.Errorf("last todos write = %+v", last)
	}
}

func TestLoadIgnoresCanceledCallerContext(t *testing.T) {
	st := &mockStore{}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.OnIdentityChange(ctx, &alice)

	if state, err := s.State(); state != StateReady {
		t.Fatalf("state = %v (%v), want ready", state, err)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.readCtxErrs) != 1 || st.readCtxErrs[0] != nil {
		t.Errorf("read context errors = %v, want none", st.readCtxErrs)
	}
}

func TestSignOutTimeoutKeepsPendingInFallback(t *testing.T) {
	st := &mockStore{writeStarted: make(chan struct{}), releaseWrite: make(chan struct{})}
	s := newTestSession(t, st, &mockSink{permission: notify.PermissionDenied})
	s.OnIdentityChange(context.Background(), &alice)

	te, _ := s.Tasks()
	te.Add(tasks.Input{Text: "in flight"})
	<-st.writeStarted
	te.Add(tasks.Input{Text: "pending"})

	time.AfterFunc(50*time.Millisecond, func() { close(st.releaseWrite) })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	s.OnIdentityChange(ctx, nil)

	fb := st.FallbackWrites()
	if len(fb) != 1 {
		t.Fatalf("fallback writes = %d, want 1", len(fb))
	}
	list, ok := fb[0][model.FieldTodos].([]model.Task)
	if !ok || len(list) != 2 {
		t.Errorf("fallback todos = %+v, want both tasks", fb[0][model.FieldTodos])
	}
	if n := len(st.Writes(model.FieldTodos)); n != 1 {
		t.Errorf("remote todos writes = %d, want the in-flight one", n)
	}
}
