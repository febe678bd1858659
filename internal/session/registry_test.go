package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/internal/notify"
	"todohabit/internal/service/tasks"
)

func newTestRegistry(st *mockStore) *Registry {
	return NewRegistry(Deps{
		Store:            st,
		Now:              func() time.Time { return testNow },
		ReminderInterval: time.Hour,
		Logger:           zap.NewNop(),
	}, func(string) notify.Sink { return &mockSink{permission: notify.PermissionDenied} })
}

func TestRegistryEnsureLoadsOnce(t *testing.T) {
	st := &mockStore{}
	r := newTestRegistry(st)
	defer r.Close(context.Background())

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Ensure(context.Background(), alice)
			if err != nil {
				t.Errorf("Ensure: %v", err)
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range sessions[1:] {
		if s != sessions[0] {
			t.Fatal("Ensure returned different sessions for the same user")
		}
	}
	if st.ReadCount() != 1 {
		t.Errorf("reads = %d, want 1", st.ReadCount())
	}
	if state, _ := sessions[0].State(); state != StateReady {
		t.Errorf("state = %v", state)
	}

	// profile fields change without reloading
	renamed := alice
	renamed.DisplayName = "Alice B"
	r.Ensure(context.Background(), renamed)
	if st.ReadCount() != 1 {
		t.Errorf("profile refresh reloaded the aggregate")
	}
}

func TestRegistryRejectsAnonymous(t *testing.T) {
	r := newTestRegistry(&mockStore{})
	if _, err := r.Ensure(context.Background(), model.Identity{}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v", err)
	}
	if r.Len() != 0 {
		t.Error("anonymous identity created a session")
	}
}

func TestRegistryLogout(t *testing.T) {
	st := &mockStore{}
	r := newTestRegistry(st)

	s, _ := r.Ensure(context.Background(), alice)
	te, _ := s.Tasks()
	te.Add(tasks.Input{Text: "before logout"})

	if !r.Logout(context.Background(), alice.ID) {
		t.Fatal("Logout returned false")
	}
	if r.Logout(context.Background(), alice.ID) {
		t.Error("second Logout returned true")
	}
	if _, ok := r.Get(alice.ID); ok {
		t.Error("session still registered")
	}
	if state, _ := s.State(); state != StateUnauthenticated {
		t.Errorf("state = %v", state)
	}
	if len(st.Writes(model.FieldTodos)) != 1 {
		t.Error("pending write lost on logout")
	}
}

func TestRegistryEnsureWithCanceledRequest(t *testing.T) {
	st := &mockStore{}
	r := newTestRegistry(st)
	defer r.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := r.Ensure(ctx, alice)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if state, loadErr := s.State(); state != StateReady {
		t.Errorf("state = %v (%v), want ready", state, loadErr)
	}
	if b := s.Banner(); b != "" {
		t.Errorf("banner = %q", b)
	}
}
