package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"todohabit/internal/identity"
	"todohabit/internal/model"
	"todohabit/internal/notify"
	"todohabit/pkg/metrics"
)

type entry struct {
	mu      sync.Mutex
	holder  *identity.Holder
	session *Session
	unsub   func()
}

// Registry holds one session per signed-in user. Each user gets an identity
// holder whose changes drive the session's loader.
type Registry struct {
	deps  Deps
	sinks notify.SinkFactory

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(deps Deps, sinks notify.SinkFactory) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Registry{deps: deps, sinks: sinks, entries: map[string]*entry{}}
}

// Ensure returns the user's session, loading it on first sight. Concurrent
// callers for the same user wait for the first load.
func (r *Registry) Ensure(ctx context.Context, ident model.Identity) (*Session, error) {
	if ident.ID == "" {
		return nil, ErrUnauthenticated
	}

	r.mu.Lock()
	e, ok := r.entries[ident.ID]
	if !ok {
		s := New(r.deps, r.sinks(ident.ID))
		e = &entry{holder: identity.NewHolder(), session: s}
		e.unsub = e.holder.OnChange(s.OnIdentityChange)
		r.entries[ident.ID] = e
		metrics.ActiveSessions.Inc()
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.holder.Set(ctx, &ident)
	return e.session, nil
}

// Get returns a loaded session without creating one.
func (r *Registry) Get(uid string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uid]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Logout signs the user out: pending writes are flushed and the session is
// dropped.
func (r *Registry) Logout(ctx context.Context, uid string) bool {
	r.mu.Lock()
	e, ok := r.entries[uid]
	if ok {
		delete(r.entries, uid)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.holder.Set(ctx, nil)
	e.unsub()
	metrics.ActiveSessions.Dec()
	r.deps.Logger.Info("User signed out", zap.String("user_id", uid))
	return true
}

// Close signs every user out.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	uids := make([]string, 0, len(r.entries))
	for uid := range r.entries {
		uids = append(uids, uid)
	}
	r.mu.Unlock()

	for _, uid := range uids {
		r.Logout(ctx, uid)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
