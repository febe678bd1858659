package identity

import (
	"context"
	"sync"

	"todohabit/internal/model"
)

// Listener receives identity changes. A nil identity means signed out.
type Listener func(ctx context.Context, ident *model.Identity)

// Holder keeps the current identity of one client and notifies subscribers
// when it changes to a different user or to nil.
type Holder struct {
	mu        sync.Mutex
	current   *model.Identity
	listeners map[int]Listener
	nextID    int
}

func NewHolder() *Holder {
	return &Holder{listeners: map[int]Listener{}}
}

func (h *Holder) Current() *model.Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil
	}
	c := *h.current
	return &c
}

// OnChange subscribes fn and returns the unsubscribe func.
func (h *Holder) OnChange(fn Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Set records ident and notifies listeners if the user changed. Profile
// fields are refreshed silently for the same user.
func (h *Holder) Set(ctx context.Context, ident *model.Identity) {
	h.mu.Lock()
	changed := !sameUser(h.current, ident)
	if ident == nil {
		h.current = nil
	} else {
		c := *ident
		h.current = &c
	}
	var fns []Listener
	if changed {
		for _, fn := range h.listeners {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, ident)
	}
}

func sameUser(a, b *model.Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
