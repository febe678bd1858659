package idgen

import (
	"strconv"
	"sync"
	"time"
)

// Generator issues creation-time ids (unix milliseconds as decimal strings).
// Two calls in the same millisecond get last+1 so ids never repeat.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func New(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Seed raises the floor to the largest numeric id already in use, so ids
// issued after a hydrate cannot collide with persisted ones.
func (g *Generator) Seed(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > g.last {
			g.last = n
		}
	}
}

func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.now().UnixMilli()
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n
	return strconv.FormatInt(n, 10)
}
