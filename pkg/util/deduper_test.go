package util

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fakeRedis implements only SetNX; any other call panics on the nil embed.
type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if _, ok := f.keys[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.keys[key] = ttl
	cmd.SetVal(true)
	return cmd
}

func TestAcquireOnce(t *testing.T) {
	rdb := &fakeRedis{keys: map[string]time.Duration{}}
	d := NewDeduper(rdb, time.Hour, zap.NewNop())
	ctx := context.Background()

	if !d.AcquireOnce(ctx, "reminder:u1:task", "1@2024-03-05T09:00:00Z") {
		t.Fatal("first acquire refused")
	}
	if d.AcquireOnce(ctx, "reminder:u1:task", "1@2024-03-05T09:00:00Z") {
		t.Error("duplicate acquire allowed")
	}
	if !d.AcquireOnce(ctx, "reminder:u1:task", "1@2024-03-05T10:00:00Z") {
		t.Error("new reminder time refused")
	}
	if ttl := rdb.keys["dedup:reminder:u1:task:1@2024-03-05T09:00:00Z"]; ttl != time.Hour {
		t.Errorf("ttl = %v", ttl)
	}
}

func TestAcquireOnceFailsOpen(t *testing.T) {
	rdb := &fakeRedis{keys: map[string]time.Duration{}, err: redis.ErrClosed}
	d := NewDeduper(rdb, time.Hour, nil)
	for i := 0; i < 2; i++ {
		if !d.AcquireOnce(context.Background(), "s", "id") {
			t.Fatal("redis failure blocked processing")
		}
	}
}
