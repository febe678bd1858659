package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSlowQueryTracerLogsOnlySlowQueries(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		logged  bool
	}{
		{name: "fast", elapsed: 10 * time.Millisecond, logged: false},
		{name: "slow", elapsed: 250 * time.Millisecond, logged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			tracer := NewSlowQueryTracer(zap.New(core), 100*time.Millisecond)

			base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			tracer.now = func() time.Time { return base }
			ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT body FROM documents"})

			tracer.now = func() time.Time { return base.Add(tt.elapsed) }
			tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

			if got := logs.Len() > 0; got != tt.logged {
				t.Fatalf("logged = %v, want %v", got, tt.logged)
			}
		})
	}
}
