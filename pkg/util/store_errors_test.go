package util

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"

	"todohabit/pkg/circuitbreaker"
)

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   ErrorKind
		reason string
	}{
		{name: "nil", err: nil, kind: KindNone, reason: ""},
		{name: "sentinel permission", err: fmt.Errorf("update users/u1: %w", ErrPermissionDenied), kind: KindPermission, reason: "permission_denied"},
		{name: "pg insufficient privilege", err: &pgconn.PgError{Code: "42501"}, kind: KindPermission, reason: "pg_42501"},
		{name: "pg bad password", err: fmt.Errorf("connect: %w", &pgconn.PgError{Code: "28P01"}), kind: KindPermission, reason: "pg_28P01"},
		{name: "mongo unauthorized", err: mongo.CommandError{Code: 13, Name: "Unauthorized"}, kind: KindPermission, reason: "mongo_unauthorized"},
		{name: "message text", err: errors.New("Missing or insufficient permissions."), kind: KindPermission, reason: "permission_denied"},
		{name: "sentinel not found", err: fmt.Errorf("get: %w", ErrNotFound), kind: KindNotFound, reason: "not_found"},
		{name: "pgx no rows", err: pgx.ErrNoRows, kind: KindNotFound, reason: "not_found"},
		{name: "mongo no documents", err: mongo.ErrNoDocuments, kind: KindNotFound, reason: "not_found"},
		{name: "breaker open", err: circuitbreaker.ErrOpen, kind: KindTransient, reason: "breaker_open"},
		{name: "deadline", err: context.DeadlineExceeded, kind: KindTransient, reason: "timeout"},
		{name: "pg other", err: &pgconn.PgError{Code: "40001"}, kind: KindTransient, reason: "pg_40001"},
		{name: "unknown", err: errors.New("boom"), kind: KindTransient, reason: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, reason := ClassifyStoreError(tt.err)
			if kind != tt.kind || reason != tt.reason {
				t.Errorf("ClassifyStoreError(%v) = (%q, %q), want (%q, %q)", tt.err, kind, reason, tt.kind, tt.reason)
			}
		})
	}
}
