package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"todohabit/pkg/otel"
)

// PostgresDocumentStore keeps each document as a JSONB body keyed by (collection, id).
type PostgresDocumentStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresDocumentStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db, logger: logger}
}

// EnsureSchema creates the documents table if it does not exist.
func (r *PostgresDocumentStore) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS documents (
            collection TEXT NOT NULL,
            id         TEXT NOT NULL,
            body       JSONB NOT NULL DEFAULT '{}'::jsonb,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (collection, id)
        )
    `
	if _, err := r.db.Exec(ctx, query); err != nil {
		r.logger.Error("Failed to create documents table", zap.Error(err))
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	r.logger.Info("Documents table ready")
	return nil
}

// GetDocument returns the JSON body, or ErrNotFound.
func (r *PostgresDocumentStore) GetDocument(ctx context.Context, collection, id string) (json.RawMessage, error) {
	ctx, span := otel.StoreSpan(ctx, "postgresql", "get_document", attribute.String("collection", collection))
	query := `
        SELECT body
        FROM documents
        WHERE collection = $1 AND id = $2
    `
	var body []byte
	err := r.db.QueryRow(ctx, query, collection, id).Scan(&body)
	err = wrapStoreError(fmt.Sprintf("get %s/%s", collection, id), err)
	otel.EndSpan(span, err, isNotFound(err))
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Document loaded",
		zap.String("collection", collection),
		zap.String("id", id),
		zap.Int("bytes", len(body)),
	)
	return json.RawMessage(body), nil
}

// SetDocument replaces the whole body, creating the row when absent.
func (r *PostgresDocumentStore) SetDocument(ctx context.Context, collection, id string, body json.RawMessage) error {
	ctx, span := otel.StoreSpan(ctx, "postgresql", "set_document", attribute.String("collection", collection))
	query := `
        INSERT INTO documents (collection, id, body, updated_at)
        VALUES ($1, $2, $3::jsonb, $4)
        ON CONFLICT (collection, id)
        DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
    `
	_, err := r.db.Exec(ctx, query, collection, id, string(body), time.Now().UTC())
	err = wrapStoreError(fmt.Sprintf("set %s/%s", collection, id), err)
	otel.EndSpan(span, err, false)
	if err != nil {
		r.logger.Error("Failed to set document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// UpdateFields merges top-level fields into an existing body. Missing documents yield ErrNotFound.
func (r *PostgresDocumentStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]json.RawMessage) error {
	ctx, span := otel.StoreSpan(ctx, "postgresql", "update_fields",
		attribute.String("collection", collection),
		attribute.Int("fields", len(fields)),
	)
	patch, err := json.Marshal(fields)
	if err != nil {
		otel.EndSpan(span, err, false)
		return fmt.Errorf("marshal patch for %s/%s: %w", collection, id, err)
	}

	query := `
        UPDATE documents
        SET body = body || $3::jsonb, updated_at = $4
        WHERE collection = $1 AND id = $2
    `
	tag, err := r.db.Exec(ctx, query, collection, id, string(patch), time.Now().UTC())
	if err == nil && tag.RowsAffected() == 0 {
		err = ErrNotFound
	}
	err = wrapStoreError(fmt.Sprintf("update %s/%s", collection, id), err)
	otel.EndSpan(span, err, false)
	if err != nil {
		r.logger.Warn("Failed to update document fields",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
		return err
	}

	r.logger.Debug("Document fields updated",
		zap.String("collection", collection),
		zap.String("id", id),
		zap.Int("fields", len(fields)),
	)
	return nil
}

// Ping checks pool connectivity for readiness probes.
func (r *PostgresDocumentStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
