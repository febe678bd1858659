package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"todohabit/pkg/otel"
)

// MongoDocumentStore stores each document in the named collection with _id set to the document id.
type MongoDocumentStore struct {
	db     *mongo.Database
	logger *zap.Logger
}

func NewMongoDocumentStore(db *mongo.Database, logger *zap.Logger) *MongoDocumentStore {
	return &MongoDocumentStore{db: db, logger: logger}
}

func (r *MongoDocumentStore) GetDocument(ctx context.Context, collection, id string) (json.RawMessage, error) {
	ctx, span := otel.StoreSpan(ctx, "mongodb", "get_document", attribute.String("collection", collection))
	raw, err := r.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	err = wrapStoreError(fmt.Sprintf("get %s/%s", collection, id), err)
	otel.EndSpan(span, err, isNotFound(err))
	if err != nil {
		return nil, err
	}

	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(ext, &fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	delete(fields, "_id")
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Document loaded",
		zap.String("collection", collection),
		zap.String("id", id),
		zap.Int("bytes", len(body)),
	)
	return body, nil
}

func (r *MongoDocumentStore) SetDocument(ctx context.Context, collection, id string, body json.RawMessage) error {
	ctx, span := otel.StoreSpan(ctx, "mongodb", "set_document", attribute.String("collection", collection))
	var doc bson.D
	if err := bson.UnmarshalExtJSON(body, false, &doc); err != nil {
		otel.EndSpan(span, err, false)
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	doc = append(bson.D{{Key: "_id", Value: id}}, withoutID(doc)...)

	_, err := r.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	err = wrapStoreError(fmt.Sprintf("set %s/%s", collection, id), err)
	otel.EndSpan(span, err, false)
	if err != nil {
		r.logger.Error("Failed to set document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
	}
	return err
}

func (r *MongoDocumentStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]json.RawMessage) error {
	ctx, span := otel.StoreSpan(ctx, "mongodb", "update_fields",
		attribute.String("collection", collection),
		attribute.Int("fields", len(fields)),
	)
	set := bson.D{}
	for name, raw := range fields {
		value, err := decodeExtValue(raw)
		if err != nil {
			otel.EndSpan(span, err, false)
			return fmt.Errorf("encode field %s of %s/%s: %w", name, collection, id, err)
		}
		set = append(set, bson.E{Key: name, Value: value})
	}

	res, err := r.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.D{{Key: "$set", Value: set}})
	if err == nil && res.MatchedCount == 0 {
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
	return nil
}

// Ping checks server connectivity for readiness probes.
func (r *MongoDocumentStore) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, nil)
}

// decodeExtValue converts one JSON value into its BSON form. Extended JSON only
// parses documents, so the value is wrapped and unwrapped again.
func decodeExtValue(raw json.RawMessage) (any, error) {
	wrapped := make([]byte, 0, len(raw)+6)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, raw...)
	wrapped = append(wrapped, '}')

	var doc bson.D
	if err := bson.UnmarshalExtJSON(wrapped, false, &doc); err != nil {
		return nil, err
	}
	if len(doc) != 1 {
		return nil, fmt.Errorf("unexpected wrapped value with %d keys", len(doc))
	}
	return doc[0].Value, nil
}

func withoutID(doc bson.D) bson.D {
	out := doc[:0]
	for _, e := range doc {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out
}
