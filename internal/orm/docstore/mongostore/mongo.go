// Package mongostore implements the document store on MongoDB and runs population
// pipelines natively with $lookup.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Config holds MongoDB-specific configuration
type Config struct {
	URI      string
	Database string
	// IDField is the document field that identifies documents
	IDField string
}

// Store implements docstore.Store and docstore.Aggregator on MongoDB
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	idField string
	logger  *zap.Logger
}

// Open connects to MongoDB and verifies the connection
func Open(ctx context.Context, config Config, logger *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return New(client, config, logger), nil
}

// New creates a store over a connected client
func New(client *mongo.Client, config Config, logger *zap.Logger) *Store {
	if config.IDField == "" {
		config.IDField = schema.DefaultIDField
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:  client,
		db:      client.Database(config.Database),
		idField: config.IDField,
		logger:  logger,
	}
}

// EnsureIndexes creates a unique index on the id field and on every unique index
// declared by the registered entity types
func (s *Store) EnsureIndexes(ctx context.Context, registry *schema.Registry) error {
	for _, entity := range registry.Entities() {
		var models []mongo.IndexModel
		if entity.IDField != "_id" {
			models = append(models, mongo.IndexModel{
				Keys:    bson.D{{Key: entity.IDField, Value: 1}},
				Options: options.Index().SetUnique(true),
			})
		}
		for _, index := range entity.Indexes {
			models = append(models, mongo.IndexModel{
				Keys:    bson.D{{Key: index.Field, Value: 1}},
				Options: options.Index().SetUnique(index.Unique),
			})
		}
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(entity.Collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", entity.Collection, err)
		}
	}
	return nil
}

// Find returns the documents of collection matching filter, ordered by _id
func (s *Store) Find(
	ctx context.Context,
	collection string,
	filter docstore.Filter,
	opts ...docstore.FindOption,
) ([]docstore.Document, error) {
	query, err := BuildFilter(filter)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if o := docstore.ApplyFindOptions(opts); o.Limit > 0 {
		findOpts.SetLimit(int64(o.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, query, findOpts)
	if err != nil {
		s.logger.Error("mongodb query failed", zap.String("collection", collection), zap.Error(err))
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return decodeAll(ctx, cursor)
}

// FindByID returns the document whose id field equals id
func (s *Store) FindByID(ctx context.Context, collection string, id interface{}) (docstore.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{s.idField: id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s/%v", docstore.ErrNotFound, collection, id)
		}
		return nil, fmt.Errorf("failed to find %s/%v: %w", collection, id, err)
	}
	return Normalize(raw), nil
}

// Insert stores a new document
func (s *Store) Insert(ctx context.Context, collection string, id interface{}, doc docstore.Document) error {
	record := doc.Clone()
	record[s.idField] = id

	if _, err := s.db.Collection(collection).InsertOne(ctx, bson.M(record)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s/%v", docstore.ErrDuplicateID, collection, id)
		}
		return fmt.Errorf("failed to insert %s/%v: %w", collection, id, err)
	}
	return nil
}

// Replace overwrites the document whose id field equals id
func (s *Store) Replace(ctx context.Context, collection string, id interface{}, doc docstore.Document) error {
	record := doc.Clone()
	record[s.idField] = id

	result, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{s.idField: id}, bson.M(record))
	if err != nil {
		return fmt.Errorf("failed to replace %s/%v: %w", collection, id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%v", docstore.ErrNotFound, collection, id)
	}
	return nil
}

// Delete removes the document whose id field equals id
func (s *Store) Delete(ctx context.Context, collection string, id interface{}) error {
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{s.idField: id})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%v: %w", collection, id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s/%v", docstore.ErrNotFound, collection, id)
	}
	return nil
}

// Aggregate runs a population pipeline as a single aggregation
func (s *Store) Aggregate(ctx context.Context, collection string, p docstore.Pipeline) ([]docstore.Document, error) {
	if len(p.Match.Values) == 0 {
		return []docstore.Document{}, nil
	}

	cursor, err := s.db.Collection(collection).Aggregate(ctx, BuildPipeline(p))
	if err != nil {
		s.logger.Error("mongodb aggregation failed", zap.String("collection", collection), zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate %s: %w", collection, err)
	}
	return decodeAll(ctx, cursor)
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]docstore.Document, error) {
	defer cursor.Close(ctx)

	docs := []docstore.Document{}
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, Normalize(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cursor: %w", err)
	}
	return docs, nil
}
