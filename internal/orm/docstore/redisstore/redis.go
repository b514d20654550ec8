// Package redisstore keeps each document as a JSON string under its own key, with one set
// of ids per collection. Filters are evaluated in memory.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Config holds Redis-specific configuration
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every key
	Prefix string
	// IDField is the document field holding the id, used to read by id instead of
	// scanning the collection
	IDField string
}

// DefaultConfig returns a default Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:    "localhost:6379",
		Prefix:  "docref:",
		IDField: schema.DefaultIDField,
	}
}

// Store implements docstore.Store on Redis
type Store struct {
	client  *redis.Client
	prefix  string
	idField string
	logger  *zap.Logger
}

// Open connects to Redis and verifies the connection
func Open(ctx context.Context, config Config, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	return NewWithClient(client, config, logger), nil
}

// NewWithClient creates a store with an existing client
func NewWithClient(client *redis.Client, config Config, logger *zap.Logger) *Store {
	if config.IDField == "" {
		config.IDField = schema.DefaultIDField
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:  client,
		prefix:  config.Prefix,
		idField: config.IDField,
		logger:  logger,
	}
}

func (s *Store) docKey(collection, id string) string {
	return s.prefix + collection + ":" + id
}

func (s *Store) indexKey(collection string) string {
	return s.prefix + collection
}

// Find returns the documents of collection matching filter, ordered by id
func (s *Store) Find(
	ctx context.Context,
	collection string,
	filter docstore.Filter,
	opts ...docstore.FindOption,
) ([]docstore.Document, error) {
	ids, err := s.candidateIDs(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []docstore.Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.logger.Error("redis read failed", zap.String("collection", collection), zap.Error(err))
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}

	docs := make([]docstore.Document, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// removed between SMEMBERS and MGET, or never stored
			continue
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	matched, err := docstore.FilterDocuments(docs, filter, docstore.ApplyFindOptions(opts))
	if err != nil {
		return nil, err
	}
	if matched == nil {
		matched = []docstore.Document{}
	}
	return matched, nil
}

// candidateIDs narrows the scan to the ids named by an id condition, falling back to
// the collection's id set
func (s *Store) candidateIDs(ctx context.Context, collection string, filter docstore.Filter) ([]string, error) {
	for _, cond := range filter {
		if cond.Field != s.idField {
			continue
		}
		var values []interface{}
		switch cond.Op {
		case docstore.OpEq:
			values = []interface{}{cond.Value}
		case docstore.OpIn:
			values, _ = docstore.AsList(cond.Value)
		default:
			continue
		}

		ids := make([]string, 0, len(values))
		for _, v := range docstore.Unique(values) {
			if id, err := docstore.IDString(v); err == nil {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		return ids, nil
	}

	ids, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// FindByID returns the document stored under id
func (s *Store) FindByID(ctx context.Context, collection string, id interface{}) (docstore.Document, error) {
	key, err := docstore.IDString(id)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, s.docKey(collection, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, key)
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	return decode(raw)
}

// Insert stores a new document under id
func (s *Store) Insert(ctx context.Context, collection string, id interface{}, doc docstore.Document) error {
	key, body, err := s.prepare(id, doc)
	if err != nil {
		return err
	}

	// A duplicate leaves the index unchanged since the id is already a member
	var created *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, s.docKey(collection, key), body, 0)
		pipe.SAdd(ctx, s.indexKey(collection), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s/%s: %w", collection, key, err)
	}
	if !created.Val() {
		return fmt.Errorf("%w: %s/%s", docstore.ErrDuplicateID, collection, key)
	}
	return nil
}

// Replace overwrites the document stored under id
func (s *Store) Replace(ctx context.Context, collection string, id interface{}, doc docstore.Document) error {
	key, body, err := s.prepare(id, doc)
	if err != nil {
		return err
	}

	replaced, err := s.client.SetXX(ctx, s.docKey(collection, key), body, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to replace %s/%s: %w", collection, key, err)
	}
	if !replaced {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, key)
	}
	return nil
}

// Delete removes the document stored under id
func (s *Store) Delete(ctx context.Context, collection string, id interface{}) error {
	key, err := docstore.IDString(id)
	if err != nil {
		return err
	}

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.docKey(collection, key))
		pipe.SRem(ctx, s.indexKey(collection), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, key)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) prepare(id interface{}, doc docstore.Document) (string, string, error) {
	key, err := docstore.IDString(id)
	if err != nil {
		return "", "", err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode document: %w", err)
	}
	return key, string(data), nil
}

func decode(raw string) (docstore.Document, error) {
	doc, err := docstore.UnmarshalDocument([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}
