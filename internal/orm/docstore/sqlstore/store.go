// Package sqlstore keeps documents as JSON bodies in a single SQL table and translates
// filters into the JSON operators of PostgreSQL, SQLite or MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
)

// Store implements docstore.Store over database/sql
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store's logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps an open database
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to a database with one of the drivers "postgres", "pgx", "sqlite3"
// or "mysql"
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	if driver == "mysql" {
		// Replace reports unchanged rows as affected
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ClientFoundRows = true
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, dialect, opts...), nil
}

// DB returns the underlying database
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store's dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Find returns the documents of collection matching filter, ordered by id
func (s *Store) Find(
	ctx context.Context,
	collection string,
	filter docstore.Filter,
	opts ...docstore.FindOption,
) ([]docstore.Document, error) {
	query, args, err := s.selectQuery(collection, filter, docstore.ApplyFindOptions(opts))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("document query failed", zap.String("collection", collection), zap.Error(err))
		return nil, fmt.Errorf("failed to query %s: %w", collection, ConvertDBError(err))
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, ConvertDBError(err))
	}
	return docs, nil
}

func (s *Store) selectQuery(collection string, filter docstore.Filter, opts docstore.FindOptions) (string, []interface{}, error) {
	var b strings.Builder
	b.WriteString("SELECT body FROM documents WHERE collection = ")
	b.WriteString(s.dialect.Placeholder(1))
	args := []interface{}{collection}
	argIdx := 2

	// Build dynamic WHERE clause based on filter
	for _, cond := range filter {
		clause, condArgs, err := s.dialect.Condition(cond, argIdx)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" AND ")
		b.WriteString(clause)
		args = append(args, condArgs...)
		argIdx += len(condArgs)
	}

	b.WriteString(" ORDER BY id")
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	return b.String(), args, nil
}

// FindByID returns the document stored under id
func (s *Store) FindByID(ctx context.Context, collection string, id interface{}) (docstore.Document, error) {
	key, err := docstore.IDString(id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT body FROM documents WHERE collection = %s AND id = %s",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2))

	var body []byte
	if err := s.db.QueryRowContext(ctx, query, collection, key).Scan(&body); err != nil {
		return nil, fmt.Errorf("failed to find %s %s: %w", collection, key, ConvertDBError(err))
	}
	return decodeBody(body)
}

// Insert stores a new document under id
func (s *Store) Insert(ctx context.Context, collection string, id interface{}, doc docstore.Document) error {
	key, err := docstore.IDString(id)
	if err != nil {
		return err
	}
	body, err := encodeBody(doc)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("INSERT INTO documents (collection, id, body) VALUES (%s, %s, %s)",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.BodyValue(3))

	if _, err := s.db.ExecContext(ctx, query, collection, key, body); err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", collection, key, ConvertDBError(err))
	}
	return nil
}

// Replace overwrites the document stored under id
func (s *Store) Replace(ctx context.Context, collection string, id interface{}, doc docstore.Document) error {
	key, err := docstore.IDString(id)
	if err != nil {
		return err
	}
	body, err := encodeBody(doc)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE documents SET body = %s WHERE collection = %s AND id = %s",
		s.dialect.BodyValue(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))

	result, err := s.db.ExecContext(ctx, query, body, collection, key)
	if err != nil {
		return fmt.Errorf("failed to replace %s %s: %w", collection, key, ConvertDBError(err))
	}
	return expectOneRow(result, collection, key)
}

// Delete removes the document stored under id
func (s *Store) Delete(ctx context.Context, collection string, id interface{}) error {
	key, err := docstore.IDString(id)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM documents WHERE collection = %s AND id = %s",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2))

	result, err := s.db.ExecContext(ctx, query, collection, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", collection, key, ConvertDBError(err))
	}
	return expectOneRow(result, collection, key)
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func expectOneRow(result sql.Result, collection, key string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, key)
	}
	return nil
}

func encodeBody(doc docstore.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(data), nil
}

func decodeBody(body []byte) (docstore.Document, error) {
	doc, err := docstore.UnmarshalDocument(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}
