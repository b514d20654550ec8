package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docref/internal/orm/docstore"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, PostgreSQL), mock
}

func TestPostgresFind(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT body FROM documents WHERE collection = $1 AND body -> CAST($2 AS text) = CAST($3 AS jsonb) ORDER BY id LIMIT 1").
		WithArgs("children", "slug", `"ann"`).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"_id":"c1","slug":"ann"}`)))

	docs, err := store.Find(context.Background(), "children", docstore.Where(docstore.Eq("slug", "ann")), docstore.Limit(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, docstore.Document{"_id": "c1", "slug": "ann"}, docs[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindIn(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT body FROM documents WHERE collection = $1 AND body -> CAST($2 AS text) = ANY(CAST($3 AS jsonb[])) ORDER BY id").
		WithArgs("children", "_id", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	docs, err := store.Find(context.Background(), "children", docstore.Where(docstore.In("_id", []interface{}{"c1", "c2"})))
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByID(t *testing.T) {
	store, mock := newMockStore(t)
	query := "SELECT body FROM documents WHERE collection = $1 AND id = $2"

	mock.ExpectQuery(query).WithArgs("children", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(`{"_id":"c1"}`))
	mock.ExpectQuery(query).WithArgs("children", "c9").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	doc, err := store.FindByID(context.Background(), "children", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", doc["_id"])

	_, err = store.FindByID(context.Background(), "children", "c9")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsert(t *testing.T) {
	store, mock := newMockStore(t)
	query := "INSERT INTO documents (collection, id, body) VALUES ($1, $2, CAST($3 AS jsonb))"

	mock.ExpectExec(query).WithArgs("children", "c1", `{"_id":"c1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("children", "c1", `{"_id":"c1"}`).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (collection, id) already exists."})
	mock.ExpectExec(query).WithArgs("children", "c1", `{"_id":"c1"}`).
		WillReturnError(&pq.Error{Code: "23505", Detail: "Key (collection, id) already exists."})

	ctx := context.Background()
	doc := docstore.Document{"_id": "c1"}
	require.NoError(t, store.Insert(ctx, "children", "c1", doc))
	assert.ErrorIs(t, store.Insert(ctx, "children", "c1", doc), docstore.ErrDuplicateID)
	assert.ErrorIs(t, store.Insert(ctx, "children", "c1", doc), docstore.ErrDuplicateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceAndDelete(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE documents SET body = CAST($1 AS jsonb) WHERE collection = $2 AND id = $3").
		WithArgs(`{"_id":"c1","slug":"x"}`, "children", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM documents WHERE collection = $1 AND id = $2").
		WithArgs("children", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Replace(ctx, "children", "c1", docstore.Document{"_id": "c1", "slug": "x"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "children", "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryError(t *testing.T) {
	store, mock := newMockStore(t)

	reset := errors.New("connection reset")
	mock.ExpectQuery("SELECT body FROM documents WHERE collection = $1 ORDER BY id").
		WithArgs("children").
		WillReturnError(reset)

	_, err := store.Find(context.Background(), "children", nil)
	assert.ErrorIs(t, err, reset)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertDBError(t *testing.T) {
	assert.Nil(t, ConvertDBError(nil))

	fkErr := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, fkErr, ConvertDBError(fkErr))
	assert.ErrorIs(t, ConvertDBError(sql.ErrNoRows), docstore.ErrNotFound)
}
