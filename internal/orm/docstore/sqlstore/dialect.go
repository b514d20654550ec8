package sqlstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/docref/internal/orm/docstore"
)

// Dialect abstracts how each engine stores and queries the JSON document body
type Dialect interface {
	// Name is the migration directory and golang-migrate driver name
	Name() string

	// Placeholder returns the bind parameter placeholder for the given 1-based index
	Placeholder(index int) string

	// BodyValue returns the expression that stores an encoded body bound at index
	BodyValue(index int) string

	// Condition renders a filter condition on the document body. Its parameters are
	// numbered from index.
	Condition(cond docstore.Condition, index int) (string, []interface{}, error)
}

// PostgreSQL stores bodies as JSONB and uses its containment operators
var PostgreSQL Dialect = postgresDialect{}

// SQLite stores bodies as JSON text and queries them with the JSON1 functions
var SQLite Dialect = sqliteDialect{}

// MySQL stores bodies in a JSON column
var MySQL Dialect = mysqlDialect{}

// DialectFor returns the dialect of a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return PostgreSQL, nil
	case "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string                 { return "postgres" }
func (postgresDialect) Placeholder(index int) string { return fmt.Sprintf("$%d", index) }
func (postgresDialect) BodyValue(index int) string   { return fmt.Sprintf("CAST($%d AS jsonb)", index) }

func (postgresDialect) Condition(cond docstore.Condition, index int) (string, []interface{}, error) {
	field := fmt.Sprintf("body -> CAST($%d AS text)", index)

	switch cond.Op {
	case docstore.OpEq:
		value, err := encodeJSON(cond.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s = CAST($%d AS jsonb)", field, index+1), []interface{}{cond.Field, value}, nil
	case docstore.OpIn:
		values, err := encodeList(cond.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s = ANY(CAST($%d AS jsonb[]))", field, index+1),
			[]interface{}{cond.Field, pq.Array(values)}, nil
	case docstore.OpContains:
		value, err := encodeJSON([]interface{}{cond.Value})
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s @> CAST($%d AS jsonb)", field, index+1), []interface{}{cond.Field, value}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", docstore.ErrUnsupportedOp, cond.Op)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string             { return "sqlite3" }
func (sqliteDialect) Placeholder(_ int) string { return "?" }
func (sqliteDialect) BodyValue(_ int) string   { return "?" }

func (sqliteDialect) Condition(cond docstore.Condition, _ int) (string, []interface{}, error) {
	path := jsonPath(cond.Field)

	switch cond.Op {
	case docstore.OpEq:
		return "json_extract(body, ?) = ?", []interface{}{path, sqliteValue(cond.Value)}, nil
	case docstore.OpIn:
		values, ok := docstore.AsList(cond.Value)
		if !ok {
			return "", nil, fmt.Errorf("%w: in requires a list, got %T", docstore.ErrUnsupportedOp, cond.Value)
		}
		if len(values) == 0 {
			return "1 = 0", nil, nil
		}
		args := []interface{}{path}
		for _, v := range values {
			args = append(args, sqliteValue(v))
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return fmt.Sprintf("json_extract(body, ?) IN (%s)", placeholders), args, nil
	case docstore.OpContains:
		return "json_type(body, ?) = 'array' AND EXISTS (SELECT 1 FROM json_each(body, ?) WHERE json_each.value = ?)",
			[]interface{}{path, path, sqliteValue(cond.Value)}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", docstore.ErrUnsupportedOp, cond.Op)
	}
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string             { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string { return "?" }
func (mysqlDialect) BodyValue(_ int) string   { return "CAST(? AS JSON)" }

func (mysqlDialect) Condition(cond docstore.Condition, _ int) (string, []interface{}, error) {
	path := jsonPath(cond.Field)

	switch cond.Op {
	case docstore.OpEq:
		value, err := encodeJSON(cond.Value)
		if err != nil {
			return "", nil, err
		}
		return "JSON_EXTRACT(body, ?) = CAST(? AS JSON)", []interface{}{path, value}, nil
	case docstore.OpIn:
		values, ok := docstore.AsList(cond.Value)
		if !ok {
			return "", nil, fmt.Errorf("%w: in requires a list, got %T", docstore.ErrUnsupportedOp, cond.Value)
		}
		list, err := encodeJSON(values)
		if err != nil {
			return "", nil, err
		}
		return "JSON_TYPE(JSON_EXTRACT(body, ?)) NOT IN ('ARRAY', 'OBJECT') AND JSON_CONTAINS(CAST(? AS JSON), JSON_EXTRACT(body, ?))",
			[]interface{}{path, list, path}, nil
	case docstore.OpContains:
		value, err := encodeJSON(cond.Value)
		if err != nil {
			return "", nil, err
		}
		return "JSON_TYPE(JSON_EXTRACT(body, ?)) = 'ARRAY' AND JSON_CONTAINS(JSON_EXTRACT(body, ?), CAST(? AS JSON))",
			[]interface{}{path, path, value}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", docstore.ErrUnsupportedOp, cond.Op)
	}
}

// jsonPath addresses a top-level field, quoted so any key is valid
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter value: %w", err)
	}
	return string(data), nil
}

func encodeList(v interface{}) ([]string, error) {
	values, ok := docstore.AsList(v)
	if !ok {
		return nil, fmt.Errorf("%w: in requires a list, got %T", docstore.ErrUnsupportedOp, v)
	}
	out := make([]string, len(values))
	for i, item := range values {
		encoded, err := encodeJSON(item)
		if err != nil {
			return nil, err
		}
		out[i] = encoded
	}
	return out, nil
}

// sqliteValue converts a reference value into what json_extract yields for it: text for
// strings, a number for every numeric kind, 0 or 1 for booleans
func sqliteValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return 1
		}
		return 0
	case fmt.Stringer:
		return val.String()
	}

	// json_extract yields INTEGER for whole numbers and REAL otherwise
	key, ok := docstore.KeyOf(v)
	switch {
	case !ok:
		return v
	case strings.HasPrefix(key, "n:"):
		if i, err := strconv.ParseInt(key[2:], 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(key[2:], 10, 64); err == nil {
			return float64(u)
		}
	case strings.HasPrefix(key, "f:"):
		if f, err := strconv.ParseFloat(key[2:], 64); err == nil {
			return f
		}
	}
	return v
}
