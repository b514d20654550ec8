package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docref/internal/orm/crud"
	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

const testConfig = `
log:
  level: error
store:
  driver: memory
  seed: %SEED%
entities:
  - collection: children
    unique: [slug]
  - collection: parents
    relations:
      - source_key: childId
        target: children
      - source_key: childIds
        target: children
        cardinality: many
      - source_key: mentorId
        target: children
        check: false
`

const testSeed = `{
  "children": [
    {"_id": "c1", "name": "Ann", "slug": "ann"},
    {"_id": "c2", "name": "Bob", "slug": "bob"}
  ],
  "parents": [
    {"_id": "p1", "childId": "c1", "childIds": ["c2", "c1"], "mentorId": "c9"}
  ]
}`

func writeConfig(t *testing.T) string {
	t.Helper()
	return writeConfigWithSeed(t, testSeed)
}

func writeConfigWithSeed(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(data), 0644))

	path := filepath.Join(dir, "docref.yml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(testConfig, "%SEED%", seed, 1)), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "docref", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	expected := []string{"version", "schema", "get", "populate", "insert", "update", "delete", "audit", "migrate", "serve"}
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected command %s to be registered", name)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	defer func() { Version = "dev" }()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docref version: 1.0.0-test")
	assert.Contains(t, out, "Go version: go")
}

func TestSchemaCommand(t *testing.T) {
	config := writeConfig(t)

	out, err := run(t, "--config", config, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "parents.childIds")
	assert.Contains(t, out, "2 entity types, 3 relations (2 checked, 1 unchecked)")

	out, err = run(t, "--config", config, "schema", "--targets")
	require.NoError(t, err)
	assert.Contains(t, out, "(not referenced)")
}

func TestGetCommand(t *testing.T) {
	config := writeConfig(t)

	out, err := run(t, "--config", config, "get", "children", "c2")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Bob", doc["name"])

	_, err = run(t, "--config", config, "get", "children", "c7")
	assert.True(t, crud.IsNotFound(err))

	_, err = run(t, "--config", config, "get", "chilren", "c1")
	assert.ErrorIs(t, err, schema.ErrUnknownEntity)
}

func TestPopulateCommand(t *testing.T) {
	config := writeConfig(t)

	t.Run("single", func(t *testing.T) {
		out, err := run(t, "--config", config, "populate", "parents", "p1")
		require.NoError(t, err)

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		assert.Equal(t, "Ann", doc["child"].(map[string]interface{})["name"])
		children := doc["children"].([]interface{})
		require.Len(t, children, 2)
		assert.Equal(t, "c2", children[0].(map[string]interface{})["_id"])

		mentor, present := doc["mentor"]
		assert.True(t, present)
		assert.Nil(t, mentor)
	})

	t.Run("batch with includes", func(t *testing.T) {
		out, err := run(t, "--config", config, "populate", "parents", "p1", "nope", "--include", "child")
		require.NoError(t, err)

		var docs []map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &docs))
		require.Len(t, docs, 1)
		assert.Contains(t, docs[0], "child")
		assert.NotContains(t, docs[0], "children")
	})
}

func TestInsertCommand(t *testing.T) {
	config := writeConfig(t)

	out, err := run(t, "--config", config, "insert", "parents", `{"_id": "p2", "childIds": ["c1"]}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"p2"`)

	_, err = run(t, "--config", config, "insert", "parents", `{"childIds": ["c1", "c8"]}`)
	var many *integrity.OneToManyRelationError
	require.ErrorAs(t, err, &many)
	assert.Equal(t, []interface{}{"c8"}, many.Diff)

	_, err = run(t, "--config", config, "insert", "parents", `[1]`)
	assert.Error(t, err)

	_, err = run(t, "--config", config, "insert", "parents")
	assert.EqualError(t, err, "no document given")
}

func TestInsertFromFile(t *testing.T) {
	config := writeConfig(t)
	doc := filepath.Join(t.TempDir(), "parent.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"_id": "p3", "mentorId": "nobody"}`), 0644))

	out, err := run(t, "--config", config, "insert", "parents", "--file", doc)
	require.NoError(t, err)
	assert.Contains(t, out, `"nobody"`)
}

func TestUpdateCommand(t *testing.T) {
	config := writeConfig(t)

	out, err := run(t, "--config", config, "update", "parents", "p1", `{"childId": null}`)
	require.NoError(t, err)
	assert.NotContains(t, out, "childId\"")

	_, err = run(t, "--config", config, "update", "parents", "p1", `{"childId": "c5"}`)
	assert.True(t, integrity.IsRelationViolation(err))
}

func TestDeleteCommand(t *testing.T) {
	config := writeConfig(t)

	_, err := run(t, "--config", config, "delete", "children", "c1")
	var blocked *integrity.DeleteBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "p1", blocked.ParentID)

	out, err := run(t, "--config", config, "delete", "parents", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted parents p1")
}

func TestAuditCommand(t *testing.T) {
	config := writeConfig(t)

	out, err := run(t, "--config", config, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "no dangling references")

	out, err = run(t, "--config", config, "audit", "--include-unchecked")
	assert.EqualError(t, err, "found 1 dangling references")
	assert.Contains(t, out, "c9")
}

func TestMigrateCommand(t *testing.T) {
	t.Run("memory store has no migrations", func(t *testing.T) {
		_, err := run(t, "--config", writeConfig(t), "migrate", "up")
		assert.EqualError(t, err, "store driver memory has no migrations")
	})

	t.Run("sqlite", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docref.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: error
store:
  driver: sqlite3
  dsn: `+filepath.Join(dir, "docref.db")+`
entities:
  - collection: children
`), 0644))

		out, err := run(t, "--config", path, "migrate", "version")
		require.NoError(t, err)
		assert.Contains(t, out, "no migrations applied")

		out, err = run(t, "--config", path, "migrate", "up")
		require.NoError(t, err)
		assert.Contains(t, out, "migrations applied")

		out, err = run(t, "--config", path, "migrate", "version")
		require.NoError(t, err)
		assert.Contains(t, out, "version 1")

		_, err = run(t, "--config", path, "insert", "children", `{"_id": "c1"}`)
		require.NoError(t, err)
		out, err = run(t, "--config", path, "get", "children", "c1")
		require.NoError(t, err)
		assert.Contains(t, out, `"c1"`)

		out, err = run(t, "--config", path, "migrate", "down")
		require.NoError(t, err)
		assert.Contains(t, out, "rolled back one migration")
	})
}

func TestNumericIDs(t *testing.T) {
	config := writeConfigWithSeed(t, `{
  "children": [{"_id": 7, "name": "Sev"}, {"_id": 9007199254740993, "name": "Big"}],
  "parents": [{"_id": 1, "childId": 7, "childIds": [9007199254740993, 7]}]
}`)

	out, err := run(t, "--config", config, "get", "children", "9007199254740993")
	require.NoError(t, err)
	assert.Contains(t, out, `"Big"`)
	assert.Contains(t, out, "9007199254740993")

	_, err = run(t, "--config", config, "get", "children", "9007199254740992")
	require.Error(t, err)
	assert.True(t, crud.IsNotFound(err))

	out, err = run(t, "--config", config, "populate", "parents", "1")
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Sev", doc["child"].(map[string]interface{})["name"])
	children := doc["children"].([]interface{})
	require.Len(t, children, 2)
	assert.Equal(t, "Big", children[0].(map[string]interface{})["name"])

	_, err = run(t, "--config", config, "delete", "children", "7")
	assert.True(t, integrity.IsDeleteBlocked(err))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "c", ""}))
	assert.Nil(t, splitList(nil))
}
