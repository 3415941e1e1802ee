package iocache

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/repoharvest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, path, table string) bool {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestMigrateRuns_NoneBackend(t *testing.T) {
	err := MigrateRuns(schema.NoneBackend, "", -1, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestMigrateRuns_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	var out bytes.Buffer

	require.NoError(t, MigrateRuns(schema.SQLiteBackend, path, -1, &out))
	assert.Contains(t, out.String(), "Successfully migrated from version 0 to version 2")
	for _, table := range RunTables {
		assert.True(t, tableExists(t, path, table), table)
	}

	out.Reset()
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, path, -1, &out))
	assert.Contains(t, out.String(), "No migration needed")

	out.Reset()
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, path, 1, &out))
	assert.Contains(t, out.String(), "to version 1")

	out.Reset()
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, path, 0, &out))
	assert.Contains(t, out.String(), "rolled back from version 1 to version 0")
	assert.False(t, tableExists(t, path, runsTable))

	out.Reset()
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, path, 0, &out))
	assert.Contains(t, out.String(), "already at version 0")
}

func TestMigrateRuns_StoreAfterMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, path, -1, &bytes.Buffer{}))

	store, err := NewRunStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	runID, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)
	assert.Positive(t, runID)
}
