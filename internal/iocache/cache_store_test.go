package iocache

import (
	"database/sql"
	"testing"
	"time"

	"github.com/huangsam/kernscore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryCache(t *testing.T, table string) *CacheStoreImpl {
	t.Helper()
	store, err := NewCacheStore(table, schema.SQLiteBackend, ":memory:")
	require.NoError(t, err, "Failed to create SQLite store")
	t.Cleanup(func() { _ = store.Close() })
	return store.(*CacheStoreImpl)
}

func TestSQLiteBackendOperations(t *testing.T) {
	t.Run("set and get operations", func(t *testing.T) {
		store := newMemoryCache(t, "test_table")

		err := store.Set("diffstat:abc", []byte(`{"files_changed":2}`), 1, 1234567890)
		assert.NoError(t, err, "Set should not fail")

		value, version, timestamp, err := store.Get("diffstat:abc")
		assert.NoError(t, err, "Get should not fail")
		assert.Equal(t, `{"files_changed":2}`, string(value))
		assert.Equal(t, 1, version)
		assert.Equal(t, int64(1234567890), timestamp)
	})

	t.Run("upsert behavior", func(t *testing.T) {
		store := newMemoryCache(t, "test_table")

		require.NoError(t, store.Set("upsert_key", []byte("initial_value"), 1, 1000))
		require.NoError(t, store.Set("upsert_key", []byte("updated_value"), 2, 2000))

		value, version, timestamp, err := store.Get("upsert_key")
		assert.NoError(t, err)
		assert.Equal(t, "updated_value", string(value), "After upsert, value mismatch")
		assert.Equal(t, 2, version, "After upsert, version mismatch")
		assert.Equal(t, int64(2000), timestamp, "After upsert, timestamp mismatch")
	})

	t.Run("get non-existent key", func(t *testing.T) {
		store := newMemoryCache(t, "test_table")
		_, _, _, err := store.Get("non_existent_key")
		assert.Equal(t, sql.ErrNoRows, err, "Get non-existent key should return sql.ErrNoRows")
	})

	t.Run("multiple keys", func(t *testing.T) {
		store := newMemoryCache(t, "test_table")
		keys := []string{"key1", "key2", "key3"}
		for i, key := range keys {
			assert.NoError(t, store.Set(key, []byte("value"+key), i+1, int64(1000+i)), "Set %s should not fail", key)
		}
		for i, key := range keys {
			value, version, timestamp, err := store.Get(key)
			assert.NoError(t, err, "Get %s should not fail", key)
			assert.Equal(t, "value"+key, string(value))
			assert.Equal(t, i+1, version)
			assert.Equal(t, int64(1000+i), timestamp)
		}
	})
}

func TestNoneBackendStore(t *testing.T) {
	store, err := NewCacheStore("test_none", schema.NoneBackend, "")
	require.NoError(t, err)

	assert.NoError(t, store.Set("k", []byte("v"), 1, 1))
	_, _, _, err = store.Get("k")
	assert.Equal(t, sql.ErrNoRows, err, "disabled caching never hits")
	assert.NoError(t, store.Close())
}

func TestNewCacheStoreErrors(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		backend schema.DatabaseBackend
	}{
		{"invalid table name", "invalid-name", schema.SQLiteBackend},
		{"empty table name", "", schema.SQLiteBackend},
		{"injection attempt", "x; DROP TABLE y", schema.SQLiteBackend},
		{"unsupported backend", "test_table", "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCacheStore(tt.table, tt.backend, ":memory:")
			assert.Error(t, err)
		})
	}
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`kernscore_runs`", quoteTableName("kernscore_runs", schema.MySQLBackend))
	assert.Equal(t, `"kernscore_runs"`, quoteTableName("kernscore_runs", schema.PostgreSQLBackend))
	assert.Equal(t, `"kernscore_runs"`, quoteTableName("kernscore_runs", schema.SQLiteBackend))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholderList(schema.PostgreSQLBackend, 3))
	assert.Equal(t, "?, ?, ?", placeholderList(schema.MySQLBackend, 3))
	assert.Equal(t, "?", placeholder(schema.SQLiteBackend, 7))
}

func TestCacheStoreGetStatus(t *testing.T) {
	t.Run("SQLite backend with data", func(t *testing.T) {
		store := newMemoryCache(t, "test_status_table")
		for _, data := range []struct {
			key string
			ts  int64
		}{{"key1", 1000}, {"key2", 2000}, {"key3", 1500}} {
			require.NoError(t, store.Set(data.key, []byte("value"), 1, data.ts))
		}

		status, err := store.GetStatus()
		assert.NoError(t, err, "GetStatus should not fail")
		assert.Equal(t, "sqlite", status.Backend)
		assert.True(t, status.Connected)
		assert.Equal(t, 3, status.TotalEntries)
		assert.Equal(t, time.Unix(2000, 0), status.LastEntryTime)
		assert.Equal(t, time.Unix(1000, 0), status.OldestEntryTime)
		assert.Greater(t, status.TableSizeBytes, int64(0))
	})

	t.Run("SQLite backend empty", func(t *testing.T) {
		store := newMemoryCache(t, "test_empty_table")
		status, err := store.GetStatus()
		assert.NoError(t, err)
		assert.True(t, status.Connected)
		assert.Zero(t, status.TotalEntries)
		assert.True(t, status.LastEntryTime.IsZero())
		assert.Zero(t, status.TableSizeBytes)
	})

	t.Run("None backend", func(t *testing.T) {
		store, err := NewCacheStore("test_none", schema.NoneBackend, "")
		require.NoError(t, err)
		status, err := store.GetStatus()
		assert.NoError(t, err)
		assert.Equal(t, "none", status.Backend)
		assert.False(t, status.Connected)
	})
}
