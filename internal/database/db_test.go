package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_AppliesEmbeddedSchema(t *testing.T) {
	db := newTestDB(t, "fundval")

	require.NoError(t, db.Migrate())
	// Second run must be a no-op
	require.NoError(t, db.Migrate())

	for _, table := range []string{"fund_metadata", "fund_holdings", "fund_relationships", "fund_valuation_archive", "stock_industries", "fx_rate_history", "fund_watchlist"} {
		var name string
		err := db.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_ClientData(t *testing.T) {
	db := newTestDB(t, "client_data")
	require.NoError(t, db.Migrate())

	var count int
	err := db.Conn().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('exchangerate','fund_list','official_nav','refresh_markers')").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch")
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "scratch")
	_, err := db.Conn().Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	t.Run("commits on success", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO items (name) VALUES ('a')")
			return err
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM items").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO items (name) VALUES ('b')"); err != nil {
				return err
			}
			return errors.New("boom")
		})
		require.Error(t, err)

		var count int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM items").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("recovers from panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			panic("unexpected")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
	})

	t.Run("nil connection", func(t *testing.T) {
		err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
		assert.Error(t, err)
	})
}

func TestBackupTo(t *testing.T) {
	db := newTestDB(t, "fundval")
	require.NoError(t, db.Migrate())

	dest := filepath.Join(t.TempDir(), "backup", "fundval.db")
	require.NoError(t, db.BackupTo(context.Background(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestBuildConnectionString(t *testing.T) {
	assert.Contains(t, buildConnectionString("x.db", ProfileCache), "synchronous(OFF)")
	assert.Contains(t, buildConnectionString("x.db", ProfileStandard), "synchronous(NORMAL)")
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, "fundval")
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))

	require.NoError(t, db.Close())
	assert.Error(t, db.HealthCheck(context.Background()))
}

func TestVacuum_ReclaimsFreePages(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "scratch.db"),
		Name: "scratch",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Conn().Exec("CREATE TABLE blobs (id INTEGER PRIMARY KEY, body BLOB)")
	require.NoError(t, err)
	for i := 0; i < 64; i++ {
		_, err = db.Conn().Exec("INSERT INTO blobs (body) VALUES (zeroblob(8192))")
		require.NoError(t, err)
	}
	_, err = db.Conn().Exec("DELETE FROM blobs")
	require.NoError(t, err)

	before, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, before.FreeRatio(), 0.5)

	require.NoError(t, db.Vacuum(context.Background()))

	after, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.FreelistCount)
	assert.Less(t, after.PageCount, before.PageCount)
}

func TestStatsFreeRatio_EmptyDatabase(t *testing.T) {
	assert.Equal(t, 0.0, (&Stats{}).FreeRatio())
}
