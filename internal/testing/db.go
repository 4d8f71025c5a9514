// Package testing provides testing utilities and helpers for the fundval project.
package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/fundval/internal/database"
)

// NewTestDB creates a file-backed SQLite database in a temporary directory and
// applies the embedded schema registered for name ("fundval" or "client_data").
// Unknown names produce an empty database. The database is closed when the test ends.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))

	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	return db
}

// NewTestDBWithSchema creates a test database and executes a custom schema on it.
func NewTestDBWithSchema(t *testing.T, name string, schema string) *database.DB {
	t.Helper()

	db := NewTestDB(t, name)
	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}
	return db
}

// CreateTempDBFile returns a path for a database file that is removed after the test.
func CreateTempDBFile(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("%s.db", name))
	t.Cleanup(func() { _ = os.Remove(path) })
	return path
}
