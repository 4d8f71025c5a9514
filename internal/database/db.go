// Package database opens the SQLite files behind fundval and applies their
// embedded schemas.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// schemaFiles maps database names to their embedded schema files
var schemaFiles = map[string]string{
	"fundval":     "fundval_schema.sql",
	"client_data": "client_data_schema.sql",
}

// DatabaseProfile selects durability and pool settings.
type DatabaseProfile string

const (
	// ProfileStandard is used for fundval.db: holdings, relationships and the archive.
	ProfileStandard DatabaseProfile = "standard"
	// ProfileCache is used for client_data.db, whose rows can all be refetched.
	ProfileCache DatabaseProfile = "cache"
)

// DB is an open SQLite database.
type DB struct {
	conn *sql.DB
	path string
	name string
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // schema lookup and log name, e.g. "fundval"
}

// New opens the database at cfg.Path, creating its directory when needed.
// Paths starting with "file:" are passed to the driver untouched.
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, name: cfg.Name}, nil
}

func buildConnectionString(path string, profile DatabaseProfile) string {
	pragmas := []string{"journal_mode(WAL)"}

	switch profile {
	case ProfileCache:
		pragmas = append(pragmas, "synchronous(OFF)", "auto_vacuum(FULL)")
	default:
		pragmas = append(pragmas, "synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)")
	}

	pragmas = append(pragmas,
		"temp_store(MEMORY)",
		"foreign_keys(1)",
		"wal_autocheckpoint(1000)",
		"cache_size(-64000)", // 64MB
	)

	return path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}

func configureConnectionPool(conn *sql.DB, profile DatabaseProfile) {
	if profile == ProfileCache {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
	}
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying pool. Repositories query through it.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name for logging
func (db *DB) Name() string {
	return db.name
}

// Migrate applies the embedded schema registered for this database name.
// Schemas use CREATE ... IF NOT EXISTS, so migrating twice is a no-op.
func (db *DB) Migrate() error {
	schemaFile, ok := schemaFiles[db.name]
	if !ok {
		return nil
	}

	content, err := schemaFS.ReadFile("schemas/" + schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", schemaFile, err)
	}

	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			if strings.Contains(err.Error(), "duplicate column") {
				return nil
			}
			return fmt.Errorf("failed to execute schema %s for %s: %w", schemaFile, db.name, err)
		}
		return nil
	})
}

// WithTransaction runs fn inside a transaction on db. The transaction is
// rolled back when fn returns an error or panics and committed otherwise.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

// HealthCheck pings the database and runs PRAGMA integrity_check. It reads
// every page, so it belongs in maintenance rather than request paths.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, result)
	}
	return nil
}

// QuickCheck only pings the database.
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WALCheckpoint checkpoints the WAL. mode is one of PASSIVE, FULL, RESTART or
// TRUNCATE; empty means TRUNCATE.
func (db *DB) WALCheckpoint(mode string) error {
	if mode == "" {
		mode = "TRUNCATE"
	}
	if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode)); err != nil {
		return fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	return nil
}

// BackupTo writes a consistent copy of the database to destPath using VACUUM INTO.
func (db *DB) BackupTo(ctx context.Context, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	_ = os.Remove(destPath)

	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backup of %s failed: %w", db.name, err)
	}
	return nil
}

// Vacuum rebuilds the database file, returning free pages to the filesystem.
func (db *DB) Vacuum(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed for %s: %w", db.name, err)
	}
	return nil
}

// Stats describes the on-disk footprint of a database.
type Stats struct {
	SizeBytes     int64
	WALSizeBytes  int64
	PageCount     int64
	PageSize      int64
	FreelistCount int64
}

// FreeRatio is the share of pages sitting on the freelist.
func (s *Stats) FreeRatio() float64 {
	if s.PageCount == 0 {
		return 0
	}
	return float64(s.FreelistCount) / float64(s.PageCount)
}

// GetStats reads file sizes and page counters.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	if info, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = info.Size()
	}

	for pragma, dest := range map[string]*int64{
		"page_count":     &stats.PageCount,
		"page_size":      &stats.PageSize,
		"freelist_count": &stats.FreelistCount,
	} {
		if err := db.conn.QueryRow("PRAGMA " + pragma).Scan(dest); err != nil {
			return nil, fmt.Errorf("failed to read %s for %s: %w", pragma, db.name, err)
		}
	}

	return stats, nil
}
