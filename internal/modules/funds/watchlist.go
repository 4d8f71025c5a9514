package funds

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// WatchlistRepository handles the fund_watchlist table.
type WatchlistRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db *sql.DB, log zerolog.Logger) *WatchlistRepository {
	return &WatchlistRepository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// List returns the watchlist in insertion order, joined with fund names where known.
func (r *WatchlistRepository) List() ([]WatchlistEntry, error) {
	rows, err := r.db.Query(`
		SELECT w.fund_code, COALESCE(m.fund_name, ''), w.added_at
		FROM fund_watchlist w
		LEFT JOIN fund_metadata m ON m.fund_code = w.fund_code
		ORDER BY w.added_at, w.fund_code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer rows.Close()

	entries := []WatchlistEntry{}
	for rows.Next() {
		var e WatchlistEntry
		var addedAt int64
		if err := rows.Scan(&e.Code, &e.Name, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		e.AddedAt = time.Unix(addedAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Codes returns just the watched fund codes.
func (r *WatchlistRepository) Codes() ([]string, error) {
	entries, err := r.List()
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(entries))
	for i, e := range entries {
		codes[i] = e.Code
	}
	return codes, nil
}

// Add puts a fund on the watchlist. Adding an existing fund is a no-op.
func (r *WatchlistRepository) Add(code string) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO fund_watchlist (fund_code, added_at) VALUES (?, ?)`,
		code, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to add %s to watchlist: %w", code, err)
	}
	r.log.Info().Str("fund_code", code).Msg("Added to watchlist")
	return nil
}

// Remove takes a fund off the watchlist and reports whether it was present.
func (r *WatchlistRepository) Remove(code string) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM fund_watchlist WHERE fund_code = ?`, code)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from watchlist: %w", code, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
