package fx

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository stores one observed rate per pair per trade date in fx_rate_history.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new FX history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "fx_rate_history").Logger(),
	}
}

// Record upserts the latest rate seen for pair on rateDate.
func (r *Repository) Record(pair, rateDate string, rate float64) error {
	_, err := r.db.Exec(`
		INSERT INTO fx_rate_history (pair, rate_date, rate, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(pair, rate_date) DO UPDATE SET
			rate = excluded.rate,
			updated_at = excluded.updated_at
	`, pair, rateDate, rate, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record %s rate for %s: %w", pair, rateDate, err)
	}
	return nil
}

// PreviousBefore returns the most recent rate recorded strictly before rateDate.
func (r *Repository) PreviousBefore(pair, rateDate string) (float64, string, bool, error) {
	var rate float64
	var date string
	err := r.db.QueryRow(`
		SELECT rate, rate_date
		FROM fx_rate_history
		WHERE pair = ? AND rate_date < ?
		ORDER BY rate_date DESC
		LIMIT 1
	`, pair, rateDate).Scan(&rate, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to query previous %s rate: %w", pair, err)
	}
	return rate, date, true, nil
}

// DeleteBefore prunes history older than rateDate.
func (r *Repository) DeleteBefore(rateDate string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM fx_rate_history WHERE rate_date < ?`, rateDate)
	if err != nil {
		return 0, fmt.Errorf("failed to prune fx history: %w", err)
	}
	return result.RowsAffected()
}
