package holdings

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/fundval/internal/database"
	"github.com/rs/zerolog"
)

// Repository handles fund_holdings persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new holdings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "holdings").Logger(),
	}
}

// Replace swaps the stored holdings of a fund for holdings in one transaction.
// Readers never observe a mix of the old and new report.
func (r *Repository) Replace(fundCode string, holdings []Holding) error {
	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM fund_holdings WHERE fund_code = ?`, fundCode); err != nil {
			return fmt.Errorf("failed to clear holdings: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO fund_holdings (fund_code, stock_code, stock_name, weight, report_date, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(fund_code, stock_code) DO UPDATE SET
				weight = fund_holdings.weight + excluded.weight
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, h := range holdings {
			if _, err := stmt.Exec(fundCode, h.StockCode, h.StockName, h.Weight, h.ReportDate, now); err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", h.StockCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace holdings for %s: %w", fundCode, err)
	}

	r.log.Debug().Str("fund_code", fundCode).Int("holdings", len(holdings)).Msg("Holdings replaced")
	return nil
}

// GetByFund returns the stored holdings of a fund, largest weight first.
func (r *Repository) GetByFund(fundCode string) ([]Holding, error) {
	rows, err := r.db.Query(`
		SELECT fund_code, stock_code, stock_name, weight, report_date
		FROM fund_holdings
		WHERE fund_code = ?
		ORDER BY weight DESC, stock_code
	`, fundCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	result := []Holding{}
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.FundCode, &h.StockCode, &h.StockName, &h.Weight, &h.ReportDate); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}
