// Package industries resolves two-level industry classifications of stocks,
// caching them in stock_industries.
package industries

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/fundval/internal/clients/eastmoney"
	"github.com/aristath/fundval/internal/database"
	"github.com/rs/zerolog"
)

// maxAge is how long a stored classification is trusted.
const maxAge = 90 * 24 * time.Hour

// Industry is a two-level classification.
type Industry struct {
	L1 string `json:"l1"`
	L2 string `json:"l2"`
}

// Source resolves classifications remotely.
type Source interface {
	Industries(ctx context.Context, stockCodes []string) (map[string]eastmoney.Industry, error)
}

// Service is a read-through classification cache.
type Service struct {
	db     *sql.DB
	source Source
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a new industry service
func NewService(db *sql.DB, source Source, log zerolog.Logger) *Service {
	return &Service{
		db:     db,
		source: source,
		log:    log.With().Str("service", "industries").Logger(),
		now:    time.Now,
	}
}

// Bulk returns classifications for stockCodes. Stocks that cannot be
// classified are absent. Remote failures are logged and leave the cached
// subset as the answer.
func (s *Service) Bulk(ctx context.Context, stockCodes []string) map[string]Industry {
	result := make(map[string]Industry, len(stockCodes))
	if len(stockCodes) == 0 {
		return result
	}

	cached, err := s.load(stockCodes)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read industry cache")
	}

	var missing []string
	for _, code := range stockCodes {
		if ind, ok := cached[code]; ok {
			result[code] = ind
			continue
		}
		// Only A-shares are covered by the classification source
		if isAShare(code) {
			missing = append(missing, code)
		}
	}

	if len(missing) == 0 || s.source == nil {
		return result
	}

	fetched, err := s.source.Industries(ctx, missing)
	if err != nil {
		s.log.Warn().Err(err).Int("stocks", len(missing)).Msg("Failed to fetch industries")
	}
	if len(fetched) == 0 {
		return result
	}

	toStore := make(map[string]Industry, len(fetched))
	for code, ind := range fetched {
		v := Industry{L1: ind.L1, L2: ind.L2}
		result[code] = v
		toStore[code] = v
	}
	if err := s.save(toStore); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache industries")
	}

	return result
}

func (s *Service) load(codes []string) (map[string]Industry, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(codes)), ",")
	args := make([]interface{}, 0, len(codes)+1)
	for _, c := range codes {
		args = append(args, c)
	}
	args = append(args, s.now().Add(-maxAge).Unix())

	rows, err := s.db.Query(`
		SELECT stock_code, industry_l1, industry_l2
		FROM stock_industries
		WHERE stock_code IN (`+placeholders+`) AND updated_at >= ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query industries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Industry, len(codes))
	for rows.Next() {
		var code string
		var ind Industry
		if err := rows.Scan(&code, &ind.L1, &ind.L2); err != nil {
			return nil, fmt.Errorf("failed to scan industry: %w", err)
		}
		out[code] = ind
	}
	return out, rows.Err()
}

func (s *Service) save(industries map[string]Industry) error {
	now := s.now().Unix()
	return database.WithTransaction(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO stock_industries (stock_code, industry_l1, industry_l2, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(stock_code) DO UPDATE SET
				industry_l1 = excluded.industry_l1,
				industry_l2 = excluded.industry_l2,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for code, ind := range industries {
			if _, err := stmt.Exec(code, ind.L1, ind.L2, now); err != nil {
				return fmt.Errorf("failed to store industry for %s: %w", code, err)
			}
		}
		return nil
	})
}

func isAShare(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
