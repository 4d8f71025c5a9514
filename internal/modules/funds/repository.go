package funds

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/fundval/internal/database"
	"github.com/rs/zerolog"
)

const fundColumns = `fund_code, fund_name, pinyin_abbr, investment_type, updated_at`

// Repository handles fund_metadata reads and writes.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new fund metadata repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "fund_metadata").Logger(),
	}
}

// UpsertMany inserts or updates fund metadata in a single transaction.
func (r *Repository) UpsertMany(funds []Fund) (int, error) {
	if len(funds) == 0 {
		return 0, nil
	}

	now := time.Now().Unix()
	count := 0

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO fund_metadata (fund_code, fund_name, pinyin_abbr, investment_type, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(fund_code) DO UPDATE SET
				fund_name = excluded.fund_name,
				pinyin_abbr = excluded.pinyin_abbr,
				investment_type = excluded.investment_type,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, f := range funds {
			if f.Code == "" {
				continue
			}
			if _, err := stmt.Exec(f.Code, f.Name, f.PinyinAbbr, f.InvestmentType, now); err != nil {
				return fmt.Errorf("failed to upsert fund %s: %w", f.Code, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Get returns the metadata of one fund, or nil when unknown.
func (r *Repository) Get(code string) (*Fund, error) {
	row := r.db.QueryRow("SELECT "+fundColumns+" FROM fund_metadata WHERE fund_code = ?", code)
	f, err := scanFund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund %s: %w", code, err)
	}
	return &f, nil
}

// Search matches a code prefix, a pinyin abbreviation prefix or a name substring.
func (r *Repository) Search(query string, limit int) ([]Fund, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Fund{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT `+fundColumns+`
		FROM fund_metadata
		WHERE fund_code LIKE ? OR UPPER(pinyin_abbr) LIKE ? OR fund_name LIKE ?
		ORDER BY CASE WHEN fund_code LIKE ? THEN 0 ELSE 1 END, fund_code
		LIMIT ?
	`, query+"%", strings.ToUpper(query)+"%", "%"+query+"%", query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search funds: %w", err)
	}
	defer rows.Close()

	return scanFunds(rows)
}

// FindByNameWithPrefixes returns funds whose code starts with one of prefixes
// and whose name contains fragment.
func (r *Repository) FindByNameWithPrefixes(fragment string, prefixes []string) ([]Fund, error) {
	if fragment == "" || len(prefixes) == 0 {
		return []Fund{}, nil
	}

	clauses := make([]string, len(prefixes))
	args := make([]interface{}, 0, len(prefixes)+1)
	for i, p := range prefixes {
		clauses[i] = "fund_code LIKE ?"
		args = append(args, p+"%")
	}
	args = append(args, "%"+fragment+"%")

	rows, err := r.db.Query(`
		SELECT `+fundColumns+`
		FROM fund_metadata
		WHERE (`+strings.Join(clauses, " OR ")+`) AND fund_name LIKE ?
		ORDER BY fund_code
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find funds by name: %w", err)
	}
	defer rows.Close()

	return scanFunds(rows)
}

// Count returns the number of indexed funds.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM fund_metadata").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count funds: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFund(s scanner) (Fund, error) {
	var f Fund
	var updatedAt int64
	if err := s.Scan(&f.Code, &f.Name, &f.PinyinAbbr, &f.InvestmentType, &updatedAt); err != nil {
		return Fund{}, err
	}
	f.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return f, nil
}

func scanFunds(rows *sql.Rows) ([]Fund, error) {
	funds := []Fund{}
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		funds = append(funds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funds: %w", err)
	}
	return funds, nil
}
