package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/fundval/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// deviationPlaces is the precision deviations are rounded to before grading.
const deviationPlaces = 4

// Grader maps an absolute deviation to a tracking grade.
type Grader interface {
	Grade(absDeviation float64) string
}

// Repository is the history store over fund_valuation_archive.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new archive repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "archive").Logger(),
	}
}

// ArchiveSnapshot freezes a valuation result for tradeDate. A day that has
// already been reconciled is left untouched.
func (r *Repository) ArchiveSnapshot(tradeDate string, result *domain.ValuationResult) error {
	components, err := json.Marshal(result.Components)
	if err != nil {
		return fmt.Errorf("failed to marshal components: %w", err)
	}

	var sector interface{}
	if len(result.SectorAttribution) > 0 {
		b, err := json.Marshal(result.SectorAttribution)
		if err != nil {
			return fmt.Errorf("failed to marshal sector attribution: %w", err)
		}
		sector = string(b)
	}

	var offset float64
	if result.Calibration != nil {
		offset = result.Calibration.Applied
	}

	now := time.Now().Unix()
	_, err = r.db.Exec(`
		INSERT INTO fund_valuation_archive
			(trade_date, fund_code, frozen_est_growth, frozen_components, frozen_sector_attribution,
			 source, applied_bias_offset, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_date, fund_code) DO UPDATE SET
			frozen_est_growth = excluded.frozen_est_growth,
			frozen_components = excluded.frozen_components,
			frozen_sector_attribution = COALESCE(excluded.frozen_sector_attribution, fund_valuation_archive.frozen_sector_attribution),
			source = excluded.source,
			applied_bias_offset = excluded.applied_bias_offset,
			updated_at = excluded.updated_at
		WHERE fund_valuation_archive.official_growth IS NULL
	`, tradeDate, result.FundCode, result.EstimatedGrowth, string(components), sector,
		string(result.Source), offset, now, now)
	if err != nil {
		return fmt.Errorf("failed to archive %s for %s: %w", result.FundCode, tradeDate, err)
	}
	return nil
}

// Get returns one archived day, or nil when absent.
func (r *Repository) Get(tradeDate, fundCode string) (*Record, error) {
	row := r.db.QueryRow(`
		SELECT trade_date, fund_code, frozen_est_growth, frozen_components, frozen_sector_attribution,
		       source, applied_bias_offset, official_growth, deviation, tracking_status
		FROM fund_valuation_archive
		WHERE trade_date = ? AND fund_code = ?
	`, tradeDate, fundCode)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archive row: %w", err)
	}
	return rec, nil
}

// RecentBias averages reconciled deviations with trade dates in
// (asOf - days, asOf].
func (r *Repository) RecentBias(fundCode string, days int, asOf time.Time) (Bias, error) {
	cutoff := asOf.AddDate(0, 0, -days).Format(DateLayout)
	today := asOf.Format(DateLayout)

	rows, err := r.db.Query(`
		SELECT deviation
		FROM fund_valuation_archive
		WHERE fund_code = ? AND official_growth IS NOT NULL AND deviation IS NOT NULL
		  AND trade_date > ? AND trade_date <= ?
		ORDER BY trade_date
	`, fundCode, cutoff, today)
	if err != nil {
		return Bias{}, fmt.Errorf("failed to query deviations: %w", err)
	}
	defer rows.Close()

	var deviations []float64
	for rows.Next() {
		var d float64
		if err := rows.Scan(&d); err != nil {
			return Bias{}, fmt.Errorf("failed to scan deviation: %w", err)
		}
		deviations = append(deviations, d)
	}
	if err := rows.Err(); err != nil {
		return Bias{}, err
	}

	bias := Bias{Samples: len(deviations)}
	if len(deviations) > 0 {
		bias.Mean = stat.Mean(deviations, nil)
	}
	if len(deviations) > 1 {
		bias.StdDev = stat.StdDev(deviations, nil)
	}
	return bias, nil
}

// UpdateOfficial records the official growth of an archived day and grades
// the raw estimate against it. Reconciling the same day again overwrites the
// previous official value.
func (r *Repository) UpdateOfficial(tradeDate, fundCode string, official float64, grader Grader) (*Reconciliation, error) {
	rec, err := r.Get(tradeDate, fundCode)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotArchived
	}

	estimate := decimal.NewFromFloat(rec.RawEstimate()).Round(deviationPlaces)
	deviation := estimate.Sub(decimal.NewFromFloat(official)).Round(deviationPlaces)
	absDeviation := deviation.Abs()

	dev, _ := deviation.Float64()
	absDev, _ := absDeviation.Float64()
	grade := grader.Grade(absDev)

	_, err = r.db.Exec(`
		UPDATE fund_valuation_archive
		SET official_growth = ?, deviation = ?, abs_deviation = ?, tracking_status = ?, updated_at = ?
		WHERE trade_date = ? AND fund_code = ?
	`, official, dev, absDev, grade, time.Now().Unix(), tradeDate, fundCode)
	if err != nil {
		return nil, fmt.Errorf("failed to update official growth: %w", err)
	}

	est, _ := estimate.Float64()
	r.log.Info().
		Str("fund_code", fundCode).
		Str("trade_date", tradeDate).
		Float64("estimate", est).
		Float64("official", official).
		Float64("deviation", dev).
		Str("grade", grade).
		Msg("Archive reconciled")

	return &Reconciliation{
		TradeDate:      tradeDate,
		FundCode:       fundCode,
		Estimate:       est,
		OfficialGrowth: official,
		Deviation:      dev,
		Grade:          grade,
	}, nil
}

// History returns the most recent reconciled days of a fund, newest first.
func (r *Repository) History(fundCode string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.db.Query(`
		SELECT trade_date, fund_code, frozen_est_growth, frozen_components, frozen_sector_attribution,
		       source, applied_bias_offset, official_growth, deviation, tracking_status
		FROM fund_valuation_archive
		WHERE fund_code = ? AND official_growth IS NOT NULL
		ORDER BY trade_date DESC
		LIMIT ?
	`, fundCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// PendingBefore lists unreconciled days strictly before beforeDate.
func (r *Repository) PendingBefore(beforeDate string) ([]Pending, error) {
	rows, err := r.db.Query(`
		SELECT trade_date, fund_code
		FROM fund_valuation_archive
		WHERE official_growth IS NULL AND trade_date < ?
		ORDER BY trade_date, fund_code
	`, beforeDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending rows: %w", err)
	}
	defer rows.Close()

	pending := []Pending{}
	for rows.Next() {
		var p Pending
		if err := rows.Scan(&p.TradeDate, &p.FundCode); err != nil {
			return nil, fmt.Errorf("failed to scan pending row: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// DeleteBefore drops unreconciled days older than beforeDate; they can no
// longer be graded.
func (r *Repository) DeleteBefore(beforeDate string) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM fund_valuation_archive
		WHERE official_growth IS NULL AND trade_date < ?
	`, beforeDate)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale archive rows: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var components, sector, status sql.NullString
	var source string
	var official, deviation sql.NullFloat64

	if err := s.Scan(&rec.TradeDate, &rec.FundCode, &rec.FrozenEstGrowth, &components, &sector,
		&source, &rec.AppliedBiasOffset, &official, &deviation, &status); err != nil {
		return nil, err
	}

	rec.Source = domain.Source(source)
	rec.TrackingStatus = status.String
	if official.Valid {
		v := official.Float64
		rec.OfficialGrowth = &v
	}
	if deviation.Valid {
		v := deviation.Float64
		rec.Deviation = &v
	}
	if components.Valid && components.String != "" {
		if err := json.Unmarshal([]byte(components.String), &rec.Components); err != nil {
			return nil, fmt.Errorf("failed to decode components: %w", err)
		}
	}
	if sector.Valid && sector.String != "" {
		if err := json.Unmarshal([]byte(sector.String), &rec.SectorAttribution); err != nil {
			return nil, fmt.Errorf("failed to decode sector attribution: %w", err)
		}
	}
	return &rec, nil
}
