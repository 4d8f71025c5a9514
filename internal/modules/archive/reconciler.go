package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// OfficialSource looks up the published daily growth of a fund. The bool is
// false while the day is not yet published.
type OfficialSource interface {
	OfficialGrowth(ctx context.Context, fundCode, tradeDate string) (float64, bool, error)
}

// ReconcileSummary reports one reconciliation pass.
type ReconcileSummary struct {
	Checked     int              `json:"checked"`
	Reconciled  []Reconciliation `json:"reconciled"`
	Unpublished int              `json:"unpublished"`
	Failed      int              `json:"failed"`
}

// Reconciler closes the loop between archived estimates and official growth.
type Reconciler struct {
	repo   *Repository
	source OfficialSource
	grader Grader
	log    zerolog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(repo *Repository, source OfficialSource, grader Grader, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		source: source,
		grader: grader,
		log:    log.With().Str("service", "reconciler").Logger(),
	}
}

// Reconcile records a known official growth for one archived day.
func (r *Reconciler) Reconcile(tradeDate, fundCode string, official float64) (*Reconciliation, error) {
	return r.repo.UpdateOfficial(tradeDate, fundCode, official, r.grader)
}

// ReconcilePending grades every unreconciled day before beforeDate whose
// official growth has been published. Lookup failures are counted and skipped.
func (r *Reconciler) ReconcilePending(ctx context.Context, beforeDate string) (*ReconcileSummary, error) {
	pending, err := r.repo.PendingBefore(beforeDate)
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{Reconciled: []Reconciliation{}}
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++

		official, ok, err := r.source.OfficialGrowth(ctx, p.FundCode, p.TradeDate)
		if err != nil {
			summary.Failed++
			r.log.Warn().Err(err).Str("fund_code", p.FundCode).Str("trade_date", p.TradeDate).Msg("Official growth lookup failed")
			continue
		}
		if !ok {
			summary.Unpublished++
			continue
		}

		rec, err := r.repo.UpdateOfficial(p.TradeDate, p.FundCode, official, r.grader)
		if err != nil {
			if errors.Is(err, ErrNotArchived) {
				continue
			}
			summary.Failed++
			r.log.Error().Err(err).Str("fund_code", p.FundCode).Msg("Failed to record official growth")
			continue
		}
		summary.Reconciled = append(summary.Reconciled, *rec)
	}

	r.log.Info().
		Int("checked", summary.Checked).
		Int("reconciled", len(summary.Reconciled)).
		Int("unpublished", summary.Unpublished).
		Int("failed", summary.Failed).
		Msg("Reconciliation pass complete")

	return summary, nil
}

// History returns the reconciled history of a fund.
func (r *Reconciler) History(fundCode string, limit int) ([]Record, error) {
	records, err := r.repo.History(fundCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", fundCode, err)
	}
	return records, nil
}
