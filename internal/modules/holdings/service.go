package holdings

import (
	"context"
	"fmt"

	"github.com/aristath/fundval/internal/clients/eastmoney"
	"github.com/rs/zerolog"
)

// DisclosureSource fetches the latest disclosed holdings of a fund.
type DisclosureSource interface {
	FundHoldings(ctx context.Context, fundCode string) (*eastmoney.HoldingsReport, error)
}

// Service reads stored holdings and refreshes them from the disclosure source.
type Service struct {
	repo   *Repository
	source DisclosureSource
	log    zerolog.Logger
}

// NewService creates a new holdings service
func NewService(repo *Repository, source DisclosureSource, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		source: source,
		log:    log.With().Str("service", "holdings").Logger(),
	}
}

// Get returns the stored holdings of a fund without touching the network.
func (s *Service) Get(ctx context.Context, fundCode string) ([]Holding, error) {
	return s.repo.GetByFund(fundCode)
}

// Refresh fetches the latest disclosure and atomically replaces the stored set.
// An empty disclosure leaves the stored set untouched.
func (s *Service) Refresh(ctx context.Context, fundCode string) (*Snapshot, error) {
	report, err := s.source.FundHoldings(ctx, fundCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holdings for %s: %w", fundCode, err)
	}

	snapshot := &Snapshot{
		FundCode:   fundCode,
		ReportDate: report.ReportDate,
		TargetETF:  report.ETFCode,
		Holdings:   make([]Holding, 0, len(report.Holdings)),
	}
	for _, h := range report.Holdings {
		snapshot.Holdings = append(snapshot.Holdings, Holding{
			FundCode:   fundCode,
			StockCode:  h.StockCode,
			StockName:  h.StockName,
			Weight:     h.Weight,
			ReportDate: h.ReportDate,
		})
	}

	if len(snapshot.Holdings) == 0 {
		s.log.Info().Str("fund_code", fundCode).Msg("Disclosure has no stock holdings")
		return snapshot, nil
	}

	if err := s.repo.Replace(fundCode, snapshot.Holdings); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("fund_code", fundCode).
		Str("report_date", snapshot.ReportDate).
		Int("holdings", len(snapshot.Holdings)).
		Msg("Holdings refreshed")

	return snapshot, nil
}
