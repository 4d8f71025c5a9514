// Package fx derives the daily change of the home currency against the
// currencies cross-border funds are exposed to.
package fx

import (
	"context"
	"strings"
	"time"

	"github.com/aristath/fundval/internal/config"
	"github.com/rs/zerolog"
)

// HomeCurrency is the currency fund NAVs are published in.
const HomeCurrency = "CNY"

// DefaultCurrency applies to cross-border funds whose name matches no keyword.
const DefaultCurrency = "USD"

const dateLayout = "2006-01-02"

// RateSource returns the current conversion rate between two currencies.
type RateSource interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
}

// Pair returns the pair label used in history rows and notes, e.g. "USD/CNY".
func Pair(currency string) string {
	return currency + "/" + HomeCurrency
}

// InferCurrency picks the foreign currency from a fund's display name.
func InferCurrency(fundName string, keywords []config.FXKeyword) string {
	for _, kw := range keywords {
		if strings.Contains(fundName, kw.Keyword) {
			return kw.Currency
		}
	}
	return DefaultCurrency
}

// Service computes daily FX changes from recorded rate history.
type Service struct {
	repo   *Repository
	source RateSource
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a new FX service. Trade dates are taken in loc.
func NewService(repo *Repository, source RateSource, loc *time.Location, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:   repo,
		source: source,
		loc:    loc,
		now:    time.Now,
		log:    log.With().Str("service", "fx").Logger(),
	}
}

// DailyChange returns the percent change of currency against the home
// currency since the previous recorded day. The current rate is recorded for
// today as a side effect; with no earlier record the change is 0.
func (s *Service) DailyChange(ctx context.Context, currency string) (float64, error) {
	pair := Pair(currency)
	if currency == HomeCurrency {
		return 0, nil
	}

	rate, err := s.source.GetRate(ctx, currency, HomeCurrency)
	if err != nil {
		return 0, err
	}

	today := s.now().In(s.loc).Format(dateLayout)
	if err := s.repo.Record(pair, today, rate); err != nil {
		s.log.Warn().Err(err).Str("pair", pair).Msg("Failed to record rate")
	}

	prev, prevDate, ok, err := s.repo.PreviousBefore(pair, today)
	if err != nil {
		return 0, err
	}
	if !ok || prev == 0 {
		s.log.Debug().Str("pair", pair).Msg("No previous rate recorded")
		return 0, nil
	}

	change := (rate - prev) / prev * 100
	s.log.Debug().
		Str("pair", pair).
		Str("previous_date", prevDate).
		Float64("rate", rate).
		Float64("change_pct", change).
		Msg("FX daily change")
	return change, nil
}
