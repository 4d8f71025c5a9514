package valuation

import (
	"context"

	"github.com/aristath/fundval/internal/config"
	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/fx"
	"github.com/rs/zerolog"
)

// FXProvider reports the daily percent change of a currency against the
// home currency.
type FXProvider interface {
	DailyChange(ctx context.Context, currency string) (float64, error)
}

// FXCompensator adds the currency translation effect of cross-border funds.
type FXCompensator struct {
	provider   FXProvider
	heuristics config.Heuristics
	log        zerolog.Logger
}

// NewFXCompensator creates a new FX compensator
func NewFXCompensator(provider FXProvider, heuristics config.Heuristics, log zerolog.Logger) *FXCompensator {
	return &FXCompensator{
		provider:   provider,
		heuristics: heuristics,
		log:        log.With().Str("component", "fx_compensator").Logger(),
	}
}

// Currency returns the foreign currency a fund is exposed to.
func (c *FXCompensator) Currency(fundName string) string {
	return fx.InferCurrency(fundName, c.heuristics.FXKeywords())
}

// Note returns the FX effect for a cross-border fund, or nil when the rate
// cannot be retrieved.
func (c *FXCompensator) Note(ctx context.Context, fundName string) *domain.FXNote {
	currency := c.Currency(fundName)
	change, err := c.provider.DailyChange(ctx, currency)
	if err != nil {
		c.log.Warn().Err(err).Str("currency", currency).Msg("FX change unavailable")
		return nil
	}

	return &domain.FXNote{
		Pair:        fx.Pair(currency),
		DailyChange: round(change),
		Exposure:    c.heuristics.FXExposure,
		Impact:      round(change * c.heuristics.FXExposure),
	}
}
