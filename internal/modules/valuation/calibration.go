package valuation

import (
	"math"
	"time"

	"github.com/aristath/fundval/internal/config"
	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/archive"
	"github.com/rs/zerolog"
)

// BiasSource reads the trailing tracking error of a fund.
type BiasSource interface {
	RecentBias(fundCode string, days int, asOf time.Time) (archive.Bias, error)
}

// Calibrator subtracts a fund's recent mean deviation from raw estimates.
// It only reads reconciled archive rows, so repeated calls in an unchanged
// window return the same correction.
type Calibrator struct {
	source     BiasSource
	heuristics config.Heuristics
	log        zerolog.Logger
}

// NewCalibrator creates a new calibrator
func NewCalibrator(source BiasSource, heuristics config.Heuristics, log zerolog.Logger) *Calibrator {
	return &Calibrator{
		source:     source,
		heuristics: heuristics,
		log:        log.With().Str("component", "calibrator").Logger(),
	}
}

// Apply returns the corrected estimate, the note describing the correction
// (nil when none was applied) and the bias it was derived from.
func (c *Calibrator) Apply(fundCode string, raw float64, asOf time.Time) (float64, *domain.CalibrationNote, archive.Bias) {
	bias, err := c.source.RecentBias(fundCode, c.heuristics.CalibrationWindowDays, asOf)
	if err != nil {
		c.log.Warn().Err(err).Str("fund_code", fundCode).Msg("Failed to read recent bias")
		return raw, nil, archive.Bias{}
	}
	if bias.Samples == 0 || math.Abs(bias.Mean) <= c.heuristics.CalibrationMateriality {
		return raw, nil, bias
	}

	applied := bias.Mean
	clamped := false
	if limit := c.heuristics.MaxCalibrationOffset; limit > 0 && math.Abs(applied) > limit {
		applied = math.Copysign(limit, applied)
		clamped = true
	}

	note := &domain.CalibrationNote{
		Bias:       round(bias.Mean),
		Applied:    round(applied),
		Clamped:    clamped,
		Samples:    bias.Samples,
		WindowDays: c.heuristics.CalibrationWindowDays,
	}
	return raw - note.Applied, note, bias
}
