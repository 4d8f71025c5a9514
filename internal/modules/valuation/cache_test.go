package valuation

import (
	"testing"
	"time"

	"github.com/aristath/fundval/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache(t *testing.T) {
	now := time.Date(2024, 10, 9, 10, 0, 0, 0, time.UTC)
	c := newResultCache(180 * time.Second)
	c.now = func() time.Time { return now }

	result := &domain.ValuationResult{
		FundCode:        "110022",
		EstimatedGrowth: 0.8,
		Components:      []domain.Component{{Code: "600519", Impact: 1.2, Weight: 60, Quoted: true}},
		SectorAttribution: domain.SectorAttribution{
			"食品饮料": {Impact: 1.2, Weight: 60, Sub: map[string]domain.SectorWeight{"白酒": {Impact: 1.2, Weight: 60}}},
		},
		Calibration: &domain.CalibrationNote{Bias: 0.1, Applied: 0.1, Samples: 2, WindowDays: 7},
		Source:      domain.SourceHoldings,
		Status:      domain.StatusOK,
		Detailed:    true,
	}
	require.NoError(t, c.set("110022:detail", result))

	got, ok := c.get("110022:detail")
	require.True(t, ok)
	assert.Equal(t, result.EstimatedGrowth, got.EstimatedGrowth)
	assert.Equal(t, result.Components, got.Components)
	assert.Equal(t, result.SectorAttribution, got.SectorAttribution)
	assert.Equal(t, result.Calibration, got.Calibration)
	assert.True(t, got.Detailed)

	// Callers get independent copies
	got.Components[0].Impact = 99
	again, ok := c.get("110022:detail")
	require.True(t, ok)
	assert.Equal(t, 1.2, again.Components[0].Impact)

	now = now.Add(181 * time.Second)
	_, ok = c.get("110022:detail")
	assert.False(t, ok)

	_, ok = c.get("unknown")
	assert.False(t, ok)
}
