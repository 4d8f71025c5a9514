package valuation

import (
	"testing"

	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/industries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeSectors(t *testing.T) {
	components := []domain.Component{
		{Code: "600519", Impact: 1.2, Weight: 60, Quoted: true},
		{Code: "000858", Impact: -0.4, Weight: 40, Quoted: true},
		{Code: "300750", Impact: 0.3, Weight: 10, Quoted: true},
		{Code: "601318", Impact: 0.1, Weight: 5, Quoted: true},
		{Code: "000001", Weight: 8},
	}
	classification := map[string]industries.Industry{
		"600519": {L1: "食品饮料", L2: "白酒"},
		"000858": {L1: "食品饮料", L2: "白酒"},
		"601318": {L1: "非银金融"},
	}

	attribution := attributeSectors(components, classification)

	require.Contains(t, attribution, "食品饮料")
	food := attribution["食品饮料"]
	assert.InDelta(t, 0.8, food.Impact, 1e-12)
	assert.Equal(t, 100.0, food.Weight)
	assert.InDelta(t, 0.8, food.Sub["白酒"].Impact, 1e-12)

	// Unclassified stocks are kept at both levels
	require.Contains(t, attribution, domain.SectorOther)
	assert.Equal(t, 0.3, attribution[domain.SectorOther].Impact)
	assert.Equal(t, 0.3, attribution[domain.SectorOther].Sub[domain.SectorOther].Impact)

	// A missing level-two classification falls into Other under its level-one sector
	assert.Equal(t, 0.1, attribution["非银金融"].Sub[domain.SectorOther].Impact)

	var total float64
	for _, c := range components {
		total += c.Impact
	}
	assert.InDelta(t, total, attribution.TotalImpact(), 1e-12)
}

func TestAttributeSectors_Empty(t *testing.T) {
	attribution := attributeSectors(nil, nil)
	assert.Empty(t, attribution)
	assert.Zero(t, attribution.TotalImpact())
}

func TestStockCodesSkipsUnquoted(t *testing.T) {
	components := []domain.Component{
		{Code: "600519", Quoted: true},
		{Code: "000858"},
	}
	assert.Equal(t, []string{"600519"}, stockCodes(components))
}
