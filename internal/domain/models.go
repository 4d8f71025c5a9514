// Package domain holds the valuation types shared by the engine, the archive
// and the outer surfaces.
package domain

import "time"

// Source describes which valuation path produced a result.
type Source string

const (
	SourceHoldings   Source = "holdings"
	SourceFeeder     Source = "feeder"
	SourceIndexProxy Source = "index_proxy"
	SourceNone       Source = "none"
)

// Status describes how usable a result is.
type Status string

const (
	// StatusOK means the estimate is backed by live quotes.
	StatusOK Status = "ok"
	// StatusNoCoverage means inputs exist but no quote could be retrieved.
	StatusNoCoverage Status = "no_coverage"
	// StatusSyncing means neither holdings nor a relationship are known yet
	// and a background refresh has been requested.
	StatusSyncing Status = "syncing"
)

// SectorOther is the bucket for unclassified holdings at both levels.
const SectorOther = "Other"

// Component is one security's contribution to an estimate. Impact is in
// percentage points of fund NAV.
type Component struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Impact    float64 `json:"impact"`
	Weight    float64 `json:"weight"`
	// Quoted is false when no quote was available; such components carry no
	// impact and are excluded from the covered weight.
	Quoted bool `json:"quoted"`
}

// SectorWeight is the accumulated impact and weight of one sector bucket.
type SectorWeight struct {
	Impact float64 `json:"impact"`
	Weight float64 `json:"weight"`
}

// SectorNode is a level-one sector with its level-two breakdown.
type SectorNode struct {
	Impact float64                 `json:"impact"`
	Weight float64                 `json:"weight"`
	Sub    map[string]SectorWeight `json:"sub"`
}

// SectorAttribution maps level-one sector names to their breakdown.
type SectorAttribution map[string]SectorNode

// TotalImpact sums the level-one impacts.
func (s SectorAttribution) TotalImpact() float64 {
	var total float64
	for _, node := range s {
		total += node.Impact
	}
	return total
}

// CalibrationNote records the bias correction applied to a raw estimate.
type CalibrationNote struct {
	Bias       float64 `json:"bias"`
	Applied    float64 `json:"applied"`
	Clamped    bool    `json:"clamped"`
	Samples    int     `json:"samples"`
	WindowDays int     `json:"window_days"`
}

// FXNote records the currency translation effect added to an estimate.
type FXNote struct {
	Pair        string  `json:"pair"`
	DailyChange float64 `json:"daily_change"`
	Exposure    float64 `json:"exposure"`
	Impact      float64 `json:"impact"`
}

// ConfidenceLevel grades how far an estimate can be trusted.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Confidence summarizes the reliability of an estimate.
type Confidence struct {
	Level   ConfidenceLevel `json:"level"`
	Score   int             `json:"score"`
	Reasons []string        `json:"reasons"`
}

// ValuationResult is the estimate for one fund at one moment.
type ValuationResult struct {
	FundCode        string  `json:"fund_code"`
	FundName        string  `json:"fund_name"`
	EstimatedGrowth float64 `json:"estimated_growth"`
	// RawGrowth is the model estimate before calibration and FX
	RawGrowth         float64           `json:"raw_growth"`
	TotalWeight       float64           `json:"total_weight"`
	Components        []Component       `json:"components,omitempty"`
	SectorAttribution SectorAttribution `json:"sector_attribution,omitempty"`
	Calibration       *CalibrationNote  `json:"calibration_note,omitempty"`
	FX                *FXNote           `json:"fx_note,omitempty"`
	Confidence        *Confidence       `json:"confidence,omitempty"`
	Source            Source            `json:"source"`
	Status            Status            `json:"status"`
	ParentCode        string            `json:"parent_code,omitempty"`
	ReportDate        string            `json:"report_date,omitempty"`
	// ForeignMarket is the overseas market a QDII fund is priced from
	ForeignMarket string `json:"foreign_market,omitempty"`
	// ForeignMarketClosed is set when that market did not trade in the
	// session preceding today, so the estimate carries no fresh foreign move
	ForeignMarketClosed bool `json:"foreign_market_closed,omitempty"`
	// Detailed is true when components and sectors were computed
	Detailed  bool      `json:"-" msgpack:"detailed"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary returns a copy without component and sector detail.
func (r ValuationResult) Summary() ValuationResult {
	r.Components = nil
	r.SectorAttribution = nil
	r.Detailed = false
	return r
}
