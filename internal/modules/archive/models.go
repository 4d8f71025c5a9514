// Package archive keeps the day-stamped frozen estimates of every valued fund
// and reconciles them against official NAV growth once it is published.
// Reconciled deviations feed calibration of later estimates.
package archive

import (
	"errors"

	"github.com/aristath/fundval/internal/domain"
)

// DateLayout is the trade date format used throughout the archive.
const DateLayout = "2006-01-02"

// ErrNotArchived is returned when reconciling a day that was never archived.
var ErrNotArchived = errors.New("no archived estimate for fund and date")

// Record is one archived trading day of one fund.
type Record struct {
	TradeDate         string                   `json:"trade_date"`
	FundCode          string                   `json:"fund_code"`
	FrozenEstGrowth   float64                  `json:"frozen_est_growth"`
	Components        []domain.Component       `json:"components,omitempty"`
	SectorAttribution domain.SectorAttribution `json:"sector_attribution,omitempty"`
	Source            domain.Source            `json:"source"`
	AppliedBiasOffset float64                  `json:"applied_bias_offset"`
	OfficialGrowth    *float64                 `json:"official_growth"`
	Deviation         *float64                 `json:"deviation"`
	TrackingStatus    string                   `json:"tracking_status,omitempty"`
}

// RawEstimate is the model estimate before bias correction.
func (r Record) RawEstimate() float64 {
	return r.FrozenEstGrowth + r.AppliedBiasOffset
}

// Bias summarizes reconciled deviations in a trailing window.
type Bias struct {
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Samples int     `json:"samples"`
}

// Reconciliation is the outcome of grading one archived day.
type Reconciliation struct {
	TradeDate      string  `json:"trade_date"`
	FundCode       string  `json:"fund_code"`
	Estimate       float64 `json:"estimate"`
	OfficialGrowth float64 `json:"official_growth"`
	Deviation      float64 `json:"deviation"`
	Grade          string  `json:"grade"`
}

// Pending identifies an archived day still awaiting its official value.
type Pending struct {
	TradeDate string
	FundCode  string
}
