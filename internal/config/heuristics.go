package config

import (
	"fmt"
	"sort"
	"time"
)

// Benchmark maps a fund-name keyword to the instrument used as its index proxy.
type Benchmark struct {
	Keyword    string
	ParentCode string // market-qualified, e.g. "sh000300"
	Name       string
}

// GradeThresholds are the upper bounds (exclusive) of |deviation| for each grade.
// Anything at or above B is graded C.
type GradeThresholds struct {
	S float64
	A float64
	B float64
}

// Heuristics collects every tunable constant of the valuation engine.
// It is built once at startup and passed by value; slice-valued settings are
// only reachable through accessors that return copies.
type Heuristics struct {
	FeederRatio            float64
	IndexProxyRatio        float64
	FXExposure             float64
	CalibrationMateriality float64
	CalibrationWindowDays  int
	MaxCalibrationOffset   float64
	Grades                 GradeThresholds
	ValuationCacheTTL      time.Duration
	QuoteCacheTTL          time.Duration
	RefreshMarkerTTL       time.Duration
	QuoteChunkSize         int
	IndexKeyword           string
	EnhancedKeyword        string

	etfPrefixes []string
	benchmarks  []Benchmark
	feederNoise []string
	fxKeywords  []FXKeyword
	holidays    map[string][]string
}

// FXKeyword maps a fund-name keyword to the foreign currency it is exposed to.
type FXKeyword struct {
	Keyword  string
	Currency string
}

// DefaultHeuristics returns the production defaults.
func DefaultHeuristics() Heuristics {
	h := Heuristics{
		FeederRatio:            0.95,
		IndexProxyRatio:        0.95,
		FXExposure:             0.9,
		CalibrationMateriality: 0.001,
		CalibrationWindowDays:  7,
		MaxCalibrationOffset:   1.0,
		Grades:                 GradeThresholds{S: 0.2, A: 0.5, B: 1.0},
		ValuationCacheTTL:      180 * time.Second,
		QuoteCacheTTL:          60 * time.Second,
		RefreshMarkerTTL:       5 * time.Minute,
		QuoteChunkSize:         60,
		IndexKeyword:           "指数",
		EnhancedKeyword:        "增强",
		etfPrefixes:            []string{"51", "15", "56", "58", "16"},
		feederNoise:            []string{"联接", "发起式", "发起"},
		fxKeywords: []FXKeyword{
			{Keyword: "港", Currency: "HKD"},
			{Keyword: "恒生", Currency: "HKD"},
			{Keyword: "日本", Currency: "JPY"},
			{Keyword: "日经", Currency: "JPY"},
		},
		benchmarks: []Benchmark{
			{Keyword: "沪深300", ParentCode: "sh000300", Name: "沪深300"},
			{Keyword: "中证500", ParentCode: "sh000905", Name: "中证500"},
			{Keyword: "中证1000", ParentCode: "sh000852", Name: "中证1000"},
			{Keyword: "中证100", ParentCode: "sh000903", Name: "中证100"},
			{Keyword: "上证50", ParentCode: "sh000016", Name: "上证50"},
			{Keyword: "科创50", ParentCode: "sh000688", Name: "科创50"},
			{Keyword: "创业板", ParentCode: "sz399006", Name: "创业板指"},
			{Keyword: "深证100", ParentCode: "sz399330", Name: "深证100"},
			{Keyword: "中证红利", ParentCode: "sh000922", Name: "中证红利"},
			{Keyword: "中证白酒", ParentCode: "sz399997", Name: "中证白酒"},
			{Keyword: "中证医疗", ParentCode: "sz399989", Name: "中证医疗"},
			{Keyword: "中证军工", ParentCode: "sz399967", Name: "中证军工"},
			{Keyword: "证券公司", ParentCode: "sz399975", Name: "证券公司"},
			{Keyword: "恒生科技", ParentCode: "hkHSTECH", Name: "恒生科技指数"},
			{Keyword: "恒生", ParentCode: "hkHSI", Name: "恒生指数"},
			{Keyword: "纳斯达克100", ParentCode: "sh513100", Name: "纳指ETF"},
			{Keyword: "标普500", ParentCode: "sh513500", Name: "标普500ETF"},
		},
	}

	// Longest keyword wins so that "中证1000" is tried before "中证100".
	sort.SliceStable(h.benchmarks, func(i, j int) bool {
		return len(h.benchmarks[i].Keyword) > len(h.benchmarks[j].Keyword)
	})

	return h
}

// ETFPrefixes returns the code prefixes that identify exchange-traded funds.
func (h Heuristics) ETFPrefixes() []string {
	return append([]string(nil), h.etfPrefixes...)
}

// Benchmarks returns the keyword registry, longest keyword first.
func (h Heuristics) Benchmarks() []Benchmark {
	return append([]Benchmark(nil), h.benchmarks...)
}

// FeederNoiseWords returns qualifier words stripped from feeder fund names.
func (h Heuristics) FeederNoiseWords() []string {
	return append([]string(nil), h.feederNoise...)
}

// FXKeywords returns the name keyword to currency table. Funds matching none are USD.
func (h Heuristics) FXKeywords() []FXKeyword {
	return append([]FXKeyword(nil), h.fxKeywords...)
}

// Holidays returns the configured extra closing dates per market region
// ("CN", "HK", "US").
func (h Heuristics) Holidays() map[string][]string {
	out := make(map[string][]string, len(h.holidays))
	for region, dates := range h.holidays {
		out[region] = append([]string(nil), dates...)
	}
	return out
}

// WithHolidays returns a copy whose region closes on the given YYYY-MM-DD dates.
func (h Heuristics) WithHolidays(region string, dates []string) Heuristics {
	holidays := h.Holidays()
	holidays[region] = append([]string(nil), dates...)
	h.holidays = holidays
	return h
}

// Grade maps an absolute deviation to S/A/B/C.
func (h Heuristics) Grade(absDeviation float64) string {
	switch {
	case absDeviation < h.Grades.S:
		return "S"
	case absDeviation < h.Grades.A:
		return "A"
	case absDeviation < h.Grades.B:
		return "B"
	default:
		return "C"
	}
}

// Validate checks internal consistency.
func (h Heuristics) Validate() error {
	if !(h.Grades.S < h.Grades.A && h.Grades.A < h.Grades.B) {
		return fmt.Errorf("grade thresholds must be increasing: S=%v A=%v B=%v", h.Grades.S, h.Grades.A, h.Grades.B)
	}
	if h.QuoteChunkSize <= 0 || h.QuoteChunkSize > 60 {
		return fmt.Errorf("quote chunk size must be in 1..60, got %d", h.QuoteChunkSize)
	}
	if h.MaxCalibrationOffset < 0 {
		return fmt.Errorf("max calibration offset must not be negative")
	}
	if h.CalibrationWindowDays <= 0 {
		return fmt.Errorf("calibration window must be positive")
	}
	if h.FeederRatio <= 0 || h.IndexProxyRatio <= 0 {
		return fmt.Errorf("relationship ratios must be positive")
	}
	for region, dates := range h.holidays {
		for _, d := range dates {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return fmt.Errorf("invalid %s holiday %q", region, d)
			}
		}
	}
	return nil
}
