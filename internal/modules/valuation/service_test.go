package valuation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/fundval/internal/config"
	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/archive"
	"github.com/aristath/fundval/internal/modules/calendar"
	"github.com/aristath/fundval/internal/modules/holdings"
	"github.com/aristath/fundval/internal/modules/industries"
	"github.com/aristath/fundval/internal/modules/quotes"
	"github.com/aristath/fundval/internal/modules/relationships"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHoldings map[string][]holdings.Holding

func (f fakeHoldings) Get(ctx context.Context, fundCode string) ([]holdings.Holding, error) {
	return f[fundCode], nil
}

type fakeRelationships map[string]*relationships.Relationship

func (f fakeRelationships) Resolve(fundCode string, fundHoldings []holdings.Holding, targetETF string) (*relationships.Relationship, error) {
	return f[fundCode], nil
}

type fakeQuotes struct {
	mu     sync.Mutex
	quotes map[string]quotes.Quote
	calls  int
	ids    [][]string
}

func (f *fakeQuotes) Fetch(ctx context.Context, ids []string) map[string]quotes.Quote {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ids = append(f.ids, ids)

	out := make(map[string]quotes.Quote)
	for _, id := range ids {
		if q, ok := f.quotes[id]; ok {
			out[id] = q
		}
	}
	return out
}

type fakeFunds struct {
	names map[string]string
	qdii  map[string]bool
}

func (f fakeFunds) Name(code string) (string, error) {
	name, ok := f.names[code]
	if !ok {
		return "", errors.New("unknown fund")
	}
	return name, nil
}

func (f fakeFunds) IsQDII(code string) bool { return f.qdii[code] }

type fakeIndustries map[string]industries.Industry

func (f fakeIndustries) Bulk(ctx context.Context, stockCodes []string) map[string]industries.Industry {
	out := make(map[string]industries.Industry)
	for _, c := range stockCodes {
		if ind, ok := f[c]; ok {
			out[c] = ind
		}
	}
	return out
}

type fakeHistory struct {
	mu       sync.Mutex
	bias     map[string]archive.Bias
	archived map[string]domain.ValuationResult
	dates    []string
	asOf     []time.Time
}

func (f *fakeHistory) RecentBias(fundCode string, days int, asOf time.Time) (archive.Bias, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asOf = append(f.asOf, asOf)
	return f.bias[fundCode], nil
}

func (f *fakeHistory) ArchiveSnapshot(tradeDate string, result *domain.ValuationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived[result.FundCode] = *result
	f.dates = append(f.dates, tradeDate)
	return nil
}

type fakeFX map[string]float64

func (f fakeFX) DailyChange(ctx context.Context, currency string) (float64, error) {
	change, ok := f[currency]
	if !ok {
		return 0, errors.New("no rate")
	}
	return change, nil
}

type fakeRefresher struct {
	mu        sync.Mutex
	requested map[string]int
}

func (f *fakeRefresher) Request(fundCode string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested[fundCode]++
	return f.requested[fundCode] == 1
}

type fixture struct {
	svc       *Service
	quotes    *fakeQuotes
	history   *fakeHistory
	refresher *fakeRefresher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	shanghai := time.FixedZone("CST", 8*3600)
	// Wednesday
	now := time.Date(2024, 10, 9, 10, 30, 0, 0, shanghai)

	q := &fakeQuotes{quotes: map[string]quotes.Quote{
		"sh600519": {ID: "sh600519", Name: "贵州茅台", Price: 1500, ChangePct: 2},
		"sz000858": {ID: "sz000858", Name: "五粮液", Price: 150, ChangePct: -1},
		"sh510300": {ID: "sh510300", Name: "沪深300ETF", Price: 4.1, ChangePct: 3},
		"usAAPL":   {ID: "usAAPL", Name: "Apple", Price: 220, ChangePct: 1.5},
	}}
	history := &fakeHistory{
		bias:     map[string]archive.Bias{"161725": {Mean: 0.5, Samples: 1}},
		archived: make(map[string]domain.ValuationResult),
	}
	refresher := &fakeRefresher{requested: make(map[string]int)}
	cal, err := calendar.New(nil)
	require.NoError(t, err)

	deps := Deps{
		Holdings: fakeHoldings{
			"110022": {
				{FundCode: "110022", StockCode: "600519", StockName: "贵州茅台", Weight: 60, ReportDate: "2024-09-30"},
				{FundCode: "110022", StockCode: "000858", StockName: "五粮液", Weight: 40, ReportDate: "2024-09-30"},
			},
			"000001": {
				{FundCode: "000001", StockCode: "600519", StockName: "贵州茅台", Weight: 60, ReportDate: "2024-09-30"},
				{FundCode: "000001", StockCode: "300999", StockName: "未上市", Weight: 40, ReportDate: "2024-09-30"},
			},
			"161725": {
				{FundCode: "161725", StockCode: "600519", StockName: "贵州茅台", Weight: 100, ReportDate: "2024-09-30"},
			},
			"270042": {
				{FundCode: "270042", StockCode: "AAPL", StockName: "Apple", Weight: 50, ReportDate: "2024-09-30"},
			},
			// Holdings are ignored once a relationship exists
			"012345": {
				{FundCode: "012345", StockCode: "000858", StockName: "五粮液", Weight: 90, ReportDate: "2024-09-30"},
			},
		},
		Relationships: fakeRelationships{
			"012345": {SubCode: "012345", ParentCode: "510300", ParentName: "沪深300ETF", Type: relationships.RelationFeeder, Ratio: 0.95},
		},
		Quotes: q,
		Funds: fakeFunds{
			names: map[string]string{"110022": "易方达消费行业", "270042": "广发纳斯达克100指数(QDII)", "012345": "华泰柏瑞沪深300ETF联接C"},
			qdii:  map[string]bool{"270042": true},
		},
		Industries: fakeIndustries{
			"600519": {L1: "食品饮料", L2: "白酒"},
		},
		History:   history,
		FX:        fakeFX{"USD": 0.2},
		Refresher: refresher,
		Calendar:  cal,
	}

	svc := NewService(deps, config.DefaultHeuristics(), shanghai, zerolog.Nop())
	svc.now = func() time.Time { return now }
	svc.cache.now = svc.now

	return &fixture{svc: svc, quotes: q, history: history, refresher: refresher}
}

func TestGetValuation_Holdings(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.GetValuation(context.Background(), "110022")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOK, result.Status)
	assert.Equal(t, domain.SourceHoldings, result.Source)
	assert.Equal(t, "易方达消费行业", result.FundName)
	assert.Equal(t, 0.8, result.EstimatedGrowth)
	assert.Equal(t, 0.8, result.RawGrowth)
	assert.Equal(t, 100.0, result.TotalWeight)
	assert.Len(t, result.Components, 2)
	assert.Nil(t, result.Calibration)
	assert.Nil(t, result.FX)
	assert.Equal(t, "2024-09-30", result.ReportDate)
	require.NotNil(t, result.Confidence)
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence.Level)

	require.Contains(t, result.SectorAttribution, "食品饮料")
	require.Contains(t, result.SectorAttribution, domain.SectorOther)
	assert.InDelta(t, 0.8, result.SectorAttribution.TotalImpact(), 1e-12)

	archived, ok := f.history.archived["110022"]
	require.True(t, ok)
	assert.Equal(t, 0.8, archived.EstimatedGrowth)
	assert.Equal(t, []string{"2024-10-09"}, f.history.dates)
}

func TestGetValuation_MissingQuote(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.GetValuation(context.Background(), "000001")
	require.NoError(t, err)

	assert.Equal(t, 2.0, result.EstimatedGrowth)
	assert.Equal(t, 60.0, result.TotalWeight)
	require.Len(t, result.Components, 2)
	assert.False(t, result.Components[1].Quoted)
}

func TestGetValuation_Shadow(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.GetValuation(context.Background(), "012345")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceFeeder, result.Source)
	assert.Equal(t, "510300", result.ParentCode)
	assert.Equal(t, 2.85, result.EstimatedGrowth)
	require.Len(t, result.Components, 1)
	assert.Equal(t, "510300", result.Components[0].Code)
	assert.Empty(t, result.SectorAttribution)
}

func TestGetValuation_Calibrated(t *testing.T) {
	f := newFixture(t)
	f.quotes.quotes["sh600519"] = quotes.Quote{ID: "sh600519", Price: 1500, ChangePct: 1.8}

	result, err := f.svc.GetValuation(context.Background(), "161725")
	require.NoError(t, err)

	assert.Equal(t, 1.8, result.RawGrowth)
	assert.Equal(t, 1.3, result.EstimatedGrowth)
	require.NotNil(t, result.Calibration)
	assert.Equal(t, 0.5, result.Calibration.Applied)
}

func TestGetValuation_QDIIAddsFX(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.GetValuation(context.Background(), "270042")
	require.NoError(t, err)

	require.NotNil(t, result.FX)
	assert.Equal(t, "USD/CNY", result.FX.Pair)
	assert.Equal(t, 0.18, result.FX.Impact)
	assert.Equal(t, 1.5, result.RawGrowth)
	assert.Equal(t, 1.68, result.EstimatedGrowth)
	assert.Equal(t, "US", result.ForeignMarket)
	assert.False(t, result.ForeignMarketClosed)
}

func TestGetValuation_Syncing(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.GetValuation(context.Background(), "999999")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSyncing, result.Status)
	assert.Equal(t, domain.SourceNone, result.Source)
	assert.Zero(t, result.EstimatedGrowth)

	// Syncing results are neither cached nor archived
	_, err = f.svc.GetValuation(context.Background(), "999999")
	require.NoError(t, err)
	assert.Equal(t, 2, f.refresher.requested["999999"])
	assert.Empty(t, f.history.archived)
	assert.Zero(t, f.quotes.calls)
}

func TestGetValuation_InvalidCode(t *testing.T) {
	f := newFixture(t)

	for _, code := range []string{"", "12345", "1234567", "11002a"} {
		_, err := f.svc.GetValuation(context.Background(), code)
		assert.ErrorIs(t, err, ErrInvalidFundCode, code)
	}
}

func TestGetValuation_Cached(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.GetValuation(context.Background(), "110022")
	require.NoError(t, err)
	second, err := f.svc.GetValuation(context.Background(), "110022")
	require.NoError(t, err)

	assert.Equal(t, 1, f.quotes.calls)
	assert.Equal(t, first.EstimatedGrowth, second.EstimatedGrowth)
	assert.Equal(t, first.Components, second.Components)
}

func TestGetBatchValuation_SingleQuoteRound(t *testing.T) {
	f := newFixture(t)

	results, err := f.svc.GetBatchValuation(context.Background(), []string{"110022", "000001", "012345", "110022"}, true)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "110022", results[0].FundCode)
	assert.Equal(t, "000001", results[1].FundCode)
	assert.Equal(t, "012345", results[2].FundCode)

	for _, r := range results {
		assert.Nil(t, r.Components)
		assert.Nil(t, r.SectorAttribution)
	}

	require.Equal(t, 1, f.quotes.calls)
	assert.ElementsMatch(t,
		[]string{"sh600519", "sz000858", "sh600519", "sz300999", "sh510300"},
		f.quotes.ids[0])

	// Summary requests still archive the computed components
	assert.Len(t, f.history.archived["110022"].Components, 2)
}

func TestGetBatchValuation_UsesDetailedCache(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetValuation(context.Background(), "110022")
	require.NoError(t, err)

	results, err := f.svc.GetBatchValuation(context.Background(), []string{"110022"}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.8, results[0].EstimatedGrowth)
	assert.Nil(t, results[0].Components)
	assert.Equal(t, 1, f.quotes.calls)
}

func TestGetBatchValuation_InvalidCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetBatchValuation(context.Background(), []string{"110022", "bad"}, false)
	assert.ErrorIs(t, err, ErrInvalidFundCode)
	assert.Zero(t, f.quotes.calls)
}

func TestGetValuation_WeekendNotArchived(t *testing.T) {
	f := newFixture(t)
	saturday := time.Date(2024, 10, 12, 10, 0, 0, 0, f.svc.loc)
	f.svc.now = func() time.Time { return saturday }
	f.svc.cache.now = f.svc.now

	_, err := f.svc.GetValuation(context.Background(), "110022")
	require.NoError(t, err)
	assert.Empty(t, f.history.archived)
}

func (f *fixture) at(t time.Time) {
	f.svc.now = func() time.Time { return t }
	f.svc.cache.now = f.svc.now
}

func TestGetValuation_PreOpenNotArchived(t *testing.T) {
	f := newFixture(t)
	f.at(time.Date(2024, 10, 9, 9, 0, 0, 0, f.svc.loc))

	result, err := f.svc.GetValuation(context.Background(), "110022")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, result.Status)
	assert.Empty(t, f.history.archived)
}

func TestGetValuation_ExchangeHolidayNotArchived(t *testing.T) {
	f := newFixture(t)
	// National Day, a Tuesday
	f.at(time.Date(2024, 10, 1, 10, 30, 0, 0, f.svc.loc))

	_, err := f.svc.GetValuation(context.Background(), "110022")
	require.NoError(t, err)
	assert.Empty(t, f.history.archived)
}

func TestGetValuation_ArchivedAfterClose(t *testing.T) {
	f := newFixture(t)
	f.at(time.Date(2024, 10, 9, 15, 5, 0, 0, f.svc.loc))

	_, err := f.svc.GetValuation(context.Background(), "110022")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-10-09"}, f.history.dates)
}

func TestGetValuation_CalibrationWindowUsesTradingZone(t *testing.T) {
	f := newFixture(t)
	// 2024-10-17 01:00 in Shanghai, still the 16th in UTC
	f.at(time.Date(2024, 10, 16, 17, 0, 0, 0, time.UTC))

	_, err := f.svc.GetValuation(context.Background(), "161725")
	require.NoError(t, err)

	require.Len(t, f.history.asOf, 1)
	assert.Equal(t, "2024-10-17", f.history.asOf[0].Format(archive.DateLayout))
}

func TestGetValuation_QDIIForeignMarketClosed(t *testing.T) {
	f := newFixture(t)
	// The US was closed for Independence Day the night before
	f.at(time.Date(2024, 7, 5, 10, 30, 0, 0, f.svc.loc))

	result, err := f.svc.GetValuation(context.Background(), "270042")
	require.NoError(t, err)

	assert.Equal(t, "US", result.ForeignMarket)
	assert.True(t, result.ForeignMarketClosed)
	require.NotNil(t, result.Confidence)
	assert.Contains(t, result.Confidence.Reasons, "foreign market was closed in the previous session")
}
