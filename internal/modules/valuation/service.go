package valuation

import (
	"context"
	"errors"
	"fmt"
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
	"golang.org/x/sync/singleflight"
)

// ErrInvalidFundCode is returned for codes that are not six digits.
var ErrInvalidFundCode = errors.New("invalid fund code")

// HoldingsProvider reads stored holdings.
type HoldingsProvider interface {
	Get(ctx context.Context, fundCode string) ([]holdings.Holding, error)
}

// RelationshipProvider returns the active pass-through relationship of a fund.
type RelationshipProvider interface {
	Resolve(fundCode string, fundHoldings []holdings.Holding, targetETF string) (*relationships.Relationship, error)
}

// QuoteProvider returns live quotes keyed by security ID.
type QuoteProvider interface {
	Fetch(ctx context.Context, ids []string) map[string]quotes.Quote
}

// FundDirectory answers fund metadata questions.
type FundDirectory interface {
	Name(code string) (string, error)
	IsQDII(code string) bool
}

// IndustryProvider classifies stocks.
type IndustryProvider interface {
	Bulk(ctx context.Context, stockCodes []string) map[string]industries.Industry
}

// Archiver freezes results for later reconciliation.
type Archiver interface {
	ArchiveSnapshot(tradeDate string, result *domain.ValuationResult) error
}

// Refresher requests a background holdings refresh. It returns false when the
// refresh was already pending or could not be queued.
type Refresher interface {
	Request(fundCode string) bool
}

// MarketCalendar answers trading-session questions.
type MarketCalendar interface {
	SessionStarted(region calendar.Region, t time.Time) bool
	TradedPreviousDay(region calendar.Region, day time.Time) bool
}

// Deps are the collaborators of the valuation service.
type Deps struct {
	Holdings      HoldingsProvider
	Relationships RelationshipProvider
	Quotes        QuoteProvider
	Funds         FundDirectory
	Industries    IndustryProvider
	History       interface {
		BiasSource
		Archiver
	}
	FX        FXProvider
	Refresher Refresher
	Calendar  MarketCalendar
}

// Service is the valuation entry point.
type Service struct {
	deps       Deps
	heuristics config.Heuristics
	calibrator *Calibrator
	fx         *FXCompensator
	cache      *resultCache
	group      singleflight.Group
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a new valuation service. Trade dates are taken in loc.
func NewService(deps Deps, heuristics config.Heuristics, loc *time.Location, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		deps:       deps,
		heuristics: heuristics,
		calibrator: NewCalibrator(deps.History, heuristics, log),
		fx:         NewFXCompensator(deps.FX, heuristics, log),
		cache:      newResultCache(heuristics.ValuationCacheTTL),
		loc:        loc,
		now:        time.Now,
		log:        log.With().Str("service", "valuation").Logger(),
	}
}

// ValidFundCode reports whether code is a six-digit fund code.
func ValidFundCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GetValuation returns the detailed valuation of one fund. Concurrent callers
// for the same uncached fund share one computation.
func (s *Service) GetValuation(ctx context.Context, fundCode string) (*domain.ValuationResult, error) {
	if !ValidFundCode(fundCode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFundCode, fundCode)
	}

	if cached, ok := s.cache.get(cacheKey(fundCode, true)); ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(cacheKey(fundCode, true), func() (interface{}, error) {
		results := s.valuate(ctx, []string{fundCode}, true)
		return results[0], nil
	})
	if err != nil {
		return nil, err
	}

	// Shared results must not be mutated by callers
	result := *v.(*domain.ValuationResult)
	return &result, nil
}

// GetBatchValuation values several funds with a single quote round. With
// summaryOnly the results carry neither components nor sector attribution.
// Duplicate codes are valued once; the result follows input order.
func (s *Service) GetBatchValuation(ctx context.Context, fundCodes []string, summaryOnly bool) ([]domain.ValuationResult, error) {
	codes := make([]string, 0, len(fundCodes))
	seen := make(map[string]bool, len(fundCodes))
	for _, code := range fundCodes {
		if !ValidFundCode(code) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFundCode, code)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}

	detailed := !summaryOnly
	byCode := make(map[string]*domain.ValuationResult, len(codes))
	var missing []string
	for _, code := range codes {
		if cached, ok := s.lookup(code, detailed); ok {
			byCode[code] = cached
			continue
		}
		missing = append(missing, code)
	}

	if len(missing) > 0 {
		for _, r := range s.valuate(ctx, missing, detailed) {
			byCode[r.FundCode] = r
		}
	}

	results := make([]domain.ValuationResult, 0, len(codes))
	for _, code := range codes {
		r := *byCode[code]
		if summaryOnly {
			r = r.Summary()
		}
		results = append(results, r)
	}
	return results, nil
}

// lookup serves a request from the cache. A detailed entry also answers a
// summary request.
func (s *Service) lookup(code string, detailed bool) (*domain.ValuationResult, bool) {
	if r, ok := s.cache.get(cacheKey(code, true)); ok {
		return r, true
	}
	if detailed {
		return nil, false
	}
	return s.cache.get(cacheKey(code, false))
}

// valuate resolves a plan per fund, fetches every needed quote in one round
// and evaluates each fund against it.
func (s *Service) valuate(ctx context.Context, codes []string, detailed bool) []*domain.ValuationResult {
	plans := make([]plan, len(codes))
	var ids []string
	for i, code := range codes {
		plans[i] = s.resolvePlan(ctx, code)
		ids = append(ids, plans[i].securityIDs()...)
	}

	quoteByID := map[string]quotes.Quote{}
	if len(ids) > 0 {
		quoteByID = s.deps.Quotes.Fetch(ctx, ids)
	}

	now := s.now()
	tradeDate := now.In(s.loc).Format(archive.DateLayout)
	// Before the open quotes still carry the previous session's moves.
	archiveToday := s.deps.Calendar.SessionStarted(calendar.RegionCN, now)

	results := make([]*domain.ValuationResult, len(codes))
	for i, code := range codes {
		result := s.evaluate(ctx, code, plans[i], quoteByID, detailed, now)
		results[i] = result

		if result.Status == domain.StatusSyncing {
			continue
		}
		if err := s.cache.set(cacheKey(code, result.Detailed), result); err != nil {
			s.log.Warn().Err(err).Str("fund_code", code).Msg("Failed to cache valuation")
		}
		if result.Status == domain.StatusOK && archiveToday {
			if err := s.deps.History.ArchiveSnapshot(tradeDate, result); err != nil {
				s.log.Warn().Err(err).Str("fund_code", code).Msg("Failed to archive valuation")
			}
		}
	}
	return results
}

// resolvePlan picks the valuation path: an active relationship first, then
// stored holdings.
func (s *Service) resolvePlan(ctx context.Context, code string) plan {
	fundHoldings, err := s.deps.Holdings.Get(ctx, code)
	if err != nil {
		s.log.Warn().Err(err).Str("fund_code", code).Msg("Failed to load holdings")
		fundHoldings = nil
	}

	rel, err := s.deps.Relationships.Resolve(code, fundHoldings, "")
	if err != nil {
		s.log.Warn().Err(err).Str("fund_code", code).Msg("Failed to resolve relationship")
	}
	if rel != nil {
		return shadowPlan{rel: *rel}
	}
	if len(fundHoldings) > 0 {
		return holdingsPlan{holdings: fundHoldings}
	}
	return unavailablePlan{}
}

func (s *Service) evaluate(ctx context.Context, code string, p plan, quoteByID map[string]quotes.Quote, detailed bool, now time.Time) *domain.ValuationResult {
	name, err := s.deps.Funds.Name(code)
	if err != nil {
		s.log.Debug().Err(err).Str("fund_code", code).Msg("Fund name unavailable")
	}

	result := &domain.ValuationResult{
		FundCode:   code,
		FundName:   name,
		ReportDate: reportDate(p),
		Timestamp:  now,
	}

	var est estimate
	switch p := p.(type) {
	case shadowPlan:
		est = computeShadow(p.rel, quoteByID)
	case holdingsPlan:
		est = computeHoldings(p.holdings, quoteByID)
	default:
		result.Source = domain.SourceNone
		result.Status = domain.StatusSyncing
		if s.deps.Refresher != nil && s.deps.Refresher.Request(code) {
			s.log.Info().Str("fund_code", code).Msg("Holdings refresh requested")
		}
		return result
	}

	result.Source = est.source
	result.Status = est.status
	result.ParentCode = est.parentCode
	result.TotalWeight = round(est.totalWeight)
	result.Components = est.components
	result.RawGrowth = round(est.growth)
	result.Detailed = detailed

	// Calibration windows and disclosure ages count days in the trading zone.
	local := now.In(s.loc)

	if est.status != domain.StatusOK {
		result.Confidence = assessConfidence(est, result.ReportDate, archive.Bias{}, false, local)
		return result
	}

	corrected, note, bias := s.calibrator.Apply(code, result.RawGrowth, local)
	result.Calibration = note

	if s.deps.Funds.IsQDII(code) {
		if fxNote := s.fx.Note(ctx, name); fxNote != nil {
			result.FX = fxNote
			corrected += fxNote.Impact
		}
		if region, ok := foreignRegion(s.fx.Currency(name)); ok {
			result.ForeignMarket = string(region)
			result.ForeignMarketClosed = !s.deps.Calendar.TradedPreviousDay(region, local)
		}
	}
	result.EstimatedGrowth = round(corrected)

	if detailed && est.source == domain.SourceHoldings && s.deps.Industries != nil {
		classification := s.deps.Industries.Bulk(ctx, stockCodes(est.components))
		result.SectorAttribution = attributeSectors(est.components, classification)
	}
	result.Confidence = assessConfidence(est, result.ReportDate, bias, result.ForeignMarketClosed, local)

	return result
}

// foreignRegion maps the exposure currency of a cross-border fund to the
// market its holdings trade on, when that market has a calendar.
func foreignRegion(currency string) (calendar.Region, bool) {
	switch currency {
	case "HKD":
		return calendar.RegionHK, true
	case "USD":
		return calendar.RegionUS, true
	}
	return "", false
}

func cacheKey(code string, detailed bool) string {
	if detailed {
		return code + ":detail"
	}
	return code + ":summary"
}
