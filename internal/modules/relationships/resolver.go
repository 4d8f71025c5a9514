package relationships

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/fundval/internal/config"
	"github.com/aristath/fundval/internal/modules/funds"
	"github.com/aristath/fundval/internal/modules/holdings"
	"github.com/rs/zerolog"
)

// negativeTTL bounds how long a fund with no detectable relationship is
// skipped before detection is attempted again.
const negativeTTL = 30 * time.Minute

const feederMarker = "联接"

// dominantWeight is the holding weight (percent of NAV) at which an ETF
// position marks a fund as a feeder even without a feeder name.
const dominantWeight = 50.0

var (
	parenthetical  = regexp.MustCompile(`[（(][^）)]*[）)]`)
	shareClassTail = regexp.MustCompile(`[A-Za-z]+$`)
)

// FundIndex is the local fund-name index.
type FundIndex interface {
	Name(code string) (string, error)
	FindListed(fragment string, prefixes []string) ([]funds.Fund, error)
}

// Store persists relationships.
type Store interface {
	Get(subCode string) (*Relationship, error)
	Save(rel Relationship) error
}

// Resolver finds the relationship of a fund, detecting and persisting it on
// first sight.
type Resolver struct {
	store      Store
	index      FundIndex
	heuristics config.Heuristics
	log        zerolog.Logger

	mu       sync.Mutex
	negative map[string]time.Time
	now      func() time.Time
}

// NewResolver creates a new relationship resolver
func NewResolver(store Store, index FundIndex, heuristics config.Heuristics, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		index:      index,
		heuristics: heuristics,
		log:        log.With().Str("component", "relationship_resolver").Logger(),
		negative:   make(map[string]time.Time),
		now:        time.Now,
	}
}

// Resolve returns the active relationship of a fund, or nil when the fund
// must be valued from its holdings. fundHoldings are the stored top-N
// holdings, largest first; targetETF is an optional published master ETF.
func (r *Resolver) Resolve(fundCode string, fundHoldings []holdings.Holding, targetETF string) (*Relationship, error) {
	rel, err := r.store.Get(fundCode)
	if err != nil {
		return nil, err
	}
	if rel != nil {
		return rel, nil
	}

	if targetETF == "" && r.isNegative(fundCode) {
		return nil, nil
	}

	name, err := r.index.Name(fundCode)
	if err != nil {
		r.log.Warn().Err(err).Str("fund_code", fundCode).Msg("Failed to resolve fund name")
	}

	detected := r.Detect(fundCode, name, fundHoldings, targetETF)
	if detected == nil {
		r.markNegative(fundCode)
		return nil, nil
	}

	if err := r.store.Save(*detected); err != nil {
		// The detection still stands for this request
		r.log.Warn().Err(err).Str("fund_code", fundCode).Msg("Failed to persist relationship")
	}
	return detected, nil
}

// Invalidate drops the negative entry of a fund so that the next Resolve
// runs detection again.
func (r *Resolver) Invalidate(fundCode string) {
	r.mu.Lock()
	delete(r.negative, fundCode)
	r.mu.Unlock()
}

// Detect runs the detection heuristics without touching the store. Signals are
// tried strongest first: a published master ETF, an ETF among the disclosed
// holdings (feeder-named funds, or any fund where it dominates), a feeder
// name match, then the benchmark registry.
func (r *Resolver) Detect(fundCode, name string, fundHoldings []holdings.Holding, targetETF string) *Relationship {
	prefixes := r.heuristics.ETFPrefixes()

	if targetETF != "" && targetETF != fundCode {
		return r.feeder(fundCode, targetETF, r.lookupName(targetETF))
	}

	feederName := strings.Contains(name, feederMarker)
	for _, h := range fundHoldings {
		if h.StockCode == fundCode || !isETFCode(h.StockCode, prefixes) {
			continue
		}
		if feederName || h.Weight >= dominantWeight {
			return r.feeder(fundCode, h.StockCode, h.StockName)
		}
	}

	if name == "" {
		return nil
	}

	if feederName {
		if parent := r.matchFeederParent(fundCode, name, prefixes); parent != nil {
			return r.feeder(fundCode, parent.Code, parent.Name)
		}
	}

	if strings.Contains(name, r.heuristics.IndexKeyword) && !strings.Contains(name, r.heuristics.EnhancedKeyword) {
		for _, b := range r.heuristics.Benchmarks() {
			if strings.Contains(name, b.Keyword) {
				return &Relationship{
					SubCode:    fundCode,
					ParentCode: b.ParentCode,
					ParentName: b.Name,
					Type:       RelationIndexProxy,
					Ratio:      r.heuristics.IndexProxyRatio,
				}
			}
		}
	}

	return nil
}

// matchFeederParent searches the name index for the master ETF of a feeder.
// Candidates are ranked: exact core-name match, then shortest name, then
// smallest code.
func (r *Resolver) matchFeederParent(fundCode, name string, prefixes []string) *funds.Fund {
	core := CoreName(name, r.heuristics.FeederNoiseWords())
	if core == "" {
		return nil
	}

	candidates, err := r.index.FindListed(core, prefixes)
	if err != nil {
		r.log.Warn().Err(err).Str("fund_code", fundCode).Str("core", core).Msg("Fund name search failed")
		return nil
	}

	filtered := make([]funds.Fund, 0, len(candidates))
	for _, c := range candidates {
		if c.Code == fundCode || strings.Contains(c.Name, feederMarker) {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		return nil
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		ei, ej := filtered[i].Name == core, filtered[j].Name == core
		if ei != ej {
			return ei
		}
		li, lj := len([]rune(filtered[i].Name)), len([]rune(filtered[j].Name))
		if li != lj {
			return li < lj
		}
		return filtered[i].Code < filtered[j].Code
	})

	best := filtered[0]
	return &best
}

func (r *Resolver) feeder(fundCode, parentCode, parentName string) *Relationship {
	return &Relationship{
		SubCode:    fundCode,
		ParentCode: parentCode,
		ParentName: parentName,
		Type:       RelationFeeder,
		Ratio:      r.heuristics.FeederRatio,
	}
}

func (r *Resolver) lookupName(code string) string {
	name, err := r.index.Name(code)
	if err != nil {
		return ""
	}
	return name
}

func (r *Resolver) isNegative(fundCode string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiry, ok := r.negative[fundCode]
	if !ok {
		return false
	}
	if r.now().After(expiry) {
		delete(r.negative, fundCode)
		return false
	}
	return true
}

func (r *Resolver) markNegative(fundCode string) {
	r.mu.Lock()
	r.negative[fundCode] = r.now().Add(negativeTTL)
	r.mu.Unlock()
}

// CoreName strips parenthetical notes, the share-class suffix and feeder
// qualifier words from a fund name, e.g. "华泰柏瑞沪深300ETF联接A" becomes
// "华泰柏瑞沪深300ETF".
func CoreName(name string, noiseWords []string) string {
	core := parenthetical.ReplaceAllString(strings.TrimSpace(name), "")
	core = shareClassTail.ReplaceAllString(core, "")
	for _, w := range noiseWords {
		core = strings.ReplaceAll(core, w, "")
	}
	return strings.TrimSpace(core)
}

func isETFCode(code string, prefixes []string) bool {
	if len(code) != 6 {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}
