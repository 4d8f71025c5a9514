package valuation

import (
	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/holdings"
	"github.com/aristath/fundval/internal/modules/quotes"
	"github.com/aristath/fundval/internal/modules/relationships"
	"github.com/aristath/fundval/internal/modules/securities"
	"github.com/shopspring/decimal"
)

// growthPlaces is the precision of published growth figures.
const growthPlaces = 4

// estimate is the uncalibrated output of one valuation path.
type estimate struct {
	growth      float64
	totalWeight float64
	components  []domain.Component
	misses      int
	status      domain.Status
	source      domain.Source
	parentCode  string
}

// computeShadow values a fund as ratio times its parent's percent change.
// The result has exactly one component, weighted ratio*100.
func computeShadow(rel relationships.Relationship, quoteByID map[string]quotes.Quote) estimate {
	source := domain.SourceFeeder
	if rel.Type == relationships.RelationIndexProxy {
		source = domain.SourceIndexProxy
	}

	component := domain.Component{
		Code:   rel.ParentCode,
		Name:   rel.ParentName,
		Weight: rel.Ratio * 100,
	}
	est := estimate{source: source, parentCode: rel.ParentCode, status: domain.StatusNoCoverage}

	q, ok := quoteByID[securities.Resolve(rel.ParentCode)]
	if ok {
		component.Price = q.Price
		component.ChangePct = q.ChangePct
		component.Impact = q.ChangePct * rel.Ratio
		component.Quoted = true
		if component.Name == "" {
			component.Name = q.Name
		}
		est.growth = q.ChangePct * rel.Ratio
		est.totalWeight = component.Weight
		est.status = domain.StatusOK
	} else {
		est.misses = 1
	}

	est.components = []domain.Component{component}
	return est
}

// computeHoldings renormalizes the impact of quoted holdings over their
// combined weight. Unquoted holdings are reported but count toward neither
// the impact nor the weight.
func computeHoldings(fundHoldings []holdings.Holding, quoteByID map[string]quotes.Quote) estimate {
	est := estimate{
		source:     domain.SourceHoldings,
		components: make([]domain.Component, 0, len(fundHoldings)),
	}

	var totalImpact float64
	for _, h := range fundHoldings {
		component := domain.Component{Code: h.StockCode, Name: h.StockName, Weight: h.Weight}

		q, ok := quoteByID[securities.Resolve(h.StockCode)]
		if !ok {
			est.misses++
			est.components = append(est.components, component)
			continue
		}

		component.Price = q.Price
		component.ChangePct = q.ChangePct
		component.Impact = q.ChangePct * (h.Weight / 100)
		component.Quoted = true
		if component.Name == "" {
			component.Name = q.Name
		}

		totalImpact += component.Impact
		est.totalWeight += h.Weight
		est.components = append(est.components, component)
	}

	if est.totalWeight > 0 {
		est.growth = totalImpact * 100 / est.totalWeight
		est.status = domain.StatusOK
	} else {
		est.status = domain.StatusNoCoverage
	}
	return est
}

func round(v float64) float64 {
	r, _ := decimal.NewFromFloat(v).Round(growthPlaces).Float64()
	return r
}
