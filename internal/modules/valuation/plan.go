// Package valuation estimates intraday fund NAV growth from disclosed holdings
// or a pass-through parent instrument, then calibrates the estimate against
// the fund's own tracking history.
package valuation

import (
	"github.com/aristath/fundval/internal/modules/holdings"
	"github.com/aristath/fundval/internal/modules/relationships"
	"github.com/aristath/fundval/internal/modules/securities"
)

// plan is the valuation path chosen for a fund. It is resolved once per
// request and is one of shadowPlan, holdingsPlan or unavailablePlan.
type plan interface {
	// securityIDs lists the quote IDs the path needs.
	securityIDs() []string
}

// shadowPlan values a fund as a fixed fraction of its parent's move.
type shadowPlan struct {
	rel relationships.Relationship
}

// holdingsPlan values a fund from its disclosed top-N holdings.
type holdingsPlan struct {
	holdings []holdings.Holding
}

// unavailablePlan means neither a relationship nor holdings are known.
type unavailablePlan struct{}

func (p shadowPlan) securityIDs() []string {
	if id := securities.Resolve(p.rel.ParentCode); id != "" {
		return []string{id}
	}
	return nil
}

func (p holdingsPlan) securityIDs() []string {
	ids := make([]string, 0, len(p.holdings))
	for _, h := range p.holdings {
		if id := securities.Resolve(h.StockCode); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (unavailablePlan) securityIDs() []string { return nil }

// reportDate returns the disclosure date of the plan's holdings, if any.
func reportDate(p plan) string {
	hp, ok := p.(holdingsPlan)
	if !ok {
		return ""
	}
	latest := ""
	for _, h := range hp.holdings {
		if h.ReportDate > latest {
			latest = h.ReportDate
		}
	}
	return latest
}
