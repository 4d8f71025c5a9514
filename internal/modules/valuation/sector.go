package valuation

import (
	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/industries"
)

// attributeSectors groups the quoted components by level-one and level-two
// industry. Unclassified stocks land in the Other bucket at both levels, so
// the sector impacts always add up to the total impact.
func attributeSectors(components []domain.Component, classification map[string]industries.Industry) domain.SectorAttribution {
	attribution := make(domain.SectorAttribution)

	for _, c := range components {
		if !c.Quoted {
			continue
		}

		l1, l2 := domain.SectorOther, domain.SectorOther
		if ind, ok := classification[c.Code]; ok && ind.L1 != "" {
			l1 = ind.L1
			if ind.L2 != "" {
				l2 = ind.L2
			}
		}

		node, ok := attribution[l1]
		if !ok {
			node = domain.SectorNode{Sub: make(map[string]domain.SectorWeight)}
		}
		node.Impact += c.Impact
		node.Weight += c.Weight

		sub := node.Sub[l2]
		sub.Impact += c.Impact
		sub.Weight += c.Weight
		node.Sub[l2] = sub

		attribution[l1] = node
	}

	return attribution
}

func stockCodes(components []domain.Component) []string {
	codes := make([]string, 0, len(components))
	for _, c := range components {
		if c.Quoted {
			codes = append(codes, c.Code)
		}
	}
	return codes
}
