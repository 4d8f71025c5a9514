package valuation

import (
	"fmt"
	"time"

	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/archive"
)

const (
	highConfidence   = 75
	mediumConfidence = 50

	// Disclosures are quarterly and published with a lag of up to a quarter.
	staleReportDays     = 120
	agingReportDays     = 95
	lowCoverageWeight   = 40.0
	thinCoverageWeight  = 60.0
	volatileTrackingStd = 1.0
	noisyTrackingStd    = 0.5
	closedMarketPenalty = 15
)

// assessConfidence scores an estimate from its coverage, the age of its
// holdings disclosure, the fund's recent tracking error and, for QDII funds,
// whether the foreign market traded in the previous session.
func assessConfidence(est estimate, reportDate string, bias archive.Bias, foreignClosed bool, now time.Time) *domain.Confidence {
	if est.status != domain.StatusOK {
		return &domain.Confidence{Level: domain.ConfidenceLow, Score: 0, Reasons: []string{"no live quotes for this fund"}}
	}

	score := 100
	reasons := []string{}

	if est.source == domain.SourceHoldings {
		switch {
		case est.totalWeight < lowCoverageWeight:
			score -= 30
			reasons = append(reasons, fmt.Sprintf("quoted holdings cover only %.1f%% of NAV", est.totalWeight))
		case est.totalWeight < thinCoverageWeight:
			score -= 15
			reasons = append(reasons, fmt.Sprintf("quoted holdings cover %.1f%% of NAV", est.totalWeight))
		}

		if est.misses > 0 {
			score -= 5 * est.misses
			reasons = append(reasons, fmt.Sprintf("%d holdings without a quote", est.misses))
		}

		if reported, err := time.Parse(archive.DateLayout, reportDate); err == nil {
			age := int(now.Sub(reported).Hours() / 24)
			switch {
			case age > staleReportDays:
				score -= 20
				reasons = append(reasons, fmt.Sprintf("holdings disclosure is %d days old", age))
			case age > agingReportDays:
				score -= 10
				reasons = append(reasons, fmt.Sprintf("holdings disclosure is %d days old", age))
			}
		}
	} else {
		score -= 5
		reasons = append(reasons, "valued through parent instrument")
	}

	if bias.Samples > 1 {
		switch {
		case bias.StdDev > volatileTrackingStd:
			score -= 20
			reasons = append(reasons, fmt.Sprintf("recent tracking error std-dev %.2f", bias.StdDev))
		case bias.StdDev > noisyTrackingStd:
			score -= 10
			reasons = append(reasons, fmt.Sprintf("recent tracking error std-dev %.2f", bias.StdDev))
		}
	}

	if foreignClosed {
		score -= closedMarketPenalty
		reasons = append(reasons, "foreign market was closed in the previous session")
	}

	if score < 0 {
		score = 0
	}

	level := domain.ConfidenceLow
	switch {
	case score >= highConfidence:
		level = domain.ConfidenceHigh
	case score >= mediumConfidence:
		level = domain.ConfidenceMedium
	}

	return &domain.Confidence{Level: level, Score: score, Reasons: reasons}
}
