// Package funds manages fund metadata, the local fund-name index and the watchlist.
package funds

import (
	"strings"
	"time"
)

// Fund is the locally indexed metadata of one fund.
type Fund struct {
	Code           string    `json:"fund_code"`
	Name           string    `json:"fund_name"`
	PinyinAbbr     string    `json:"pinyin_abbr"`
	InvestmentType string    `json:"investment_type"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsQDII reports whether the fund invests cross-border, judged by its type or name.
func (f Fund) IsQDII() bool {
	return strings.Contains(strings.ToUpper(f.InvestmentType), "QDII") ||
		strings.Contains(strings.ToUpper(f.Name), "QDII")
}

// WatchlistEntry is a fund on the watchlist.
type WatchlistEntry struct {
	Code    string    `json:"fund_code"`
	Name    string    `json:"fund_name"`
	AddedAt time.Time `json:"added_at"`
}
