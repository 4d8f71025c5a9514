// Package securities maps bare exchange codes to market-qualified security IDs
// in the form used by the quote feed (sh600000, sz000001, bj830001, hk00700, usAAPL).
package securities

import (
	"strings"
	"unicode"
)

// Market identifies the listing venue of a security.
type Market string

const (
	MarketShanghai Market = "sh"
	MarketShenzhen Market = "sz"
	MarketBeijing  Market = "bj"
	MarketHongKong Market = "hk"
	MarketUS       Market = "us"
	MarketUnknown  Market = ""
)

var knownPrefixes = []Market{MarketShanghai, MarketShenzhen, MarketBeijing, MarketHongKong, MarketUS}

// MarketOf returns the market a code trades on. Already-prefixed codes
// report their prefix.
func MarketOf(code string) Market {
	code = strings.TrimSpace(code)
	if m, _, ok := splitPrefix(code); ok {
		return m
	}

	switch {
	case len(code) == 6 && isDigits(code):
		switch code[0] {
		case '6', '9', '5':
			return MarketShanghai
		case '0', '3', '1', '2':
			return MarketShenzhen
		case '4', '8':
			return MarketBeijing
		}
		return MarketUnknown
	case len(code) == 5 && isDigits(code):
		return MarketHongKong
	case code != "" && isAlpha(code):
		return MarketUS
	}
	return MarketUnknown
}

// Resolve returns the market-qualified ID for code, or "" when no market
// can be inferred. It is pure and deterministic.
func Resolve(code string) string {
	code = strings.TrimSpace(code)
	if m, rest, ok := splitPrefix(code); ok {
		return string(m) + normalizeSymbol(m, rest)
	}

	m := MarketOf(code)
	if m == MarketUnknown {
		return ""
	}
	return string(m) + normalizeSymbol(m, code)
}

// ResolveAll resolves codes and drops those without a market. The result maps
// each resolved ID back to its input code.
func ResolveAll(codes []string) map[string]string {
	out := make(map[string]string, len(codes))
	for _, code := range codes {
		if id := Resolve(code); id != "" {
			out[id] = code
		}
	}
	return out
}

// splitPrefix recognizes codes that already carry a market prefix, e.g.
// "SH600000" or "hkHSI".
func splitPrefix(code string) (Market, string, bool) {
	if len(code) <= 2 {
		return MarketUnknown, "", false
	}
	head := strings.ToLower(code[:2])
	rest := code[2:]

	for _, m := range knownPrefixes {
		if head != string(m) {
			continue
		}
		// Alphabetic symbols only count as prefixed when the prefix is
		// lowercase, so tickers such as "USB" or "HKIT" stay US listings.
		lower := code[:2] == head
		switch m {
		case MarketUS:
			if isAlpha(rest) && lower {
				return m, rest, true
			}
			return MarketUnknown, "", false
		case MarketHongKong:
			if (isDigits(rest) && len(rest) == 5) || (isAlpha(rest) && lower) {
				return m, rest, true
			}
		default:
			if isDigits(rest) && len(rest) == 6 {
				return m, rest, true
			}
		}
	}
	return MarketUnknown, "", false
}

func normalizeSymbol(m Market, symbol string) string {
	if m == MarketUS || m == MarketHongKong {
		return strings.ToUpper(symbol)
	}
	return symbol
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isAlpha accepts ASCII tickers such as "BRK.B". At least one letter is
// required.
func isAlpha(s string) bool {
	letters := 0
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
		switch {
		case unicode.IsLetter(r):
			letters++
		case r != '.':
			return false
		}
	}
	return letters > 0
}
