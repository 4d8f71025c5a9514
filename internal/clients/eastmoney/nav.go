package eastmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aristath/fundval/internal/clientdata"
)

// NAVRecord is one published daily NAV.
type NAVRecord struct {
	Date string  `json:"date"` // YYYY-MM-DD
	NAV  float64 `json:"nav"`
	// Growth is the official daily growth in percent; nil when not published
	Growth *float64 `json:"growth"`
}

// NAVHistory fetches the most recent published NAV records, newest first.
func (c *Client) NAVHistory(ctx context.Context, fundCode string, count int) ([]NAVRecord, error) {
	if count <= 0 {
		count = 20
	}
	q := url.Values{}
	q.Set("type", "lsjz")
	q.Set("code", fundCode)
	q.Set("page", "1")
	q.Set("per", strconv.Itoa(count))
	reqURL := fmt.Sprintf("%s/f10/F10DataApi.aspx?%s", c.endpoints.FundSite, q.Encode())

	body, err := c.get(ctx, reqURL, c.endpoints.FundSite+"/")
	if err != nil {
		return nil, err
	}

	return ParseNAVHistory(body)
}

// OfficialGrowth returns the official daily growth for tradeDate. The bool is
// false when the fund has not published that day yet. Recent history is
// cached per fund, but a cached page that does not reach tradeDate is
// fetched again.
func (c *Client) OfficialGrowth(ctx context.Context, fundCode, tradeDate string) (float64, bool, error) {
	if records, ok := c.cachedNAV(fundCode); ok {
		if growth, found := findGrowth(records, tradeDate); found {
			return growth, true, nil
		}
	}

	records, err := c.NAVHistory(ctx, fundCode, 20)
	if err != nil {
		return 0, false, err
	}

	if c.cacheRepo != nil && len(records) > 0 {
		if err := c.cacheRepo.Store(clientdata.TableOfficialNAV, fundCode, records, clientdata.TTLOfficialNAV); err != nil {
			c.log.Warn().Err(err).Str("fund_code", fundCode).Msg("Failed to cache NAV history")
		}
	}

	growth, found := findGrowth(records, tradeDate)
	return growth, found, nil
}

func (c *Client) cachedNAV(fundCode string) ([]NAVRecord, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	data, err := c.cacheRepo.GetIfFresh(clientdata.TableOfficialNAV, fundCode)
	if err != nil || data == nil {
		return nil, false
	}
	var records []NAVRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}
	return records, true
}

func findGrowth(records []NAVRecord, tradeDate string) (float64, bool) {
	for _, r := range records {
		if r.Date == tradeDate && r.Growth != nil {
			return *r.Growth, true
		}
	}
	return 0, false
}

// ParseNAVHistory parses the lsjz table. The payload wraps an HTML table in a
// JS object literal; the wrapper ends up as stray text and is ignored.
func ParseNAVHistory(body []byte) ([]NAVRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse NAV history: %w", err)
	}

	var records []NAVRecord
	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		date := strings.TrimSpace(cells.Eq(0).Text())
		nav, err := strconv.ParseFloat(strings.TrimSpace(cells.Eq(1).Text()), 64)
		if date == "" || err != nil {
			return
		}

		record := NAVRecord{Date: date, NAV: nav}
		growthText := strings.TrimSuffix(strings.TrimSpace(cells.Eq(3).Text()), "%")
		if g, err := strconv.ParseFloat(growthText, 64); err == nil {
			record.Growth = &g
		}
		records = append(records, record)
	})

	return records, nil
}
