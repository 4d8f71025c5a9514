package eastmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// FundListEntry is one row of the public fund list.
type FundListEntry struct {
	Code       string `json:"code"`
	Abbr       string `json:"abbr"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	PinyinFull string `json:"pinyin"`
}

// FundList fetches every listed fund. The endpoint serves a JS assignment of
// the form `var r = [["000001","HXCZHH","华夏成长混合","混合型","HUAXIA..."], ...];`.
func (c *Client) FundList(ctx context.Context) ([]FundListEntry, error) {
	reqURL := c.endpoints.FundSite + "/js/fundcode_search.js"

	body, err := c.get(ctx, reqURL, "")
	if err != nil {
		return nil, err
	}

	return ParseFundList(body)
}

// ParseFundList extracts fund rows from the fundcode_search.js payload.
func ParseFundList(body []byte) ([]FundListEntry, error) {
	start := bytes.Index(body, []byte("[["))
	end := bytes.LastIndex(body, []byte("]]"))
	if start < 0 || end < start {
		return nil, fmt.Errorf("fund list payload has no array")
	}

	var rows [][]string
	if err := json.Unmarshal(body[start:end+2], &rows); err != nil {
		return nil, fmt.Errorf("failed to decode fund list: %w", err)
	}

	entries := make([]FundListEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 || row[0] == "" {
			continue
		}
		entry := FundListEntry{
			Code: row[0],
			Abbr: row[1],
			Name: row[2],
			Type: row[3],
		}
		if len(row) > 4 {
			entry.PinyinFull = row[4]
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
