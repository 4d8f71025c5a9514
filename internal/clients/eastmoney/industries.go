package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// industryChunkSize caps the codes sent in one datacenter filter.
const industryChunkSize = 50

// Industry is a two-level industry classification.
type Industry struct {
	L1 string
	L2 string
}

type orgInfoResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  *struct {
		Data []struct {
			SecurityCode string `json:"SECURITY_CODE"`
			EM2016       string `json:"EM2016"`
		} `json:"data"`
	} `json:"result"`
}

// Industries resolves the Eastmoney 2016 industry classification for A-share
// stock codes. Codes without a classification are absent from the result.
func (c *Client) Industries(ctx context.Context, stockCodes []string) (map[string]Industry, error) {
	result := make(map[string]Industry, len(stockCodes))

	for start := 0; start < len(stockCodes); start += industryChunkSize {
		end := start + industryChunkSize
		if end > len(stockCodes) {
			end = len(stockCodes)
		}

		chunk, err := c.industryChunk(ctx, stockCodes[start:end])
		if err != nil {
			return result, err
		}
		for code, ind := range chunk {
			result[code] = ind
		}
	}

	return result, nil
}

func (c *Client) industryChunk(ctx context.Context, codes []string) (map[string]Industry, error) {
	quoted := make([]string, len(codes))
	for i, code := range codes {
		quoted[i] = `"` + code + `"`
	}

	q := url.Values{}
	q.Set("reportName", "RPT_F10_BASIC_ORGINFO")
	q.Set("columns", "SECURITY_CODE,EM2016")
	q.Set("filter", fmt.Sprintf("(SECURITY_CODE in (%s))", strings.Join(quoted, ",")))
	q.Set("pageNumber", "1")
	q.Set("pageSize", fmt.Sprintf("%d", len(codes)))
	q.Set("source", "HSF10")
	q.Set("client", "PC")
	reqURL := fmt.Sprintf("%s/securities/api/data/v1/get?%s", c.endpoints.DataCenter, q.Encode())

	body, err := c.get(ctx, reqURL, "")
	if err != nil {
		return nil, err
	}

	var resp orgInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode industries: %w", err)
	}

	out := make(map[string]Industry)
	if resp.Result == nil {
		return out, nil
	}
	for _, row := range resp.Result.Data {
		if ind, ok := ParseIndustry(row.EM2016); ok {
			out[row.SecurityCode] = ind
		}
	}
	return out, nil
}

// ParseIndustry splits an "L1-L2-L3" classification string. A single level
// is reused as L2.
func ParseIndustry(em2016 string) (Industry, bool) {
	parts := strings.Split(strings.TrimSpace(em2016), "-")
	if len(parts) == 0 || parts[0] == "" {
		return Industry{}, false
	}
	ind := Industry{L1: parts[0], L2: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		ind.L2 = parts[1]
	}
	return ind, true
}
