package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Holding is one disclosed stock position of a fund.
type Holding struct {
	StockCode  string
	StockName  string
	Weight     float64 // percent of NAV
	ReportDate string
}

// HoldingsReport is the latest top-N disclosure of a fund.
type HoldingsReport struct {
	FundCode   string
	ReportDate string
	// ETFCode is set for feeder funds whose target ETF is published alongside the holdings
	ETFCode  string
	Holdings []Holding
}

type positionResponse struct {
	Datas struct {
		FundStocks []struct {
			GPDM string `json:"GPDM"` // stock code
			GPJC string `json:"GPJC"` // stock short name
			JZBL string `json:"JZBL"` // percent of NAV
		} `json:"fundStocks"`
		ETFCode string `json:"ETFCODE"`
	} `json:"Datas"`
	ErrCode   int    `json:"ErrCode"`
	ErrMsg    string `json:"ErrMsg"`
	Success   bool   `json:"Success"`
	Expansion string `json:"Expansion"` // report date
}

// FundHoldings fetches the latest disclosed stock holdings for a fund.
// Positions with an unparseable weight are skipped.
func (c *Client) FundHoldings(ctx context.Context, fundCode string) (*HoldingsReport, error) {
	q := url.Values{}
	q.Set("FCODE", fundCode)
	q.Set("deviceid", "Wap")
	q.Set("plat", "Wap")
	q.Set("product", "EFund")
	q.Set("version", "2.0.0")
	reqURL := fmt.Sprintf("%s/FundMNewApi/FundMNInverstPosition?%s", c.endpoints.MobileAPI, q.Encode())

	body, err := c.get(ctx, reqURL, "")
	if err != nil {
		return nil, err
	}

	var resp positionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode holdings: %w", err)
	}
	if resp.ErrCode != 0 {
		return nil, fmt.Errorf("holdings API error %d: %s", resp.ErrCode, resp.ErrMsg)
	}

	report := &HoldingsReport{
		FundCode:   fundCode,
		ReportDate: strings.TrimSpace(resp.Expansion),
		ETFCode:    strings.TrimSpace(resp.Datas.ETFCode),
		Holdings:   make([]Holding, 0, len(resp.Datas.FundStocks)),
	}

	for _, s := range resp.Datas.FundStocks {
		code := strings.TrimSpace(s.GPDM)
		weight, err := strconv.ParseFloat(strings.TrimSpace(s.JZBL), 64)
		if code == "" || err != nil {
			c.log.Debug().Str("fund_code", fundCode).Str("stock_code", code).Msg("Skipping malformed position")
			continue
		}
		report.Holdings = append(report.Holdings, Holding{
			StockCode:  code,
			StockName:  strings.TrimSpace(s.GPJC),
			Weight:     weight,
			ReportDate: report.ReportDate,
		})
	}

	return report, nil
}
