// Package holdings stores and refreshes the disclosed top-N stock holdings of funds.
package holdings

// Holding is one disclosed position. Weight is percent of NAV.
type Holding struct {
	FundCode   string  `json:"fund_code"`
	StockCode  string  `json:"stock_code"`
	StockName  string  `json:"stock_name"`
	Weight     float64 `json:"weight"`
	ReportDate string  `json:"report_date"`
}

// Snapshot is the result of a holdings refresh.
type Snapshot struct {
	FundCode   string
	ReportDate string
	// TargetETF is the master ETF published for feeder funds, if any
	TargetETF string
	Holdings  []Holding
}
