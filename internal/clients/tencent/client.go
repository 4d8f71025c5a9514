// Package tencent provides a client for the Tencent (qt.gtimg.cn) realtime quote feed.
//
// The feed answers a comma-separated list of market-qualified security IDs with
// one record per security:
//
//	v_sh600000="1~浦发银行~600000~10.50~10.40~...";
//
// Fields are separated by '~' and live at fixed offsets.
package tencent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://qt.gtimg.cn"
	// MaxBatchSize is the largest ID list the feed answers reliably in one call
	MaxBatchSize     = 60
	DefaultRateLimit = 10 // requests per second

	fieldName      = 1
	fieldCode      = 2
	fieldPrice     = 3
	fieldPrevClose = 4
	fieldChangePct = 32
	minFields      = fieldChangePct + 1
)

// Quote is a single realtime quote record.
type Quote struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	PrevClose float64 `json:"prev_close"`
	ChangePct float64 `json:"change_pct"`
}

// Client fetches realtime quotes in batches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a new Tencent quote client.
func NewClient(timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:        log.With().Str("client", "tencent").Logger(),
	}
}

// SetBaseURL overrides the feed endpoint.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// BatchQuote fetches quotes for up to MaxBatchSize security IDs in one request.
// Records that are missing or malformed are left out of the result.
func (c *Client) BatchQuote(ctx context.Context, ids []string) (map[string]Quote, error) {
	if len(ids) == 0 {
		return map[string]Quote{}, nil
	}
	if len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d ids exceeds limit of %d", len(ids), MaxBatchSize)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/q=%s", c.baseURL, strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Referer", "https://gu.qq.com/")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.log.Warn().Err(err).Int("ids", len(ids)).Dur("elapsed", elapsed).Msg("Quote request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	quotes := ParseQuotes(string(body))
	c.log.Debug().
		Int("requested", len(ids)).
		Int("parsed", len(quotes)).
		Dur("elapsed", elapsed).
		Msg("Fetched quotes")

	return quotes, nil
}

// ParseQuotes parses a feed payload into quotes keyed by security ID.
func ParseQuotes(payload string) map[string]Quote {
	quotes := make(map[string]Quote)

	for _, record := range strings.Split(payload, ";") {
		record = strings.TrimSpace(record)
		if !strings.HasPrefix(record, "v_") {
			continue
		}

		eq := strings.Index(record, "=")
		if eq < 0 {
			continue
		}
		id := record[2:eq]
		value := strings.Trim(record[eq+1:], `"`)
		if id == "" || strings.HasPrefix(id, "pv_none_match") {
			continue
		}

		quote, ok := parseRecord(id, value)
		if !ok {
			continue
		}
		quotes[id] = quote
	}

	return quotes
}

func parseRecord(id, value string) (Quote, bool) {
	fields := strings.Split(value, "~")
	if len(fields) < minFields {
		return Quote{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(fields[fieldPrice]), 64)
	if err != nil {
		return Quote{}, false
	}
	changePct, err := strconv.ParseFloat(strings.TrimSpace(fields[fieldChangePct]), 64)
	if err != nil {
		return Quote{}, false
	}
	// Previous close is informational only
	prevClose, _ := strconv.ParseFloat(strings.TrimSpace(fields[fieldPrevClose]), 64)

	return Quote{
		ID:        id,
		Code:      fields[fieldCode],
		Name:      strings.TrimSpace(fields[fieldName]),
		Price:     price,
		PrevClose: prevClose,
		ChangePct: changePct,
	}, true
}
