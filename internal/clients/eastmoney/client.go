// Package eastmoney provides clients for the public Eastmoney fund and
// securities endpoints: disclosed holdings, the fund list, historical NAV
// and industry classification.
package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/fundval/internal/clientdata"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Endpoints holds the base URLs of the Eastmoney services in use.
type Endpoints struct {
	MobileAPI  string // fundmobapi, holdings
	FundSite   string // fund.eastmoney.com, fund list and NAV history
	DataCenter string // datacenter, industry classification
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		MobileAPI:  "https://fundmobapi.eastmoney.com",
		FundSite:   "https://fund.eastmoney.com",
		DataCenter: "https://datacenter.eastmoney.com",
	}
}

// Client talks to the Eastmoney endpoints.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
	cacheRepo  *clientdata.Repository
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithEndpoints overrides the base URLs
func WithEndpoints(e Endpoints) ClientOption {
	return func(c *Client) {
		c.endpoints = e
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithCache enables persistent caching of NAV history
func WithCache(repo *clientdata.Repository) ClientOption {
	return func(c *Client) {
		c.cacheRepo = repo
	}
}

// NewClient creates a new Eastmoney client.
func NewClient(log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoints:  DefaultEndpoints(),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:        log.With().Str("client", "eastmoney").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a rate-limited GET and returns the body.
func (c *Client) get(ctx context.Context, reqURL, referer string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.log.Warn().Err(err).Str("url", reqURL).Dur("elapsed", elapsed).Msg("Request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Str("url", reqURL).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Non-OK response")
		return nil, fmt.Errorf("eastmoney returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().Str("url", reqURL).Int("bytes", len(body)).Dur("elapsed", elapsed).Msg("Request completed")
	return body, nil
}
