// Package exchangerate provides currency exchange rate fetching and caching functionality.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/fundval/internal/clientdata"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.exchangerate-api.com/v4/latest"
	// Free tier tolerates a request per second comfortably
	defaultRateLimit = 1
)

// Client for exchangerate-api.com
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client
// cacheRepo is optional - if nil, caching is disabled
func NewClient(cacheRepo *clientdata.Repository, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(defaultRateLimit), 2),
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

// SetBaseURL overrides the API endpoint.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// cachedExchangeRate is the structure stored in the cache
type cachedExchangeRate struct {
	Rate float64 `json:"rate"`
}

// GetRate fetches exchange rate with cache.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) GetRate(ctx context.Context, fromCurrency, toCurrency string) (float64, error) {
	if fromCurrency == toCurrency {
		return 1.0, nil
	}

	cacheKey := fromCurrency + ":" + toCurrency

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh(clientdata.TableExchangeRate, cacheKey)
		if err == nil && data != nil {
			var cached cachedExchangeRate
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("pair", cacheKey).Float64("rate", cached.Rate).Msg("Cache hit")
				return cached.Rate, nil
			}
		}
	}

	rate, err := c.fetch(ctx, fromCurrency, toCurrency)
	if err != nil {
		if staleRate, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().
				Err(err).
				Str("pair", cacheKey).
				Float64("rate", staleRate).
				Msg("API failed, using stale cached rate")
			return staleRate, nil
		}
		return 0, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableExchangeRate, cacheKey, cachedExchangeRate{Rate: rate}, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Str("pair", cacheKey).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().Str("pair", cacheKey).Float64("rate", rate).Msg("Fetched rate")
	return rate, nil
}

func (c *Client) fetch(ctx context.Context, fromCurrency, toCurrency string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, fromCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, exists := result.Rates[toCurrency]
	if !exists || rate <= 0 {
		return 0, fmt.Errorf("rate not found for %s->%s", fromCurrency, toCurrency)
	}
	return rate, nil
}

// getStaleFromCache retrieves cached rate even if expired.
func (c *Client) getStaleFromCache(cacheKey string) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}

	data, err := c.cacheRepo.Get(clientdata.TableExchangeRate, cacheKey)
	if err != nil || data == nil {
		return 0, false
	}

	var cached cachedExchangeRate
	if err := json.Unmarshal(data, &cached); err != nil {
		return 0, false
	}

	return cached.Rate, true
}
