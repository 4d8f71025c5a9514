// Package quotes fetches live quotes for many securities in as few feed
// calls as possible and keeps a short-lived snapshot of every quote seen.
package quotes

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/fundval/internal/clients/tencent"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Quote is a live quote for one security.
type Quote = tencent.Quote

// Provider answers one batch of at most 60 IDs.
type Provider interface {
	BatchQuote(ctx context.Context, ids []string) (map[string]tencent.Quote, error)
}

const (
	defaultConcurrency = 4
	pruneThreshold     = 5000
)

type snapshotEntry struct {
	quote     Quote
	fetchedAt time.Time
}

// Stats reports snapshot effectiveness.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Fetches  int64 `json:"fetches"`
	Failures int64 `json:"failures"`
	Cached   int   `json:"cached"`
}

// Fetcher is the batch quote fetcher.
type Fetcher struct {
	provider    Provider
	ttl         time.Duration
	chunkSize   int
	concurrency int
	log         zerolog.Logger
	now         func() time.Time

	mu       sync.RWMutex
	snapshot map[string]snapshotEntry

	hits, misses, fetches, failures atomic.Int64
}

// NewFetcher creates a quote fetcher. chunkSize is capped at the feed limit.
func NewFetcher(provider Provider, ttl time.Duration, chunkSize int, log zerolog.Logger) *Fetcher {
	if chunkSize <= 0 || chunkSize > tencent.MaxBatchSize {
		chunkSize = tencent.MaxBatchSize
	}
	return &Fetcher{
		provider:    provider,
		ttl:         ttl,
		chunkSize:   chunkSize,
		concurrency: defaultConcurrency,
		log:         log.With().Str("component", "quote_fetcher").Logger(),
		now:         time.Now,
		snapshot:    make(map[string]snapshotEntry),
	}
}

// Fetch returns quotes for ids. Duplicate IDs are fetched once; IDs with a
// fresh snapshot entry are not fetched at all. Securities whose quote could
// not be retrieved are absent from the result; Fetch never fails as a whole.
func (f *Fetcher) Fetch(ctx context.Context, ids []string) map[string]Quote {
	result := make(map[string]Quote, len(ids))
	missing := f.fromSnapshot(dedupe(ids), result)
	if len(missing) == 0 {
		return result
	}

	chunks := chunk(missing, f.chunkSize)
	var mu sync.Mutex
	fetched := make(map[string]Quote, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			f.fetches.Add(1)
			quotes, err := f.provider.BatchQuote(gctx, c)
			if err != nil {
				// A failed chunk degrades to "no quote" for its securities
				f.failures.Add(1)
				f.log.Warn().Err(err).Int("ids", len(c)).Str("first", c[0]).Msg("Quote chunk failed")
				return nil
			}
			mu.Lock()
			for id, q := range quotes {
				fetched[id] = q
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	f.store(fetched)
	for id, q := range fetched {
		result[id] = q
	}

	f.log.Debug().
		Int("requested", len(ids)).
		Int("fetched", len(fetched)).
		Int("chunks", len(chunks)).
		Msg("Quotes fetched")

	return result
}

// Stats returns snapshot counters.
func (f *Fetcher) Stats() Stats {
	f.mu.RLock()
	cached := len(f.snapshot)
	f.mu.RUnlock()

	return Stats{
		Hits:     f.hits.Load(),
		Misses:   f.misses.Load(),
		Fetches:  f.fetches.Load(),
		Failures: f.failures.Load(),
		Cached:   cached,
	}
}

// fromSnapshot copies fresh snapshot entries into result and returns the IDs
// that still need fetching, in a stable order.
func (f *Fetcher) fromSnapshot(ids []string, result map[string]Quote) []string {
	now := f.now()
	missing := make([]string, 0, len(ids))

	f.mu.RLock()
	for _, id := range ids {
		if e, ok := f.snapshot[id]; ok && now.Sub(e.fetchedAt) < f.ttl {
			result[id] = e.quote
			continue
		}
		missing = append(missing, id)
	}
	f.mu.RUnlock()

	f.hits.Add(int64(len(ids) - len(missing)))
	f.misses.Add(int64(len(missing)))
	return missing
}

func (f *Fetcher) store(quotes map[string]Quote) {
	if len(quotes) == 0 {
		return
	}
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	for id, q := range quotes {
		f.snapshot[id] = snapshotEntry{quote: q, fetchedAt: now}
	}

	if len(f.snapshot) > pruneThreshold {
		for id, e := range f.snapshot {
			if now.Sub(e.fetchedAt) >= f.ttl {
				delete(f.snapshot, id)
			}
		}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func chunk(ids []string, size int) [][]string {
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
