package quotes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aristath/fundval/internal/clients/tencent"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider quotes every ID at a change of 1% unless told to fail.
type fakeProvider struct {
	mu      sync.Mutex
	calls   [][]string
	failFor map[string]bool
	omit    map[string]bool
}

func (p *fakeProvider) BatchQuote(ctx context.Context, ids []string) (map[string]tencent.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, append([]string(nil), ids...))
	if len(ids) > tencent.MaxBatchSize {
		return nil, fmt.Errorf("too many ids: %d", len(ids))
	}
	out := make(map[string]tencent.Quote, len(ids))
	for _, id := range ids {
		if p.failFor[id] {
			return nil, errors.New("feed timeout")
		}
		if p.omit[id] {
			continue
		}
		out[id] = tencent.Quote{ID: id, Price: 10, ChangePct: 1}
	}
	return out, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("sh%06d", 600000+i)
	}
	return out
}

func TestFetch_DedupesAndChunks(t *testing.T) {
	provider := &fakeProvider{}
	f := NewFetcher(provider, time.Minute, 60, zerolog.Nop())

	input := append(ids(130), ids(10)...)
	got := f.Fetch(context.Background(), input)

	assert.Len(t, got, 130)
	assert.Equal(t, 3, provider.callCount())
	for _, call := range provider.calls {
		assert.LessOrEqual(t, len(call), 60)
	}
}

func TestFetch_SnapshotReuse(t *testing.T) {
	provider := &fakeProvider{}
	f := NewFetcher(provider, time.Minute, 60, zerolog.Nop())
	now := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	f.Fetch(context.Background(), []string{"sh600000", "sz000001"})
	require.Equal(t, 1, provider.callCount())

	// Inside the TTL only the new ID is fetched
	got := f.Fetch(context.Background(), []string{"sh600000", "sz000001", "hk00700"})
	assert.Len(t, got, 3)
	require.Equal(t, 2, provider.callCount())
	assert.Equal(t, []string{"hk00700"}, provider.calls[1])

	// After the TTL everything is fetched again
	now = now.Add(61 * time.Second)
	f.Fetch(context.Background(), []string{"sh600000"})
	assert.Equal(t, 3, provider.callCount())

	stats := f.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(4), stats.Misses)
	assert.Equal(t, 3, stats.Cached)
}

func TestFetch_FailedChunkDegrades(t *testing.T) {
	provider := &fakeProvider{failFor: map[string]bool{"sh600000": true}}
	f := NewFetcher(provider, time.Minute, 2, zerolog.Nop())

	got := f.Fetch(context.Background(), []string{"sh600000", "sh600001", "sh600002", "sh600003"})

	// The chunk holding sh600000 is lost, the other chunk survives
	assert.Len(t, got, 2)
	assert.NotContains(t, got, "sh600000")
	assert.NotContains(t, got, "sh600001")
	assert.Contains(t, got, "sh600002")
	assert.Equal(t, int64(1), f.Stats().Failures)
}

func TestFetch_MissingRecordNotCached(t *testing.T) {
	provider := &fakeProvider{omit: map[string]bool{"sz000001": true}}
	f := NewFetcher(provider, time.Minute, 60, zerolog.Nop())

	got := f.Fetch(context.Background(), []string{"sh600000", "sz000001"})
	assert.Len(t, got, 1)

	f.Fetch(context.Background(), []string{"sz000001"})
	assert.Equal(t, 2, provider.callCount())
}

func TestFetch_Empty(t *testing.T) {
	provider := &fakeProvider{}
	f := NewFetcher(provider, time.Minute, 60, zerolog.Nop())

	assert.Empty(t, f.Fetch(context.Background(), nil))
	assert.Empty(t, f.Fetch(context.Background(), []string{""}))
	assert.Equal(t, 0, provider.callCount())
}

func TestNewFetcher_CapsChunkSize(t *testing.T) {
	f := NewFetcher(&fakeProvider{}, time.Minute, 500, zerolog.Nop())
	assert.Equal(t, tencent.MaxBatchSize, f.chunkSize)
}
