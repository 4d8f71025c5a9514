package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FUNDVAL_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
	assert.NotNil(t, cfg.Location)
	assert.Equal(t, 4, cfg.RefreshWorkers)
	assert.Equal(t, 180*time.Second, cfg.Heuristics.ValuationCacheTTL)
	assert.Equal(t, 60*time.Second, cfg.Heuristics.QuoteCacheTTL)
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FUNDVAL_DATA_DIR", t.TempDir())
	t.Setenv("FUNDVAL_PORT", "9001")
	t.Setenv("FUNDVAL_MAX_CALIBRATION", "0.4")
	t.Setenv("FUNDVAL_VALUATION_TTL", "30s")
	t.Setenv("FUNDVAL_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 0.4, cfg.Heuristics.MaxCalibrationOffset)
	assert.Equal(t, 30*time.Second, cfg.Heuristics.ValuationCacheTTL)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
}

func TestLoad_Holidays(t *testing.T) {
	t.Setenv("FUNDVAL_DATA_DIR", t.TempDir())
	t.Setenv("FUNDVAL_HOLIDAYS_CN", "2025-01-28, 2025-01-29")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"CN": {"2025-01-28", "2025-01-29"}}, cfg.Heuristics.Holidays())

	t.Setenv("FUNDVAL_HOLIDAYS_US", "July 4th")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("FUNDVAL_DATA_DIR", t.TempDir())
	t.Setenv("FUNDVAL_PORT", "70000")

	_, err := Load()
	assert.Error(t, err)
}

func TestHeuristics_Grade(t *testing.T) {
	h := DefaultHeuristics()

	tests := []struct {
		dev      float64
		expected string
	}{
		{0, "S"},
		{0.19, "S"},
		{0.2, "A"},
		{0.49, "A"},
		{0.5, "B"},
		{0.99, "B"},
		{1.0, "C"},
		{3.2, "C"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, h.Grade(tt.dev), "deviation %v", tt.dev)
	}
}

func TestHeuristics_BenchmarksLongestKeywordFirst(t *testing.T) {
	h := DefaultHeuristics()
	benchmarks := h.Benchmarks()

	index := func(keyword string) int {
		for i, b := range benchmarks {
			if b.Keyword == keyword {
				return i
			}
		}
		return -1
	}

	assert.Less(t, index("中证1000"), index("中证100"))
	assert.Less(t, index("恒生科技"), index("恒生"))
}

func TestHeuristics_AccessorsReturnCopies(t *testing.T) {
	h := DefaultHeuristics()

	prefixes := h.ETFPrefixes()
	prefixes[0] = "99"
	assert.Equal(t, "51", h.ETFPrefixes()[0])

	benchmarks := h.Benchmarks()
	benchmarks[0].ParentCode = "tampered"
	assert.NotEqual(t, "tampered", h.Benchmarks()[0].ParentCode)
}

func TestHeuristics_Validate(t *testing.T) {
	h := DefaultHeuristics()
	require.NoError(t, h.Validate())

	h.Grades.A = 0.1
	assert.Error(t, h.Validate())

	h = DefaultHeuristics()
	h.QuoteChunkSize = 61
	assert.Error(t, h.Validate())
}

func TestHeuristics_WithHolidaysCopies(t *testing.T) {
	base := DefaultHeuristics()
	h := base.WithHolidays("HK", []string{"2025-01-29"})

	assert.Empty(t, base.Holidays())
	holidays := h.Holidays()
	holidays["HK"][0] = "changed"
	assert.Equal(t, []string{"2025-01-29"}, h.Holidays()["HK"])
}
