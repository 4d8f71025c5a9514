package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/fundval/internal/database"
	"github.com/aristath/fundval/internal/modules/calendar"
	"github.com/aristath/fundval/internal/modules/quotes"
	"github.com/aristath/fundval/internal/queue"
)

// QuoteStatsProvider reports quote snapshot counters.
type QuoteStatsProvider interface {
	Stats() quotes.Stats
}

// QueueStatsProvider reports refresh pool counters.
type QueueStatsProvider interface {
	Stats() queue.Stats
}

// MarketHours reports whether an exchange is trading.
type MarketHours interface {
	IsOpen(region calendar.Region, t time.Time) bool
}

// DBInfo describes one database in the status response.
type DBInfo struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	Healthy   bool    `json:"healthy"`
}

// HostInfo is the host resource snapshot.
type HostInfo struct {
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	DiskFreeMB      float64 `json:"disk_free_mb"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status       string          `json:"status"`
	StartedAt    string          `json:"started_at"`
	UptimeSec    int64           `json:"uptime_seconds"`
	Host         HostInfo        `json:"host"`
	Databases    []DBInfo        `json:"databases"`
	MarketsOpen  map[string]bool `json:"markets_open"`
	Quotes       quotes.Stats    `json:"quotes"`
	RefreshQueue queue.Stats     `json:"refresh_queue"`
}

// SystemHandlers serves system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
	quoteStats  QuoteStatsProvider
	queueStats  QueueStatsProvider
	markets     MarketHours

	now        func() time.Time
	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
	diskUsage  func(path string) (*disk.UsageStat, error)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	quoteStats QuoteStatsProvider,
	queueStats QueueStatsProvider,
	markets MarketHours,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		quoteStats:  quoteStats,
		queueStats:  queueStats,
		markets:     markets,
		now:         time.Now,
		cpuPercent:  sampleCPU,
		memPercent:  sampleMemory,
		diskUsage:   disk.Usage,
	}
}

// GetSystemStatusSnapshot collects the current status.
func (h *SystemHandlers) GetSystemStatusSnapshot(ctx context.Context) SystemStatusResponse {
	response := SystemStatusResponse{
		Status:    "healthy",
		StartedAt: h.startupTime.Format(time.RFC3339),
		UptimeSec: int64(time.Since(h.startupTime).Seconds()),
		Databases: []DBInfo{},
	}

	if v, err := h.cpuPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else {
		response.Host.CPUPercent = v
	}
	if v, err := h.memPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		response.Host.MemoryPercent = v
	}
	if usage, err := h.diskUsage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Str("path", h.dataDir).Msg("Failed to get disk usage")
	} else {
		response.Host.DiskFreeMB = float64(usage.Free) / 1024 / 1024
		response.Host.DiskUsedPercent = usage.UsedPercent
	}

	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db := h.databases[name]
		if db == nil {
			continue
		}
		info := DBInfo{Name: name, Healthy: true}
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Database health check failed")
			info.Healthy = false
			response.Status = "degraded"
		}
		if stats, err := db.GetStats(); err == nil {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
		}
		response.Databases = append(response.Databases, info)
	}

	if h.markets != nil {
		now := h.now()
		response.MarketsOpen = make(map[string]bool, 3)
		for _, region := range []calendar.Region{calendar.RegionCN, calendar.RegionHK, calendar.RegionUS} {
			response.MarketsOpen[string(region)] = h.markets.IsOpen(region, now)
		}
	}

	if h.quoteStats != nil {
		response.Quotes = h.quoteStats.Stats()
	}
	if h.queueStats != nil {
		response.RefreshQueue = h.queueStats.Stats()
	}

	return response
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := h.GetSystemStatusSnapshot(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": response,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}, h.log)
}

// sampleCPU measures over 100ms to keep the endpoint responsive.
func sampleCPU() (float64, error) {
	percent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percent) == 0 {
		return 0, err
	}
	return percent[0], nil
}

func sampleMemory() (float64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
