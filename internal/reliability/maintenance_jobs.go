package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/fundval/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// Below this much free space maintenance fails loudly.
	criticalFreeBytes = 512 * 1024 * 1024
	warningFreeBytes  = 2 * 1024 * 1024 * 1024

	// defaultVacuumFreeRatio is the freelist share that triggers a VACUUM.
	defaultVacuumFreeRatio = 0.25
)

// DiskUsageFunc reports usage of the filesystem holding path.
type DiskUsageFunc func(path string) (*disk.UsageStat, error)

// DailyMaintenanceJob integrity-checks and checkpoints the databases, vacuums
// those with many free pages, and verifies free disk space.
type DailyMaintenanceJob struct {
	databases       map[string]*database.DB
	dataDir         string
	usage           DiskUsageFunc
	vacuumFreeRatio float64
	log             zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases:       databases,
		dataDir:         dataDir,
		usage:           disk.Usage,
		vacuumFreeRatio: defaultVacuumFreeRatio,
		log:             log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			// Not critical, the next checkpoint will catch up
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}

		stats, err := db.GetStats()
		if err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
			continue
		}
		j.log.Debug().
			Str("database", name).
			Int64("size_bytes", stats.SizeBytes).
			Int64("wal_bytes", stats.WALSizeBytes).
			Int64("free_pages", stats.FreelistCount).
			Msg("Database stats")

		if stats.FreeRatio() >= j.vacuumFreeRatio {
			if err := db.Vacuum(ctx); err != nil {
				j.log.Warn().Err(err).Str("database", name).Msg("Vacuum failed")
			} else {
				j.log.Info().Str("database", name).Int64("free_pages", stats.FreelistCount).Msg("Database vacuumed")
			}
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Daily maintenance completed successfully")
	return nil
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

func (j *DailyMaintenanceJob) checkDiskSpace() error {
	usage, err := j.usage(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read disk usage")
		return nil
	}

	switch {
	case usage.Free < criticalFreeBytes:
		j.log.Error().Uint64("free_bytes", usage.Free).Msg("CRITICAL: disk space exhausted")
		return fmt.Errorf("only %d bytes free on %s", usage.Free, usage.Path)
	case usage.Free < warningFreeBytes:
		j.log.Warn().Uint64("free_bytes", usage.Free).Float64("used_pct", usage.UsedPercent).Msg("Disk space low")
	}
	return nil
}

// R2BackupJob uploads a backup and rotates old ones.
type R2BackupJob struct {
	service *R2BackupService
	keep    int
	timeout time.Duration
	log     zerolog.Logger
}

// NewR2BackupJob creates a new backup job keeping the newest keep archives.
func NewR2BackupJob(service *R2BackupService, keep int, log zerolog.Logger) *R2BackupJob {
	return &R2BackupJob{
		service: service,
		keep:    keep,
		timeout: 15 * time.Minute,
		log:     log.With().Str("job", "r2_backup").Logger(),
	}
}

// Run executes the backup job
func (j *R2BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	if _, err := j.service.RotateOldBackups(ctx, j.keep); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// Name returns the job name for scheduler
func (j *R2BackupJob) Name() string {
	return "r2_backup"
}
