package di

import (
	"fmt"
	"time"

	"github.com/aristath/fundval/internal/clientdata"
	"github.com/aristath/fundval/internal/config"
	"github.com/aristath/fundval/internal/database"
	"github.com/aristath/fundval/internal/reliability"
	"github.com/aristath/fundval/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	// fxHistoryRetention keeps enough rate history to bridge long holidays.
	fxHistoryRetention = 90 * 24 * time.Hour
	// Official NAVs older than this have left the published history page,
	// so unreconciled archive days can no longer be graded.
	pendingArchiveRetention = 30 * 24 * time.Hour
	walCheckCron            = "0 0 * * * *"
	maintenanceCron         = "0 30 3 * * *"
)

// RegisterJobs builds the scheduled jobs and registers them with sched.
// sched may be nil, in which case jobs are only built (CLI use).
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	databases := map[string]*database.DB{
		"fundval":     container.FundvalDB,
		"client_data": container.ClientDataDB,
	}

	jobs := &JobInstances{
		ValuationSnapshot: scheduler.NewValuationSnapshotJob(container.WatchlistRepo, container.ValuationService, container.MarketCalendar, log),
		Reconcile:         scheduler.NewReconcileJob(container.Reconciler, cfg.Location, log),
		FundListSync:      scheduler.NewFundListSyncJob(container.FundService, log),
		HistoryCleanup: scheduler.NewHistoryCleanupJob([]scheduler.PruneTarget{
			{Table: "fx_rate_history", Pruner: container.FXRepo, Retention: fxHistoryRetention},
			{Table: "fund_valuation_archive", Pruner: container.ArchiveRepo, Retention: pendingArchiveRetention},
		}, cfg.Location, log),
		CheckWAL:          scheduler.NewCheckWALCheckpointsJob(databases, log),
		ClientDataCleanup: clientdata.NewCleanupJob(container.ClientDataRepo, log),
		DailyMaintenance:  reliability.NewDailyMaintenanceJob(databases, cfg.DataDir, log),
	}
	if container.BackupService != nil {
		keep := 7
		if cfg.Backup != nil && cfg.Backup.Retention > 0 {
			keep = cfg.Backup.Retention
		}
		jobs.R2Backup = reliability.NewR2BackupJob(container.BackupService, keep, log)
	}

	if sched == nil {
		return jobs, nil
	}

	schedule := []struct {
		cron string
		job  scheduler.Job
	}{
		{cfg.SnapshotCron, jobs.ValuationSnapshot},
		{cfg.ReconcileCron, jobs.Reconcile},
		{cfg.FundListCron, jobs.FundListSync},
		{cfg.CleanupCron, jobs.ClientDataCleanup},
		{cfg.CleanupCron, jobs.HistoryCleanup},
		{walCheckCron, jobs.CheckWAL},
		{maintenanceCron, jobs.DailyMaintenance},
	}
	if jobs.R2Backup != nil {
		schedule = append(schedule, struct {
			cron string
			job  scheduler.Job
		}{cfg.BackupCron, jobs.R2Backup})
	}

	for _, entry := range schedule {
		if err := sched.AddJob(entry.cron, entry.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", entry.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(schedule)).Msg("Jobs registered")
	return jobs, nil
}
