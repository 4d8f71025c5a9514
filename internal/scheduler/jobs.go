package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/archive"
	"github.com/aristath/fundval/internal/modules/calendar"
	"github.com/rs/zerolog"
)

// WatchlistSource lists the fund codes the snapshot job values.
type WatchlistSource interface {
	Codes() ([]string, error)
}

// BatchValuer values many funds in one round.
type BatchValuer interface {
	GetBatchValuation(ctx context.Context, fundCodes []string, summaryOnly bool) ([]domain.ValuationResult, error)
}

// PendingReconciler grades archived days once official growth is published.
type PendingReconciler interface {
	ReconcilePending(ctx context.Context, beforeDate string) (*archive.ReconcileSummary, error)
}

// FundListSyncer refreshes the local fund-name index.
type FundListSyncer interface {
	SyncFundList(ctx context.Context, force bool) (int, error)
}

// HistoryPruner deletes rows older than a date.
type HistoryPruner interface {
	DeleteBefore(date string) (int64, error)
}

// TradingDays reports exchange closures.
type TradingDays interface {
	IsTradingDay(region calendar.Region, t time.Time) bool
}

// ValuationSnapshotJob values the whole watchlist, which freezes today's
// estimates into the archive. It does nothing on mainland exchange holidays.
type ValuationSnapshotJob struct {
	watchlist WatchlistSource
	valuer    BatchValuer
	days      TradingDays
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewValuationSnapshotJob creates a new snapshot job
func NewValuationSnapshotJob(watchlist WatchlistSource, valuer BatchValuer, days TradingDays, log zerolog.Logger) *ValuationSnapshotJob {
	return &ValuationSnapshotJob{
		watchlist: watchlist,
		valuer:    valuer,
		days:      days,
		timeout:   2 * time.Minute,
		now:       time.Now,
		log:       log.With().Str("job", "valuation_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *ValuationSnapshotJob) Name() string {
	return "valuation_snapshot"
}

// Run executes the snapshot job
func (j *ValuationSnapshotJob) Run() error {
	if j.days != nil && !j.days.IsTradingDay(calendar.RegionCN, j.now()) {
		j.log.Info().Msg("Exchange closed today, skipping snapshot")
		return nil
	}

	codes, err := j.watchlist.Codes()
	if err != nil {
		return fmt.Errorf("failed to load watchlist: %w", err)
	}
	if len(codes) == 0 {
		j.log.Debug().Msg("Watchlist empty, nothing to snapshot")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results, err := j.valuer.GetBatchValuation(ctx, codes, false)
	if err != nil {
		return err
	}

	counts := make(map[domain.Status]int)
	for _, r := range results {
		counts[r.Status]++
	}
	j.log.Info().
		Int("funds", len(results)).
		Int("ok", counts[domain.StatusOK]).
		Int("no_coverage", counts[domain.StatusNoCoverage]).
		Int("syncing", counts[domain.StatusSyncing]).
		Msg("Valuation snapshot taken")
	return nil
}

// ReconcileJob reconciles every archived day before today.
type ReconcileJob struct {
	reconciler PendingReconciler
	loc        *time.Location
	now        func() time.Time
	timeout    time.Duration
	log        zerolog.Logger
}

// NewReconcileJob creates a new reconcile job. Today is taken in loc.
func NewReconcileJob(reconciler PendingReconciler, loc *time.Location, log zerolog.Logger) *ReconcileJob {
	if loc == nil {
		loc = time.UTC
	}
	return &ReconcileJob{
		reconciler: reconciler,
		loc:        loc,
		now:        time.Now,
		timeout:    10 * time.Minute,
		log:        log.With().Str("job", "reconcile").Logger(),
	}
}

// Name returns the job name
func (j *ReconcileJob) Name() string {
	return "reconcile"
}

// Run executes the reconcile job
func (j *ReconcileJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	today := j.now().In(j.loc).Format(archive.DateLayout)
	_, err := j.reconciler.ReconcilePending(ctx, today)
	return err
}

// FundListSyncJob refreshes the fund-name index.
type FundListSyncJob struct {
	syncer FundListSyncer
	log    zerolog.Logger
}

// NewFundListSyncJob creates a new fund list sync job
func NewFundListSyncJob(syncer FundListSyncer, log zerolog.Logger) *FundListSyncJob {
	return &FundListSyncJob{
		syncer: syncer,
		log:    log.With().Str("job", "fund_list_sync").Logger(),
	}
}

// Name returns the job name
func (j *FundListSyncJob) Name() string {
	return "fund_list_sync"
}

// Run executes the sync
func (j *FundListSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := j.syncer.SyncFundList(ctx, false)
	if err != nil {
		return err
	}
	j.log.Debug().Int("funds", n).Msg("Fund list sync finished")
	return nil
}

// PruneTarget is one table kept to a bounded window.
type PruneTarget struct {
	Table     string
	Pruner    HistoryPruner
	Retention time.Duration
}

// HistoryCleanupJob prunes time series that only need a bounded window.
type HistoryCleanupJob struct {
	targets []PruneTarget
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger
}

// NewHistoryCleanupJob creates a new cleanup job. Cutoff dates are taken in loc.
func NewHistoryCleanupJob(targets []PruneTarget, loc *time.Location, log zerolog.Logger) *HistoryCleanupJob {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryCleanupJob{
		targets: targets,
		loc:     loc,
		now:     time.Now,
		log:     log.With().Str("job", "history_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *HistoryCleanupJob) Name() string {
	return "history_cleanup"
}

// Run executes the cleanup. A failing table does not stop the others.
func (j *HistoryCleanupJob) Run() error {
	now := j.now().In(j.loc)

	var firstErr error
	for _, target := range j.targets {
		cutoff := now.Add(-target.Retention).Format(archive.DateLayout)
		deleted, err := target.Pruner.DeleteBefore(cutoff)
		if err != nil {
			j.log.Error().Err(err).Str("table", target.Table).Msg("Failed to prune history")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if deleted > 0 {
			j.log.Info().Str("table", target.Table).Int64("deleted", deleted).Str("cutoff", cutoff).Msg("History pruned")
		}
	}
	return firstErr
}
