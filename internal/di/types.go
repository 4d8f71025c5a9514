// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/fundval/internal/clientdata"
	"github.com/aristath/fundval/internal/clients/eastmoney"
	"github.com/aristath/fundval/internal/clients/exchangerate"
	"github.com/aristath/fundval/internal/clients/tencent"
	"github.com/aristath/fundval/internal/database"
	"github.com/aristath/fundval/internal/modules/archive"
	"github.com/aristath/fundval/internal/modules/calendar"
	"github.com/aristath/fundval/internal/modules/funds"
	"github.com/aristath/fundval/internal/modules/fx"
	"github.com/aristath/fundval/internal/modules/holdings"
	"github.com/aristath/fundval/internal/modules/industries"
	"github.com/aristath/fundval/internal/modules/quotes"
	"github.com/aristath/fundval/internal/modules/relationships"
	"github.com/aristath/fundval/internal/modules/valuation"
	"github.com/aristath/fundval/internal/queue"
	"github.com/aristath/fundval/internal/reliability"
	"github.com/aristath/fundval/internal/scheduler"
)

// Container holds all dependencies
type Container struct {
	// Databases
	FundvalDB    *database.DB // funds, holdings, relationships, archive, industries, fx history
	ClientDataDB *database.DB // TTL caches and refresh markers

	// Clients
	ClientDataRepo     *clientdata.Repository
	TencentClient      *tencent.Client
	EastmoneyClient    *eastmoney.Client
	ExchangeRateClient *exchangerate.Client

	// Repositories
	FundRepo         *funds.Repository
	WatchlistRepo    *funds.WatchlistRepository
	HoldingsRepo     *holdings.Repository
	RelationshipRepo *relationships.Repository
	ArchiveRepo      *archive.Repository
	FXRepo           *fx.Repository

	// Services
	MarketCalendar       *calendar.Calendar
	FundService          *funds.Service
	HoldingsService      *holdings.Service
	RelationshipResolver *relationships.Resolver
	QuoteFetcher         *quotes.Fetcher
	IndustryService      *industries.Service
	FXService            *fx.Service
	Reconciler           *archive.Reconciler
	RefreshPool          *queue.Pool
	Refresher            *queue.Refresher
	ValuationService     *valuation.Service
	BackupService        *reliability.R2BackupService // nil when backup is not configured
}

// JobInstances holds the scheduled jobs
type JobInstances struct {
	ValuationSnapshot *scheduler.ValuationSnapshotJob
	Reconcile         *scheduler.ReconcileJob
	FundListSync      *scheduler.FundListSyncJob
	HistoryCleanup    *scheduler.HistoryCleanupJob
	CheckWAL          *scheduler.CheckWALCheckpointsJob
	ClientDataCleanup *clientdata.CleanupJob
	DailyMaintenance  *reliability.DailyMaintenanceJob
	R2Backup          *reliability.R2BackupJob // nil when backup is not configured
}

// Close closes both databases.
func (c *Container) Close() {
	if c.RefreshPool != nil {
		c.RefreshPool.Stop()
	}
	if c.FundvalDB != nil {
		c.FundvalDB.Close()
	}
	if c.ClientDataDB != nil {
		c.ClientDataDB.Close()
	}
}
