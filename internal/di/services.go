package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/fundval/internal/clientdata"
	"github.com/aristath/fundval/internal/clients/eastmoney"
	"github.com/aristath/fundval/internal/clients/exchangerate"
	"github.com/aristath/fundval/internal/clients/tencent"
	"github.com/aristath/fundval/internal/config"
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
	"github.com/rs/zerolog"
)

// refreshJobTimeout bounds one holdings refresh including relationship detection.
const refreshJobTimeout = 30 * time.Second

// InitializeServices creates clients, repositories and services in dependency order
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	h := cfg.Heuristics
	fundvalConn := container.FundvalDB.Conn()

	// Clients
	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	container.TencentClient = tencent.NewClient(cfg.HTTPTimeout, log)
	container.EastmoneyClient = eastmoney.NewClient(log,
		eastmoney.WithTimeout(cfg.HTTPTimeout),
		eastmoney.WithCache(container.ClientDataRepo),
	)
	container.ExchangeRateClient = exchangerate.NewClient(container.ClientDataRepo, cfg.HTTPTimeout, log)

	// Repositories
	container.FundRepo = funds.NewRepository(fundvalConn, log)
	container.WatchlistRepo = funds.NewWatchlistRepository(fundvalConn, log)
	container.HoldingsRepo = holdings.NewRepository(fundvalConn, log)
	container.RelationshipRepo = relationships.NewRepository(fundvalConn, log)
	container.ArchiveRepo = archive.NewRepository(fundvalConn, log)
	container.FXRepo = fx.NewRepository(fundvalConn, log)

	holidays := make(map[calendar.Region][]string)
	for region, dates := range h.Holidays() {
		holidays[calendar.Region(region)] = dates
	}
	marketCalendar, err := calendar.New(holidays)
	if err != nil {
		return fmt.Errorf("failed to build market calendar: %w", err)
	}
	container.MarketCalendar = marketCalendar

	// Metadata and disclosure
	container.FundService = funds.NewService(container.FundRepo, container.WatchlistRepo, container.EastmoneyClient, container.ClientDataRepo, log)
	container.HoldingsService = holdings.NewService(container.HoldingsRepo, container.EastmoneyClient, log)
	container.RelationshipResolver = relationships.NewResolver(container.RelationshipRepo, container.FundService, h, log)
	container.IndustryService = industries.NewService(fundvalConn, container.EastmoneyClient, log)

	// Market data
	container.QuoteFetcher = quotes.NewFetcher(container.TencentClient, h.QuoteCacheTTL, h.QuoteChunkSize, log)
	container.FXService = fx.NewService(container.FXRepo, container.ExchangeRateClient, cfg.Location, log)

	// Reconciliation
	container.Reconciler = archive.NewReconciler(container.ArchiveRepo, container.EastmoneyClient, h, log)

	// Background refresh
	refreshHandler := queue.NewRefreshHandler(container.HoldingsService, container.RelationshipResolver, log)
	container.RefreshPool = queue.NewPool(cfg.RefreshWorkers, cfg.RefreshQueue, refreshJobTimeout, refreshHandler, log)
	container.Refresher = queue.NewRefresher(container.ClientDataRepo, container.RefreshPool, h.RefreshMarkerTTL, log)

	// Valuation
	container.ValuationService = valuation.NewService(valuation.Deps{
		Holdings:      container.HoldingsService,
		Relationships: container.RelationshipResolver,
		Quotes:        container.QuoteFetcher,
		Funds:         container.FundService,
		Industries:    container.IndustryService,
		History:       container.ArchiveRepo,
		FX:            container.FXService,
		Refresher:     container.Refresher,
		Calendar:      container.MarketCalendar,
	}, h, cfg.Location, log)

	// Backup (optional)
	if cfg.Backup.Enabled() {
		client, err := reliability.NewR2Client(context.Background(), cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.BackupService = reliability.NewR2BackupService(client, map[string]reliability.Snapshotter{
			"fundval": container.FundvalDB,
		}, cfg.DataDir, log)
	} else {
		log.Info().Msg("Backup not configured, R2 backup disabled")
	}

	log.Info().Msg("Services initialized")
	return nil
}
