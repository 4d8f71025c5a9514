package funds

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/fundval/internal/clientdata"
	"github.com/aristath/fundval/internal/clients/eastmoney"
	"github.com/rs/zerolog"
)

// FundListSource provides the full public fund list.
type FundListSource interface {
	FundList(ctx context.Context) ([]eastmoney.FundListEntry, error)
}

const fundListCacheKey = "eastmoney"

type fundListSync struct {
	Count    int   `json:"count"`
	SyncedAt int64 `json:"synced_at"`
}

// Service exposes fund metadata lookups and keeps the name index fresh.
type Service struct {
	repo      *Repository
	watchlist *WatchlistRepository
	source    FundListSource
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewService creates a new fund service. cacheRepo is optional.
func NewService(repo *Repository, watchlist *WatchlistRepository, source FundListSource, cacheRepo *clientdata.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		watchlist: watchlist,
		source:    source,
		cacheRepo: cacheRepo,
		log:       log.With().Str("service", "funds").Logger(),
	}
}

// SyncFundList refreshes fund_metadata from the public fund list. Unless force
// is set, a sync within the fund list TTL is skipped and reports 0.
func (s *Service) SyncFundList(ctx context.Context, force bool) (int, error) {
	if !force && s.cacheRepo != nil {
		if data, err := s.cacheRepo.GetIfFresh(clientdata.TableFundList, fundListCacheKey); err == nil && data != nil {
			s.log.Debug().Msg("Fund list still fresh, skipping sync")
			return 0, nil
		}
	}

	entries, err := s.source.FundList(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch fund list: %w", err)
	}

	list := make([]Fund, 0, len(entries))
	for _, e := range entries {
		list = append(list, Fund{
			Code:           e.Code,
			Name:           e.Name,
			PinyinAbbr:     e.Abbr,
			InvestmentType: e.Type,
		})
	}

	count, err := s.repo.UpsertMany(list)
	if err != nil {
		return 0, err
	}

	if s.cacheRepo != nil {
		marker := fundListSync{Count: count, SyncedAt: time.Now().Unix()}
		if err := s.cacheRepo.Store(clientdata.TableFundList, fundListCacheKey, marker, clientdata.TTLFundList); err != nil {
			s.log.Warn().Err(err).Msg("Failed to record fund list sync")
		}
	}

	s.log.Info().Int("funds", count).Msg("Fund list synced")
	return count, nil
}

// Get returns fund metadata, or nil when the fund is not indexed.
func (s *Service) Get(code string) (*Fund, error) {
	return s.repo.Get(code)
}

// Name resolves a fund's display name. Unknown funds resolve to "".
func (s *Service) Name(code string) (string, error) {
	f, err := s.repo.Get(code)
	if err != nil || f == nil {
		return "", err
	}
	return f.Name, nil
}

// IsQDII reports whether a fund is cross-border. Unknown funds are not.
func (s *Service) IsQDII(code string) bool {
	f, err := s.repo.Get(code)
	if err != nil {
		s.log.Warn().Err(err).Str("fund_code", code).Msg("Failed to load fund metadata")
		return false
	}
	return f != nil && f.IsQDII()
}

// Search looks up funds by code, pinyin abbreviation or name.
func (s *Service) Search(query string, limit int) ([]Fund, error) {
	return s.repo.Search(query, limit)
}

// FindListed returns exchange-listed funds (code starts with one of prefixes)
// whose name contains fragment.
func (s *Service) FindListed(fragment string, prefixes []string) ([]Fund, error) {
	return s.repo.FindByNameWithPrefixes(fragment, prefixes)
}

// Watchlist returns the watchlist repository.
func (s *Service) Watchlist() *WatchlistRepository {
	return s.watchlist
}
