package funds

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/fundval/internal/clientdata"
	"github.com/aristath/fundval/internal/clients/eastmoney"
	testingpkg "github.com/aristath/fundval/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFundListSource struct {
	mock.Mock
}

func (m *MockFundListSource) FundList(ctx context.Context) ([]eastmoney.FundListEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]eastmoney.FundListEntry), args.Error(1)
}

var sampleFunds = []Fund{
	{Code: "110022", Name: "易方达消费行业股票", PinyinAbbr: "YFDXFHYGP", InvestmentType: "股票型"},
	{Code: "161725", Name: "招商中证白酒指数(LOF)A", PinyinAbbr: "ZSZZBJZSLOFA", InvestmentType: "指数型-股票"},
	{Code: "510300", Name: "华泰柏瑞沪深300ETF", PinyinAbbr: "HTBRHS300ETF", InvestmentType: "指数型-股票"},
	{Code: "460300", Name: "华泰柏瑞沪深300ETF联接A", PinyinAbbr: "HTBRHS300ETFLJA", InvestmentType: "指数型-股票"},
	{Code: "513100", Name: "国泰纳斯达克100ETF", PinyinAbbr: "GTNSDK100ETF", InvestmentType: "QDII-指数"},
}

func setupRepo(t *testing.T) *Repository {
	db := testingpkg.NewTestDB(t, "fundval")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	n, err := repo.UpsertMany(sampleFunds)
	require.NoError(t, err)
	require.Equal(t, len(sampleFunds), n)
	return repo
}

func TestFundIsQDII(t *testing.T) {
	assert.True(t, Fund{InvestmentType: "QDII-指数"}.IsQDII())
	assert.True(t, Fund{Name: "广发纳斯达克100ETF联接人民币(QDII)A"}.IsQDII())
	assert.True(t, Fund{Name: "something qdii"}.IsQDII())
	assert.False(t, Fund{Name: "易方达消费行业股票", InvestmentType: "股票型"}.IsQDII())
}

func TestRepository_GetAndUpsert(t *testing.T) {
	repo := setupRepo(t)

	f, err := repo.Get("110022")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "易方达消费行业股票", f.Name)
	assert.Equal(t, "股票型", f.InvestmentType)

	missing, err := repo.Get("000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.UpsertMany([]Fund{{Code: "110022", Name: "renamed", InvestmentType: "股票型"}})
	require.NoError(t, err)
	f, err = repo.Get("110022")
	require.NoError(t, err)
	assert.Equal(t, "renamed", f.Name)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, len(sampleFunds), count)
}

func TestRepository_Search(t *testing.T) {
	repo := setupRepo(t)

	byCode, err := repo.Search("5103", 10)
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	assert.Equal(t, "510300", byCode[0].Code)

	byName, err := repo.Search("沪深300", 10)
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	byPinyin, err := repo.Search("zszz", 10)
	require.NoError(t, err)
	require.Len(t, byPinyin, 1)
	assert.Equal(t, "161725", byPinyin[0].Code)

	empty, err := repo.Search("  ", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_FindByNameWithPrefixes(t *testing.T) {
	repo := setupRepo(t)

	found, err := repo.FindByNameWithPrefixes("华泰柏瑞沪深300ETF", []string{"51", "15"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "510300", found[0].Code)

	none, err := repo.FindByNameWithPrefixes("白酒", []string{"51"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWatchlist(t *testing.T) {
	db := testingpkg.NewTestDB(t, "fundval")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	_, err := repo.UpsertMany(sampleFunds)
	require.NoError(t, err)

	wl := NewWatchlistRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, wl.Add("110022"))
	require.NoError(t, wl.Add("999999"))
	require.NoError(t, wl.Add("110022"))

	entries, err := wl.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	names := map[string]string{}
	for _, e := range entries {
		names[e.Code] = e.Name
	}
	assert.Equal(t, "易方达消费行业股票", names["110022"])
	assert.Equal(t, "", names["999999"])

	removed, err := wl.Remove("999999")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = wl.Remove("999999")
	require.NoError(t, err)
	assert.False(t, removed)

	codes, err := wl.Codes()
	require.NoError(t, err)
	assert.Equal(t, []string{"110022"}, codes)
}

func TestService_SyncFundList(t *testing.T) {
	db := testingpkg.NewTestDB(t, "fundval")
	cacheDB := testingpkg.NewTestDB(t, "client_data")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	cache := clientdata.NewRepository(cacheDB.Conn())

	source := new(MockFundListSource)
	source.On("FundList", mock.Anything).Return([]eastmoney.FundListEntry{
		{Code: "000001", Abbr: "HXCZHH", Name: "华夏成长混合", Type: "混合型-灵活"},
		{Code: "513100", Abbr: "GTNSDK100ETF", Name: "国泰纳斯达克100ETF", Type: "QDII-指数"},
	}, nil).Once()

	svc := NewService(repo, NewWatchlistRepository(db.Conn(), zerolog.Nop()), source, cache, zerolog.Nop())

	n, err := svc.SyncFundList(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Second sync inside the TTL is skipped
	n, err = svc.SyncFundList(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	source.AssertExpectations(t)

	name, err := svc.Name("000001")
	require.NoError(t, err)
	assert.Equal(t, "华夏成长混合", name)
	assert.True(t, svc.IsQDII("513100"))
	assert.False(t, svc.IsQDII("000001"))
	assert.False(t, svc.IsQDII("123456"))
}

func TestService_SyncFundList_SourceError(t *testing.T) {
	db := testingpkg.NewTestDB(t, "fundval")
	source := new(MockFundListSource)
	source.On("FundList", mock.Anything).Return(nil, errors.New("timeout"))

	svc := NewService(NewRepository(db.Conn(), zerolog.Nop()), nil, source, nil, zerolog.Nop())

	_, err := svc.SyncFundList(context.Background(), true)
	assert.Error(t, err)
}
