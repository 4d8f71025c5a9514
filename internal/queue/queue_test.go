package queue

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/fundval/internal/clientdata"
	"github.com/aristath/fundval/internal/modules/holdings"
	"github.com/aristath/fundval/internal/modules/relationships"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMarkerRepo(t *testing.T) *clientdata.Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE refresh_markers (
		fund_code TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	return clientdata.NewRepository(db)
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []*Job
	err  error
}

func (q *recordingQueue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestPool_RunsJobs(t *testing.T) {
	var done sync.WaitGroup
	var ran atomic.Int32
	done.Add(5)

	pool := NewPool(2, 10, time.Second, func(ctx context.Context, job *Job) error {
		ran.Add(1)
		done.Done()
		return nil
	}, zerolog.Nop())
	pool.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Enqueue(&Job{ID: "j", Type: JobTypeRefreshHoldings}))
	}
	done.Wait()
	pool.Stop()

	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(5), pool.Stats().Completed)
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	pool := NewPool(1, 1, time.Second, func(ctx context.Context, job *Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, zerolog.Nop())
	pool.Start()

	require.NoError(t, pool.Enqueue(&Job{ID: "running"}))
	<-started
	require.NoError(t, pool.Enqueue(&Job{ID: "queued"}))

	err := pool.Enqueue(&Job{ID: "rejected"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), pool.Stats().Rejected)

	close(release)
	pool.Stop()
	assert.ErrorIs(t, pool.Enqueue(&Job{ID: "late"}), ErrPoolStopped)
}

func TestPool_RetriesThenFails(t *testing.T) {
	var attempts atomic.Int32
	pool := NewPool(1, 1, time.Second, func(ctx context.Context, job *Job) error {
		attempts.Add(1)
		return errors.New("upstream down")
	}, zerolog.Nop())
	pool.Start()

	require.NoError(t, pool.Enqueue(&Job{ID: "j", MaxRetries: 2}))
	pool.Stop()

	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int64(1), pool.Stats().Failed)
}

func TestRefresher_Coalesces(t *testing.T) {
	q := &recordingQueue{}
	r := NewRefresher(newMarkerRepo(t), q, 5*time.Minute, zerolog.Nop())

	var wg sync.WaitGroup
	var queued atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Request("110022") {
				queued.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), queued.Load())
	require.Len(t, q.jobs, 1)
	assert.Equal(t, "110022", q.jobs[0].FundCode)
	assert.Equal(t, JobTypeRefreshHoldings, q.jobs[0].Type)
	assert.NotEmpty(t, q.jobs[0].ID)

	// A different fund is independent
	assert.True(t, r.Request("161725"))
}

func TestRefresher_QueueFullReleasesMarker(t *testing.T) {
	q := &recordingQueue{err: ErrQueueFull}
	r := NewRefresher(newMarkerRepo(t), q, 5*time.Minute, zerolog.Nop())

	assert.False(t, r.Request("110022"))

	q.err = nil
	jobID, queued, err := r.Submit("110022")
	require.NoError(t, err)
	assert.True(t, queued)
	assert.NotEmpty(t, jobID)
}

type mockHoldings struct {
	mock.Mock
}

func (m *mockHoldings) Refresh(ctx context.Context, fundCode string) (*holdings.Snapshot, error) {
	args := m.Called(ctx, fundCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*holdings.Snapshot), args.Error(1)
}

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Invalidate(fundCode string) {
	m.Called(fundCode)
}

func (m *mockDetector) Resolve(fundCode string, fundHoldings []holdings.Holding, targetETF string) (*relationships.Relationship, error) {
	args := m.Called(fundCode, fundHoldings, targetETF)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*relationships.Relationship), args.Error(1)
}

func TestRefreshHandler(t *testing.T) {
	snapshot := &holdings.Snapshot{
		FundCode:   "012345",
		ReportDate: "2024-09-30",
		TargetETF:  "510300",
		Holdings:   []holdings.Holding{{FundCode: "012345", StockCode: "510300", Weight: 92}},
	}

	h := new(mockHoldings)
	h.On("Refresh", mock.Anything, "012345").Return(snapshot, nil)

	d := new(mockDetector)
	d.On("Invalidate", "012345").Return()
	d.On("Resolve", "012345", snapshot.Holdings, "510300").
		Return(&relationships.Relationship{SubCode: "012345", ParentCode: "510300", Type: relationships.RelationFeeder, Ratio: 0.95}, nil)

	handler := NewRefreshHandler(h, d, zerolog.Nop())
	require.NoError(t, handler(context.Background(), &Job{FundCode: "012345"}))

	h.AssertExpectations(t)
	d.AssertExpectations(t)
}

func TestRefreshHandler_RefreshError(t *testing.T) {
	h := new(mockHoldings)
	h.On("Refresh", mock.Anything, "012345").Return(nil, errors.New("timeout"))
	d := new(mockDetector)

	handler := NewRefreshHandler(h, d, zerolog.Nop())
	assert.Error(t, handler(context.Background(), &Job{FundCode: "012345"}))
	d.AssertNotCalled(t, "Invalidate", mock.Anything)
}
