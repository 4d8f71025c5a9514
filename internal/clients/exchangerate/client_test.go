package exchangerate

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/fundval/internal/clientdata"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*sql.DB, *clientdata.Repository) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE exchangerate (pair TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL)`)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, clientdata.NewRepository(db)
}

func TestGetRate_SameCurrency(t *testing.T) {
	client := NewClient(nil, time.Second, zerolog.Nop())
	rate, err := client.GetRate(context.Background(), "CNY", "CNY")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
}

func TestGetRate_FetchAndCache(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/USD", r.URL.Path)
		w.Write([]byte(`{"base":"USD","rates":{"CNY":7.1234,"HKD":7.8}}`))
	}))
	defer server.Close()

	_, repo := setupCache(t)
	client := NewClient(repo, time.Second, zerolog.Nop())
	client.SetBaseURL(server.URL)

	rate, err := client.GetRate(context.Background(), "USD", "CNY")
	require.NoError(t, err)
	assert.Equal(t, 7.1234, rate)

	rate, err = client.GetRate(context.Background(), "USD", "CNY")
	require.NoError(t, err)
	assert.Equal(t, 7.1234, rate)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetRate_StaleFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	db, repo := setupCache(t)
	_, err := db.Exec("INSERT INTO exchangerate (pair, data, expires_at) VALUES (?, ?, ?)",
		"HKD:CNY", `{"rate":0.91}`, time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)

	client := NewClient(repo, time.Second, zerolog.Nop())
	client.SetBaseURL(server.URL)

	rate, err := client.GetRate(context.Background(), "HKD", "CNY")
	require.NoError(t, err)
	assert.Equal(t, 0.91, rate)
}

func TestGetRate_ErrorWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"EUR":0.9}}`))
	}))
	defer server.Close()

	client := NewClient(nil, time.Second, zerolog.Nop())
	client.SetBaseURL(server.URL)

	_, err := client.GetRate(context.Background(), "JPY", "CNY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate not found")
}
