package tencent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// record builds a feed record with the given name, code, price, prev close and change.
func record(id, name, code, price, prevClose, changePct string) string {
	fields := make([]string, 50)
	fields[0] = "1"
	fields[fieldName] = name
	fields[fieldCode] = code
	fields[fieldPrice] = price
	fields[fieldPrevClose] = prevClose
	fields[fieldChangePct] = changePct
	return fmt.Sprintf(`v_%s="%s";`, id, strings.Join(fields, "~"))
}

func TestParseQuotes(t *testing.T) {
	payload := strings.Join([]string{
		record("sh600000", "PFYH", "600000", "10.50", "10.40", "0.96"),
		record("hk00700", "TENCENT", "00700", "380.20", "375.00", "1.39"),
		record("sz000001", "PAYH", "000001", "--", "11.00", "0.00"),
		`v_pv_none_match="1";`,
		`v_sz300750="1~short~300750";`,
		`garbage`,
	}, "\n")

	quotes := ParseQuotes(payload)
	require.Len(t, quotes, 2)

	q := quotes["sh600000"]
	assert.Equal(t, "sh600000", q.ID)
	assert.Equal(t, "600000", q.Code)
	assert.Equal(t, "PFYH", q.Name)
	assert.Equal(t, 10.50, q.Price)
	assert.Equal(t, 10.40, q.PrevClose)
	assert.Equal(t, 0.96, q.ChangePct)

	assert.Equal(t, 1.39, quotes["hk00700"].ChangePct)
	assert.NotContains(t, quotes, "sz000001")
	assert.NotContains(t, quotes, "sz300750")
}

func TestParseQuotes_Empty(t *testing.T) {
	assert.Empty(t, ParseQuotes(""))
	assert.Empty(t, ParseQuotes(`v_pv_none_match="1";`))
}

func TestBatchQuote(t *testing.T) {
	name, err := simplifiedchinese.GBK.NewEncoder().String("浦发银行")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/q=sh600000,sz000001", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(record("sh600000", name, "600000", "10.50", "10.40", "0.96")))
		w.Write([]byte(record("sz000001", "PAYH", "000001", "11.10", "11.00", "0.91")))
	}))
	defer server.Close()

	client := NewClient(time.Second, zerolog.Nop())
	client.SetBaseURL(server.URL)

	quotes, err := client.BatchQuote(context.Background(), []string{"sh600000", "sz000001"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "浦发银行", quotes["sh600000"].Name)
	assert.Equal(t, 0.91, quotes["sz000001"].ChangePct)
}

func TestBatchQuote_TooMany(t *testing.T) {
	client := NewClient(time.Second, zerolog.Nop())
	ids := make([]string, MaxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("sh%06d", 600000+i)
	}

	_, err := client.BatchQuote(context.Background(), ids)
	assert.Error(t, err)
}

func TestBatchQuote_NoIDs(t *testing.T) {
	client := NewClient(time.Second, zerolog.Nop())
	client.SetBaseURL("http://127.0.0.1:1")

	quotes, err := client.BatchQuote(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestBatchQuote_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(time.Second, zerolog.Nop())
	client.SetBaseURL(server.URL)

	_, err := client.BatchQuote(context.Background(), []string{"sh600000"})
	assert.Error(t, err)
}
