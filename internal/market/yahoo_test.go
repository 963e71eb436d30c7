package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{"chart":{"result":[{
	"meta":{"symbol":"AAPL","currency":"USD","exchangeName":"NMS","longName":"Apple Inc.",
		"regularMarketPrice":189.5,"chartPreviousClose":170.0,"regularMarketVolume":51234567,
		"fiftyTwoWeekHigh":199.62,"fiftyTwoWeekLow":164.08},
	"timestamp":[1714564800,1714651200,1714737600],
	"events":{"dividends":{"1715347800":{"amount":0.25,"date":1715347800},"1707489000":{"amount":0.24,"date":1707489000}}},
	"indicators":{"quote":[{
		"open":[169.58,172.51,null],
		"high":[172.71,173.42,null],
		"low":[169.11,170.89,null],
		"close":[169.3,173.03,null],
		"volume":[50383100,94214900,null]}]}
}],"error":null}}`

func TestYahooChart(t *testing.T) {
	var gotPath, gotRange, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	chart, found, err := NewYahoo(srv.URL, time.Second).Chart(context.Background(), "AAPL", "1mo")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1mo", gotRange)
	assert.NotEmpty(t, gotUA)

	require.Len(t, chart.Bars, 2, "null close rows are skipped")
	assert.True(t, chart.Bars[1].Close.Equal(decimal.RequireFromString("173.03")))
	assert.Equal(t, int64(94214900), chart.Bars[1].Volume)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), chart.Bars[1].Date)

	q := chart.Quote
	assert.Equal(t, "Apple Inc.", q.Name)
	assert.True(t, q.PreviousClose.Equal(decimal.RequireFromString("169.3")))
	assert.InDelta(t, 11.93, q.ChangePercent, 0.001)

	require.Len(t, chart.Dividends, 2)
	assert.True(t, chart.Dividends[0].Date.Before(chart.Dividends[1].Date))
	assert.True(t, chart.Dividends[1].Amount.Equal(decimal.RequireFromString("0.25")))
}

func TestYahooNotFoundIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, found, err := NewYahoo(srv.URL, time.Second).Chart(context.Background(), "ZZZZ", "1mo")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestYahooEmptyResultIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	_, found, err := NewYahoo(srv.URL, time.Second).Chart(context.Background(), "ZZZZ", "1mo")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestYahooServerErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, found, err := NewYahoo(srv.URL, time.Second).Chart(context.Background(), "AAPL", "1mo")
	require.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "status 502")
}

func TestYahooTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, _, err := NewYahoo(srv.URL, 50*time.Millisecond).Chart(context.Background(), "AAPL", "1mo")
	assert.Error(t, err)
}
