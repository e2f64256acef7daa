package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/pkg/cache"
	"portfolio-tracker/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQuoteRepo(t *testing.T, handler http.HandlerFunc) *quoteRepository {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Quote: config.Quote{
			BaseURL:             srv.URL,
			SearchBaseURL:       srv.URL,
			Timeout:             2 * time.Second,
			MaxRequestPerMinute: 60000,
			HistoryFrom:         "2023-11-09T09:15:59+05:30",
			CircuitCacheTTL:     5 * time.Minute,
			HolidayCacheTTL:     time.Hour,
		},
		Market: config.Market{TimeZone: "Asia/Kolkata"},
	}
	repo := NewQuoteRepository(cfg, cache.NewCache(time.Minute, time.Minute), logger.NewNop()).(*quoteRepository)
	repo.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return repo
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestQuoteRepository_FetchLatestClose(t *testing.T) {
	repo := newTestQuoteRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/api/equity/priceticks", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1d", q.Get("candleInterval"))
		assert.Equal(t, "EQ:TCS", q.Get("securities"))
		assert.Equal(t, "2024-03-15", q.Get("to"))
		assert.Equal(t, "2023-11-09T09:15:59+05:30", q.Get("from"))

		writeJSON(w, http.StatusOK, `{"data":{"ticks":{"TCS":[
			["2024-03-13T00:00:00+05:30",3900,3950,3880,3920.5,1000],
			["2024-03-14T00:00:00+05:30",3920,3990,3900,3975.25,1200]
		]}}}`)
	})

	price, err := repo.FetchLatestClose(context.Background(), "tcs.ns")
	require.NoError(t, err)
	assert.Equal(t, 3975.25, price)

	cached, ok := repo.LastKnownClose("TCS")
	assert.True(t, ok)
	assert.Equal(t, 3975.25, cached)
}

func TestQuoteRepository_FetchLatestClose_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantNoQ bool
	}{
		{name: "empty ticks", status: http.StatusOK, body: `{"data":{"ticks":{"TCS":[]}}}`, wantNoQ: true},
		{name: "other ticker only", status: http.StatusOK, body: `{"data":{"ticks":{"INFY":[["t",1,1,1,1,1]]}}}`, wantNoQ: true},
		{name: "short tick", status: http.StatusOK, body: `{"data":{"ticks":{"TCS":[["t",1,2]]}}}`, wantNoQ: true},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "not found", status: http.StatusNotFound, body: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestQuoteRepo(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			price, err := repo.FetchLatestClose(context.Background(), "TCS")
			assert.Error(t, err)
			assert.Equal(t, 0.0, price)
			if tt.wantNoQ {
				assert.ErrorIs(t, err, ErrNoQuote)
			}
			_, ok := repo.LastKnownClose("TCS")
			assert.False(t, ok)
		})
	}
}

func TestQuoteRepository_FetchLatestClose_Cancelled(t *testing.T) {
	repo := newTestQuoteRepo(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":{"ticks":{"TCS":[["t",1,1,1,10,1]]}}}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.FetchLatestClose(ctx, "TCS")
	assert.Error(t, err)
}

func TestQuoteRepository_GetCircuitLimit(t *testing.T) {
	var calls atomic.Int32
	repo := newTestQuoteRepo(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/api/search", r.URL.Path)
		assert.Equal(t, "INFY", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, `{"stocks":[{"symbol":"INFY","name":"Infosys","last_price":1500,"upper_circuit":1650,"lower_circuit":1350}],"indices":[],"tools":[]}`)
	})

	limit, err := repo.GetCircuitLimit(context.Background(), "infy.NS")
	require.NoError(t, err)
	assert.Equal(t, "INFY", limit.Ticker)
	assert.InDelta(t, 10.0, limit.Upper, 1e-9)
	assert.InDelta(t, -10.0, limit.Lower, 1e-9)
	assert.Equal(t, 1650.0, limit.UpperPrice)
	assert.Equal(t, 1350.0, limit.LowerPrice)

	// Second lookup is served from cache.
	_, err = repo.GetCircuitLimit(context.Background(), "INFY")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQuoteRepository_GetCircuitLimit_Missing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no stocks", body: `{"stocks":[]}`},
		{name: "no circuits", body: `{"stocks":[{"symbol":"INFY","last_price":1500}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestQuoteRepo(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			limit, err := repo.GetCircuitLimit(context.Background(), "INFY")
			assert.ErrorIs(t, err, ErrNoQuote)
			assert.Nil(t, limit)
		})
	}
}

func TestQuoteRepository_GetHolidays(t *testing.T) {
	var calls atomic.Int32
	repo := newTestQuoteRepo(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v2/api/equity/holidays", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"data":[{"holidayDate":"2024-03-25","purpose":"Holi"},{"holidayDate":"2024-03-29","purpose":"Good Friday"}]}`)
	})

	holidays, err := repo.GetHolidays(context.Background())
	require.NoError(t, err)
	require.Len(t, holidays, 2)
	assert.Equal(t, "Holi", holidays[0].Purpose)
	assert.Equal(t, "2024-03-29", holidays[1].HolidayDate)

	_, err = repo.GetHolidays(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = repo.RefreshHolidays(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
