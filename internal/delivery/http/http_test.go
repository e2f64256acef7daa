package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/model"
	"portfolio-tracker/internal/reference"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/internal/service"
	"portfolio-tracker/pkg/common"
	"portfolio-tracker/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "0b6f7c52-9d4e-4a43-8a53-3f1c6a0d2b11"

type memoryStore struct {
	docs map[string]model.Document
}

func (s *memoryStore) Load(ctx context.Context, userID string) (*model.Document, error) {
	doc, ok := s.docs[userID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *memoryStore) Save(ctx context.Context, userID string, doc model.Document) service.SaveResult {
	s.docs[userID] = doc
	return service.SaveResult{Success: true}
}

func (s *memoryStore) Subscribe(ctx context.Context, userID string, onChange func(model.Document)) (repository.Subscription, error) {
	return nil, repository.ErrNoQuote
}

type stubQuotes struct {
	prices map[string]float64
}

func (q *stubQuotes) FetchLatestClose(ctx context.Context, ticker string) (float64, error) {
	if p, ok := q.prices[ticker]; ok {
		return p, nil
	}
	return 0, repository.ErrNoQuote
}

func (q *stubQuotes) LastKnownClose(ticker string) (float64, bool) {
	p, ok := q.prices[ticker]
	return p, ok
}

func (q *stubQuotes) GetCircuitLimit(ctx context.Context, ticker string) (*dto.CircuitLimit, error) {
	p, ok := q.prices[ticker]
	if !ok {
		return nil, repository.ErrNoQuote
	}
	return &dto.CircuitLimit{Ticker: ticker, Upper: 10, Lower: -10, UpperPrice: p * 1.1, LowerPrice: p * 0.9, LastPrice: p}, nil
}

func (q *stubQuotes) GetHolidays(ctx context.Context) ([]dto.Holiday, error) { return nil, nil }

func (q *stubQuotes) RefreshHolidays(ctx context.Context) ([]dto.Holiday, error) { return nil, nil }

type stubScheduler struct{}

func (stubScheduler) Start(ctx context.Context) error { return nil }

func (stubScheduler) Stop() context.Context { return context.Background() }

func (stubScheduler) NextRuns() map[string]time.Time {
	return map[string]time.Time{"holiday_refresh": time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC)}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*echo.Echo, *memoryStore) {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()
	cfg := &config.Config{
		Market: config.Market{TimeZone: "Asia/Kolkata", Open: "09:15", Close: "15:30"},
	}
	quotes := &stubQuotes{prices: map[string]float64{"TCS": 110, "HDFCBANK": 1500}}
	resolver := reference.NewResolver(reference.NewTable([]reference.Entry{
		{Symbol: "TCS", Industry: "Computers - Software & Consulting", Sector: "Information Technology"},
		{Symbol: "HDFCBANK", Industry: "Private Sector Bank", Sector: "Financial Services"},
		{Symbol: "HDFCLIFE", Industry: "Life Insurance", Sector: "Financial Services"},
	}))

	market, err := service.NewMarketService(cfg, log, quotes)
	require.NoError(t, err)
	store := &memoryStore{docs: map[string]model.Document{}}
	portfolio := service.NewPortfolioService(log, store, resolver, time.UTC)
	reconciler := service.NewReconcilerService(cfg, log, quotes, portfolio, market)

	svc := &service.Service{
		MarketService:     market,
		StoreService:      store,
		PortfolioService:  portfolio,
		ReconcilerService: reconciler,
		TickerService:     service.NewTickerService(log, resolver, quotes),
		SchedulerService:  stubScheduler{},
		ReconcilerManager: service.NewReconcilerManager(ctx, log, reconciler, nil),
	}

	e := echo.New()
	NewHttpAPIHandler(ctx, e, goValidator.New(), svc, log).SetupRoutes()
	return e, store
}

func doRequest(t *testing.T, e *echo.Echo, method, target, userID, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set(common.HEADER_USER_ID, userID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func decodeState(t *testing.T, resp envelope) dto.PortfolioState {
	t.Helper()
	var state dto.PortfolioState
	require.NoError(t, json.Unmarshal(resp.Data, &state))
	return state
}

func TestGetPortfolio(t *testing.T) {
	e, _ := newTestServer(t)

	code, resp := doRequest(t, e, http.MethodGet, "/api/v1/portfolio", "", "")
	assert.Equal(t, http.StatusOK, code)
	state := decodeState(t, resp)
	assert.True(t, state.Anonymous)
	assert.Len(t, state.Stocks, 5)

	code, resp = doRequest(t, e, http.MethodGet, "/api/v1/portfolio", "not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	code, resp = doRequest(t, e, http.MethodGet, "/api/v1/portfolio", testUserID, "")
	assert.Equal(t, http.StatusOK, code)
	state = decodeState(t, resp)
	assert.False(t, state.Anonymous)
	assert.Empty(t, state.Stocks)
}

func TestEditStock(t *testing.T) {
	e, store := newTestServer(t)

	code, _ := doRequest(t, e, http.MethodPost, "/api/v1/portfolio/stocks", testUserID, "")
	require.Equal(t, http.StatusCreated, code)

	code, resp := doRequest(t, e, http.MethodPatch, "/api/v1/portfolio/stocks/0", testUserID, `{"field":"ticker","value":"tc"}`)
	require.Equal(t, http.StatusOK, code)
	state := decodeState(t, resp)
	assert.Equal(t, "TCS", state.Stocks[0].Ticker)
	assert.Equal(t, "Computers - Software & Consulting", state.Stocks[0].Industry)

	code, resp = doRequest(t, e, http.MethodPatch, "/api/v1/portfolio/stocks/0", testUserID, `{"field":"buyPrice","value":"100"}`)
	require.Equal(t, http.StatusOK, code)
	state = decodeState(t, resp)
	require.NotNil(t, state.Stocks[0].ReturnPercent)
	assert.InDelta(t, 10.0, *state.Stocks[0].ReturnPercent, 1e-9)
	assert.Equal(t, 110.0, state.Stocks[0].LastPrice)
	assert.Equal(t, 110.0, store.docs[testUserID].Stocks[0].LastPrice)

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{name: "derived field", target: "/api/v1/portfolio/stocks/0", body: `{"field":"returnPercent","value":"5"}`, want: http.StatusBadRequest},
		{name: "unknown field", target: "/api/v1/portfolio/stocks/0", body: `{"field":"notes","value":"x"}`, want: http.StatusBadRequest},
		{name: "missing field", target: "/api/v1/portfolio/stocks/0", body: `{"value":"x"}`, want: http.StatusBadRequest},
		{name: "index out of range", target: "/api/v1/portfolio/stocks/9", body: `{"field":"setup","value":"ITB"}`, want: http.StatusNotFound},
		{name: "non numeric index", target: "/api/v1/portfolio/stocks/abc", body: `{"field":"setup","value":"ITB"}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := doRequest(t, e, http.MethodPatch, tt.target, testUserID, tt.body)
			assert.Equal(t, tt.want, code)
		})
	}

	code, resp = doRequest(t, e, http.MethodDelete, "/api/v1/portfolio/stocks/0", testUserID, "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeState(t, resp).Stocks)
}

func TestUpdateSettings(t *testing.T) {
	e, _ := newTestServer(t)

	code, _ := doRequest(t, e, http.MethodPut, "/api/v1/portfolio/settings", testUserID, `{"date":"15-03-2024"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, e, http.MethodPut, "/api/v1/portfolio/settings", testUserID, `{"maxRiskPerEntry":250}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := doRequest(t, e, http.MethodPut, "/api/v1/portfolio/settings", testUserID, `{"title":"Swing book","date":"2024-03-15"}`)
	require.Equal(t, http.StatusOK, code)
	state := decodeState(t, resp)
	assert.Equal(t, "Swing book", state.Settings.Title)
	assert.Equal(t, "2024-03-15", state.Settings.Date)
}

func TestSummaryAndDistribution(t *testing.T) {
	e, _ := newTestServer(t)

	code, resp := doRequest(t, e, http.MethodGet, "/api/v1/portfolio/summary?group_by=industry", "", "")
	require.Equal(t, http.StatusOK, code)
	var summary dto.Summary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, 5, summary.UniqueHoldings)
	assert.Equal(t, 1.32, summary.TotalOpenRisk)
	assert.Equal(t, 72.0, summary.TotalInvested)
	assert.Equal(t, dto.GroupByIndustry, summary.GroupBy)

	code, resp = doRequest(t, e, http.MethodGet, "/api/v1/portfolio/distribution", "", "")
	require.Equal(t, http.StatusOK, code)
	var items []dto.DistributionItem
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Other", items[0].Name)
	assert.Equal(t, 100.0, items[0].Percentage)

	code, _ = doRequest(t, e, http.MethodGet, "/api/v1/portfolio/summary?group_by=cap", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReconcile(t *testing.T) {
	e, _ := newTestServer(t)

	code, resp := doRequest(t, e, http.MethodPost, "/api/v1/portfolio/reconcile", "", "")
	require.Equal(t, http.StatusOK, code)
	var result dto.ReconcileResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 5, result.Eligible)
	assert.Equal(t, 5, result.Failed)
	assert.Zero(t, result.Applied)

	code, resp = doRequest(t, e, http.MethodGet, "/api/v1/portfolio/reconcile", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"state":"idle"}`, string(resp.Data))
}

func TestTickers(t *testing.T) {
	e, _ := newTestServer(t)

	code, resp := doRequest(t, e, http.MethodGet, "/api/v1/tickers/suggest?q=hdfc", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["HDFCBANK","HDFCLIFE"]`, string(resp.Data))

	code, _ = doRequest(t, e, http.MethodGet, "/api/v1/tickers/suggest", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = doRequest(t, e, http.MethodGet, "/api/v1/tickers/tcs", "", "")
	require.Equal(t, http.StatusOK, code)
	var info dto.TickerInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.True(t, info.Mapped)
	assert.Equal(t, "Information Technology", info.Sector)
	require.NotNil(t, info.CircuitLimit)
	assert.Equal(t, 110.0, info.CircuitLimit.LastPrice)

	code, resp = doRequest(t, e, http.MethodGet, "/api/v1/tickers/zzz", "", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.False(t, info.Mapped)
	assert.Equal(t, "Other", info.Industry)
}

func TestMarketStatus(t *testing.T) {
	e, _ := newTestServer(t)

	code, resp := doRequest(t, e, http.MethodGet, "/api/v1/market/status", "", "")
	require.Equal(t, http.StatusOK, code)
	var status dto.MarketStatus
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.NotEmpty(t, status.Now)
	assert.Equal(t, time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC), status.NextRuns["holiday_refresh"].UTC())
}
