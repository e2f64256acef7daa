package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/model"
	"portfolio-tracker/internal/reference"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/pkg/logger"
)

const testUserID = "0b6f7c52-9d4e-4a43-8a53-3f1c6a0d2b11"

var errProvider = errors.New("provider unavailable")

type fakeSubscription struct{ unsubscribed bool }

func (s *fakeSubscription) Unsubscribe() { s.unsubscribed = true }

type fakeStore struct {
	mu       sync.Mutex
	doc      *model.Document
	loadErr  error
	saveErr  error
	saved    []model.Document
	onChange func(model.Document)
	sub      *fakeSubscription
	loads    int
	onSave   func()
}

func (f *fakeStore) Load(ctx context.Context, userID string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.doc == nil {
		return nil, nil
	}
	doc := f.doc.Clone()
	return &doc, nil
}

func (f *fakeStore) setLoadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

func (f *fakeStore) Save(ctx context.Context, userID string, doc model.Document) SaveResult {
	if f.onSave != nil {
		f.onSave()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return SaveResult{Err: f.saveErr}
	}
	f.saved = append(f.saved, doc)
	return SaveResult{Success: true}
}

func (f *fakeStore) Subscribe(ctx context.Context, userID string, onChange func(model.Document)) (repository.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = onChange
	f.sub = &fakeSubscription{}
	return f.sub, nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeQuoteRepo struct {
	mu         sync.Mutex
	prices     map[string]float64
	closes     map[string]float64
	circuitErr error
	holidays   []dto.Holiday
	calls      []string
	onFetch    func(ticker string)
}

func (f *fakeQuoteRepo) FetchLatestClose(ctx context.Context, ticker string) (float64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	hook := f.onFetch
	price, ok := f.prices[ticker]
	f.mu.Unlock()
	if hook != nil {
		hook(ticker)
	}
	if !ok {
		return 0, errProvider
	}
	f.mu.Lock()
	if f.closes == nil {
		f.closes = make(map[string]float64)
	}
	f.closes[ticker] = price
	f.mu.Unlock()
	return price, nil
}

func (f *fakeQuoteRepo) LastKnownClose(ticker string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.closes[ticker]
	return price, ok
}

func (f *fakeQuoteRepo) GetCircuitLimit(ctx context.Context, ticker string) (*dto.CircuitLimit, error) {
	f.mu.Lock()
	price, ok := f.prices[ticker]
	circuitErr := f.circuitErr
	f.mu.Unlock()
	if circuitErr != nil {
		return nil, circuitErr
	}
	if !ok {
		return nil, repository.ErrNoQuote
	}
	return &dto.CircuitLimit{Ticker: ticker, Upper: 5, Lower: -5, UpperPrice: price * 1.05, LowerPrice: price * 0.95, LastPrice: price}, nil
}

func (f *fakeQuoteRepo) GetHolidays(ctx context.Context) ([]dto.Holiday, error) {
	return f.holidays, nil
}

func (f *fakeQuoteRepo) RefreshHolidays(ctx context.Context) ([]dto.Holiday, error) {
	return f.holidays, nil
}

func (f *fakeQuoteRepo) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeMarket struct {
	mu   sync.Mutex
	live []bool
}

// IsLive pops the next answer and repeats the last one when exhausted.
func (f *fakeMarket) IsLive(ctx context.Context, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.live) == 0 {
		return false
	}
	v := f.live[0]
	if len(f.live) > 1 {
		f.live = f.live[1:]
	}
	return v
}

func (f *fakeMarket) Banner(ctx context.Context, now time.Time) string { return "" }
func (f *fakeMarket) Status(ctx context.Context) dto.MarketStatus      { return dto.MarketStatus{} }
func (f *fakeMarket) RefreshHolidays(ctx context.Context) error        { return nil }
func (f *fakeMarket) Location() *time.Location                         { return time.UTC }

func testConfig() *config.Config {
	return &config.Config{
		Reconciler: config.Reconciler{Interval: time.Minute, FetchDelay: 1500 * time.Millisecond},
		Market: config.Market{
			TimeZone: "Asia/Kolkata",
			Open:     "09:15",
			Close:    "15:30",
		},
	}
}

func testResolver() *reference.Resolver {
	return reference.NewResolver(reference.NewTable([]reference.Entry{
		{Symbol: "TCS", Industry: "Computers - Software & Consulting", Sector: "Information Technology"},
		{Symbol: "INFY", Industry: "Computers - Software & Consulting", Sector: "Information Technology"},
		{Symbol: "HDFCBANK", Industry: "Private Sector Bank", Sector: "Financial Services"},
		{Symbol: "BAJAJ-AUTO", Industry: "2/3 Wheelers", Sector: "Automobile and Auto Components"},
	}))
}

var fixedNow = time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)

func newTestPortfolio(store StoreService) *portfolioService {
	svc := NewPortfolioService(logger.NewNop(), store, testResolver(), time.UTC).(*portfolioService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func floatPtr(v float64) *float64 { return &v }
