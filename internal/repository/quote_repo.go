package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/internal/dto"
	"portfolio-tracker/pkg/cache"
	"portfolio-tracker/pkg/common"
	"portfolio-tracker/pkg/httpclient"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/pkg/ratelimit"
	"portfolio-tracker/pkg/utils"

	"golang.org/x/time/rate"
)

// ErrNoQuote means the provider answered but had no usable price.
var ErrNoQuote = errors.New("no quote available")

type QuoteRepository interface {
	// FetchLatestClose returns the most recent daily close of ticker.
	FetchLatestClose(ctx context.Context, ticker string) (float64, error)
	// LastKnownClose returns the last close fetched for ticker, if cached.
	LastKnownClose(ticker string) (float64, bool)
	GetCircuitLimit(ctx context.Context, ticker string) (*dto.CircuitLimit, error)
	GetHolidays(ctx context.Context) ([]dto.Holiday, error)
	// RefreshHolidays drops the cached calendar and fetches it again.
	RefreshHolidays(ctx context.Context) ([]dto.Holiday, error)
}

type quoteRepository struct {
	priceClient  httpclient.HTTPClient
	searchClient httpclient.HTTPClient
	cfg          config.Quote
	loc          *time.Location
	cache        cache.Cache
	logger       *logger.Logger
	limiters     *ratelimit.LimiterStore
	now          func() time.Time
}

var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "en-US,en;q=0.9",
}

func NewQuoteRepository(cfg *config.Config, inmemoryCache cache.Cache, log *logger.Logger) QuoteRepository {
	perMinute := cfg.Quote.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	// The price and search hosts are budgeted separately.
	limiters := ratelimit.NewLimiterStore(rate.Every(time.Minute/time.Duration(perMinute)), 1)

	return &quoteRepository{
		priceClient:  httpclient.New(cfg.Quote.BaseURL, cfg.Quote.Timeout, defaultHeaders),
		searchClient: httpclient.New(cfg.Quote.SearchBaseURL, cfg.Quote.Timeout, defaultHeaders),
		cfg:          cfg.Quote,
		loc:          utils.LoadLocation(cfg.Market.TimeZone),
		cache:        inmemoryCache,
		logger:       log,
		limiters:     limiters,
		now:          time.Now,
	}
}

const (
	limitKeyPrice  = "price"
	limitKeySearch = "search"
)

func (r *quoteRepository) wait(ctx context.Context, key string) error {
	throttled, err := r.limiters.Wait(ctx, key)
	if throttled {
		r.logger.DebugContext(ctx, "Quote provider request limit reached, waited",
			logger.StringField("limit_key", key),
			logger.IntField("max_request_per_minute", r.cfg.MaxRequestPerMinute),
		)
	}
	return err
}

func (r *quoteRepository) FetchLatestClose(ctx context.Context, ticker string) (float64, error) {
	symbol := utils.NormalizeTicker(ticker)
	if symbol == "" {
		return 0, fmt.Errorf("%w: empty ticker", ErrNoQuote)
	}
	if err := r.wait(ctx, limitKeyPrice); err != nil {
		return 0, err
	}

	queryParams := map[string]string{
		"candleInterval": "1d",
		"from":           r.cfg.HistoryFrom,
		"to":             r.now().In(r.loc).Format(utils.ISODateLayout),
		"securities":     fmt.Sprintf("%s:%s", common.SEGMENT_EQ, symbol),
	}

	var ticksResp dto.PriceTicksResponse
	resp, err := r.priceClient.Get(ctx, "/v2/api/equity/priceticks", queryParams, nil, &ticksResp)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price ticks for %s: %w", symbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.WarnContext(ctx, "Quote provider returned Non-OK status",
			logger.StringField("ticker", symbol),
			logger.IntField("status_code", resp.StatusCode),
		)
		return 0, fmt.Errorf("price ticks returned status %d for %s", resp.StatusCode, symbol)
	}

	price, ok := ticksResp.LatestClose(symbol)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}

	r.cache.Set(fmt.Sprintf(common.KEY_LAST_PRICE, symbol), price, 0)
	return price, nil
}

func (r *quoteRepository) LastKnownClose(ticker string) (float64, bool) {
	return cache.GetTyped[float64](r.cache, fmt.Sprintf(common.KEY_LAST_PRICE, utils.NormalizeTicker(ticker)))
}

func (r *quoteRepository) GetCircuitLimit(ctx context.Context, ticker string) (*dto.CircuitLimit, error) {
	symbol := utils.NormalizeTicker(ticker)
	cacheKey := fmt.Sprintf(common.KEY_CIRCUIT_LIMIT, symbol)
	if limit, ok := cache.GetTyped[*dto.CircuitLimit](r.cache, cacheKey); ok {
		return limit, nil
	}
	if err := r.wait(ctx, limitKeySearch); err != nil {
		return nil, err
	}

	queryParams := map[string]string{
		"q":     symbol,
		"limit": "1",
		"skip":  "0",
	}

	var searchResp dto.SearchResponse
	resp, err := r.searchClient.Get(ctx, "/v1/api/search", queryParams, nil, &searchResp)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", symbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d for %s", resp.StatusCode, symbol)
	}
	if len(searchResp.Stocks) == 0 {
		return nil, fmt.Errorf("%w: no search result for %s", ErrNoQuote, symbol)
	}

	stock := searchResp.Stocks[0]
	if stock.UpperCircuit == nil || stock.LowerCircuit == nil {
		return nil, fmt.Errorf("%w: no circuit limits for %s", ErrNoQuote, symbol)
	}

	limit := &dto.CircuitLimit{
		Ticker:     symbol,
		Upper:      dto.CircuitPercentage(stock.LastPrice, *stock.UpperCircuit),
		Lower:      dto.CircuitPercentage(stock.LastPrice, *stock.LowerCircuit),
		UpperPrice: *stock.UpperCircuit,
		LowerPrice: *stock.LowerCircuit,
		LastPrice:  stock.LastPrice,
	}
	r.cache.Set(cacheKey, limit, r.cfg.CircuitCacheTTL)
	return limit, nil
}

func (r *quoteRepository) GetHolidays(ctx context.Context) ([]dto.Holiday, error) {
	if holidays, ok := cache.GetTyped[[]dto.Holiday](r.cache, common.KEY_HOLIDAYS); ok {
		return holidays, nil
	}
	if err := r.wait(ctx, limitKeyPrice); err != nil {
		return nil, err
	}

	var holidaysResp dto.HolidaysResponse
	resp, err := r.priceClient.Get(ctx, "/v2/api/equity/holidays", nil, nil, &holidaysResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holidays: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holidays returned status %d", resp.StatusCode)
	}

	holidays := holidaysResp.Data
	if holidays == nil {
		holidays = []dto.Holiday{}
	}
	r.cache.Set(common.KEY_HOLIDAYS, holidays, r.cfg.HolidayCacheTTL)
	return holidays, nil
}

func (r *quoteRepository) RefreshHolidays(ctx context.Context) ([]dto.Holiday, error) {
	r.cache.Delete(common.KEY_HOLIDAYS)
	return r.GetHolidays(ctx)
}
