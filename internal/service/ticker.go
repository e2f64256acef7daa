package service

import (
	"context"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/reference"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/pkg/utils"
)

type TickerService interface {
	Suggest(prefix string) []string
	// Info resolves labels for ticker. The circuit band and price are best
	// effort; without a band the last close seen by reconciliation is used.
	Info(ctx context.Context, ticker string) dto.TickerInfo
}

type tickerService struct {
	log       *logger.Logger
	resolver  *reference.Resolver
	quoteRepo repository.QuoteRepository
}

func NewTickerService(log *logger.Logger, resolver *reference.Resolver, quoteRepo repository.QuoteRepository) TickerService {
	return &tickerService{log: log, resolver: resolver, quoteRepo: quoteRepo}
}

func (s *tickerService) Suggest(prefix string) []string {
	return s.resolver.Suggest(prefix)
}

func (s *tickerService) Info(ctx context.Context, ticker string) dto.TickerInfo {
	ticker = utils.NormalizeTicker(ticker)
	info := dto.TickerInfo{
		Ticker:   ticker,
		Industry: s.resolver.Resolve(ticker),
	}
	if entry, ok := s.resolver.Lookup(ticker); ok {
		info.Mapped = true
		info.Sector = entry.Sector
	}

	limit, err := s.quoteRepo.GetCircuitLimit(ctx, ticker)
	if err != nil {
		s.log.DebugContext(ctx, "Circuit limit unavailable",
			logger.StringField("ticker", ticker),
			logger.ErrorField(err),
		)
		if price, ok := s.quoteRepo.LastKnownClose(ticker); ok {
			info.LastPrice = utils.ToPointer(price)
		}
		return info
	}
	info.CircuitLimit = limit
	if limit.LastPrice > 0 {
		info.LastPrice = utils.ToPointer(limit.LastPrice)
	}
	return info
}
