package service

import (
	"context"

	"portfolio-tracker/config"
	"portfolio-tracker/internal/reference"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/pkg/utils"
)

type Service struct {
	MarketService     MarketService
	StoreService      StoreService
	PortfolioService  PortfolioService
	ReconcilerService ReconcilerService
	TickerService     TickerService
	SchedulerService  SchedulerService
	ReconcilerManager *ReconcilerManager
}

func NewService(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
) (*Service, error) {
	marketService, err := NewMarketService(cfg, log, repo.QuoteRepo)
	if err != nil {
		return nil, err
	}

	table, err := repo.ReferenceRepo.Load(ctx)
	if err != nil {
		// Every lookup resolves to Other until the next restart.
		log.WarnContext(ctx, "Failed to load reference table", logger.ErrorField(err))
		table = nil
	}
	resolver := reference.NewResolver(table)

	storeService := NewStoreService(log, repo.PortfolioRepo, repo.Notifier, repo.EventProducer)
	portfolioService := NewPortfolioService(log, storeService, resolver, utils.LoadLocation(cfg.Market.TimeZone))
	reconcilerService := NewReconcilerService(cfg, log, repo.QuoteRepo, portfolioService, marketService)

	manager := NewReconcilerManager(ctx, log, reconcilerService, func(userID string, state RunState) {
		log.Debug("Reconciliation state changed",
			logger.StringField("user_id", userID),
			logger.StringField("state", string(state)),
		)
	})
	portfolioService.OnSessionOpen(manager.Start)

	return &Service{
		MarketService:     marketService,
		StoreService:      storeService,
		PortfolioService:  portfolioService,
		ReconcilerService: reconcilerService,
		TickerService:     NewTickerService(log, resolver, repo.QuoteRepo),
		SchedulerService:  NewSchedulerService(cfg, log, marketService, manager),
		ReconcilerManager: manager,
	}, nil
}

// Close stops background work owned by the services.
func (s *Service) Close() {
	<-s.SchedulerService.Stop().Done()
	s.ReconcilerManager.StopAll()
	s.PortfolioService.Close()
}
