package repository

import (
	"context"
	"fmt"

	"portfolio-tracker/config"
	"portfolio-tracker/pkg/cache"
	"portfolio-tracker/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Repository struct {
	PortfolioRepo PortfolioRepository
	QuoteRepo     QuoteRepository
	ReferenceRepo ReferenceRepository
	Notifier      ChangeNotifier
	EventProducer EventProducer
}

func NewRepository(ctx context.Context, cfg *config.Config, inmemoryCache cache.Cache, db *gorm.DB, log *logger.Logger) (*Repository, error) {
	notifier, err := newNotifier(ctx, cfg, db, log)
	if err != nil {
		return nil, err
	}

	producer := NewNoopEventProducer()
	if len(cfg.Kafka.Brokers) > 0 {
		producer = NewKafkaEventProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	return &Repository{
		PortfolioRepo: NewPortfolioRepository(db),
		QuoteRepo:     NewQuoteRepository(cfg, inmemoryCache, log),
		ReferenceRepo: NewReferenceRepository(cfg, log),
		Notifier:      notifier,
		EventProducer: producer,
	}, nil
}

func newNotifier(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger) (ChangeNotifier, error) {
	switch cfg.Notifier.Driver {
	case config.NotifierPostgres:
		return NewPostgresNotifier(db, cfg.DB.DSN(), cfg.Notifier.Channel, log)
	case config.NotifierRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisNotifier(ctx, client, cfg.Notifier.Channel, log)
	case config.NotifierNone, "":
		return NewNoopNotifier(), nil
	default:
		return nil, fmt.Errorf("unknown notifier driver %q", cfg.Notifier.Driver)
	}
}

// Close releases the notifier and the event producer.
func (r *Repository) Close() error {
	var firstErr error
	if err := r.Notifier.Close(); err != nil {
		firstErr = err
	}
	if err := r.EventProducer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
