package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/helper"
	"portfolio-tracker/internal/model"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/pkg/common"
	"portfolio-tracker/pkg/logger"

	"github.com/google/uuid"
)

// SaveResult reports the outcome of a save.
type SaveResult struct {
	Success bool
	Err     error
}

// StoreService persists whole portfolio documents and pushes remote changes.
type StoreService interface {
	// Load returns nil without error when the user has no document yet.
	Load(ctx context.Context, userID string) (*model.Document, error)
	Save(ctx context.Context, userID string, doc model.Document) SaveResult
	// Subscribe calls onChange with documents saved by other processes.
	Subscribe(ctx context.Context, userID string, onChange func(model.Document)) (repository.Subscription, error)
}

type storeService struct {
	log           *logger.Logger
	portfolioRepo repository.PortfolioRepository
	notifier      repository.ChangeNotifier
	producer      repository.EventProducer
	origin        string
}

func NewStoreService(
	log *logger.Logger,
	portfolioRepo repository.PortfolioRepository,
	notifier repository.ChangeNotifier,
	producer repository.EventProducer,
) StoreService {
	return &storeService{
		log:           log,
		portfolioRepo: portfolioRepo,
		notifier:      notifier,
		producer:      producer,
		origin:        uuid.NewString(),
	}
}

func (s *storeService) Load(ctx context.Context, userID string) (*model.Document, error) {
	row, err := s.portfolioRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	doc := row.Data.Data()
	if doc.Stocks == nil {
		doc.Stocks = []model.PositionRecord{}
	}
	return &doc, nil
}

func (s *storeService) Save(ctx context.Context, userID string, doc model.Document) SaveResult {
	if err := s.portfolioRepo.Upsert(ctx, userID, doc); err != nil {
		s.log.ErrorContext(ctx, "Failed to save portfolio",
			logger.StringField("user_id", userID),
			logger.ErrorField(err),
		)
		return SaveResult{Success: false, Err: err}
	}

	// The row is the source of truth; fan-out failures are only logged.
	payload, err := json.Marshal(doc)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to encode change notification", logger.ErrorField(err))
	}
	change := dto.ChangeNotification{UserID: userID, Origin: s.origin, Document: payload}
	if err := s.notifier.Publish(ctx, change); err != nil {
		s.log.WarnContext(ctx, "Failed to publish change notification",
			logger.StringField("user_id", userID),
			logger.ErrorField(err),
		)
	}

	event := dto.PortfolioEvent{
		EventID:       uuid.NewString(),
		EventType:     common.EVENT_PORTFOLIO_SAVED,
		UserID:        userID,
		Origin:        s.origin,
		Holdings:      len(doc.Stocks),
		TotalOpenRisk: helper.TotalOpenRisk(doc.Stocks),
		TotalInvested: helper.TotalInvested(doc.Stocks),
		Timestamp:     time.Now(),
	}
	if err := s.producer.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "Failed to publish portfolio event",
			logger.StringField("user_id", userID),
			logger.ErrorField(err),
		)
	}
	return SaveResult{Success: true}
}

func (s *storeService) Subscribe(ctx context.Context, userID string, onChange func(model.Document)) (repository.Subscription, error) {
	sub, err := s.notifier.Subscribe(ctx, userID, func(n dto.ChangeNotification) {
		if n.Origin == s.origin {
			return
		}
		doc, err := s.resolve(context.Background(), n)
		if err != nil {
			s.log.Warn("Failed to read remote portfolio change",
				logger.StringField("user_id", n.UserID),
				logger.ErrorField(err),
			)
			return
		}
		if doc != nil {
			onChange(*doc)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to portfolio changes: %w", err)
	}
	return sub, nil
}

// resolve returns the document a notification refers to, reading it back
// from the store when the transport did not carry it.
func (s *storeService) resolve(ctx context.Context, n dto.ChangeNotification) (*model.Document, error) {
	if len(n.Document) > 0 {
		var doc model.Document
		if err := json.Unmarshal(n.Document, &doc); err != nil {
			return nil, fmt.Errorf("invalid document in notification: %w", err)
		}
		return &doc, nil
	}
	return s.Load(ctx, n.UserID)
}
