package repository

import (
	"context"
	"errors"
	"fmt"

	"portfolio-tracker/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PortfolioRepository interface {
	// GetByUserID returns nil without error when the user has no document.
	GetByUserID(ctx context.Context, userID string) (*model.Portfolio, error)
	Upsert(ctx context.Context, userID string, doc model.Document) error
}

type portfolioRepository struct {
	db *gorm.DB
}

func NewPortfolioRepository(db *gorm.DB) PortfolioRepository {
	return &portfolioRepository{
		db: db,
	}
}

func (r *portfolioRepository) GetByUserID(ctx context.Context, userID string) (*model.Portfolio, error) {
	var portfolio model.Portfolio
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&portfolio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}
	return &portfolio, nil
}

func (r *portfolioRepository) Upsert(ctx context.Context, userID string, doc model.Document) error {
	row := model.Portfolio{
		UserID: userID,
		Data:   datatypes.NewJSONType(doc),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}
