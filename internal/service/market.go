package service

import (
	"context"
	"fmt"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/pkg/utils"
)

type MarketService interface {
	// IsLive reports whether now falls inside a trading session.
	IsLive(ctx context.Context, now time.Time) bool
	// Banner announces a weekday holiday today or tomorrow.
	Banner(ctx context.Context, now time.Time) string
	Status(ctx context.Context) dto.MarketStatus
	RefreshHolidays(ctx context.Context) error
	Location() *time.Location
}

type marketService struct {
	cfg         config.Market
	log         *logger.Logger
	quoteRepo   repository.QuoteRepository
	loc         *time.Location
	openMinute  int
	closeMinute int
	now         func() time.Time
}

func NewMarketService(cfg *config.Config, log *logger.Logger, quoteRepo repository.QuoteRepository) (MarketService, error) {
	openH, openM, err := utils.ParseClock(cfg.Market.Open)
	if err != nil {
		return nil, fmt.Errorf("market open: %w", err)
	}
	closeH, closeM, err := utils.ParseClock(cfg.Market.Close)
	if err != nil {
		return nil, fmt.Errorf("market close: %w", err)
	}
	return &marketService{
		cfg:         cfg.Market,
		log:         log,
		quoteRepo:   quoteRepo,
		loc:         utils.LoadLocation(cfg.Market.TimeZone),
		openMinute:  openH*60 + openM,
		closeMinute: closeH*60 + closeM,
		now:         time.Now,
	}, nil
}

func (s *marketService) Location() *time.Location {
	return s.loc
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func (s *marketService) holidays(ctx context.Context) []dto.Holiday {
	holidays, err := s.quoteRepo.GetHolidays(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load market holidays", logger.ErrorField(err))
		return nil
	}
	return holidays
}

// holidayDate parses the date part of a holiday entry.
func (s *marketService) holidayDate(h dto.Holiday) (time.Time, bool) {
	raw := h.HolidayDate
	if len(raw) > len(utils.ISODateLayout) {
		raw = raw[:len(utils.ISODateLayout)]
	}
	d, err := time.ParseInLocation(utils.ISODateLayout, raw, s.loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (s *marketService) IsLive(ctx context.Context, now time.Time) bool {
	local := now.In(s.loc)
	if isWeekend(local) {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	if minute < s.openMinute || minute > s.closeMinute {
		return false
	}
	for _, h := range s.holidays(ctx) {
		if d, ok := s.holidayDate(h); ok && sameDay(d, local) {
			return false
		}
	}
	return true
}

func (s *marketService) Banner(ctx context.Context, now time.Time) string {
	today := utils.StartOfDay(now.In(s.loc))
	tomorrow := today.AddDate(0, 0, 1)

	for _, h := range s.holidays(ctx) {
		d, ok := s.holidayDate(h)
		if !ok || d.Year() != today.Year() || isWeekend(d) {
			continue
		}
		if sameDay(d, today) {
			return fmt.Sprintf("Market Holiday Today: %s (%s)", h.Purpose, h.HolidayDate)
		}
		if sameDay(d, tomorrow) {
			return fmt.Sprintf("Market Holiday Tomorrow: %s (%s)", h.Purpose, h.HolidayDate)
		}
	}
	return ""
}

func (s *marketService) Status(ctx context.Context) dto.MarketStatus {
	now := s.now()
	return dto.MarketStatus{
		Live:     s.IsLive(ctx, now),
		Now:      now.In(s.loc).Format(time.RFC3339),
		TimeZone: s.loc.String(),
		Banner:   s.Banner(ctx, now),
	}
}

func (s *marketService) RefreshHolidays(ctx context.Context) error {
	holidays, err := s.quoteRepo.RefreshHolidays(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh holidays: %w", err)
	}
	s.log.InfoContext(ctx, "Market holidays refreshed", logger.IntField("count", len(holidays)))
	return nil
}
