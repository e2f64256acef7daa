package service

import (
	"context"
	"sync"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/model"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/pkg/utils"

	"github.com/google/uuid"
)

type RunState string

const (
	RunStateIdle        RunState = "idle"
	RunStatePassRunning RunState = "pass_running"
	RunStateCancelled   RunState = "cancelled"
)

// PassObserver is told about every state change of a running loop.
type PassObserver func(userID string, state RunState)

type ReconcilerService interface {
	// RunPass refreshes every position with an entry price, one quote at a time.
	RunPass(ctx context.Context, userID string) (dto.ReconcileResult, error)
	// Run repeats passes while the market is live and stops after the first
	// pass that ends outside trading hours.
	Run(ctx context.Context, userID string, observe PassObserver) error
	// RefreshPosition fetches a single ticker without pacing.
	RefreshPosition(ctx context.Context, userID, ticker string) (dto.ReconcileResult, error)
}

type reconcilerService struct {
	cfg       config.Reconciler
	log       *logger.Logger
	quoteRepo repository.QuoteRepository
	portfolio PortfolioService
	market    MarketService
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	// slots holds one pass token per user so passes never overlap.
	slotsMu sync.Mutex
	slots   map[string]chan struct{}
}

func NewReconcilerService(
	cfg *config.Config,
	log *logger.Logger,
	quoteRepo repository.QuoteRepository,
	portfolio PortfolioService,
	market MarketService,
) ReconcilerService {
	return &reconcilerService{
		cfg:       cfg.Reconciler,
		log:       log,
		quoteRepo: quoteRepo,
		portfolio: portfolio,
		market:    market,
		now:       time.Now,
		sleep:     sleepContext,
		slots:     make(map[string]chan struct{}),
	}
}

// acquire waits for the pass slot of userID.
func (s *reconcilerService) acquire(ctx context.Context, userID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.slotsMu.Lock()
	slot, ok := s.slots[userID]
	if !ok {
		slot = make(chan struct{}, 1)
		s.slots[userID] = slot
	}
	s.slotsMu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func eligible(rec model.PositionRecord) bool {
	return rec.HasEntryPrice() && rec.Ticker != "" && rec.Ticker != model.PlaceholderTicker
}

func (s *reconcilerService) RunPass(ctx context.Context, userID string) (dto.ReconcileResult, error) {
	return s.pass(ctx, userID, "", true)
}

func (s *reconcilerService) RefreshPosition(ctx context.Context, userID, ticker string) (dto.ReconcileResult, error) {
	return s.pass(ctx, userID, utils.NormalizeTicker(ticker), false)
}

// pass works on a snapshot and publishes all quotes in one ApplyQuotes call.
// When only is set, records with other tickers are skipped. Passes of one
// user run one at a time whoever starts them.
func (s *reconcilerService) pass(ctx context.Context, userID, only string, paced bool) (dto.ReconcileResult, error) {
	result := dto.ReconcileResult{PassID: uuid.NewString()}
	log := s.log.With(
		logger.StringField("pass_id", result.PassID),
		logger.StringField("user_id", userID),
	)

	release, err := s.acquire(ctx, userID)
	if err != nil {
		result.Cancelled = true
		return result, nil
	}
	defer release()

	records, version, err := s.portfolio.Snapshot(ctx, userID)
	if err != nil {
		return result, err
	}

	prices := make(map[string]float64)
	updates := make([]QuoteUpdate, 0, len(records))
	for _, rec := range records {
		if !eligible(rec) || (only != "" && rec.Ticker != only) {
			continue
		}
		result.Eligible++

		price, seen := prices[rec.Ticker]
		if !seen {
			if paced && result.Fetched+result.Failed > 0 {
				if err := s.sleep(ctx, s.cfg.FetchDelay); err != nil {
					result.Cancelled = true
					log.InfoContext(ctx, "Reconciliation pass cancelled", logger.IntField("fetched", result.Fetched))
					return result, nil
				}
			}
			if !utils.ShouldContinue(ctx, log) {
				result.Cancelled = true
				return result, nil
			}

			price, err = s.quoteRepo.FetchLatestClose(ctx, rec.Ticker)
			if err != nil {
				result.Failed++
				log.WarnContext(ctx, "Failed to fetch latest close",
					logger.StringField("ticker", rec.Ticker),
					logger.ErrorField(err),
				)
				continue
			}
			result.Fetched++
			prices[rec.Ticker] = price
		}

		entry := *rec.EntryPrice
		updates = append(updates, QuoteUpdate{
			Ticker:        rec.Ticker,
			EntryPrice:    entry,
			LastPrice:     price,
			ReturnPercent: model.ComputeReturn(entry, price),
		})
	}

	if !utils.ShouldContinue(ctx, log) {
		result.Cancelled = true
		return result, nil
	}

	applied, err := s.portfolio.ApplyQuotes(ctx, userID, version, updates)
	if err != nil {
		return result, err
	}
	result.Applied = applied.Applied
	result.Stale = applied.Stale

	log.DebugContext(ctx, "Reconciliation pass completed",
		logger.IntField("eligible", result.Eligible),
		logger.IntField("fetched", result.Fetched),
		logger.IntField("failed", result.Failed),
		logger.IntField("applied", result.Applied),
		logger.Field("stale", result.Stale),
	)
	return result, nil
}

func (s *reconcilerService) Run(ctx context.Context, userID string, observe PassObserver) error {
	notify := func(state RunState) {
		if observe != nil {
			observe(userID, state)
		}
	}

	for {
		notify(RunStatePassRunning)
		result, err := s.RunPass(ctx, userID)
		if result.Cancelled || ctx.Err() != nil {
			notify(RunStateCancelled)
			return ctx.Err()
		}
		notify(RunStateIdle)
		if err != nil {
			s.log.ErrorContext(ctx, "Reconciliation pass failed",
				logger.StringField("user_id", userID),
				logger.ErrorField(err),
			)
		}

		if !s.market.IsLive(ctx, s.now()) {
			return nil
		}
		if err := s.sleep(ctx, s.cfg.Interval); err != nil {
			notify(RunStateCancelled)
			return err
		}
	}
}

// ReconcilerManager keeps at most one running loop per user.
type ReconcilerManager struct {
	log        *logger.Logger
	reconciler ReconcilerService
	observer   PassObserver

	mu      sync.Mutex
	parent  context.Context
	runs    map[string]*reconcileRun
	states  map[string]RunState
	running sync.WaitGroup
}

type reconcileRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconcilerManager(ctx context.Context, log *logger.Logger, reconciler ReconcilerService, observer PassObserver) *ReconcilerManager {
	return &ReconcilerManager{
		log:        log,
		reconciler: reconciler,
		observer:   observer,
		parent:     ctx,
		runs:       make(map[string]*reconcileRun),
		states:     make(map[string]RunState),
	}
}

func (m *ReconcilerManager) setState(userID string, state RunState) {
	m.mu.Lock()
	m.states[userID] = state
	m.mu.Unlock()
	if m.observer != nil {
		m.observer(userID, state)
	}
}

// Start launches the loop for userID unless one is already running.
func (m *ReconcilerManager) Start(userID string) {
	m.mu.Lock()
	if _, running := m.runs[userID]; running || m.parent.Err() != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(m.parent)
	run := &reconcileRun{cancel: cancel, done: make(chan struct{})}
	m.runs[userID] = run
	m.running.Add(1)
	m.mu.Unlock()

	utils.GoSafe(func() {
		defer m.running.Done()
		defer close(run.done)
		defer cancel()

		if err := m.reconciler.Run(ctx, userID, m.setState); err != nil && ctx.Err() == nil {
			m.log.Error("Reconciliation loop stopped", logger.StringField("user_id", userID), logger.ErrorField(err))
		}

		m.mu.Lock()
		if m.runs[userID] == run {
			delete(m.runs, userID)
		}
		m.mu.Unlock()
	})
}

// Restart cancels a running loop of userID and starts a fresh one.
func (m *ReconcilerManager) Restart(userID string) {
	m.Stop(userID)
	m.Start(userID)
}

// RunNow runs one pass for userID on demand. It shares the user's pass slot
// with the loop, so an on-demand pass waits for a running one to finish.
func (m *ReconcilerManager) RunNow(ctx context.Context, userID string) (dto.ReconcileResult, error) {
	return m.reconciler.RunPass(ctx, userID)
}

// Stop cancels the loop of userID and waits for it to exit.
func (m *ReconcilerManager) Stop(userID string) {
	m.mu.Lock()
	run, ok := m.runs[userID]
	if ok {
		delete(m.runs, userID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	run.cancel()
	<-run.done
}

func (m *ReconcilerManager) StopAll() {
	m.mu.Lock()
	users := make([]string, 0, len(m.runs))
	for userID := range m.runs {
		users = append(users, userID)
	}
	m.mu.Unlock()
	for _, userID := range users {
		m.Stop(userID)
	}
	m.running.Wait()
}

// ResumeAll starts a loop for every user seen so far whose loop has ended.
// It runs when the trading session opens.
func (m *ReconcilerManager) ResumeAll() {
	m.mu.Lock()
	users := make([]string, 0, len(m.states))
	for userID := range m.states {
		users = append(users, userID)
	}
	m.mu.Unlock()
	for _, userID := range users {
		m.Start(userID)
	}
}

func (m *ReconcilerManager) State(userID string) RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[userID]; ok {
		return state
	}
	return RunStateIdle
}
