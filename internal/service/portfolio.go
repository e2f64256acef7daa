package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/helper"
	"portfolio-tracker/internal/model"
	"portfolio-tracker/internal/reference"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/pkg/common"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/pkg/utils"
)

var ErrPositionNotFound = errors.New("position not found")

const (
	loadFailedBanner = "Failed to load portfolio. Please try again later."
	saveFailedBanner = "Failed to save portfolio data."
)

// QuoteUpdate is one price observation produced by a reconciliation pass.
// EntryPrice is the entry the return was computed against.
type QuoteUpdate struct {
	Ticker        string
	EntryPrice    float64
	LastPrice     float64
	ReturnPercent float64
}

type ApplyResult struct {
	Applied int
	Dropped int
	// Stale is set when the document changed after the pass took its snapshot.
	Stale bool
}

type EditResult struct {
	State dto.PortfolioState
	// RefreshTicker names a position whose price should be fetched again.
	RefreshTicker string
	Deleted       bool
}

type PortfolioService interface {
	Get(ctx context.Context, userID string) (dto.PortfolioState, error)
	Document(ctx context.Context, userID string) (model.Document, error)
	// Snapshot returns a copy of the records together with the document version.
	Snapshot(ctx context.Context, userID string) ([]model.PositionRecord, uint64, error)
	AddPosition(ctx context.Context, userID string) (dto.PortfolioState, error)
	EditPosition(ctx context.Context, userID string, index int, field model.Field, raw string) (EditResult, error)
	DeletePosition(ctx context.Context, userID string, index int) (dto.PortfolioState, error)
	UpdateSettings(ctx context.Context, userID string, req dto.UpdateSettingsRequest) (dto.PortfolioState, error)
	ApplyQuotes(ctx context.Context, userID string, version uint64, updates []QuoteUpdate) (ApplyResult, error)
	Summary(ctx context.Context, userID string, groupBy dto.GroupBy) (dto.Summary, error)
	Distribution(ctx context.Context, userID string, groupBy dto.GroupBy) ([]dto.DistributionItem, error)
	// OnSessionOpen registers fn to run after a session is first loaded.
	OnSessionOpen(fn func(userID string))
	Close()
}

type session struct {
	mu        sync.Mutex
	loadMu    sync.Mutex
	saveMu    sync.Mutex
	userID    string
	anonymous bool
	// loaded stays false until a load succeeds; a failed load is retried by
	// the next request and the session never saves in between.
	loaded     bool
	doc        model.Document
	version    uint64
	savedAt    uint64
	interacted bool
	banner     string
	sub        repository.Subscription
}

// pendingSave is a committed document waiting to be written once the
// session lock is released.
type pendingSave struct {
	doc     model.Document
	version uint64
}

type portfolioService struct {
	log      *logger.Logger
	store    StoreService
	resolver *reference.Resolver
	loc      *time.Location
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	onOpen   []func(userID string)
}

func NewPortfolioService(log *logger.Logger, store StoreService, resolver *reference.Resolver, loc *time.Location) PortfolioService {
	return &portfolioService{
		log:      log,
		store:    store,
		resolver: resolver,
		loc:      loc,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (p *portfolioService) OnSessionOpen(fn func(userID string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOpen = append(p.onOpen, fn)
}

func (p *portfolioService) today() string {
	return p.now().In(p.loc).Format(utils.ISODateLayout)
}

func (p *portfolioService) session(ctx context.Context, userID string) *session {
	p.mu.Lock()
	sess, ok := p.sessions[userID]
	if !ok {
		sess = &session{userID: userID, anonymous: userID == common.ANONYMOUS_USER}
		p.sessions[userID] = sess
	}
	hooks := p.onOpen
	p.mu.Unlock()

	sess.loadMu.Lock()
	opened := false
	if !sess.loaded {
		opened = p.load(context.WithoutCancel(ctx), sess)
	}
	sess.loadMu.Unlock()

	if opened {
		for _, fn := range hooks {
			fn(userID)
		}
	}
	return sess
}

// load fills the session from the store and reports whether it succeeded.
// It never saves, so the initial document cannot overwrite what is stored.
// Must be called with sess.loadMu held.
func (p *portfolioService) load(ctx context.Context, sess *session) bool {
	if sess.anonymous {
		sess.mu.Lock()
		sess.doc = model.SampleDocument(p.today())
		sess.loaded = true
		sess.mu.Unlock()
		return true
	}

	doc, err := p.store.Load(ctx, sess.userID)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to load portfolio",
			logger.StringField("user_id", sess.userID),
			logger.ErrorField(err),
		)
		sess.mu.Lock()
		if sess.banner == "" {
			sess.doc = model.EmptyDocument(p.today())
		}
		sess.banner = loadFailedBanner
		sess.mu.Unlock()
		return false
	}

	sess.mu.Lock()
	switch {
	case doc == nil:
		sess.doc = model.EmptyDocument(p.today())
	default:
		if doc.Settings.Date == "" {
			doc.Settings.Date = p.today()
		}
		sess.doc = *doc
	}
	if sess.banner == loadFailedBanner {
		// Anything edited on the fallback document is discarded; a snapshot
		// taken from it must not publish.
		sess.banner = ""
		sess.interacted = false
		sess.version++
	}
	sess.loaded = true
	sess.mu.Unlock()

	sub, err := p.store.Subscribe(ctx, sess.userID, func(remote model.Document) {
		p.applyRemote(sess, remote)
	})
	if err != nil {
		p.log.WarnContext(ctx, "Realtime updates unavailable",
			logger.StringField("user_id", sess.userID),
			logger.ErrorField(err),
		)
		return true
	}
	sess.mu.Lock()
	sess.sub = sub
	sess.mu.Unlock()
	return true
}

// applyRemote replaces the document with one saved elsewhere.
func (p *portfolioService) applyRemote(sess *session, doc model.Document) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if doc.Stocks == nil {
		doc.Stocks = []model.PositionRecord{}
	}
	sess.doc = doc
	sess.version++
	p.log.Debug("Applied remote portfolio change",
		logger.StringField("user_id", sess.userID),
		logger.Field("version", sess.version),
	)
}

// commit is the single change path. Must be called with sess.mu held. The
// returned save, if any, is handed to persist after the lock is released.
func (p *portfolioService) commit(sess *session, doc model.Document, byUser bool) *pendingSave {
	doc.TotalOpenRisk = helper.TotalOpenRisk(doc.Stocks)
	doc.TotalInvested = helper.TotalInvested(doc.Stocks)
	sess.doc = doc
	sess.version++
	if byUser {
		sess.interacted = true
	}
	if sess.anonymous || !sess.interacted || !sess.loaded {
		return nil
	}
	return &pendingSave{doc: doc.Clone(), version: sess.version}
}

// persist writes a committed document. Saves for one session run one at a
// time and a save older than the last written version is skipped.
func (p *portfolioService) persist(ctx context.Context, sess *session, pending *pendingSave) {
	if pending == nil {
		return
	}
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	sess.mu.Lock()
	outdated := pending.version <= sess.savedAt
	sess.mu.Unlock()
	if outdated {
		return
	}

	result := p.store.Save(context.WithoutCancel(ctx), sess.userID, pending.doc)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !result.Success {
		sess.banner = saveFailedBanner
		return
	}
	sess.savedAt = pending.version
	if sess.banner == saveFailedBanner {
		sess.banner = ""
	}
}

// current returns the session state under its lock.
func (p *portfolioService) current(sess *session) dto.PortfolioState {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return p.state(sess)
}

func (p *portfolioService) state(sess *session) dto.PortfolioState {
	now := p.now().In(p.loc)
	views := make([]dto.PositionView, len(sess.doc.Stocks))
	for i, rec := range sess.doc.Stocks {
		views[i] = dto.PositionView{PositionRecord: rec.Clone()}
		if days, ok := rec.DaysHeld(now); ok {
			views[i].DaysHeld = utils.ToPointer(days)
		}
	}
	settings := sess.doc.Settings
	if settings.DateRange != nil {
		dr := *settings.DateRange
		settings.DateRange = &dr
	}
	return dto.PortfolioState{
		UserID:        sess.userID,
		Anonymous:     sess.anonymous,
		Version:       sess.version,
		Banner:        sess.banner,
		Stocks:        views,
		TotalOpenRisk: helper.TotalOpenRisk(sess.doc.Stocks),
		TotalInvested: helper.TotalInvested(sess.doc.Stocks),
		Settings:      settings,
	}
}

func (p *portfolioService) Get(ctx context.Context, userID string) (dto.PortfolioState, error) {
	sess := p.session(ctx, userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return p.state(sess), nil
}

func (p *portfolioService) Document(ctx context.Context, userID string) (model.Document, error) {
	sess := p.session(ctx, userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	doc := sess.doc.Clone()
	doc.TotalOpenRisk = helper.TotalOpenRisk(doc.Stocks)
	doc.TotalInvested = helper.TotalInvested(doc.Stocks)
	return doc, nil
}

func (p *portfolioService) Snapshot(ctx context.Context, userID string) ([]model.PositionRecord, uint64, error) {
	sess := p.session(ctx, userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.doc.Clone().Stocks, sess.version, nil
}

func (p *portfolioService) AddPosition(ctx context.Context, userID string) (dto.PortfolioState, error) {
	sess := p.session(ctx, userID)
	sess.mu.Lock()
	doc := sess.doc.Clone()
	doc.Stocks = append(doc.Stocks, model.NewPositionRecord())
	pending := p.commit(sess, doc, true)
	sess.mu.Unlock()

	p.persist(ctx, sess, pending)
	return p.current(sess), nil
}

func (p *portfolioService) DeletePosition(ctx context.Context, userID string, index int) (dto.PortfolioState, error) {
	sess := p.session(ctx, userID)
	sess.mu.Lock()
	if index < 0 || index >= len(sess.doc.Stocks) {
		sess.mu.Unlock()
		return dto.PortfolioState{}, ErrPositionNotFound
	}
	doc := sess.doc.Clone()
	doc.Stocks = append(doc.Stocks[:index], doc.Stocks[index+1:]...)
	pending := p.commit(sess, doc, true)
	sess.mu.Unlock()

	p.persist(ctx, sess, pending)
	return p.current(sess), nil
}

func (p *portfolioService) EditPosition(ctx context.Context, userID string, index int, field model.Field, raw string) (EditResult, error) {
	sess := p.session(ctx, userID)
	sess.mu.Lock()
	if index < 0 || index >= len(sess.doc.Stocks) {
		sess.mu.Unlock()
		return EditResult{}, ErrPositionNotFound
	}
	doc := sess.doc.Clone()

	var result EditResult
	// Clearing the ticker removes the row.
	if field == model.FieldTicker && strings.TrimSpace(raw) == "" {
		doc.Stocks = append(doc.Stocks[:index], doc.Stocks[index+1:]...)
		result.Deleted = true
	} else {
		rec := doc.Stocks[index]
		if field == model.FieldTicker {
			raw = p.correctTicker(&rec, raw)
		}
		updated, err := rec.WithField(field, raw, p.loc)
		if err != nil {
			sess.mu.Unlock()
			return EditResult{}, err
		}
		doc.Stocks[index] = updated
		if field == model.FieldEntryPrice && updated.HasEntryPrice() && updated.Ticker != "" {
			result.RefreshTicker = updated.Ticker
		}
	}
	pending := p.commit(sess, doc, true)
	sess.mu.Unlock()

	p.persist(ctx, sess, pending)
	result.State = p.current(sess)
	return result, nil
}

// correctTicker maps a typed ticker onto the reference table and fills the
// labels it knows. A placeholder that matches nothing is cleared.
func (p *portfolioService) correctTicker(rec *model.PositionRecord, raw string) string {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	match, ok := p.resolver.ClosestMatch(ticker)
	if !ok {
		if ticker == model.PlaceholderTicker {
			return ""
		}
		return ticker
	}
	if entry, found := p.resolver.Lookup(match); found {
		if entry.Industry != "" {
			rec.Industry = entry.Industry
		}
		if entry.Sector != "" {
			rec.Sector = entry.Sector
		}
	}
	return match
}

func (p *portfolioService) UpdateSettings(ctx context.Context, userID string, req dto.UpdateSettingsRequest) (dto.PortfolioState, error) {
	sess := p.session(ctx, userID)
	sess.mu.Lock()

	doc := sess.doc.Clone()
	if req.Title != nil {
		doc.Settings.Title = strings.TrimSpace(*req.Title)
	}
	if req.Date != nil {
		doc.Settings.Date = *req.Date
	}
	if req.MaxRiskPerEntry != nil {
		doc.Settings.MaxRiskPerEntry = *req.MaxRiskPerEntry
	}
	if req.DateRange != nil {
		dr := *req.DateRange
		if dr.From == "" && dr.To == "" {
			doc.Settings.DateRange = nil
		} else {
			doc.Settings.DateRange = &dr
		}
	}
	pending := p.commit(sess, doc, true)
	sess.mu.Unlock()

	p.persist(ctx, sess, pending)
	return p.current(sess), nil
}

// ApplyQuotes merges reconciliation results into the current document. An
// update only lands on a record that still has the same ticker and entry
// price; anything else is dropped.
func (p *portfolioService) ApplyQuotes(ctx context.Context, userID string, version uint64, updates []QuoteUpdate) (ApplyResult, error) {
	sess := p.session(ctx, userID)
	sess.mu.Lock()
	result := ApplyResult{Stale: version != sess.version}
	if len(updates) == 0 {
		sess.mu.Unlock()
		return result, nil
	}

	doc := sess.doc.Clone()
	for _, u := range updates {
		matched := false
		for i := range doc.Stocks {
			rec := &doc.Stocks[i]
			if rec.Ticker != u.Ticker || !rec.SameEntryPrice(u.EntryPrice) {
				continue
			}
			rec.LastPrice = u.LastPrice
			rec.ReturnPercent = utils.ToPointer(u.ReturnPercent)
			matched = true
		}
		if matched {
			result.Applied++
		} else {
			result.Dropped++
		}
	}

	var pending *pendingSave
	if result.Applied > 0 {
		pending = p.commit(sess, doc, false)
	}
	sess.mu.Unlock()

	p.persist(ctx, sess, pending)
	return result, nil
}

func (p *portfolioService) Summary(ctx context.Context, userID string, groupBy dto.GroupBy) (dto.Summary, error) {
	doc, err := p.Document(ctx, userID)
	if err != nil {
		return dto.Summary{}, err
	}
	return helper.Summarize(doc, groupBy, p.resolver), nil
}

func (p *portfolioService) Distribution(ctx context.Context, userID string, groupBy dto.GroupBy) ([]dto.DistributionItem, error) {
	doc, err := p.Document(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groupBy == dto.GroupByIndustry {
		return helper.Distribution(doc.Stocks, helper.IndustryLabel), nil
	}
	return helper.Distribution(doc.Stocks, helper.SectorLabel(p.resolver)), nil
}

func (p *portfolioService) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sess := range p.sessions {
		sess.mu.Lock()
		if sess.sub != nil {
			sess.sub.Unsubscribe()
			sess.sub = nil
		}
		sess.mu.Unlock()
	}
}
