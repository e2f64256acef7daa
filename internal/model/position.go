package model

import (
	"math"
	"strings"
	"time"

	"portfolio-tracker/pkg/utils"
)

type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
	StatusWatch  Status = "Watch"
)

type TradeManagement string

const (
	TradeOpenRisk     TradeManagement = "Open risk"
	TradeTrailingStop TradeManagement = "Trailing stop"
	TradeTakeProfit   TradeManagement = "Take profit"
	TradeStopLoss     TradeManagement = "Stop loss"
	TradeSLAtBE       TradeManagement = "SL=BE"
	TradeSLAboveBE    TradeManagement = "SL>BE"
	TradeSLBelowBE    TradeManagement = "SL<BE"
	TradeHold         TradeManagement = "Hold"
	TradeCost         TradeManagement = "Cost"
)

type CapClass string

const (
	CapLarge CapClass = "Large Cap"
	CapMid   CapClass = "Mid Cap"
	CapSmall CapClass = "Small Cap"
	CapMicro CapClass = "Micro Cap"
	CapNano  CapClass = "Nano Cap"
)

type PositionSize string

const (
	SizeQuarter       PositionSize = "1/4"
	SizeHalf          PositionSize = "1/2"
	SizeThreeQuarters PositionSize = "3/4"
	SizeFull          PositionSize = "Full"
	SizeDouble        PositionSize = "2x"
	SizeTriple        PositionSize = "3x"
)

var (
	Statuses         = []Status{StatusOpen, StatusClosed, StatusWatch}
	TradeManagements = []TradeManagement{TradeOpenRisk, TradeTrailingStop, TradeTakeProfit, TradeStopLoss, TradeSLAtBE, TradeSLAboveBE, TradeSLBelowBE, TradeHold, TradeCost}
	CapClasses       = []CapClass{CapLarge, CapMid, CapSmall, CapMicro, CapNano}
	PositionSizes    = []PositionSize{SizeQuarter, SizeHalf, SizeThreeQuarters, SizeFull, SizeDouble, SizeTriple}

	// SetupTypes lists the setup tags offered by the editor. Setup is free
	// text, so values outside this list are kept.
	SetupTypes = []string{"ITB", "Chop BO", "IPO Base", "3/5/8", "21/50", "Breakout", "Pullback", "Reversal", "Continuation", "Gap Fill", "OTB", "Stage 2", "ONP BO", "EP", "Pivot Bo", "Cheat", "Flag", "Other"}
)

// PlaceholderTicker is the ticker of a freshly added row.
const PlaceholderTicker = "NEW"

// PositionRecord is one tracked holding. JSON names follow the persisted
// document shape.
type PositionRecord struct {
	Ticker          string          `json:"ticker"`
	Status          Status          `json:"status"`
	EntryDate       string          `json:"buyDateString,omitempty"`
	TradeManagement TradeManagement `json:"tradeMgt"`
	Setup           string          `json:"setup"`
	OpenRiskPercent float64         `json:"openRisk"`
	SizePercent     float64         `json:"sizePercent"`
	LastPrice       float64         `json:"price"`
	ReturnPercent   *float64        `json:"returnPercent,omitempty"`
	Industry        string          `json:"industry"`
	Sector          string          `json:"sector,omitempty"`
	CapClass        CapClass        `json:"cap"`
	PositionSize    PositionSize    `json:"position"`
	EntryPrice      *float64        `json:"buyPrice,omitempty"`
}

// NewPositionRecord returns the placeholder row created by the add action.
func NewPositionRecord() PositionRecord {
	return PositionRecord{
		Ticker:          PlaceholderTicker,
		Status:          StatusOpen,
		TradeManagement: TradeOpenRisk,
		Setup:           "ITB",
		ReturnPercent:   utils.ToPointer(0.0),
		Industry:        "Financial",
		CapClass:        CapMid,
		PositionSize:    SizeHalf,
	}
}

// HasEntryPrice reports whether a return can be computed for the record.
func (p PositionRecord) HasEntryPrice() bool {
	return p.EntryPrice != nil && *p.EntryPrice > 0 && !math.IsInf(*p.EntryPrice, 0)
}

// SameEntryPrice compares the entry price against a known value.
func (p PositionRecord) SameEntryPrice(entry float64) bool {
	return p.HasEntryPrice() && *p.EntryPrice == entry
}

// EntryDateIn parses the stored entry date in loc.
func (p PositionRecord) EntryDateIn(loc *time.Location) (time.Time, bool) {
	return utils.ParseLooseDate(p.EntryDate, loc)
}

// DaysHeld is the number of whole days since entry. ok is false when the
// entry date is missing or lies in the future.
func (p PositionRecord) DaysHeld(now time.Time) (int, bool) {
	entry, ok := p.EntryDateIn(now.Location())
	if !ok {
		return 0, false
	}
	days := utils.DaysBetween(entry, now)
	if days < 0 {
		return 0, false
	}
	return days, true
}

// Clone copies the record including its optional fields.
func (p PositionRecord) Clone() PositionRecord {
	if p.ReturnPercent != nil {
		p.ReturnPercent = utils.ToPointer(*p.ReturnPercent)
	}
	if p.EntryPrice != nil {
		p.EntryPrice = utils.ToPointer(*p.EntryPrice)
	}
	return p
}

// ComputeReturn is the percentage move from entry to latest.
func ComputeReturn(entry, latest float64) float64 {
	return (latest - entry) / entry * 100
}

func matchLabel[T ~string](raw string, options []T) (T, bool) {
	raw = strings.TrimSpace(raw)
	for _, opt := range options {
		if strings.EqualFold(string(opt), raw) {
			return opt, true
		}
	}
	var zero T
	return zero, false
}

func ParseStatus(raw string) (Status, bool) { return matchLabel(raw, Statuses) }

func ParseTradeManagement(raw string) (TradeManagement, bool) {
	return matchLabel(raw, TradeManagements)
}

func ParseCapClass(raw string) (CapClass, bool) { return matchLabel(raw, CapClasses) }

func ParsePositionSize(raw string) (PositionSize, bool) { return matchLabel(raw, PositionSizes) }
