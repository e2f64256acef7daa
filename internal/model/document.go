package model

import (
	"time"

	"portfolio-tracker/pkg/utils"

	"gorm.io/datatypes"
)

const DefaultTitle = "Portfolio Snapshot"

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Settings struct {
	Title           string     `json:"title"`
	Date            string     `json:"date"`
	MaxRiskPerEntry float64    `json:"maxRiskPerEntry"`
	DateRange       *DateRange `json:"dateRange,omitempty"`
}

// Document is the whole persisted portfolio of one user.
type Document struct {
	Stocks        []PositionRecord `json:"stocks"`
	TotalOpenRisk float64          `json:"totalOpenRisk"`
	TotalInvested float64          `json:"totalInvested"`
	Settings      Settings         `json:"settings"`
}

// Clone deep copies the document so callers never share records.
func (d Document) Clone() Document {
	out := d
	out.Stocks = make([]PositionRecord, len(d.Stocks))
	for i, s := range d.Stocks {
		out.Stocks[i] = s.Clone()
	}
	if d.Settings.DateRange != nil {
		dr := *d.Settings.DateRange
		out.Settings.DateRange = &dr
	}
	return out
}

// EmptyDocument is what an authenticated user without stored data starts
// with, and the fallback after a failed load.
func EmptyDocument(today string) Document {
	return Document{
		Stocks: []PositionRecord{},
		Settings: Settings{
			Title:           DefaultTitle,
			Date:            today,
			MaxRiskPerEntry: 1,
		},
	}
}

// SampleDocument is shown to anonymous sessions.
func SampleDocument(today string) Document {
	entry := func() *float64 { return utils.ToPointer(100.0) }
	return Document{
		Stocks: []PositionRecord{
			{Ticker: "TI", Status: StatusOpen, TradeManagement: TradeSLAtBE, Setup: "ITB", SizePercent: 20.90, LastPrice: 795.00, CapClass: CapMid, PositionSize: SizeQuarter, Industry: "Breweries & Distilleries", EntryPrice: entry()},
			{Ticker: "DHANI", Status: StatusOpen, TradeManagement: TradeSLAtBE, Setup: "ITB", SizePercent: 15.20, LastPrice: 442.85, CapClass: CapSmall, PositionSize: SizeQuarter, Industry: "Financial Services", EntryPrice: entry()},
			{Ticker: "MOBIKWIK", Status: StatusOpen, TradeManagement: TradeOpenRisk, Setup: "IPO Base", OpenRiskPercent: 0.56, SizePercent: 13.40, LastPrice: 768.75, CapClass: CapLarge, PositionSize: SizeHalf, Industry: "Fintech", EntryPrice: entry()},
			{Ticker: "EIEL", Status: StatusOpen, TradeManagement: TradeOpenRisk, Setup: "IPO Base", OpenRiskPercent: 0.32, SizePercent: 10.00, CapClass: CapMid, PositionSize: SizeQuarter, Industry: "Engineering", EntryPrice: entry()},
			{Ticker: "DAMCAPITAL", Status: StatusOpen, TradeManagement: TradeOpenRisk, Setup: "IPO Base", OpenRiskPercent: 0.44, SizePercent: 12.50, CapClass: CapSmall, PositionSize: SizeHalf, Industry: "Investment Banking", EntryPrice: entry()},
		},
		TotalOpenRisk: 1.32,
		TotalInvested: 72.00,
		Settings: Settings{
			Title:           DefaultTitle,
			Date:            today,
			MaxRiskPerEntry: 1,
		},
	}
}

// Portfolio is the stored row: one JSON document per user.
type Portfolio struct {
	ID        uint                         `gorm:"primaryKey" json:"id"`
	UserID    string                       `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Data      datatypes.JSONType[Document] `gorm:"type:jsonb;not null" json:"data"`
	CreatedAt time.Time                    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}
