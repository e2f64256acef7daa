package dto

import (
	"time"

	"portfolio-tracker/internal/model"
)

type GroupBy string

const (
	GroupBySector   GroupBy = "sector"
	GroupByIndustry GroupBy = "industry"
)

// DistributionItem is one slice of an allocation breakdown.
type DistributionItem struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

type Summary struct {
	UniqueHoldings   int                `json:"unique_holdings"`
	TotalOpenRisk    float64            `json:"total_open_risk"`
	TotalInvested    float64            `json:"total_invested"`
	UnrealisedReturn float64            `json:"unrealised_return"`
	RealisedReturn   float64            `json:"realised_return"`
	MaxRiskPerEntry  float64            `json:"max_risk_per_entry"`
	GroupBy          GroupBy            `json:"group_by"`
	TopGroup         *DistributionItem  `json:"top_group,omitempty"`
	TopThreeShare    float64            `json:"top_three_share"`
	Distribution     []DistributionItem `json:"distribution"`
}

// PositionView is a record plus the fields derived from it for display.
type PositionView struct {
	model.PositionRecord
	DaysHeld *int `json:"daysHeld,omitempty"`
}

// PortfolioState is the session snapshot returned to clients.
type PortfolioState struct {
	UserID        string         `json:"user_id,omitempty"`
	Anonymous     bool           `json:"anonymous"`
	Version       uint64         `json:"version"`
	Banner        string         `json:"banner,omitempty"`
	Stocks        []PositionView `json:"stocks"`
	TotalOpenRisk float64        `json:"totalOpenRisk"`
	TotalInvested float64        `json:"totalInvested"`
	Settings      model.Settings `json:"settings"`
}

type UpdateSettingsRequest struct {
	Title           *string          `json:"title" validate:"omitempty,max=120"`
	Date            *string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	MaxRiskPerEntry *float64         `json:"maxRiskPerEntry" validate:"omitempty,gte=0,lte=100"`
	DateRange       *model.DateRange `json:"dateRange"`
}

type EditStockRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

type GroupByQuery struct {
	GroupBy string `query:"group_by" validate:"omitempty,oneof=sector industry"`
}

type SuggestQuery struct {
	Q string `query:"q" validate:"required,max=20"`
}

type TickerInfo struct {
	Ticker       string        `json:"ticker"`
	Industry     string        `json:"industry"`
	Sector       string        `json:"sector"`
	Mapped       bool          `json:"mapped"`
	LastPrice    *float64      `json:"last_price,omitempty"`
	CircuitLimit *CircuitLimit `json:"circuit_limit,omitempty"`
}

type MarketStatus struct {
	Live     bool   `json:"live"`
	Now      string `json:"now"`
	TimeZone string `json:"time_zone"`
	Banner   string `json:"banner,omitempty"`
	// NextRuns maps scheduled job names to their next fire time.
	NextRuns map[string]time.Time `json:"next_runs,omitempty"`
}

// ReconcileResult reports what one reconciliation pass did.
type ReconcileResult struct {
	PassID    string `json:"pass_id"`
	Eligible  int    `json:"eligible"`
	Fetched   int    `json:"fetched"`
	Failed    int    `json:"failed"`
	Applied   int    `json:"applied"`
	Stale     bool   `json:"stale"`
	Cancelled bool   `json:"cancelled"`
}
