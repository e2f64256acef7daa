package model

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"portfolio-tracker/pkg/utils"
)

var (
	ErrUnknownField  = errors.New("unknown field")
	ErrReadOnlyField = errors.New("field is derived and cannot be edited")
)

// Field names a user editable cell. Values match the document JSON keys.
type Field string

const (
	FieldTicker          Field = "ticker"
	FieldStatus          Field = "status"
	FieldEntryDate       Field = "buyDateString"
	FieldTradeManagement Field = "tradeMgt"
	FieldSetup           Field = "setup"
	FieldOpenRisk        Field = "openRisk"
	FieldSize            Field = "sizePercent"
	FieldLastPrice       Field = "price"
	FieldReturn          Field = "returnPercent"
	FieldIndustry        Field = "industry"
	FieldSector          Field = "sector"
	FieldCapClass        Field = "cap"
	FieldPositionSize    Field = "position"
	FieldEntryPrice      Field = "buyPrice"
)

// ParseNumber reads a numeric cell. Blank, malformed, NaN and infinite input
// all come back as nil.
func ParseNumber(raw string) *float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func numberOrZero(raw string) float64 {
	if v := ParseNumber(raw); v != nil {
		return *v
	}
	return 0
}

// WithField returns a copy of p with one cell committed. Malformed input is
// coerced to blank instead of rejected. Ticker correction against the
// reference table happens before this, in the service.
func (p PositionRecord) WithField(field Field, raw string, loc *time.Location) (PositionRecord, error) {
	out := p.Clone()
	switch field {
	case FieldTicker:
		out.Ticker = strings.ToUpper(strings.TrimSpace(raw))
	case FieldStatus:
		out.Status, _ = ParseStatus(raw)
	case FieldTradeManagement:
		out.TradeManagement, _ = ParseTradeManagement(raw)
	case FieldCapClass:
		out.CapClass, _ = ParseCapClass(raw)
	case FieldPositionSize:
		out.PositionSize, _ = ParsePositionSize(raw)
	case FieldSetup:
		out.Setup = strings.TrimSpace(raw)
	case FieldIndustry:
		out.Industry = strings.TrimSpace(raw)
	case FieldSector:
		out.Sector = strings.TrimSpace(raw)
	case FieldOpenRisk:
		out.OpenRiskPercent = numberOrZero(raw)
	case FieldSize:
		out.SizePercent = numberOrZero(raw)
	case FieldLastPrice:
		out.LastPrice = numberOrZero(raw)
	case FieldEntryPrice:
		out.EntryPrice = ParseNumber(raw)
		if out.EntryPrice != nil && *out.EntryPrice <= 0 {
			out.EntryPrice = nil
		}
		// Recomputed by the next quote for this ticker.
		out.ReturnPercent = nil
	case FieldEntryDate:
		if d, ok := utils.ParseLooseDate(raw, loc); ok {
			out.EntryDate = d.Format(utils.DateLayout)
		} else {
			out.EntryDate = ""
		}
	case FieldReturn:
		return p, ErrReadOnlyField
	default:
		return p, ErrUnknownField
	}
	return out, nil
}
