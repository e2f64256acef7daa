package helper

import (
	"math"
	"sort"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/model"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// OtherLabel groups tickers that the reference table does not know.
const OtherLabel = "Other"

// LabelFunc maps a record to the group it is counted under. An empty label
// excludes the record from the grouping.
type LabelFunc func(rec model.PositionRecord) string

// SectorLookup is the part of the resolver the sector grouping needs.
type SectorLookup interface {
	Sector(ticker string) (string, bool)
}

// Round2 rounds half away from zero to two places. NaN and infinities are
// returned as is.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func openRisks(records []model.PositionRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.OpenRiskPercent
	}
	return out
}

func sizes(records []model.PositionRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.SizePercent
	}
	return out
}

// TotalOpenRisk sums open risk over every record regardless of status.
func TotalOpenRisk(records []model.PositionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	return Round2(floats.Sum(openRisks(records)))
}

// TotalInvested sums the capital allocation of every record.
func TotalInvested(records []model.PositionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	return Round2(floats.Sum(sizes(records)))
}

// WeightedReturn is the size weighted mean return of the records with the
// given status. A record without a return counts as zero. When nothing
// matches, or the matching sizes sum to zero, the result is 0.
func WeightedReturn(records []model.PositionRecord, status model.Status) float64 {
	var returns, weights []float64
	for _, r := range records {
		if r.Status != status {
			continue
		}
		ret := 0.0
		if r.ReturnPercent != nil {
			ret = *r.ReturnPercent
		}
		returns = append(returns, ret)
		weights = append(weights, r.SizePercent)
	}
	if len(weights) == 0 {
		return 0
	}

	denominator := floats.Sum(weights)
	if denominator == 0 {
		denominator = 1
	}
	return Round2(floats.Dot(returns, weights) / denominator)
}

// Distribution groups records by label, sums their size per group and sorts
// the groups by descending value. Equal values keep first-seen order.
func Distribution(records []model.PositionRecord, label LabelFunc) []dto.DistributionItem {
	index := make(map[string]int)
	var names []string
	var values []float64

	for _, r := range records {
		name := label(r)
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(names)
			index[name] = i
			names = append(names, name)
			values = append(values, 0)
		}
		values[i] += r.SizePercent
	}

	items := make([]dto.DistributionItem, 0, len(names))
	if len(names) == 0 {
		return items
	}

	total := floats.Sum(values)
	if total == 0 {
		total = 1
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})

	for _, i := range order {
		items = append(items, dto.DistributionItem{
			Name:       names[i],
			Value:      Round2(values[i]),
			Percentage: Round2(values[i] / total * 100),
		})
	}
	return items
}

// SectorLabel prefers the reference table sector, then the sector stored on
// the record, then OtherLabel.
func SectorLabel(lookup SectorLookup) LabelFunc {
	return func(rec model.PositionRecord) string {
		if lookup != nil {
			if sector, ok := lookup.Sector(rec.Ticker); ok {
				return sector
			}
		}
		if rec.Sector != "" {
			return rec.Sector
		}
		return OtherLabel
	}
}

// IndustryLabel uses the record industry and falls back to the ticker.
func IndustryLabel(rec model.PositionRecord) string {
	if rec.Industry != "" {
		return rec.Industry
	}
	return rec.Ticker
}

// Summarize builds the statistics panel for a document.
func Summarize(doc model.Document, groupBy dto.GroupBy, lookup SectorLookup) dto.Summary {
	label := LabelFunc(IndustryLabel)
	if groupBy != dto.GroupByIndustry {
		groupBy = dto.GroupBySector
		label = SectorLabel(lookup)
	}

	dist := Distribution(doc.Stocks, label)
	summary := dto.Summary{
		UniqueHoldings:   len(doc.Stocks),
		TotalOpenRisk:    TotalOpenRisk(doc.Stocks),
		TotalInvested:    TotalInvested(doc.Stocks),
		UnrealisedReturn: WeightedReturn(doc.Stocks, model.StatusOpen),
		RealisedReturn:   WeightedReturn(doc.Stocks, model.StatusClosed),
		MaxRiskPerEntry:  doc.Settings.MaxRiskPerEntry,
		GroupBy:          groupBy,
		Distribution:     dist,
	}

	if len(dist) > 0 {
		top := dist[0]
		summary.TopGroup = &top
	}
	var share float64
	for i := 0; i < len(dist) && i < 3; i++ {
		share += dist[i].Percentage
	}
	summary.TopThreeShare = Round2(share)
	return summary
}
