package helper

import (
	"fmt"
	"strings"
	"time"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/internal/model"
	"portfolio-tracker/pkg/utils"
)

// FormatPortfolioReport renders a document and its summary as Markdown.
func FormatPortfolioReport(doc model.Document, summary dto.Summary, now time.Time) string {
	var builder strings.Builder

	title := doc.Settings.Title
	if title == "" {
		title = model.DefaultTitle
	}
	builder.WriteString(fmt.Sprintf("# %s\n\n", title))
	builder.WriteString(fmt.Sprintf("_As of %s_\n\n", now.Format("02 Jan 2006 15:04 MST")))

	builder.WriteString("## Summary\n\n")
	builder.WriteString("| Metric | Value |\n|---|---:|\n")
	builder.WriteString(fmt.Sprintf("| Holdings | %d |\n", summary.UniqueHoldings))
	builder.WriteString(fmt.Sprintf("| Total invested | %.2f%% |\n", summary.TotalInvested))
	builder.WriteString(fmt.Sprintf("| Total open risk | %.2f%% |\n", summary.TotalOpenRisk))
	builder.WriteString(fmt.Sprintf("| Max risk per entry | %.2f%% |\n", summary.MaxRiskPerEntry))
	builder.WriteString(fmt.Sprintf("| Unrealised return | %s |\n", utils.FormatPercentage(summary.UnrealisedReturn)))
	builder.WriteString(fmt.Sprintf("| Realised return | %s |\n", utils.FormatPercentage(summary.RealisedReturn)))
	builder.WriteString(fmt.Sprintf("| Top 3 %s share | %.2f%% |\n\n", summary.GroupBy, summary.TopThreeShare))

	builder.WriteString("## Positions\n\n")
	if len(doc.Stocks) == 0 {
		builder.WriteString("No positions.\n\n")
	} else {
		builder.WriteString("| Ticker | Status | Size | Open risk | Price | Return |\n|---|---|---:|---:|---:|---:|\n")
		for _, s := range doc.Stocks {
			ret := "-"
			if s.ReturnPercent != nil {
				ret = utils.FormatPercentage(*s.ReturnPercent)
			}
			builder.WriteString(fmt.Sprintf("| %s | %s | %.2f%% | %.2f%% | %.2f | %s |\n",
				s.Ticker, s.Status, s.SizePercent, s.OpenRiskPercent, s.LastPrice, ret))
		}
		builder.WriteString("\n")
	}

	builder.WriteString(fmt.Sprintf("## Allocation by %s\n\n", summary.GroupBy))
	for _, item := range summary.Distribution {
		builder.WriteString(fmt.Sprintf("- **%s**: %.2f%% (%.2f)\n", item.Name, item.Percentage, item.Value))
	}
	return builder.String()
}
