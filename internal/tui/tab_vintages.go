package tui

import (
	"fmt"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/components"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderVintagesTab(cw int) string {
	t := theme.Active
	th := a.opts.Thresholds
	rows := a.vintages

	var b strings.Builder

	// Row 1: metric cards
	summary := pipeline.Summary(a.filtered)
	metrics := []components.Metric{
		{Label: "Loans", Value: cli.FormatCount(summary.Records)},
		{Label: "FPD cases", Value: cli.FormatCount(summary.Defaults)},
		{Label: "Portfolio FPD", Value: cli.FormatRate(summary.Rate), Color: t.Risk(th.Classify(summary.Rate))},
	}
	if cmp, ok := pipeline.LatestAndPrevious(rows); ok && len(rows) > 1 {
		delta := cmp.Delta()
		metrics = append(metrics, components.Metric{
			Label: "Latest " + cli.FormatCosecha(cmp.Current.Cosecha),
			Value: cli.FormatRate(cmp.Current.Rate),
			Delta: fmt.Sprintf("%s %s vs %s", cli.TrendArrow(delta), cli.FormatDelta(delta), cli.FormatCosechaShort(cmp.Previous.Cosecha)),
			Color: t.Risk(th.Classify(cmp.Current.Rate)),
		})
	} else if len(rows) == 1 {
		metrics = append(metrics, components.Metric{
			Label: "Latest " + cli.FormatCosecha(rows[0].Cosecha),
			Value: cli.FormatRate(rows[0].Rate),
			Delta: "no prior cosecha",
			Color: t.Risk(th.Classify(rows[0].Rate)),
		})
	}
	b.WriteString(components.MetricCardRow(metrics, cw))
	b.WriteString("\n")

	// Row 2: FPD rate per cosecha
	values := make([]float64, len(rows))
	labels := make([]string, len(rows))
	for i, r := range rows {
		values[i] = r.Rate
		labels[i] = cli.FormatCosechaShort(r.Cosecha)
	}
	chartH := 10
	if a.isCompactLayout() {
		chartH = 7
	}
	chart := components.BarChart(values, labels, components.ChartOptions{
		Width:      components.CardInnerWidth(cw),
		Height:     chartH,
		Colors:     func(v float64) lipgloss.Color { return t.Risk(th.Classify(v)) },
		ShowValues: true,
	})
	b.WriteString(components.ContentCard("FPD rate by cosecha", chart, cw))
	b.WriteString("\n")

	// Row 3: recent cosechas
	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	var table strings.Builder
	table.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %9s %8s %8s %9s  %14s", "Cosecha", "Loans", "FPD", "Rate", "Change", "Amount")))
	table.WriteString("\n")
	table.WriteString(mutedStyle.Render(strings.Repeat("─", 64)))
	table.WriteString("\n")

	recent := pipeline.LastN(rows, 6)
	offset := len(rows) - len(recent)
	for i := len(recent) - 1; i >= 0; i-- {
		r := recent[i]
		table.WriteString(rowStyle.Render(fmt.Sprintf("%-10s %9s %8s ",
			cli.FormatCosecha(r.Cosecha), cli.FormatCount(r.Total), cli.FormatCount(r.Defaults))))
		rateStyle := lipgloss.NewStyle().Foreground(t.Risk(th.Classify(r.Rate))).Background(t.Surface)
		table.WriteString(rateStyle.Render(fmt.Sprintf("%8s", cli.FormatRate(r.Rate))))
		table.WriteString(spaceStyle.Render(" "))
		if idx := offset + i; idx > 0 {
			delta := r.Rate - rows[idx-1].Rate
			table.WriteString(deltaStyle(delta).Render(fmt.Sprintf("%9s", cli.FormatDelta(delta))))
		} else {
			table.WriteString(mutedStyle.Render(fmt.Sprintf("%9s", "-")))
		}
		table.WriteString(rowStyle.Render(fmt.Sprintf("  %14s", cli.FormatAmount(r.AmountTotal))))
		table.WriteString("\n")
	}
	b.WriteString(components.ContentCard("Recent cosechas", strings.TrimRight(table.String(), "\n"), cw))

	return b.String()
}

// deltaStyle colors a rate change: rising FPD is bad.
func deltaStyle(pp float64) lipgloss.Style {
	t := theme.Active
	color := t.TextMuted
	switch {
	case pp > 0:
		color = t.Red
	case pp < 0:
		color = t.Green
	}
	return lipgloss.NewStyle().Foreground(color).Background(t.Surface)
}
