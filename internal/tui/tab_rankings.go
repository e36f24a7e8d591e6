package tui

import (
	"fmt"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/components"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

const rankingTop = 10

func (a App) renderRankingsTab(cw int) string {
	t := theme.Active
	th := a.opts.Thresholds

	title := fmt.Sprintf("%s ranking · %s", a.rankDim.Label(), cli.FormatCosecha(a.rankCosecha))
	hintStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	hint := hintStyle.Render(fmt.Sprintf("d: change dimension   [ ]: older / newer cosecha   min volume > %d loans", a.opts.MinVolume))

	best, worst, ok := pipeline.Extremes(a.ranked)
	if !ok {
		mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
		body := mutedStyle.Render(fmt.Sprintf("No %s has more than %d loans in %s.",
			strings.ToLower(a.rankDim.Label()), a.opts.MinVolume, cli.FormatCosecha(a.rankCosecha)))
		return components.ContentCard(title, body+"\n\n"+hint, cw)
	}

	var b strings.Builder
	b.WriteString(components.MetricCardRow([]components.Metric{
		{
			Label: "Best " + strings.ToLower(a.rankDim.Label()),
			Value: truncStr(best.Value, 20),
			Delta: fmt.Sprintf("%s of %s", cli.FormatRate(best.Rate), cli.FormatCount(best.Total)),
			Color: t.Green,
		},
		{
			Label: "Worst " + strings.ToLower(a.rankDim.Label()),
			Value: truncStr(worst.Value, 20),
			Delta: fmt.Sprintf("%s of %s", cli.FormatRate(worst.Rate), cli.FormatCount(worst.Total)),
			Color: t.Risk(th.Classify(worst.Rate)),
		},
		{
			Label: "Ranked",
			Value: cli.FormatCount(len(a.ranked)),
			Delta: cli.FormatCosecha(a.rankCosecha),
		},
	}, cw))
	b.WriteString("\n")

	worstRows := pipeline.TopWorst(a.ranked, rankingTop)
	bestRows := pipeline.TopBest(a.ranked, rankingTop)
	maxRate := 0.0
	for _, r := range worstRows {
		maxRate = max(maxRate, r.Rate)
	}

	if a.isCompactLayout() {
		b.WriteString(components.ContentCard("Highest FPD", a.rankList(worstRows, cw, maxRate), cw))
		b.WriteString("\n")
		b.WriteString(components.ContentCard("Lowest FPD", a.rankList(bestRows, cw, maxRate)+"\n\n"+hint, cw))
		return b.String()
	}

	widths := components.LayoutRow(cw, 2)
	b.WriteString(components.CardRow([]string{
		components.ContentCard("Highest FPD", a.rankList(worstRows, widths[0], maxRate), widths[0]),
		components.ContentCard("Lowest FPD", a.rankList(bestRows, widths[1], maxRate), widths[1]),
	}))
	b.WriteString("\n")
	b.WriteString(components.ContentCard(title, hint, cw))
	return b.String()
}

func (a App) rankList(rows []model.VintageRow, outerW int, maxRate float64) string {
	t := theme.Active
	th := a.opts.Thresholds

	innerW := components.CardInnerWidth(outerW)
	labelW := min(max(innerW/3, 10), 22)
	countW := 8
	barW := max(innerW-labelW-countW-9, 6)

	countStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(components.RateBar(truncStr(r.Value, labelW), labelW, r.Rate, maxRate, barW, t.Risk(th.Classify(r.Rate))))
		b.WriteString(countStyle.Render(fmt.Sprintf(" %*s", countW, cli.FormatCount(r.Total))))
	}
	return b.String()
}
