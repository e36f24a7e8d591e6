package tui

import (
	"fmt"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/components"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderAmountsTab(cw int) string {
	t := theme.Active
	th := a.opts.Thresholds

	innerW := components.CardInnerWidth(cw)
	labelW := 10
	tailW := 22
	barW := max(innerW-labelW-tailW-8, 10)

	maxRate := 0.0
	for _, r := range a.buckets {
		maxRate = max(maxRate, r.Rate)
	}

	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	for i, r := range a.buckets {
		if i > 0 {
			b.WriteString("\n")
		}
		if r.Total == 0 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("%-*s", labelW, r.Label)))
			b.WriteString(dimStyle.Render(" no loans"))
			continue
		}
		b.WriteString(components.RateBar(r.Label, labelW, r.Rate, maxRate, barW, t.Risk(th.Classify(r.Rate))))
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s of %s",
			cli.FormatCount(r.Defaults), cli.FormatCount(r.Total))))
	}
	if a.noAmount > 0 {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s loans without a usable amount are not bucketed.",
			cli.FormatCount(a.noAmount))))
	}

	return components.ContentCard("FPD rate by approved amount", b.String(), cw)
}
