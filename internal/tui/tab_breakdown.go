package tui

import (
	"fmt"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/components"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

const (
	breakdownCellW  = 8
	breakdownMaxRow = 15
)

func (a App) renderBreakdownTab(cw int) string {
	t := theme.Active
	th := a.opts.Thresholds

	innerW := components.CardInnerWidth(cw)
	nameW := 18
	if a.isCompactLayout() {
		nameW = 14
	}
	// Fit as many recent cosechas as the card allows.
	cols := max((innerW-nameW-10)/(breakdownCellW+1), 1)
	p := a.pivot.Trim(cols, breakdownMaxRow)

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	var grid strings.Builder
	grid.WriteString(headerStyle.Render(fmt.Sprintf("%-*s", nameW, a.breakdownDim.Label())))
	for _, c := range p.Cosechas {
		grid.WriteString(headerStyle.Render(fmt.Sprintf(" %*s", breakdownCellW, cli.FormatCosechaShort(c))))
	}
	grid.WriteString(headerStyle.Render(fmt.Sprintf(" %9s", "Loans")))
	grid.WriteString("\n")
	grid.WriteString(dimStyle.Render(strings.Repeat("─", nameW+len(p.Cosechas)*(breakdownCellW+1)+10)))
	grid.WriteString("\n")

	for _, v := range p.Values {
		grid.WriteString(nameStyle.Render(fmt.Sprintf("%-*s", nameW, truncStr(v, nameW-1))))
		loans := 0
		for _, c := range p.Cosechas {
			grid.WriteString(spaceStyle.Render(" "))
			cell, ok := p.Cell(v, c)
			if !ok {
				grid.WriteString(dimStyle.Render(fmt.Sprintf("%*s", breakdownCellW, "-")))
				continue
			}
			loans += cell.Total
			rateStyle := lipgloss.NewStyle().Foreground(t.Risk(th.Classify(cell.Rate))).Background(t.Surface)
			grid.WriteString(rateStyle.Render(fmt.Sprintf("%*s", breakdownCellW, cli.FormatRate(cell.Rate))))
		}
		grid.WriteString(mutedStyle.Render(fmt.Sprintf(" %9s", cli.FormatCount(loans))))
		grid.WriteString("\n")
	}
	if hidden := len(a.pivot.Values) - len(p.Values); hidden > 0 {
		grid.WriteString(dimStyle.Render(fmt.Sprintf("+%d more", hidden)))
		grid.WriteString("\n")
	}
	grid.WriteString(dimStyle.Render("d: change dimension"))

	var b strings.Builder
	b.WriteString(components.ContentCard(
		fmt.Sprintf("FPD rate by %s", strings.ToLower(a.breakdownDim.Label())), grid.String(), cw))
	b.WriteString("\n")
	b.WriteString(components.ContentCard("Latest vs previous cosecha", a.renderComparisons(nameW), cw))
	return b.String()
}

func (a App) renderComparisons(nameW int) string {
	t := theme.Active
	th := a.opts.Thresholds

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	if len(a.comparisons) == 0 {
		return mutedStyle.Render("Needs at least two cosechas.")
	}

	cur := a.comparisons[0].Current.Cosecha
	prev := a.comparisons[0].Previous.Cosecha

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-*s %9s %9s %11s %9s", nameW, a.breakdownDim.Label(),
		cli.FormatCosechaShort(prev), cli.FormatCosechaShort(cur), "Change", "Loans")))
	b.WriteString("\n")

	for i, c := range a.comparisons {
		if i >= breakdownMaxRow {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("+%d more", len(a.comparisons)-i)))
			break
		}
		b.WriteString(nameStyle.Render(fmt.Sprintf("%-*s", nameW, truncStr(c.Value, nameW-1))))
		b.WriteString(mutedStyle.Render(fmt.Sprintf(" %9s", cli.FormatRate(c.Previous.Rate))))
		b.WriteString(spaceStyle.Render(" "))
		curStyle := lipgloss.NewStyle().Foreground(t.Risk(th.Classify(c.Current.Rate))).Background(t.Surface)
		b.WriteString(curStyle.Render(fmt.Sprintf("%9s", cli.FormatRate(c.Current.Rate))))
		b.WriteString(spaceStyle.Render(" "))
		delta := c.Delta()
		b.WriteString(deltaStyle(delta).Render(fmt.Sprintf("%11s", cli.TrendArrow(delta)+" "+cli.FormatDelta(delta))))
		b.WriteString(mutedStyle.Render(fmt.Sprintf(" %9s", cli.FormatCount(c.Current.Total))))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
