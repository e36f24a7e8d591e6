package components

import (
	"fmt"

	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

func clamp01(pct float64) float64 {
	return min(max(pct, 0), 1)
}

// ProgressBar renders the loading progress bar with a percentage.
func ProgressBar(pct float64, width int) string {
	t := theme.Active
	pct = clamp01(pct)

	barColor := t.Accent
	if pct >= 0.8 {
		barColor = t.AccentBright
	}

	bar := progress.New(
		progress.WithSolidFill(string(barColor)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	pctStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface).Bold(true)
	space := lipgloss.NewStyle().Background(t.Surface).Render(" ")
	return bar.ViewAs(pct) + space + pctStyle.Render(fmt.Sprintf("%.0f%%", pct*100))
}

// RateBar renders a labeled horizontal bar for an FPD rate scaled against
// maxRate, colored by the rate's risk color.
func RateBar(label string, labelW int, rate, maxRate float64, barWidth int, color lipgloss.Color) string {
	t := theme.Active

	pct := 0.0
	if maxRate > 0 {
		pct = clamp01(rate / maxRate)
	}

	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.Border)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	rateStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true)
	space := lipgloss.NewStyle().Background(t.Surface).Render(" ")

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) +
		space +
		bar.ViewAs(pct) +
		space +
		rateStyle.Render(fmt.Sprintf("%5.1f%%", rate))
}
