package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// ChartOptions controls BarChart rendering.
type ChartOptions struct {
	Width  int
	Height int
	// Colors picks a bar color per value; nil uses the theme accent.
	Colors func(v float64) lipgloss.Color
	// ShowValues prints each value under its bar when bars are wide enough.
	ShowValues bool
}

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak == 0 {
		peak = 1
	}

	var buf strings.Builder
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		buf.WriteRune(blocks[min(max(idx, 0), len(blocks)-1)])
	}
	return lipgloss.NewStyle().Foreground(color).Background(t.Surface).Render(buf.String())
}

// BarChart renders percentage values as vertical bars with a percent Y
// axis and one label per bar. Labels that do not fit are thinned out.
func BarChart(values []float64, labels []string, opts ChartOptions) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active
	if opts.Width < 15 || opts.Height < 3 {
		return Sparkline(values, t.Accent)
	}
	colorFor := opts.Colors
	if colorFor == nil {
		colorFor = func(float64) lipgloss.Color { return t.Accent }
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	tickStep := chartTickStep(maxVal)
	maxIntervals := max(opts.Height/2, 2)
	for int(math.Ceil(maxVal/tickStep)) > maxIntervals {
		tickStep *= 2
	}
	ceiling := math.Ceil(maxVal/tickStep) * tickStep
	numIntervals := max(int(math.Round(ceiling/tickStep)), 1)
	rowsPerTick := max(opts.Height/numIntervals, 2)
	chartH := rowsPerTick * numIntervals

	yLabelW := max(len(formatPercentTick(ceiling))+1, 4)
	tickLabels := make(map[int]string)
	for i := 1; i <= numIntervals; i++ {
		tickLabels[i*rowsPerTick] = formatPercentTick(tickStep * float64(i))
	}

	chartW := max(opts.Width-yLabelW-1, 5)
	n := len(values)
	gap := 1
	if n == 1 {
		gap = 0
	}
	barW := chartW
	if n > 1 {
		barW = (chartW - (n - 1)) / n
	}
	if barW < 2 && n > 1 {
		// Keep the most recent bars that fit.
		keep := max((chartW+1)/3, 2)
		values = values[n-keep:]
		if len(labels) == n {
			labels = labels[n-keep:]
		}
		n = keep
		barW = 2
	}
	barW = min(barW, 6)
	axisLen := n*barW + max(0, n-1)*gap

	blocks := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	blank := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	for row := chartH; row >= 1; row-- {
		rowTop := ceiling * float64(row) / float64(chartH)
		rowBottom := ceiling * float64(row-1) / float64(chartH)

		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, tickLabels[row])))
		b.WriteString(axisStyle.Render("│"))
		for i, v := range values {
			if i > 0 && gap > 0 {
				b.WriteString(blank.Render(strings.Repeat(" ", gap)))
			}
			barStyle := lipgloss.NewStyle().Foreground(colorFor(v)).Background(t.Surface)
			switch {
			case v >= rowTop:
				b.WriteString(barStyle.Render(strings.Repeat("█", barW)))
			case v > rowBottom:
				idx := int((v - rowBottom) / (rowTop - rowBottom) * 8)
				b.WriteString(barStyle.Render(strings.Repeat(string(blocks[min(max(idx, 1), 8)]), barW)))
			default:
				b.WriteString(blank.Render(strings.Repeat(" ", barW)))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, "0")))
	b.WriteString(axisStyle.Render("└"))
	b.WriteString(axisStyle.Render(strings.Repeat("─", axisLen)))

	labelStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	indent := blank.Render(strings.Repeat(" ", yLabelW+1))

	if opts.ShowValues && barW >= 5 {
		vals := make([]string, n)
		for i, v := range values {
			vals[i] = fmt.Sprintf("%.1f", v)
		}
		b.WriteString("\n")
		b.WriteString(indent)
		b.WriteString(labelStyle.Render(placeLabels(vals, barW, gap, axisLen, 1)))
	}

	if len(labels) == n {
		b.WriteString("\n")
		b.WriteString(indent)
		b.WriteString(labelStyle.Render(placeLabels(labels, barW, gap, axisLen, 8)))
	}
	return b.String()
}

// placeLabels lays labels under their bars, skipping any that would
// overlap a neighbor. The last label is placed first so it always shows.
func placeLabels(labels []string, barW, gap, axisLen, minSpacing int) string {
	n := len(labels)
	buf := []rune(strings.Repeat(" ", axisLen))
	step := max(1, (n*minSpacing)/(axisLen+1))

	limit := axisLen
	if last := []rune(labels[n-1]); len(last) <= axisLen {
		pos := min((n-1)*(barW+gap), axisLen-len(last))
		copy(buf[pos:], last)
		limit = pos - 1
	}

	lastEnd := -1
	for i := 0; i < n-1; i += step {
		lbl := []rune(labels[i])
		pos := i * (barW + gap)
		if pos <= lastEnd || pos+len(lbl) > limit {
			continue
		}
		copy(buf[pos:], lbl)
		lastEnd = pos + len(lbl)
	}
	return strings.TrimRight(string(buf), " ")
}

// chartTickStep computes a nice tick interval targeting ~5 ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	exp := math.Floor(math.Log10(rough))
	base := math.Pow(10, exp)
	frac := rough / base

	switch {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatPercentTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f%%", v)
	}
	return fmt.Sprintf("%.1f%%", v)
}
