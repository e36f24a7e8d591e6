package components

import (
	"fmt"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is what the status bar reports on its right side.
type StatusInfo struct {
	DataAge    string
	Records    int
	Filtered   int
	Refreshing bool
	CacheHits  int64
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface).
		Width(width)

	left := " [?]help  [f]ilters  [m]aturity  [l]atest  [r]eload  [q]uit"

	var parts []string
	if info.Refreshing {
		parts = append(parts, "reloading…")
	}
	if info.Records > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d loans", info.Filtered, info.Records))
	}
	if info.CacheHits > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", info.CacheHits))
	}
	if info.DataAge != "" {
		parts = append(parts, "load "+info.DataAge)
	}
	right := strings.Join(parts, "  ") + " "

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return style.Render(left + strings.Repeat(" ", padding) + right)
}
