package cli

import (
	"strings"
	"testing"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Cosecha", "Total", "Rate"},
		Rows: [][]string{
			{"2024-01", "1,200", "8.5%"},
			{"---"},
			{"2024-02", "35", "12.0%"},
		},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("lines = %d, want 7:\n%s", len(lines), out)
	}
	width := len([]rune(lines[0]))
	for i, l := range lines {
		if n := len([]rune(l)); n != width {
			t.Errorf("line %d width %d, want %d: %q", i, n, width, l)
		}
	}
	if !strings.Contains(out, "   35 ") {
		t.Errorf("numeric column not right-aligned:\n%s", out)
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if RenderTable(Table{}) != "" {
		t.Error("empty table should render nothing")
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline([]float64{0, 5, 10}); got != "▁▄█" {
		t.Errorf("sparkline = %q", got)
	}
	if got := RenderSparkline([]float64{0, 0}); got != "▁▁" {
		t.Errorf("flat sparkline = %q", got)
	}
	if RenderSparkline(nil) != "" {
		t.Error("nil sparkline should be empty")
	}
}

func TestRenderRateBar(t *testing.T) {
	th := model.DefaultRiskThresholds()
	got := RenderRateBar("$0-3K", 8, 10, 20, 10, th)
	if !strings.Contains(got, "█████") || !strings.HasSuffix(got, "10.0%") {
		t.Errorf("bar = %q", got)
	}
	if zero := RenderRateBar("x", 2, 0, 0, 4, th); !strings.HasSuffix(zero, "0.0%") {
		t.Errorf("zero bar = %q", zero)
	}
}
