package cli

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatNumber(t *testing.T) {
	for in, want := range map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
		-45000:  "-45,000",
	} {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatRateAndDelta(t *testing.T) {
	if got := FormatRate(20); got != "20.0%" {
		t.Errorf("FormatRate(20) = %q", got)
	}
	if got := FormatDelta(1.25); got != "+1.2 pp" && got != "+1.3 pp" {
		t.Errorf("FormatDelta(1.25) = %q", got)
	}
	if got := FormatDelta(-3); got != "-3.0 pp" {
		t.Errorf("FormatDelta(-3) = %q", got)
	}
	if got := FormatDelta(0); got != "+0.0 pp" {
		t.Errorf("FormatDelta(0) = %q", got)
	}
	if TrendArrow(2) != "▲" || TrendArrow(-2) != "▼" || TrendArrow(0) != "=" {
		t.Error("TrendArrow mismatch")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[string]string{
		"950":        "$950",
		"12500":      "$12.5K",
		"3400000":    "$3.4M",
		"2500000000": "$2.5B",
		"-1500":      "-$1.5K",
	}
	for in, want := range tests {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatCosecha(t *testing.T) {
	if got := FormatCosecha("2024-03"); got != "Mar 2024" {
		t.Errorf("FormatCosecha = %q", got)
	}
	if got := FormatCosechaShort("2024-03"); got != "Mar'24" {
		t.Errorf("FormatCosechaShort = %q", got)
	}
	if got := FormatCosecha("bogus"); got != "bogus" {
		t.Errorf("FormatCosecha(bogus) = %q", got)
	}
}
