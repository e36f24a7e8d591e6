// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatCount formats a record count.
func FormatCount(n int) string {
	return FormatNumber(int64(n))
}

// FormatRate formats a percentage already on the 0-100 scale.
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate)
}

// FormatDelta formats a rate change in percentage points with its sign.
func FormatDelta(pp float64) string {
	if pp >= 0 {
		return fmt.Sprintf("+%.1f pp", pp)
	}
	return fmt.Sprintf("%.1f pp", pp)
}

// TrendArrow returns an arrow for a rate change. A rising FPD rate is bad,
// so callers color "▲" as a warning.
func TrendArrow(pp float64) string {
	switch {
	case pp > 0.05:
		return "▲"
	case pp < -0.05:
		return "▼"
	}
	return "="
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// FormatAmount formats a monetary total with human-readable suffixes.
// e.g., 950 -> "$950", 12500 -> "$12.5K", 3400000 -> "$3.4M"
func FormatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	switch {
	case d.GreaterThanOrEqual(billion):
		return sign + "$" + d.Div(billion).StringFixed(1) + "B"
	case d.GreaterThanOrEqual(million):
		return sign + "$" + d.Div(million).StringFixed(1) + "M"
	case d.GreaterThanOrEqual(thousand):
		return sign + "$" + d.Div(thousand).StringFixed(1) + "K"
	}
	return sign + "$" + d.StringFixed(0)
}

// FormatCosecha renders a "YYYY-MM" key as "Mar 2024". Unparseable keys
// are returned unchanged.
func FormatCosecha(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("Jan 2006")
}

// FormatCosechaShort renders a "YYYY-MM" key as "Mar'24" for chart axes.
func FormatCosechaShort(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("Jan'06")
}
