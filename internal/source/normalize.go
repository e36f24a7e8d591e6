package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// DefaultDateLayout parses day/month/year dates such as "1/3/2024" or "01/03/2024".
const DefaultDateLayout = "2/1/2006"

// ParseDate parses an origination date. Anything after the first
// whitespace (a time-of-day component) is ignored. Empty, malformed or
// impossible dates return false.
func ParseDate(text, layout string) (time.Time, bool) {
	if layout == "" {
		layout = DefaultDateLayout
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, fields[0])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CosechaKey renders the origination month as "YYYY-MM".
func CosechaKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// OutcomeMode selects how an outcome column is read. Exactly one mode is
// active per deployment.
type OutcomeMode string

const (
	// OutcomeNumeric treats any non-zero number as a default.
	OutcomeNumeric OutcomeMode = "numeric"
	// OutcomeMarker treats a case-insensitive match of Marker as a default.
	OutcomeMarker OutcomeMode = "marker"
	// OutcomeBoolean reads a precomputed true/false column.
	OutcomeBoolean OutcomeMode = "boolean"
)

// OutcomeRule is the single definition of a positive outcome.
type OutcomeRule struct {
	Mode   OutcomeMode
	Marker string
}

// Validate reports configuration errors.
func (r OutcomeRule) Validate() error {
	switch r.Mode {
	case OutcomeNumeric, OutcomeBoolean:
		return nil
	case OutcomeMarker:
		if strings.TrimSpace(r.Marker) == "" {
			return fmt.Errorf("outcome mode %q requires a marker", r.Mode)
		}
		return nil
	}
	return fmt.Errorf("unknown outcome mode %q (want numeric, marker or boolean)", r.Mode)
}

// Eval maps a raw outcome value to default/non-default. ok is false when
// the value does not fit the rule; the caller treats it as non-default.
func (r OutcomeRule) Eval(raw string) (positive, ok bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return false, false
	}
	switch r.Mode {
	case OutcomeMarker:
		return strings.EqualFold(v, strings.TrimSpace(r.Marker)), true
	case OutcomeBoolean:
		switch strings.ToLower(v) {
		case "true", "t", "1", "yes", "y", "si", "sí":
			return true, true
		case "false", "f", "0", "no", "n":
			return false, true
		}
		return false, false
	default:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, false
		}
		return f != 0, true
	}
}

var amountReplacer = strings.NewReplacer("$", "", " ", "", "\u00a0", "", "MXN", "", "mxn", "")

// ParseAmount coerces a monetary amount written with decimalSep ('.' or ',')
// as the decimal separator. Currency symbols and spaces are stripped. The
// other separator is accepted only as a thousands separator between
// three-digit groups; anything else is rejected rather than guessed.
func ParseAmount(text string, decimalSep rune) (decimal.Decimal, bool) {
	v := amountReplacer.Replace(strings.TrimSpace(text))
	if v == "" {
		return decimal.Zero, false
	}

	group := ","
	if decimalSep == ',' {
		group = "."
	}
	whole, frac, hasFrac := strings.Cut(v, string(decimalSep))
	if hasFrac && (frac == "" || strings.ContainsAny(frac, ".,")) {
		return decimal.Zero, false
	}
	if strings.Contains(whole, group) {
		parts := strings.Split(whole, group)
		lead := strings.TrimLeft(parts[0], "+-")
		if lead == "" || len(lead) > 3 {
			return decimal.Zero, false
		}
		for _, p := range parts[1:] {
			if len(p) != 3 {
				return decimal.Zero, false
			}
		}
		whole = strings.Join(parts, "")
	}
	if hasFrac {
		whole += "." + frac
	}

	d, err := decimal.NewFromString(whole)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// DecimalSeparator resolves a decimal separator setting. "auto" follows the
// field delimiter: semicolon-separated extracts use a decimal comma.
func DecimalSeparator(setting string, delim rune) (rune, error) {
	switch setting {
	case "", "auto":
		if delim == ';' {
			return ',', nil
		}
		return '.', nil
	case ".":
		return '.', nil
	case ",":
		return ',', nil
	}
	return 0, fmt.Errorf("unsupported decimal separator %q", setting)
}

// NormalizeDimension trims a categorical value, substituting the N/A sentinel
// for empty and null-like values.
func NormalizeDimension(text string) string {
	v := strings.TrimSpace(text)
	switch strings.ToLower(v) {
	case "", "null", "nan", "none", "n/a":
		return model.NotAvailable
	}
	return v
}
