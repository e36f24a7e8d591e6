package source

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"01/03/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"1/3/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"15/03/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{" 29/02/2024 10:30:00 ", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"   ", time.Time{}, false},
		{"32/01/2024", time.Time{}, false},
		{"29/02/2023", time.Time{}, false},
		{"01-03-2024", time.Time{}, false},
		{"03/13/2024", time.Time{}, false},
		{"garbage", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in, "")
		if ok != tt.wantOK {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCosechaKey_SortsChronologically(t *testing.T) {
	keys := []string{
		CosechaKey(time.Date(2023, 12, 5, 0, 0, 0, 0, time.UTC)),
		CosechaKey(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
		CosechaKey(time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC)),
	}
	if keys[0] != "2023-12" || keys[1] != "2024-01" || keys[2] != "2024-10" {
		t.Fatalf("keys = %v", keys)
	}
	if !(keys[0] < keys[1] && keys[1] < keys[2]) {
		t.Errorf("keys not in lexicographic order: %v", keys)
	}
}

func TestOutcomeRule_Eval(t *testing.T) {
	tests := []struct {
		rule   OutcomeRule
		in     string
		want   bool
		wantOK bool
	}{
		{OutcomeRule{Mode: OutcomeNumeric}, "1", true, true},
		{OutcomeRule{Mode: OutcomeNumeric}, "0", false, true},
		{OutcomeRule{Mode: OutcomeNumeric}, "1.0", true, true},
		{OutcomeRule{Mode: OutcomeNumeric}, " 0.0 ", false, true},
		{OutcomeRule{Mode: OutcomeNumeric}, "FPD", false, false},
		{OutcomeRule{Mode: OutcomeNumeric}, "", false, false},
		{OutcomeRule{Mode: OutcomeMarker, Marker: "FPD"}, "FPD", true, true},
		{OutcomeRule{Mode: OutcomeMarker, Marker: "FPD"}, " fpd ", true, true},
		{OutcomeRule{Mode: OutcomeMarker, Marker: "FPD"}, "1", false, true},
		{OutcomeRule{Mode: OutcomeBoolean}, "true", true, true},
		{OutcomeRule{Mode: OutcomeBoolean}, "False", false, true},
		{OutcomeRule{Mode: OutcomeBoolean}, "si", true, true},
		{OutcomeRule{Mode: OutcomeBoolean}, "maybe", false, false},
	}
	for _, tt := range tests {
		got, ok := tt.rule.Eval(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s.Eval(%q) = %v,%v, want %v,%v", tt.rule.Mode, tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestOutcomeRule_Validate(t *testing.T) {
	if err := (OutcomeRule{Mode: OutcomeNumeric}).Validate(); err != nil {
		t.Errorf("numeric: %v", err)
	}
	if err := (OutcomeRule{Mode: OutcomeMarker}).Validate(); err == nil {
		t.Error("marker without value should fail")
	}
	if err := (OutcomeRule{Mode: "fuzzy"}).Validate(); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		sep    rune
		want   string
		wantOK bool
	}{
		{"3000", '.', "3000", true},
		{"3000.01", '.', "3000.01", true},
		{"$12,500.50", '.', "12500.5", true},
		{"1,234,567", '.', "1234567", true},
		{" 8 000 ", '.', "8000", true},
		{"-5", '.', "-5", true},
		{"", '.', "0", false},
		{"n/a", '.', "0", false},
		// a decimal comma in a dot-decimal file is rejected, not scaled up
		{"3000,50", '.', "0", false},
		{"12,50.5", '.', "0", false},
		{"1.2.3", '.', "0", false},

		{"3000,50", ',', "3000.5", true},
		{"3.000,50", ',', "3000.5", true},
		{"$ 12.500", ',', "12500", true},
		{"3000", ',', "3000", true},
		{"3000.50", ',', "0", false},
		{"3000,5,0", ',', "0", false},
		{"3000,", ',', "0", false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in, tt.sep)
		if ok != tt.wantOK || got.String() != tt.want {
			t.Errorf("ParseAmount(%q, %q) = %s,%v, want %s,%v", tt.in, tt.sep, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDecimalSeparator(t *testing.T) {
	tests := []struct {
		setting string
		delim   rune
		want    rune
		wantErr bool
	}{
		{"auto", ';', ',', false},
		{"auto", ',', '.', false},
		{"", '\t', '.', false},
		{".", ';', '.', false},
		{",", ',', ',', false},
		{"x", ',', 0, true},
	}
	for _, tt := range tests {
		got, err := DecimalSeparator(tt.setting, tt.delim)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("DecimalSeparator(%q, %q) = %q,%v", tt.setting, tt.delim, got, err)
		}
	}
}

func TestNormalizeDimension(t *testing.T) {
	for in, want := range map[string]string{
		"":        "N/A",
		"  ":      "N/A",
		"null":    "N/A",
		"NaN":     "N/A",
		" North ": "North",
		"Sur":     "Sur",
	} {
		if got := NormalizeDimension(in); got != want {
			t.Errorf("NormalizeDimension(%q) = %q, want %q", in, got, want)
		}
	}
}
