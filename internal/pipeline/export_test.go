package pipeline

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

func TestExportDefaults(t *testing.T) {
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []model.LoanRecord{
		withAmount(withRegion(loan(t, "1", "05/03/2024", true), "Norte", "N1"), "4500"),
		withRegion(loan(t, "2", "06/03/2024", false), "Norte", "N1"),
		withRegion(loan(t, "3", "07/03/2024", true), "Sur", "S1"),
		withRegion(loan(t, "4", "07/04/2024", true), "Norte", "N1"),
		withRegion(loan(t, "5", "20/05/2024", true), "Norte", "N1"),
	}

	filtered := Apply(records, Filter{
		Dimensions:     DimensionFilter{Regions: []string{"Norte"}},
		MaturityMonths: 2,
	}, asOf)

	var buf bytes.Buffer
	n, err := ExportDefaults(&buf, filtered, "2024-03")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
	if c := CountDefaults(filtered, "2024-03"); c != n {
		t.Errorf("CountDefaults = %d, want %d", c, n)
	}

	out, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("csv lines = %d, want 2", len(out))
	}
	if len(out[0]) != len(ExportColumns) || out[0][0] != "id" {
		t.Errorf("header = %v", out[0])
	}
	row := out[1]
	if row[0] != "1" || row[1] != "05/03/2024" || row[2] != "2024-03" || row[8] != "4500.00" {
		t.Errorf("row = %v", row)
	}
}

func TestExportDefaults_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := ExportDefaults(&buf, nil, "2024-03")
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if buf.String() == "" {
		t.Error("header not written for empty export")
	}
	if CountDefaults(nil, "2024-03") != 0 {
		t.Error("CountDefaults on no records")
	}
	if ExportFilename("2024-03") != "fpd_2024-03.csv" {
		t.Errorf("filename = %s", ExportFilename("2024-03"))
	}
}
