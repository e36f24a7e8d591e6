package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache", "fpd.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SaveAndLoad(t *testing.T) {
	c := openTestCache(t)
	df := source.DiscoveredFile{Path: "/data/a.csv", MtimeNs: 100, Size: 42}
	res := source.ParseResult{
		Records: []model.LoanRecord{
			{
				ID: "1", Origination: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Cosecha: "2024-03",
				Default: true, Amount: decimal.RequireFromString("4500.50"), HasAmount: true,
				Region: "North", Branch: "N01", Product: "Personal", ClientType: "Nuevo", Channel: "Digital",
			},
			{
				ID: "2", Origination: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), Cosecha: "2024-04",
				NonPayment: true,
				Region: model.NotAvailable, Branch: model.NotAvailable, Product: model.NotAvailable,
				ClientType: model.NotAvailable, Channel: model.NotAvailable,
			},
		},
		Stats: source.ParseStats{Rows: 3, BadDates: 1, BadNonPayments: 2},
	}

	if err := c.SaveFile(df, "rules-v1", res); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	tracked, err := c.GetTrackedFiles()
	if err != nil {
		t.Fatal(err)
	}
	fi, ok := tracked[df.Path]
	if !ok {
		t.Fatal("file not tracked")
	}
	if !fi.Matches(df, "rules-v1") {
		t.Errorf("tracked %+v does not match", fi)
	}
	if fi.Matches(df, "rules-v2") {
		t.Error("rules hash change should invalidate")
	}
	if fi.Stats.BadDates != 1 || fi.Stats.Rows != 3 || fi.Stats.BadNonPayments != 2 {
		t.Errorf("stats = %+v", fi.Stats)
	}

	recs, err := c.LoadRecords([]string{df.Path})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if !recs[0].Default || !recs[0].HasAmount || !recs[0].Amount.Equal(decimal.RequireFromString("4500.5")) {
		t.Errorf("record 0 = %+v", recs[0])
	}
	if !recs[0].Origination.Equal(res.Records[0].Origination) {
		t.Errorf("origination = %v", recs[0].Origination)
	}
	if recs[1].HasAmount || !recs[1].NonPayment || recs[1].Region != model.NotAvailable {
		t.Errorf("record 1 = %+v", recs[1])
	}
	if recs[1].SourceFile != df.Path {
		t.Errorf("SourceFile = %q", recs[1].SourceFile)
	}
}

func TestCache_SaveReplaces(t *testing.T) {
	c := openTestCache(t)
	df := source.DiscoveredFile{Path: "/data/a.csv", MtimeNs: 1, Size: 1}
	rec := model.LoanRecord{ID: "x", Origination: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Cosecha: "2024-01"}

	if err := c.SaveFile(df, "h", source.ParseResult{Records: []model.LoanRecord{rec, rec}}); err != nil {
		t.Fatal(err)
	}
	if err := c.SaveFile(df, "h", source.ParseResult{Records: []model.LoanRecord{rec}}); err != nil {
		t.Fatal(err)
	}
	n, err := c.RecordCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("RecordCount = %d, want 1", n)
	}

	if err := c.DeleteFile(df.Path); err != nil {
		t.Fatal(err)
	}
	tracked, _ := c.GetTrackedFiles()
	if len(tracked) != 0 {
		t.Errorf("tracked after delete = %v", tracked)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fpd.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = c.Close()
}
