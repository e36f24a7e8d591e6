package pipeline

import (
	"testing"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

func TestMaturity_Scenario(t *testing.T) {
	asOf := time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)
	records := []model.LoanRecord{
		loan(t, "immature", "20/04/2024", false),
		loan(t, "mature", "10/03/2024", true),
		loan(t, "boundary", "15/03/2024", false),
		loan(t, "after", "16/03/2024", false),
	}

	got := ApplyMaturity(records, asOf, 2)
	ids := map[string]bool{}
	for _, r := range got {
		ids[r.ID] = true
	}
	if ids["immature"] || ids["after"] {
		t.Errorf("immature records kept: %v", ids)
	}
	if !ids["mature"] || !ids["boundary"] {
		t.Errorf("mature records dropped: %v", ids)
	}
	if len(records) != 4 {
		t.Error("input mutated")
	}
}

func TestMaturityCutoff_ClampsDay(t *testing.T) {
	tests := []struct {
		asOf   time.Time
		months int
		want   time.Time
	}{
		{time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), 2, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), 2, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 2, time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 0, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := MaturityCutoff(tt.asOf, tt.months); !got.Equal(tt.want) {
			t.Errorf("MaturityCutoff(%s, %d) = %s, want %s",
				tt.asOf.Format("2006-01-02"), tt.months, got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
		}
	}
}

func TestApplyMaturity_Disabled(t *testing.T) {
	records := []model.LoanRecord{loan(t, "1", "01/05/2024", false)}
	if got := ApplyMaturity(records, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), 0); len(got) != 1 {
		t.Errorf("disabled maturity dropped records: %d", len(got))
	}
}

func TestDimensionFilter_Scenario(t *testing.T) {
	records := []model.LoanRecord{
		withRegion(loan(t, "north", "01/03/2024", false), "North", "N1"),
		loan(t, "null", "01/03/2024", false),
	}

	got := FilterByDimensions(records, DimensionFilter{Regions: []string{"North"}})
	if len(got) != 1 || got[0].ID != "north" {
		t.Fatalf("got %+v, want only the North record", got)
	}

	all := FilterByDimensions(records, DimensionFilter{})
	if len(all) != 2 {
		t.Errorf("empty filter kept %d, want 2", len(all))
	}

	na := FilterByDimensions(records, DimensionFilter{Regions: []string{model.NotAvailable}})
	if len(na) != 1 || na[0].ID != "null" {
		t.Errorf("explicit N/A filter = %+v", na)
	}
}

func TestDimensionFilter_Conjunction(t *testing.T) {
	a := withRegion(loan(t, "a", "01/03/2024", false), "Norte", "N1")
	a.Product = "Personal"
	b := withRegion(loan(t, "b", "01/03/2024", false), "Norte", "N2")
	b.Product = "Nomina"
	c := withRegion(loan(t, "c", "01/03/2024", false), "Sur", "S1")
	c.Product = "Personal"

	got := FilterByDimensions([]model.LoanRecord{a, b, c}, DimensionFilter{
		Regions:  []string{"Norte"},
		Products: []string{"Personal"},
	})
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("got %+v, want only a", got)
	}
}

func TestApply_ExcludeLatestIndependent(t *testing.T) {
	asOf := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	records := []model.LoanRecord{
		withRegion(loan(t, "1", "01/01/2024", false), "Norte", "N1"),
		withRegion(loan(t, "2", "01/02/2024", false), "Norte", "N1"),
		withRegion(loan(t, "3", "01/03/2024", false), "Sur", "S1"),
	}

	got := Apply(records, Filter{ExcludeLatest: true}, asOf)
	if len(got) != 2 {
		t.Fatalf("exclude-latest kept %d, want 2", len(got))
	}

	// Latest comes from the whole dataset, not the Norte subset.
	got = Apply(records, Filter{ExcludeLatest: true, Dimensions: DimensionFilter{Regions: []string{"Norte"}}}, asOf)
	if len(got) != 2 {
		t.Errorf("Norte with exclude-latest kept %d, want 2", len(got))
	}

	got = Apply(records, Filter{MaturityMonths: 10}, asOf)
	if len(got) != 2 {
		t.Errorf("maturity only kept %d, want 2", len(got))
	}
}

func TestBranchesForRegions(t *testing.T) {
	records := []model.LoanRecord{
		withRegion(loan(t, "1", "01/03/2024", false), "Norte", "Monterrey"),
		withRegion(loan(t, "2", "01/03/2024", false), "Norte", "Saltillo"),
		withRegion(loan(t, "3", "01/03/2024", false), "Sur", "Merida"),
		withRegion(loan(t, "4", "01/03/2024", false), "Sur", "Merida"),
	}

	all := BranchesForRegions(records, nil)
	if len(all) != 3 {
		t.Errorf("all branches = %v", all)
	}
	norte := BranchesForRegions(records, []string{"Norte"})
	if len(norte) != 2 || norte[0] != "Monterrey" || norte[1] != "Saltillo" {
		t.Errorf("Norte branches = %v", norte)
	}

	pruned := PruneBranches(records, DimensionFilter{Regions: []string{"Sur"}, Branches: []string{"Monterrey", "Merida"}})
	if len(pruned.Branches) != 1 || pruned.Branches[0] != "Merida" {
		t.Errorf("pruned = %v", pruned.Branches)
	}
}

func TestDimensionFilter_SetValues(t *testing.T) {
	var f DimensionFilter
	for _, dim := range model.AllDimensions {
		f = f.Set(dim, []string{string(dim)})
	}
	for _, dim := range model.AllDimensions {
		if v := f.Values(dim); len(v) != 1 || v[0] != string(dim) {
			t.Errorf("Values(%s) = %v", dim, v)
		}
	}
	if f.IsEmpty() {
		t.Error("IsEmpty = true")
	}
}
