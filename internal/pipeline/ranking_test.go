package pipeline

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// branchGroup returns n records for one branch in March 2024 with d defaults.
func branchGroup(t *testing.T, branch string, n, d int) []model.LoanRecord {
	t.Helper()
	out := make([]model.LoanRecord, n)
	for i := range out {
		out[i] = withRegion(loan(t, fmt.Sprintf("%s-%d", branch, i), "10/03/2024", i < d), "Norte", branch)
	}
	return out
}

func TestRankDimension_MinVolume(t *testing.T) {
	var records []model.LoanRecord
	records = append(records, branchGroup(t, "A", 10, 1)...)
	records = append(records, branchGroup(t, "B", 10, 5)...)
	records = append(records, branchGroup(t, "tiny", 5, 5)...)
	records = append(records, loan(t, "other-month", "10/02/2024", true))

	ranked := RankDimension(records, "2024-03", model.DimBranch, DefaultMinVolume)
	if len(ranked) != 2 {
		t.Fatalf("ranked = %+v, want 2 groups (tiny excluded)", ranked)
	}
	best, worst, ok := Extremes(ranked)
	if !ok || best.Value != "A" || worst.Value != "B" {
		t.Errorf("best/worst = %s/%s", best.Value, worst.Value)
	}

	all := RankDimension(records, "2024-03", model.DimBranch, 0)
	if len(all) != 3 || all[2].Value != "tiny" {
		t.Errorf("min volume 0 = %+v", all)
	}
}

func TestRankDimension_DefaultsToLatest(t *testing.T) {
	records := append(branchGroup(t, "A", 3, 1), loan(t, "old", "10/01/2024", true))
	ranked := RankDimension(records, "", model.DimBranch, 0)
	if len(ranked) != 1 || ranked[0].Cosecha != "2024-03" {
		t.Errorf("ranked = %+v", ranked)
	}
}

func TestRanking_Deterministic(t *testing.T) {
	var records []model.LoanRecord
	for _, b := range []string{"D", "B", "C", "A", "E"} {
		records = append(records, branchGroup(t, b, 10, 2)...)
	}

	first := RankDimension(records, "2024-03", model.DimBranch, 5)
	for i := 0; i < 5; i++ {
		again := RankDimension(records, "2024-03", model.DimBranch, 5)
		if !reflect.DeepEqual(first, again) {
			t.Fatal("ranking not deterministic across calls")
		}
	}
	want := []string{"A", "B", "C", "D", "E"}
	for i, r := range first {
		if r.Value != want[i] {
			t.Errorf("tie order[%d] = %s, want %s", i, r.Value, want[i])
		}
	}
}

func TestTopWorstTopBest(t *testing.T) {
	ranked := []model.VintageRow{
		{Value: "a", Rate: 1}, {Value: "b", Rate: 2}, {Value: "c", Rate: 3}, {Value: "d", Rate: 4},
	}

	worst := TopWorst(ranked, 2)
	if len(worst) != 2 || worst[0].Value != "d" || worst[1].Value != "c" {
		t.Errorf("TopWorst = %+v", worst)
	}
	best := TopBest(ranked, 3)
	if len(best) != 3 || best[0].Value != "a" || best[2].Value != "c" {
		t.Errorf("TopBest = %+v", best)
	}
	if got := TopWorst(ranked, 10); len(got) != 4 {
		t.Errorf("TopWorst over length = %d", len(got))
	}
	if got := TopBest(nil, 3); got != nil {
		t.Errorf("TopBest(nil) = %+v", got)
	}
	if _, _, ok := Extremes(nil); ok {
		t.Error("Extremes(nil) ok")
	}
}
