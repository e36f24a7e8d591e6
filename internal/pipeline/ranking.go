package pipeline

import (
	"sort"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// DefaultMinVolume excludes groups with this many records or fewer from rankings.
const DefaultMinVolume = 5

// RankDimension groups one cosecha's records by a dimension and sorts the
// groups by ascending rate, ties broken by value. An empty cosecha selects
// the latest one present. Groups with Total <= minVolume are dropped;
// minVolume 0 keeps everything.
func RankDimension(records []model.LoanRecord, cosecha string, dim model.Dimension, minVolume int) []model.VintageRow {
	if cosecha == "" {
		cosecha = LatestCosecha(records)
	}

	var rows []model.VintageRow
	for _, r := range AggregateVintagesBy(records, dim) {
		if r.Cosecha != cosecha {
			continue
		}
		if minVolume > 0 && r.Total <= minVolume {
			continue
		}
		rows = append(rows, r)
	}
	SortByRate(rows)
	return rows
}

// SortByRate orders rows by ascending rate, then by key.
func SortByRate(rows []model.VintageRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Rate != rows[j].Rate {
			return rows[i].Rate < rows[j].Rate
		}
		return rows[i].Key() < rows[j].Key()
	})
}

// Extremes returns the lowest-rate and highest-rate rows of a ranked slice.
func Extremes(ranked []model.VintageRow) (best, worst model.VintageRow, ok bool) {
	if len(ranked) == 0 {
		return best, worst, false
	}
	return ranked[0], ranked[len(ranked)-1], true
}

// TopWorst returns the last n ranked rows, highest rate first.
func TopWorst(ranked []model.VintageRow, n int) []model.VintageRow {
	if n > len(ranked) {
		n = len(ranked)
	}
	if n <= 0 {
		return nil
	}
	out := make([]model.VintageRow, 0, n)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		out = append(out, ranked[i])
	}
	return out
}

// TopBest returns the first n ranked rows, lowest rate first.
func TopBest(ranked []model.VintageRow, n int) []model.VintageRow {
	if n > len(ranked) {
		n = len(ranked)
	}
	if n <= 0 {
		return nil
	}
	out := make([]model.VintageRow, n)
	copy(out, ranked[:n])
	return out
}
