// Package pipeline orchestrates record loading, caching, filtering and
// vintage aggregation.
package pipeline

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// Rate returns part*100/total, or 0 when total is 0.
func Rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

// accumulate adds one record to a row.
func accumulate(row *model.VintageRow, r *model.LoanRecord) {
	row.Total++
	if r.Default {
		row.Defaults++
	}
	if r.NonPayment {
		row.NonPayments++
	}
	if r.HasAmount {
		row.AmountTotal = row.AmountTotal.Add(r.Amount)
	}
}

func finalize(row *model.VintageRow) {
	row.Rate = Rate(row.Defaults, row.Total)
	row.NonPaymentRate = Rate(row.NonPayments, row.Total)
}

// AggregateVintages computes one row per cosecha, sorted by cosecha key.
func AggregateVintages(records []model.LoanRecord) []model.VintageRow {
	byCosecha := make(map[string]*model.VintageRow)
	for i := range records {
		r := &records[i]
		row, ok := byCosecha[r.Cosecha]
		if !ok {
			row = &model.VintageRow{Cosecha: r.Cosecha, AmountTotal: decimal.Zero}
			byCosecha[r.Cosecha] = row
		}
		accumulate(row, r)
	}

	out := make([]model.VintageRow, 0, len(byCosecha))
	for _, row := range byCosecha {
		finalize(row)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cosecha < out[j].Cosecha })
	return out
}

// AggregateVintagesBy computes one row per (cosecha, dimension value) pair
// present in the input, sorted by cosecha then value. Absent pairs are not
// zero-filled. An empty dimension falls back to AggregateVintages.
func AggregateVintagesBy(records []model.LoanRecord, dim model.Dimension) []model.VintageRow {
	if dim == "" {
		return AggregateVintages(records)
	}

	type key struct{ cosecha, value string }
	groups := make(map[key]*model.VintageRow)
	for i := range records {
		r := &records[i]
		k := key{r.Cosecha, r.Value(dim)}
		row, ok := groups[k]
		if !ok {
			row = &model.VintageRow{Cosecha: k.cosecha, Dimension: dim, Value: k.value, AmountTotal: decimal.Zero}
			groups[k] = row
		}
		accumulate(row, r)
	}

	out := make([]model.VintageRow, 0, len(groups))
	for _, row := range groups {
		finalize(row)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cosecha != out[j].Cosecha {
			return out[i].Cosecha < out[j].Cosecha
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Query applies the filter and groups the surviving records, optionally by
// a secondary dimension.
func Query(records []model.LoanRecord, f Filter, asOf time.Time, dim model.Dimension) []model.VintageRow {
	return AggregateVintagesBy(Apply(records, f, asOf), dim)
}

// LatestAndPrevious returns the last and second-to-last rows of a slice
// sorted by cosecha. With a single row both are that row. ok is false for an
// empty slice.
func LatestAndPrevious(rows []model.VintageRow) (model.PeriodComparison, bool) {
	switch len(rows) {
	case 0:
		return model.PeriodComparison{}, false
	case 1:
		return model.PeriodComparison{Current: rows[0], Previous: rows[0]}, true
	}
	return model.PeriodComparison{Current: rows[len(rows)-1], Previous: rows[len(rows)-2]}, true
}

// LastN returns the trailing n rows.
func LastN(rows []model.VintageRow, n int) []model.VintageRow {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[len(rows)-n:]
}

// Summarize compares the latest cosecha against the prior one for every
// value of each dimension. The two cosechas are chosen on the whole record
// set, so every line compares the same pair of months. A value absent in
// one of the months gets a zero row for it.
func Summarize(records []model.LoanRecord, dims []model.Dimension) []model.DimensionComparison {
	period, ok := LatestAndPrevious(AggregateVintages(records))
	if !ok {
		return nil
	}
	cur, prev := period.Current.Cosecha, period.Previous.Cosecha

	var out []model.DimensionComparison
	for _, dim := range dims {
		byValue := make(map[string]*model.DimensionComparison)
		var order []string
		for _, row := range AggregateVintagesBy(records, dim) {
			if row.Cosecha != cur && row.Cosecha != prev {
				continue
			}
			dc, ok := byValue[row.Value]
			if !ok {
				dc = &model.DimensionComparison{Dimension: dim, Value: row.Value}
				dc.Current = model.VintageRow{Cosecha: cur, Dimension: dim, Value: row.Value}
				dc.Previous = model.VintageRow{Cosecha: prev, Dimension: dim, Value: row.Value}
				byValue[row.Value] = dc
				order = append(order, row.Value)
			}
			if row.Cosecha == cur {
				dc.Current = row
			}
			if row.Cosecha == prev {
				dc.Previous = row
			}
		}
		sort.Strings(order)
		for _, v := range order {
			out = append(out, *byValue[v])
		}
	}
	return out
}

// Summary computes portfolio-level counts.
func Summary(records []model.LoanRecord) model.DatasetSummary {
	s := model.DatasetSummary{Records: len(records), AmountTotal: decimal.Zero}
	cosechas := make(map[string]struct{})
	for i := range records {
		r := &records[i]
		cosechas[r.Cosecha] = struct{}{}
		if r.Default {
			s.Defaults++
		}
		if r.HasAmount {
			s.AmountTotal = s.AmountTotal.Add(r.Amount)
		}
		if s.FirstCosecha == "" || r.Cosecha < s.FirstCosecha {
			s.FirstCosecha = r.Cosecha
		}
		if r.Cosecha > s.LastCosecha {
			s.LastCosecha = r.Cosecha
		}
	}
	s.Cosechas = len(cosechas)
	s.Rate = Rate(s.Defaults, s.Records)
	return s
}

// Pivot arranges dimension rows as a value × cosecha grid.
type Pivot struct {
	Dimension model.Dimension
	Cosechas  []string
	Values    []string
	cells     map[string]map[string]model.VintageRow
}

// BuildPivot arranges rows from AggregateVintagesBy into a grid. Values
// are ordered by total volume, largest first.
func BuildPivot(rows []model.VintageRow) Pivot {
	p := Pivot{cells: make(map[string]map[string]model.VintageRow)}
	seenCosecha := make(map[string]struct{})
	volume := make(map[string]int)
	for _, r := range rows {
		p.Dimension = r.Dimension
		if _, ok := seenCosecha[r.Cosecha]; !ok {
			seenCosecha[r.Cosecha] = struct{}{}
			p.Cosechas = append(p.Cosechas, r.Cosecha)
		}
		if _, ok := p.cells[r.Value]; !ok {
			p.cells[r.Value] = make(map[string]model.VintageRow)
			p.Values = append(p.Values, r.Value)
		}
		p.cells[r.Value][r.Cosecha] = r
		volume[r.Value] += r.Total
	}
	sort.Strings(p.Cosechas)
	sort.Slice(p.Values, func(i, j int) bool {
		if volume[p.Values[i]] != volume[p.Values[j]] {
			return volume[p.Values[i]] > volume[p.Values[j]]
		}
		return p.Values[i] < p.Values[j]
	})
	return p
}

// Cell returns the row for a value and cosecha; ok is false for absent pairs.
func (p Pivot) Cell(value, cosecha string) (model.VintageRow, bool) {
	r, ok := p.cells[value][cosecha]
	return r, ok
}

// Trim keeps the last n cosechas and the first maxValues values.
func (p Pivot) Trim(n, maxValues int) Pivot {
	if n > 0 && n < len(p.Cosechas) {
		p.Cosechas = p.Cosechas[len(p.Cosechas)-n:]
	}
	if maxValues > 0 && maxValues < len(p.Values) {
		p.Values = p.Values[:maxValues]
	}
	return p
}
