package model

import "github.com/shopspring/decimal"

// VintageRow is one aggregate over a cosecha, optionally split by a dimension value.
type VintageRow struct {
	Cosecha   string
	Dimension Dimension // empty for whole-portfolio rows
	Value     string

	Total    int
	Defaults int
	Rate     float64 // Defaults*100/Total, 0 when Total is 0

	NonPayments    int
	NonPaymentRate float64

	AmountTotal decimal.Decimal
}

// Key returns the dimension value, or the cosecha for whole-portfolio rows.
func (r VintageRow) Key() string {
	if r.Dimension == "" {
		return r.Cosecha
	}
	return r.Value
}

// BucketRow holds FPD metrics for one amount range.
type BucketRow struct {
	Label    string
	Lower    decimal.Decimal
	Upper    decimal.Decimal // zero with Open set for the last bucket
	Open     bool
	Total    int
	Defaults int
	Rate     float64
}

// PeriodComparison holds the latest and prior cosecha rows for delta computation.
type PeriodComparison struct {
	Current  VintageRow
	Previous VintageRow
}

// Delta returns the rate change in percentage points.
func (p PeriodComparison) Delta() float64 {
	return p.Current.Rate - p.Previous.Rate
}

// DimensionComparison is one line of the executive summary.
type DimensionComparison struct {
	Dimension Dimension
	Value     string
	PeriodComparison
}

// DatasetSummary holds portfolio-level counts over the filtered, mature records.
type DatasetSummary struct {
	Records      int
	Cosechas     int
	FirstCosecha string
	LastCosecha  string
	Defaults     int
	Rate         float64
	AmountTotal  decimal.Decimal
}
