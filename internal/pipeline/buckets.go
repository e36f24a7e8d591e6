package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// amountEdges are the inner bucket boundaries. Buckets are right-closed:
// [0,3000], (3000,5000], (5000,8000], (8000,12000], (12000,20000], (20000,+inf).
var amountEdges = []decimal.Decimal{
	decimal.NewFromInt(3000),
	decimal.NewFromInt(5000),
	decimal.NewFromInt(8000),
	decimal.NewFromInt(12000),
	decimal.NewFromInt(20000),
}

var bucketLabels = []string{"$0-3K", "$3K-5K", "$5K-8K", "$8K-12K", "$12K-20K", "$20K+"}

// BucketCount is the number of amount buckets.
const BucketCount = 6

// BucketIndex returns the bucket of an amount, or -1 for negative amounts.
func BucketIndex(amount decimal.Decimal) int {
	if amount.IsNegative() {
		return -1
	}
	for i, edge := range amountEdges {
		if amount.LessThanOrEqual(edge) {
			return i
		}
	}
	return len(amountEdges)
}

// EmptyBuckets returns the fixed bucket axis with zero counts.
func EmptyBuckets() []model.BucketRow {
	rows := make([]model.BucketRow, BucketCount)
	for i := range rows {
		rows[i].Label = bucketLabels[i]
		if i > 0 {
			rows[i].Lower = amountEdges[i-1]
		}
		if i < len(amountEdges) {
			rows[i].Upper = amountEdges[i]
		} else {
			rows[i].Open = true
		}
	}
	return rows
}

// AggregateAmountBuckets computes FPD metrics per amount bucket. All six
// buckets are always returned in edge order. Records without an amount or
// with a negative amount are skipped and counted in excluded.
func AggregateAmountBuckets(records []model.LoanRecord) (rows []model.BucketRow, excluded int) {
	rows = EmptyBuckets()
	for i := range records {
		r := &records[i]
		if !r.HasAmount {
			excluded++
			continue
		}
		idx := BucketIndex(r.Amount)
		if idx < 0 {
			excluded++
			continue
		}
		rows[idx].Total++
		if r.Default {
			rows[idx].Defaults++
		}
	}
	for i := range rows {
		rows[i].Rate = Rate(rows[i].Defaults, rows[i].Total)
	}
	return rows, excluded
}
