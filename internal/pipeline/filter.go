package pipeline

import (
	"sort"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// DefaultMaturityMonths is the stock maturity window.
const DefaultMaturityMonths = 2

// DimensionFilter restricts records to allowed values per dimension.
// An empty slice places no restriction on that dimension.
type DimensionFilter struct {
	Regions     []string `hash:"set"`
	Branches    []string `hash:"set"`
	Products    []string `hash:"set"`
	ClientTypes []string `hash:"set"`
	Channels    []string `hash:"set"`
}

// Filter is the full structured query predicate.
type Filter struct {
	Dimensions DimensionFilter

	// MaturityMonths drops records originated after asOf minus this many
	// months. Zero or negative disables the maturity rule.
	MaturityMonths int

	// ExcludeLatest drops the most recent cosecha present in the dataset.
	ExcludeLatest bool
}

// DefaultFilter returns a filter with only the stock maturity window applied.
func DefaultFilter() Filter {
	return Filter{MaturityMonths: DefaultMaturityMonths}
}

// IsEmpty reports whether no dimensional restriction is set.
func (d DimensionFilter) IsEmpty() bool {
	return len(d.Regions) == 0 && len(d.Branches) == 0 && len(d.Products) == 0 &&
		len(d.ClientTypes) == 0 && len(d.Channels) == 0
}

// Values returns the allowed values for one dimension.
func (d DimensionFilter) Values(dim model.Dimension) []string {
	switch dim {
	case model.DimRegion:
		return d.Regions
	case model.DimBranch:
		return d.Branches
	case model.DimProduct:
		return d.Products
	case model.DimClientType:
		return d.ClientTypes
	case model.DimChannel:
		return d.Channels
	}
	return nil
}

// Set returns a copy with the allowed values for one dimension replaced.
func (d DimensionFilter) Set(dim model.Dimension, values []string) DimensionFilter {
	switch dim {
	case model.DimRegion:
		d.Regions = values
	case model.DimBranch:
		d.Branches = values
	case model.DimProduct:
		d.Products = values
	case model.DimClientType:
		d.ClientTypes = values
	case model.DimChannel:
		d.Channels = values
	}
	return d
}

// FilterByDimensions returns the records matching every non-empty dimension set.
// Matching is exact on the normalized value, so "N/A" only passes an explicit
// "N/A" entry.
func FilterByDimensions(records []model.LoanRecord, f DimensionFilter) []model.LoanRecord {
	if f.IsEmpty() {
		return records
	}

	type check struct {
		dim     model.Dimension
		allowed map[string]struct{}
	}
	var checks []check
	for _, dim := range model.AllDimensions {
		vals := f.Values(dim)
		if len(vals) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(vals))
		for _, v := range vals {
			set[v] = struct{}{}
		}
		checks = append(checks, check{dim, set})
	}

	var out []model.LoanRecord
	for i := range records {
		ok := true
		for _, c := range checks {
			if _, hit := c.allowed[records[i].Value(c.dim)]; !hit {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, records[i])
		}
	}
	return out
}

// MaturityCutoff returns asOf minus months calendar months, as a UTC date.
// The day is clamped to the last day of the target month.
func MaturityCutoff(asOf time.Time, months int) time.Time {
	y, m, d := asOf.Date()
	first := time.Date(y, m-time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// ApplyMaturity drops records originated after the maturity cutoff.
func ApplyMaturity(records []model.LoanRecord, asOf time.Time, months int) []model.LoanRecord {
	if months <= 0 {
		return records
	}
	cutoff := MaturityCutoff(asOf, months)
	var out []model.LoanRecord
	for i := range records {
		if !records[i].Origination.After(cutoff) {
			out = append(out, records[i])
		}
	}
	return out
}

// LatestCosecha returns the maximum cosecha key present, or "" when empty.
func LatestCosecha(records []model.LoanRecord) string {
	latest := ""
	for i := range records {
		if records[i].Cosecha > latest {
			latest = records[i].Cosecha
		}
	}
	return latest
}

// DropCosecha returns the records not belonging to the given cosecha.
func DropCosecha(records []model.LoanRecord, cosecha string) []model.LoanRecord {
	if cosecha == "" {
		return records
	}
	var out []model.LoanRecord
	for i := range records {
		if records[i].Cosecha != cosecha {
			out = append(out, records[i])
		}
	}
	return out
}

// Apply runs the full predicate: dimensions, maturity, then exclude-latest.
// The latest cosecha is taken from the unfiltered input so the rule does not
// depend on the dimensional selection.
func Apply(records []model.LoanRecord, f Filter, asOf time.Time) []model.LoanRecord {
	latest := ""
	if f.ExcludeLatest {
		latest = LatestCosecha(records)
	}
	out := FilterByDimensions(records, f.Dimensions)
	out = ApplyMaturity(out, asOf, f.MaturityMonths)
	return DropCosecha(out, latest)
}

// DimensionValues returns the sorted distinct values of a dimension.
func DimensionValues(records []model.LoanRecord, dim model.Dimension) []string {
	seen := make(map[string]struct{})
	for i := range records {
		seen[records[i].Value(dim)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// BranchesForRegions returns the branches selectable under a region
// selection. With no regions selected every branch is returned.
func BranchesForRegions(records []model.LoanRecord, regions []string) []string {
	if len(regions) == 0 {
		return DimensionValues(records, model.DimBranch)
	}
	return DimensionValues(FilterByDimensions(records, DimensionFilter{Regions: regions}), model.DimBranch)
}

// PruneBranches drops selected branches that are no longer reachable from
// the selected regions.
func PruneBranches(records []model.LoanRecord, f DimensionFilter) DimensionFilter {
	if len(f.Regions) == 0 || len(f.Branches) == 0 {
		return f
	}
	valid := make(map[string]struct{})
	for _, b := range BranchesForRegions(records, f.Regions) {
		valid[b] = struct{}{}
	}
	var kept []string
	for _, b := range f.Branches {
		if _, ok := valid[b]; ok {
			kept = append(kept, b)
		}
	}
	f.Branches = kept
	return f
}
