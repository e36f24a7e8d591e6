package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
	"github.com/MichelOvalle/fpd-daily-mk/internal/store"
)

// writeBenchDataset renders a synthetic portfolio as CSV extracts, one per cosecha.
func writeBenchDataset(b *testing.B, n int) string {
	b.Helper()
	dir := b.TempDir()
	byCosecha := make(map[string][]string)
	for _, r := range syntheticPortfolio(n) {
		fpd := "0"
		if r.Default {
			fpd = "1"
		}
		byCosecha[r.Cosecha] = append(byCosecha[r.Cosecha], fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s",
			r.ID, r.Origination.Format("02/01/2006"), fpd, r.Amount, r.Region, r.Branch, r.Product))
	}
	for c, lines := range byCosecha {
		body := "id_credito,fecha_apertura,fpd2,monto_otorgado,region,sucursal,producto\n" + strings.Join(lines, "\n") + "\n"
		if err := os.WriteFile(filepath.Join(dir, c+".csv"), []byte(body), 0o600); err != nil {
			b.Fatal(err)
		}
	}
	return dir
}

func BenchmarkLoad(b *testing.B) {
	dir := writeBenchDataset(b, 50000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := Load(dir, source.DefaultOptions(), nil)
		if err != nil {
			b.Fatal(err)
		}
		_ = result
	}
}

func BenchmarkLoadWithCache(b *testing.B) {
	dir := writeBenchDataset(b, 50000)

	cache, err := store.Open(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cr, err := LoadWithCache(dir, source.DefaultOptions(), cache, nil)
		if err != nil {
			b.Fatal(err)
		}
		_ = cr
	}
}

func BenchmarkQuery(b *testing.B) {
	records := syntheticPortfolio(200000)
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f := Filter{
		Dimensions:     DimensionFilter{Regions: []string{"Norte", "Centro"}},
		MaturityMonths: DefaultMaturityMonths,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Query(records, f, asOf, model.DimProduct)
	}
}
