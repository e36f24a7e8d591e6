package pipeline

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
)

// loan builds a normalized record from a day/month/year date.
func loan(t testing.TB, id, date string, def bool) model.LoanRecord {
	t.Helper()
	orig, ok := source.ParseDate(date, "")
	if !ok {
		t.Fatalf("bad fixture date %q", date)
	}
	return model.LoanRecord{
		ID:          id,
		Origination: orig,
		Cosecha:     source.CosechaKey(orig),
		Default:     def,
		Region:      model.NotAvailable,
		Branch:      model.NotAvailable,
		Product:     model.NotAvailable,
		ClientType:  model.NotAvailable,
		Channel:     model.NotAvailable,
	}
}

func withRegion(r model.LoanRecord, region, branch string) model.LoanRecord {
	r.Region = region
	r.Branch = branch
	return r
}

func withAmount(r model.LoanRecord, amount string) model.LoanRecord {
	r.Amount = decimal.RequireFromString(amount)
	r.HasAmount = true
	return r
}

// syntheticPortfolio generates a deterministic mixed dataset.
func syntheticPortfolio(n int) []model.LoanRecord {
	rng := rand.New(rand.NewSource(42))
	regions := []string{"Norte", "Sur", "Centro", model.NotAvailable}
	products := []string{"Personal", "Nomina", "PyME"}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	out := make([]model.LoanRecord, n)
	for i := range out {
		orig := start.AddDate(0, 0, rng.Intn(540))
		region := regions[rng.Intn(len(regions))]
		out[i] = model.LoanRecord{
			ID:          fmt.Sprintf("L%06d", i),
			Origination: orig,
			Cosecha:     source.CosechaKey(orig),
			Default:     rng.Intn(10) == 0,
			NonPayment:  rng.Intn(20) == 0,
			Amount:      decimal.NewFromInt(int64(rng.Intn(30000) - 500)),
			HasAmount:   rng.Intn(15) != 0,
			Region:      region,
			Branch:      fmt.Sprintf("%s-%02d", region, rng.Intn(4)),
			Product:     products[rng.Intn(len(products))],
			ClientType:  []string{"Nuevo", "Renovado"}[rng.Intn(2)],
			Channel:     []string{"Digital", "Sucursal", model.NotAvailable}[rng.Intn(3)],
		}
	}
	return out
}
