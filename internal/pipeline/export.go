package pipeline

import (
	"encoding/csv"
	"io"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// ExportColumns is the fixed header of a defaults export.
var ExportColumns = []string{
	"id", "fecha_apertura", "cosecha", "region", "sucursal",
	"producto", "tipo_cliente", "canal", "monto",
}

// ExportDefaults writes the defaulted records of one cosecha as CSV. The
// caller passes records that already went through Apply. It returns the
// number of data rows written.
func ExportDefaults(w io.Writer, records []model.LoanRecord, cosecha string) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return 0, err
	}

	n := 0
	for i := range records {
		r := &records[i]
		if !r.Default || r.Cosecha != cosecha {
			continue
		}
		amount := ""
		if r.HasAmount {
			amount = r.Amount.StringFixed(2)
		}
		err := cw.Write([]string{
			r.ID,
			r.Origination.Format("02/01/2006"),
			r.Cosecha,
			r.Region,
			r.Branch,
			r.Product,
			r.ClientType,
			r.Channel,
			amount,
		})
		if err != nil {
			return n, err
		}
		n++
	}

	cw.Flush()
	return n, cw.Error()
}

// CountDefaults returns how many rows ExportDefaults would write.
func CountDefaults(records []model.LoanRecord, cosecha string) int {
	n := 0
	for i := range records {
		if records[i].Default && records[i].Cosecha == cosecha {
			n++
		}
	}
	return n
}

// ExportFilename returns the suggested download name for a cosecha export.
func ExportFilename(cosecha string) string {
	return "fpd_" + cosecha + ".csv"
}
