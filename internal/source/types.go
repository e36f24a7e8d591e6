package source

import (
	"fmt"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// Columns maps logical fields to header names in the dataset.
// Empty optional names disable that field.
type Columns struct {
	ID          string `toml:"id"`
	Origination string `toml:"origination"`
	Outcome     string `toml:"outcome"`
	NonPayment  string `toml:"non_payment"`
	Amount      string `toml:"amount"`
	Region      string `toml:"region"`
	Branch      string `toml:"branch"`
	Product     string `toml:"product"`
	ClientType  string `toml:"client_type"`
	Channel     string `toml:"channel"`
}

// DefaultColumns returns the header names of the originations extract.
func DefaultColumns() Columns {
	return Columns{
		ID:          "id_credito",
		Origination: "fecha_apertura",
		Outcome:     "fpd2",
		NonPayment:  "np",
		Amount:      "monto_otorgado",
		Region:      "region",
		Branch:      "sucursal",
		Product:     "producto",
		ClientType:  "tipo_cliente",
		Channel:     "canal",
	}
}

// Options controls how a dataset file is read and normalized.
type Options struct {
	Columns    Columns
	DateLayout string // Go time layout, day/month/year
	Delimiter  string // "auto", ",", ";", "\t" or "|"
	Decimal    string // "auto", "." or ","
	Outcome    OutcomeRule
	// NonPayment reads the secondary outcome column. A zero Mode reuses Outcome.
	NonPayment OutcomeRule
}

// DefaultOptions returns the options for the stock extract format.
func DefaultOptions() Options {
	return Options{
		Columns:    DefaultColumns(),
		DateLayout: DefaultDateLayout,
		Delimiter:  "auto",
		Decimal:    "auto",
		Outcome:    OutcomeRule{Mode: OutcomeNumeric},
	}
}

// NonPaymentRule returns the rule for the secondary outcome column.
func (o Options) NonPaymentRule() OutcomeRule {
	if o.NonPayment.Mode == "" {
		return o.Outcome
	}
	return o.NonPayment
}

// Validate reports configuration errors in the outcome rules and the
// decimal separator.
func (o Options) Validate() error {
	if err := o.Outcome.Validate(); err != nil {
		return err
	}
	if err := o.NonPaymentRule().Validate(); err != nil {
		return fmt.Errorf("non-payment: %w", err)
	}
	_, err := DecimalSeparator(o.Decimal, ',')
	return err
}

// ParseStats counts rows that were dropped or partially coerced.
type ParseStats struct {
	Rows        int
	BadRows     int // dropped
	BadDates    int // dropped
	BadOutcomes    int // kept as non-default
	BadNonPayments int // kept as paid
	BadAmounts     int // kept without an amount
}

// Add accumulates other into s.
func (s *ParseStats) Add(other ParseStats) {
	s.Rows += other.Rows
	s.BadRows += other.BadRows
	s.BadDates += other.BadDates
	s.BadOutcomes += other.BadOutcomes
	s.BadNonPayments += other.BadNonPayments
	s.BadAmounts += other.BadAmounts
}

// ParseResult holds the output of parsing a single dataset file.
type ParseResult struct {
	Records []model.LoanRecord
	Stats   ParseStats
	Err     error
}

// DiscoveredFile represents a dataset file found during scanning.
type DiscoveredFile struct {
	Path    string
	MtimeNs int64
	Size    int64
}
