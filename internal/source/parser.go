// Package source discovers and parses loan origination extracts.
package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("required column missing")

// ParseFile reads one CSV extract into normalized loan records.
//
// Row handling:
//   - unparseable origination date → row dropped, counted in BadDates
//   - outcome not matching the rule → kept as non-default, counted in BadOutcomes
//   - secondary outcome not matching its rule → kept as paid, counted in BadNonPayments
//   - amount not numeric or with ambiguous separators → kept without amount, counted in BadAmounts
//   - malformed CSV row → dropped, counted in BadRows
//   - empty dimension → "N/A"
func ParseFile(df DiscoveredFile, opts Options) ParseResult {
	f, err := os.Open(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	res := parse(f, opts)
	for i := range res.Records {
		res.Records[i].SourceFile = df.Path
	}
	if res.Err != nil {
		res.Err = fmt.Errorf("%s: %w", df.Path, res.Err)
	}
	return res
}

// columnIndex resolves header positions; -1 marks an absent optional column.
type columnIndex struct {
	id, date, outcome, nonPayment, amount        int
	region, branch, product, clientType, channel int
}

func parse(r io.Reader, opts Options) ParseResult {
	br := bufio.NewReaderSize(r, 64*1024)

	delim, err := resolveDelimiter(br, opts.Delimiter)
	if err != nil {
		return ParseResult{Err: err}
	}

	decimalSep, err := DecimalSeparator(opts.Decimal, delim)
	if err != nil {
		return ParseResult{Err: err}
	}
	nonPayment := opts.NonPaymentRule()

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ParseResult{Err: errors.New("empty file")}
		}
		return ParseResult{Err: fmt.Errorf("reading header: %w", err)}
	}
	idx, err := indexColumns(header, opts.Columns)
	if err != nil {
		return ParseResult{Err: err}
	}

	var res ParseResult
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				res.Stats.Rows++
				res.Stats.BadRows++
				continue
			}
			res.Err = err
			return res
		}
		res.Stats.Rows++

		orig, ok := ParseDate(field(row, idx.date), opts.DateLayout)
		if !ok {
			res.Stats.BadDates++
			continue
		}

		rec := model.LoanRecord{
			ID:          strings.TrimSpace(field(row, idx.id)),
			Origination: orig,
			Cosecha:     CosechaKey(orig),
			Region:      NormalizeDimension(field(row, idx.region)),
			Branch:      NormalizeDimension(field(row, idx.branch)),
			Product:     NormalizeDimension(field(row, idx.product)),
			ClientType:  NormalizeDimension(field(row, idx.clientType)),
			Channel:     NormalizeDimension(field(row, idx.channel)),
		}

		pos, ok := opts.Outcome.Eval(field(row, idx.outcome))
		if !ok {
			res.Stats.BadOutcomes++
		}
		rec.Default = pos

		if idx.nonPayment >= 0 {
			np, ok := nonPayment.Eval(field(row, idx.nonPayment))
			if !ok {
				res.Stats.BadNonPayments++
			}
			rec.NonPayment = np
		}

		if idx.amount >= 0 {
			raw := field(row, idx.amount)
			if amt, ok := ParseAmount(raw, decimalSep); ok {
				rec.Amount = amt
				rec.HasAmount = true
			} else if strings.TrimSpace(raw) != "" {
				res.Stats.BadAmounts++
			}
		}

		res.Records = append(res.Records, rec)
	}
	return res
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func indexColumns(header []string, cols Columns) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	lookup := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := pos[strings.ToLower(name)]; ok {
			return i
		}
		return -1
	}

	idx := columnIndex{
		id:         lookup(cols.ID),
		date:       lookup(cols.Origination),
		outcome:    lookup(cols.Outcome),
		nonPayment: lookup(cols.NonPayment),
		amount:     lookup(cols.Amount),
		region:     lookup(cols.Region),
		branch:     lookup(cols.Branch),
		product:    lookup(cols.Product),
		clientType: lookup(cols.ClientType),
		channel:    lookup(cols.Channel),
	}

	var missing []string
	for _, req := range []struct {
		name string
		i    int
	}{
		{cols.ID, idx.id},
		{cols.Origination, idx.date},
		{cols.Outcome, idx.outcome},
	} {
		if req.i < 0 {
			missing = append(missing, fmt.Sprintf("%q", req.name))
		}
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

// resolveDelimiter returns the configured delimiter, sniffing the header
// line when set to "auto".
func resolveDelimiter(br *bufio.Reader, setting string) (rune, error) {
	switch setting {
	case ",":
		return ',', nil
	case ";":
		return ';', nil
	case "\t", "tab":
		return '\t', nil
	case "|":
		return '|', nil
	case "", "auto":
	default:
		return 0, fmt.Errorf("unsupported delimiter %q", setting)
	}

	head, _ := br.Peek(4096)
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestN := ',', bytes.Count(head, []byte{','})
	for _, c := range []rune{';', '\t', '|'} {
		if n := bytes.Count(head, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return best, nil
}
