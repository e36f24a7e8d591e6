package cmd

import (
	"fmt"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagBreakdownBy   string
	flagBreakdownLast int
	flagBreakdownMax  int
)

var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "FPD rate per cosecha for each value of a dimension",
	RunE:  runBreakdown,
}

func init() {
	breakdownCmd.Flags().StringVar(&flagBreakdownBy, "by", "region", "Dimension: region, branch, product, client_type, channel")
	breakdownCmd.Flags().IntVar(&flagBreakdownLast, "last", 6, "Number of most recent cosechas to show")
	breakdownCmd.Flags().IntVar(&flagBreakdownMax, "max", 20, "Maximum values to show, largest first")
	rootCmd.AddCommand(breakdownCmd)
}

func runBreakdown(_ *cobra.Command, _ []string) error {
	dim, err := parseDimensionFlag(flagBreakdownBy)
	if err != nil {
		return err
	}
	result, err := loadData()
	if err != nil {
		return err
	}

	f := buildFilter()
	rows := pipeline.Query(result.Records, f, time.Now(), dim)
	if len(rows) == 0 {
		printNoData()
		return nil
	}

	pivot := pipeline.BuildPivot(rows).Trim(flagBreakdownLast, flagBreakdownMax)
	th := appConfig.Thresholds()

	headers := []string{dim.Label()}
	for _, c := range pivot.Cosechas {
		headers = append(headers, cli.FormatCosechaShort(c))
	}
	headers = append(headers, "Loans")

	out := make([][]string, 0, len(pivot.Values))
	for _, v := range pivot.Values {
		line := []string{v}
		loans := 0
		for _, c := range pivot.Cosechas {
			cell, ok := pivot.Cell(v, c)
			if !ok {
				line = append(line, cli.RenderMuted("-"))
				continue
			}
			loans += cell.Total
			line = append(line, cli.RenderRate(cell.Rate, th))
		}
		line = append(line, cli.FormatCount(loans))
		out = append(out, line)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("FPD BY %s  %s", dim.Label(), describeFilter(f))))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{Headers: headers, Rows: out}))
	fmt.Println()
	return nil
}
