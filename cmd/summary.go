package cmd

import (
	"fmt"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Executive summary: latest vs previous cosecha per dimension",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(_ *cobra.Command, _ []string) error {
	result, err := loadData()
	if err != nil {
		return err
	}

	filtered, f := applyFilters(result.Records)
	stats := pipeline.Summary(filtered)
	if stats.Records == 0 {
		printNoData()
		return nil
	}
	th := appConfig.Thresholds()

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("FPD SUMMARY  %s", describeFilter(f))))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Loans", cli.FormatCount(stats.Records)},
			{"Cosechas", fmt.Sprintf("%d  (%s to %s)", stats.Cosechas,
				cli.FormatCosecha(stats.FirstCosecha), cli.FormatCosecha(stats.LastCosecha))},
			{"---"},
			{"FPD cases", cli.FormatCount(stats.Defaults)},
			{"FPD rate", cli.RenderRate(stats.Rate, th)},
			{"Granted", cli.FormatAmount(stats.AmountTotal)},
		},
	}))

	comparisons := pipeline.Summarize(filtered, model.AllDimensions)
	if len(comparisons) == 0 {
		return nil
	}
	cur, prev := comparisons[0].Current.Cosecha, comparisons[0].Previous.Cosecha

	var (
		rows    [][]string
		lastDim model.Dimension
	)
	for _, dc := range comparisons {
		if lastDim != "" && dc.Dimension != lastDim {
			rows = append(rows, []string{"---"})
		}
		lastDim = dc.Dimension
		rows = append(rows, []string{
			dc.Dimension.Label(),
			dc.Value,
			cli.RenderRate(dc.Previous.Rate, th),
			cli.RenderRate(dc.Current.Rate, th),
			cli.RenderDelta(dc.Delta()),
			cli.FormatCount(dc.Current.Total),
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title: fmt.Sprintf("%s vs %s", cli.FormatCosecha(cur), cli.FormatCosecha(prev)),
		Headers: []string{"Dimension", "Value",
			cli.FormatCosechaShort(prev), cli.FormatCosechaShort(cur), "Change", "Loans"},
		Rows: rows,
	}))
	fmt.Println()
	return nil
}
