package cmd

import (
	"fmt"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"

	"github.com/spf13/cobra"
)

var vintagesCmd = &cobra.Command{
	Use:   "vintages",
	Short: "FPD rate per cosecha with latest-vs-previous comparison",
	RunE:  runVintages,
}

func init() {
	rootCmd.AddCommand(vintagesCmd)
}

func runVintages(_ *cobra.Command, _ []string) error {
	result, err := loadData()
	if err != nil {
		return err
	}

	f := buildFilter()
	rows := pipeline.Query(result.Records, f, time.Now(), "")
	if len(rows) == 0 {
		printNoData()
		return nil
	}

	th := appConfig.Thresholds()
	rates := make([]float64, len(rows))
	for i, r := range rows {
		rates[i] = r.Rate
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("FPD BY COSECHA  %s", describeFilter(f))))
	fmt.Println()
	fmt.Printf("  Trend  %s\n\n", cli.RenderSparkline(rates))

	fmt.Print(cli.RenderTable(vintageTable(rows, th)))

	period, _ := pipeline.LatestAndPrevious(rows)
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Latest vs previous",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Latest cosecha", cli.FormatCosecha(period.Current.Cosecha)},
			{"FPD rate", cli.RenderRate(period.Current.Rate, th)},
			{"Previous cosecha", cli.FormatCosecha(period.Previous.Cosecha)},
			{"Previous rate", cli.RenderRate(period.Previous.Rate, th)},
			{"---"},
			{"Change", cli.RenderDelta(period.Delta())},
		},
	}))

	last := pipeline.LastN(rows, 5)
	fmt.Println()
	fmt.Println(cli.RenderMuted(fmt.Sprintf("  Last %d cosechas", len(last))))
	for _, r := range last {
		fmt.Println(cli.RenderRateBar(cli.FormatCosechaShort(r.Cosecha), 8, r.Rate, maxRate(last), 30, th))
	}
	fmt.Println()
	return nil
}

func vintageTable(rows []model.VintageRow, th model.RiskThresholds) cli.Table {
	out := make([][]string, 0, len(rows)+2)
	var total, defaults int
	for _, r := range rows {
		total += r.Total
		defaults += r.Defaults
		out = append(out, []string{
			cli.FormatCosecha(r.Cosecha),
			cli.FormatCount(r.Total),
			cli.FormatCount(r.Defaults),
			cli.RenderRate(r.Rate, th),
			cli.FormatAmount(r.AmountTotal),
		})
	}
	out = append(out, []string{"---"})
	out = append(out, []string{
		"Total",
		cli.FormatCount(total),
		cli.FormatCount(defaults),
		cli.RenderRate(pipeline.Rate(defaults, total), th),
		"",
	})
	return cli.Table{
		Headers: []string{"Cosecha", "Loans", "FPD", "Rate", "Amount"},
		Rows:    out,
	}
}

func maxRate(rows []model.VintageRow) float64 {
	top := 0.0
	for _, r := range rows {
		top = max(top, r.Rate)
	}
	return top
}
