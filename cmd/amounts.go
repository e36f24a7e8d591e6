package cmd

import (
	"fmt"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"

	"github.com/spf13/cobra"
)

var amountsCmd = &cobra.Command{
	Use:   "amounts",
	Short: "FPD rate per granted-amount range",
	RunE:  runAmounts,
}

func init() {
	rootCmd.AddCommand(amountsCmd)
}

func runAmounts(_ *cobra.Command, _ []string) error {
	result, err := loadData()
	if err != nil {
		return err
	}

	filtered, f := applyFilters(result.Records)
	if len(filtered) == 0 {
		printNoData()
		return nil
	}
	buckets, excluded := pipeline.AggregateAmountBuckets(filtered)
	th := appConfig.Thresholds()

	top := 0.0
	for _, b := range buckets {
		top = max(top, b.Rate)
	}

	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []string{
			b.Label,
			cli.FormatCount(b.Total),
			cli.FormatCount(b.Defaults),
			cli.RenderRate(b.Rate, th),
		})
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("FPD BY AMOUNT  %s", describeFilter(f))))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Range", "Loans", "FPD", "Rate"},
		Rows:    rows,
	}))
	fmt.Println()
	for _, b := range buckets {
		fmt.Println(cli.RenderRateBar(b.Label, 10, b.Rate, top, 30, th))
	}
	if excluded > 0 {
		fmt.Println()
		fmt.Println(cli.RenderMuted(fmt.Sprintf("  %d loans without a valid amount were left out", excluded)))
	}
	fmt.Println()
	return nil
}
