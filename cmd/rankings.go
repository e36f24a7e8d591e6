package cmd

import (
	"fmt"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagRankBy      string
	flagRankCosecha string
	flagRankTop     int
)

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Best and worst groups of a dimension for one cosecha",
	RunE:  runRankings,
}

func init() {
	rankingsCmd.Flags().StringVar(&flagRankBy, "by", "branch", "Dimension: region, branch, product, client_type, channel")
	rankingsCmd.Flags().StringVar(&flagRankCosecha, "cosecha", "", "Cosecha to rank (YYYY-MM, default latest)")
	rankingsCmd.Flags().IntVar(&flagRankTop, "top", 5, "Rows per list")
	rootCmd.AddCommand(rankingsCmd)
}

func runRankings(_ *cobra.Command, _ []string) error {
	dim, err := parseDimensionFlag(flagRankBy)
	if err != nil {
		return err
	}
	result, err := loadData()
	if err != nil {
		return err
	}

	filtered, f := applyFilters(result.Records)
	cosecha := flagRankCosecha
	if cosecha == "" {
		cosecha = pipeline.LatestCosecha(filtered)
	}
	ranked := pipeline.RankDimension(filtered, cosecha, dim, flagMinVolume)
	best, worst, ok := pipeline.Extremes(ranked)
	if !ok {
		printNoData()
		if flagMinVolume > 0 {
			fmt.Printf("  Groups need more than %d loans to be ranked (--min-volume).\n", flagMinVolume)
		}
		return nil
	}

	th := appConfig.Thresholds()
	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("%s RANKING  %s  %s",
		dim.Label(), cli.FormatCosecha(cosecha), describeFilter(f))))
	fmt.Println()
	fmt.Printf("  Best   %-24s %s\n", best.Value, cli.RenderRate(best.Rate, th))
	fmt.Printf("  Worst  %-24s %s\n\n", worst.Value, cli.RenderRate(worst.Rate, th))

	fmt.Print(cli.RenderTable(rankTable("Highest FPD", dim, pipeline.TopWorst(ranked, flagRankTop), th)))
	fmt.Println()
	fmt.Print(cli.RenderTable(rankTable("Lowest FPD", dim, pipeline.TopBest(ranked, flagRankTop), th)))
	fmt.Println()
	return nil
}

func rankTable(title string, dim model.Dimension, rows []model.VintageRow, th model.RiskThresholds) cli.Table {
	out := make([][]string, 0, len(rows))
	for i, r := range rows {
		out = append(out, []string{
			fmt.Sprintf("%d", i+1),
			r.Value,
			cli.FormatCount(r.Total),
			cli.FormatCount(r.Defaults),
			cli.RenderRate(r.Rate, th),
		})
	}
	return cli.Table{
		Title:   title,
		Headers: []string{"#", dim.Label(), "Loans", "FPD", "Rate"},
		Rows:    out,
	}
}
