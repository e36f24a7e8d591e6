package cmd

import (
	"fmt"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"

	"github.com/spf13/cobra"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List the branches selectable under --region",
	RunE:  runBranches,
}

func init() {
	rootCmd.AddCommand(branchesCmd)
}

func runBranches(_ *cobra.Command, _ []string) error {
	result, err := loadData()
	if err != nil {
		return err
	}

	branches := pipeline.BranchesForRegions(result.Records, flagRegions)
	if len(branches) == 0 {
		printNoData()
		return nil
	}

	scope := "all regions"
	if len(flagRegions) > 0 {
		scope = strings.Join(flagRegions, ", ")
	}

	counts := make(map[string]int)
	inScope := pipeline.FilterByDimensions(result.Records, pipeline.DimensionFilter{Regions: flagRegions})
	for i := range inScope {
		counts[inScope[i].Value(model.DimBranch)]++
	}

	rows := make([][]string, 0, len(branches))
	for _, b := range branches {
		rows = append(rows, []string{b, cli.FormatCount(counts[b])})
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("BRANCHES  %s", scope)))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Branch", "Loans"},
		Rows:    rows,
	}))
	fmt.Println()
	return nil
}
