package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagExportCosecha string
	flagExportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the FPD cases of one cosecha as CSV",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagExportCosecha, "cosecha", "", "Cosecha to export (YYYY-MM, default latest)")
	exportCmd.Flags().StringVarP(&flagExportOutput, "output", "o", "", "Output file, - for stdout (default fpd_<cosecha>.csv)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(_ *cobra.Command, _ []string) error {
	result, err := loadData()
	if err != nil {
		return err
	}

	filtered, _ := applyFilters(result.Records)
	cosecha := flagExportCosecha
	if cosecha == "" {
		cosecha = pipeline.LatestCosecha(filtered)
	}
	if cosecha == "" {
		printNoData()
		return nil
	}
	if pipeline.CountDefaults(filtered, cosecha) == 0 {
		fmt.Fprintf(os.Stderr, "  No FPD cases in cosecha %s for the selected filters, nothing written.\n", cosecha)
		return nil
	}

	path := flagExportOutput
	if path == "" {
		path = pipeline.ExportFilename(cosecha)
	}

	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating export: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	n, err := pipeline.ExportDefaults(w, filtered, cosecha)
	if err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	if path != "-" && !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Wrote %d FPD cases to %s\n", n, path)
	}
	return nil
}
