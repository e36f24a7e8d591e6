package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/config"
	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"
	"github.com/MichelOvalle/fpd-daily-mk/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagData           string
	flagRegions        []string
	flagBranches       []string
	flagProducts       []string
	flagClientTypes    []string
	flagChannels       []string
	flagMaturityMonths int
	flagNoMaturity     bool
	flagExcludeLatest  bool
	flagMinVolume      int
	flagNoCache        bool
	flagQuiet          bool

	// appConfig is populated by loadConfig before any command runs.
	appConfig = config.DefaultConfig()
)

var errNoDataset = errors.New("no dataset configured: pass --data or run `fpd setup`")

var rootCmd = &cobra.Command{
	Use:               "fpd",
	Short:             "First-payment-default vintage monitor",
	Long:              "Track first-payment-default rates by origination month (cosecha) and by region, branch, product, client type and channel.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runVintages,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagData, "data", "d", "", "Dataset file or directory of CSV extracts")
	pf.StringSliceVar(&flagRegions, "region", nil, "Filter to regions (repeatable or comma-separated)")
	pf.StringSliceVar(&flagBranches, "branch", nil, "Filter to branches")
	pf.StringSliceVar(&flagProducts, "product", nil, "Filter to products")
	pf.StringSliceVar(&flagClientTypes, "client-type", nil, "Filter to client types")
	pf.StringSliceVar(&flagChannels, "channel", nil, "Filter to channels")
	pf.IntVar(&flagMaturityMonths, "maturity-months", pipeline.DefaultMaturityMonths, "Drop loans originated within this many months of today")
	pf.BoolVar(&flagNoMaturity, "no-maturity", false, "Disable the maturity window")
	pf.BoolVar(&flagExcludeLatest, "exclude-latest", false, "Drop the most recent cosecha")
	pf.IntVar(&flagMinVolume, "min-volume", pipeline.DefaultMinVolume, "Minimum loans for a group to be ranked (0 disables)")
	pf.BoolVar(&flagNoCache, "no-cache", false, "Skip SQLite cache, reparse everything")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

// loadConfig reads the config file and .env, then fills every flag the user
// did not set explicitly from it.
func loadConfig(cmd *cobra.Command, _ []string) error {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", config.ConfigPath(), err)
	}
	appConfig = cfg

	flags := cmd.Flags()
	if !flags.Changed("data") {
		flagData = cfg.General.Dataset
	}
	if !flags.Changed("maturity-months") {
		flagMaturityMonths = cfg.General.MaturityMonths
	}
	if !flags.Changed("exclude-latest") {
		flagExcludeLatest = cfg.General.ExcludeLatest
	}
	if !flags.Changed("min-volume") {
		flagMinVolume = cfg.General.MinVolume
	}
	if flagMinVolume < 0 {
		return fmt.Errorf("--min-volume must be >= 0, got %d", flagMinVolume)
	}
	return nil
}

// loadData is the shared data loading path used by all commands.
// Uses SQLite cache when available for fast subsequent runs.
func loadData() (*pipeline.LoadResult, error) {
	if flagData == "" {
		return nil, errNoDataset
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning %s...\n", flagData)
	}

	opts := appConfig.SourceOptions()
	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%10 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Parsing [%d/%d]", current, total)
		}
	}

	if !flagNoCache {
		cache, err := store.Open(pipeline.CachePath())
		if err != nil {
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "  Cache unavailable, doing full parse\n")
			}
		} else {
			defer func() { _ = cache.Close() }()

			cr, err := pipeline.LoadWithCache(flagData, opts, cache, progressFn)
			if err == nil {
				if !flagQuiet && cr.TotalFiles > 0 {
					if cr.Reparsed == 0 {
						fmt.Fprintf(os.Stderr, "\r  Loaded %s loans from cache (%d files)    \n",
							cli.FormatCount(len(cr.Records)), cr.TotalFiles)
					} else {
						fmt.Fprintf(os.Stderr, "\r  %d cached + %d reparsed files, %s loans    \n",
							cr.CacheHits, cr.Reparsed, cli.FormatCount(len(cr.Records)))
					}
				}
				if !flagQuiet && cr.CacheWriteErrors > 0 {
					fmt.Fprintf(os.Stderr, "  Cache not updated for %d files, they will be reparsed next run: %v\n",
						cr.CacheWriteErrors, cr.CacheWriteErr)
				}
				reportSkipped(cr.Stats.BadRows, cr.Stats.BadDates)
				return &cr.LoadResult, nil
			}
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "\n  Cache error, falling back to full parse\n")
			}
		}
	}

	result, err := pipeline.Load(flagData, opts, progressFn)
	if err != nil {
		return nil, err
	}
	if !flagQuiet && result.TotalFiles > 0 {
		fmt.Fprintf(os.Stderr, "\r  Parsed %s loans across %d files    \n",
			cli.FormatCount(len(result.Records)), result.TotalFiles)
	}
	reportSkipped(result.Stats.BadRows, result.Stats.BadDates)
	return result, nil
}

func reportSkipped(badRows, badDates int) {
	if flagQuiet || badRows+badDates == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "  Skipped %d malformed rows and %d rows with unparseable dates\n", badRows, badDates)
}

// buildFilter assembles the query filter from the persistent flags.
func buildFilter() pipeline.Filter {
	f := pipeline.Filter{
		Dimensions: pipeline.DimensionFilter{
			Regions:     flagRegions,
			Branches:    flagBranches,
			Products:    flagProducts,
			ClientTypes: flagClientTypes,
			Channels:    flagChannels,
		},
		MaturityMonths: flagMaturityMonths,
		ExcludeLatest:  flagExcludeLatest,
	}
	if flagNoMaturity {
		f.MaturityMonths = 0
	}
	return f
}

// applyFilters returns the records surviving the flag filters as of now.
func applyFilters(records []model.LoanRecord) ([]model.LoanRecord, pipeline.Filter) {
	f := buildFilter()
	return pipeline.Apply(records, f, time.Now()), f
}

// describeFilter renders the active filter for report titles.
func describeFilter(f pipeline.Filter) string {
	s := "all loans"
	if !f.Dimensions.IsEmpty() {
		s = "filtered"
	}
	if f.MaturityMonths > 0 {
		s += fmt.Sprintf(", mature %dm", f.MaturityMonths)
	}
	if f.ExcludeLatest {
		s += ", excl. latest"
	}
	return s
}

func printNoData() {
	fmt.Println("\n  No data for the selected filters.")
}

func parseDimensionFlag(s string) (model.Dimension, error) {
	dim, err := model.ParseDimension(s)
	if err != nil {
		return "", fmt.Errorf("--by: %w", err)
	}
	return dim, nil
}
