// Package cmd implements the fpd CLI commands.
package cmd

import (
	"fmt"

	"github.com/MichelOvalle/fpd-daily-mk/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:               "config",
	Short:             "Show current configuration",
	PersistentPreRunE: func(*cobra.Command, []string) error { config.LoadDotEnv(); return nil },
	RunE:              runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Invalid: %v\n", err)
	}
	fmt.Println()

	fmt.Println("  [General]")
	if cfg.General.Dataset != "" {
		fmt.Printf("    Dataset:          %s\n", cfg.General.Dataset)
	} else {
		fmt.Println("    Dataset:          not configured")
	}
	fmt.Printf("    Maturity months:  %d\n", cfg.General.MaturityMonths)
	fmt.Printf("    Exclude latest:   %v\n", cfg.General.ExcludeLatest)
	fmt.Printf("    Min volume:       %d\n", cfg.General.MinVolume)
	fmt.Println()

	fmt.Println("  [Columns]")
	c := cfg.Columns
	for _, kv := range [][2]string{
		{"id", c.ID}, {"origination", c.Origination}, {"outcome", c.Outcome},
		{"non_payment", c.NonPayment}, {"amount", c.Amount}, {"region", c.Region},
		{"branch", c.Branch}, {"product", c.Product}, {"client_type", c.ClientType},
		{"channel", c.Channel},
	} {
		fmt.Printf("    %-12s %s\n", kv[0]+":", kv[1])
	}
	fmt.Println()

	fmt.Println("  [Parsing]")
	fmt.Printf("    Date layout: %s\n", cfg.Parsing.DateLayout)
	fmt.Printf("    Delimiter:   %q\n", cfg.Parsing.Delimiter)
	fmt.Printf("    Outcome:     %s", cfg.Parsing.OutcomeMode)
	if cfg.Parsing.OutcomeMarker != "" {
		fmt.Printf(" (%q)", cfg.Parsing.OutcomeMarker)
	}
	fmt.Println()
	fmt.Println()

	fmt.Println("  [Risk]")
	fmt.Printf("    Watch above: %.1f%%\n", cfg.Risk.WatchRate)
	fmt.Printf("    High above:  %.1f%%\n", cfg.Risk.HighRate)
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address:       %s\n", cfg.Server.Addr)
	fmt.Printf("    Poll interval: %ds\n", cfg.Server.PollIntervalSec)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `fpd setup` to reconfigure.")
	return nil
}
