package cmd

import (
	"errors"
	"fmt"

	"github.com/MichelOvalle/fpd-daily-mk/internal/config"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	// The wizard repairs a broken config, so it must not require a valid one.
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		config.LoadDotEnv()
		return nil
	},
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Load existing config or defaults
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if flagData != "" {
		cfg.General.Dataset = flagData
	}

	fmt.Println()
	fmt.Println("  Welcome to fpd!")
	fmt.Println()

	vals := tui.SetupValuesFrom(cfg)
	if err := tui.NewSetupForm(vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return fmt.Errorf("setup form: %w", err)
	}
	vals.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	if files, err := source.ScanDir(cfg.General.Dataset); err == nil {
		fmt.Printf("\n  Found %d extract file(s) in %s\n", len(files), cfg.General.Dataset)
	}
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Printf("  Parse cache lives in %s\n", pipeline.CacheDir())
	fmt.Println("  Run `fpd setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}
