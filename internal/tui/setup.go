package tui

import (
	"errors"
	"os"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/config"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues holds the answers of the first-run wizard.
type SetupValues struct {
	Dataset        string
	MaturityMonths int
	OutcomeMode    string
	OutcomeMarker  string
	Theme          string
}

// SetupValuesFrom seeds the wizard with the current configuration.
func SetupValuesFrom(cfg config.Config) *SetupValues {
	return &SetupValues{
		Dataset:        cfg.General.Dataset,
		MaturityMonths: cfg.General.MaturityMonths,
		OutcomeMode:    cfg.Parsing.OutcomeMode,
		OutcomeMarker:  cfg.Parsing.OutcomeMarker,
		Theme:          cfg.Appearance.Theme,
	}
}

// Apply copies the answers into cfg.
func (v *SetupValues) Apply(cfg *config.Config) {
	cfg.General.Dataset = strings.TrimSpace(v.Dataset)
	cfg.General.MaturityMonths = v.MaturityMonths
	cfg.Parsing.OutcomeMode = v.OutcomeMode
	cfg.Parsing.OutcomeMarker = ""
	if v.OutcomeMode == string(source.OutcomeMarker) {
		cfg.Parsing.OutcomeMarker = strings.TrimSpace(v.OutcomeMarker)
	}
	cfg.Appearance.Theme = v.Theme
}

func validateDataset(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("a dataset path is required")
	}
	if _, err := os.Stat(s); err != nil {
		return errors.New("path not found")
	}
	return nil
}

// NewSetupForm builds the first-run wizard bound to vals.
func NewSetupForm(vals *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themeOpts = append(themeOpts, huh.NewOption(t.Name, t.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Dataset").
				Description("CSV extract, or a directory of them").
				Placeholder("~/data/fpd").
				Value(&vals.Dataset).
				Validate(validateDataset),
			huh.NewSelect[int]().
				Title("Maturity window").
				Description("Loans younger than this are left out of every rate").
				Options(
					huh.NewOption("None", 0),
					huh.NewOption("1 month", 1),
					huh.NewOption("2 months", 2),
					huh.NewOption("3 months", 3),
				).
				Value(&vals.MaturityMonths),
			huh.NewSelect[string]().
				Title("FPD column convention").
				Options(
					huh.NewOption("Numeric (1 = default)", string(source.OutcomeNumeric)),
					huh.NewOption("Boolean (true/false, si/no)", string(source.OutcomeBoolean)),
					huh.NewOption("Text marker", string(source.OutcomeMarker)),
				).
				Value(&vals.OutcomeMode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Marker text").
				Description("Cell value that flags a first-payment default, case-insensitive").
				Value(&vals.OutcomeMarker).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("marker cannot be empty")
					}
					return nil
				}),
		).WithHideFunc(func() bool {
			return vals.OutcomeMode != string(source.OutcomeMarker)
		}),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.Theme),
		),
	).WithShowHelp(true)
}

// saveSetup persists the wizard answers and applies them to the session.
func (a *App) saveSetup() error {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	a.setupVals.Apply(&cfg)
	theme.SetActive(cfg.Appearance.Theme)

	a.opts.DataPath = cfg.General.Dataset
	a.opts.Source = cfg.SourceOptions()
	a.filter.MaturityMonths = cfg.General.MaturityMonths
	a.maturityMonths = cfg.General.MaturityMonths
	return config.Save(cfg)
}
