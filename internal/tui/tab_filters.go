package tui

import (
	"fmt"
	"strings"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/components"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// filterValues is the form-bound copy of the dimension selection.
type filterValues struct {
	Regions     []string
	Branches    []string
	Products    []string
	ClientTypes []string
	Channels    []string
}

func filterValuesFrom(d pipeline.DimensionFilter) *filterValues {
	return &filterValues{
		Regions:     append([]string(nil), d.Regions...),
		Branches:    append([]string(nil), d.Branches...),
		Products:    append([]string(nil), d.Products...),
		ClientTypes: append([]string(nil), d.ClientTypes...),
		Channels:    append([]string(nil), d.Channels...),
	}
}

func (v *filterValues) dimensions() pipeline.DimensionFilter {
	return pipeline.DimensionFilter{
		Regions:     v.Regions,
		Branches:    v.Branches,
		Products:    v.Products,
		ClientTypes: v.ClientTypes,
		Channels:    v.Channels,
	}
}

// newFilterForm builds the dimension picker. Branch options follow the
// region selection.
func newFilterForm(records []model.LoanRecord, vals *filterValues) *huh.Form {
	pick := func(title string, dim model.Dimension, dst *[]string) *huh.MultiSelect[string] {
		return huh.NewMultiSelect[string]().
			Title(title).
			Description("none selected = all").
			Options(huh.NewOptions(pipeline.DimensionValues(records, dim)...)...).
			Filterable(true).
			Height(10).
			Value(dst)
	}

	branches := huh.NewMultiSelect[string]().
		Title("Branches").
		Description("limited to the selected regions").
		OptionsFunc(func() []huh.Option[string] {
			return huh.NewOptions(pipeline.BranchesForRegions(records, vals.Regions)...)
		}, &vals.Regions).
		Filterable(true).
		Height(10).
		Value(&vals.Branches)

	return huh.NewForm(
		huh.NewGroup(pick("Regions", model.DimRegion, &vals.Regions), branches),
		huh.NewGroup(
			pick("Products", model.DimProduct, &vals.Products),
			pick("Client types", model.DimClientType, &vals.ClientTypes),
			pick("Channels", model.DimChannel, &vals.Channels),
		),
	).WithShowHelp(true)
}

func (a App) openFilterForm() (tea.Model, tea.Cmd) {
	a.filterVals = filterValuesFrom(a.filter.Dimensions)
	a.filterForm = newFilterForm(a.records, a.filterVals)
	if a.width > 0 {
		a.filterForm = a.filterForm.WithWidth(a.contentWidth() - 4).WithHeight(a.height - 6)
	}
	return a, a.filterForm.Init()
}

func (a App) updateFilterForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.filterForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.filterForm = f
	}

	switch a.filterForm.State {
	case huh.StateCompleted:
		a.filter.Dimensions = pipeline.PruneBranches(a.records, a.filterVals.dimensions())
		a.filterForm = nil
		a.filterVals = nil
		a.recompute()
		return a, nil
	case huh.StateAborted:
		a.filterForm = nil
		a.filterVals = nil
		return a, nil
	}
	return a, cmd
}

func (a App) renderFiltersTab(cw int) string {
	t := theme.Active

	if a.filterForm != nil {
		return components.ContentCard("Edit filters", a.filterForm.View(), cw)
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	allStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	hintStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)

	innerW := components.CardInnerWidth(cw)
	var dims strings.Builder
	for _, dim := range model.AllDimensions {
		vals := a.filter.Dimensions.Values(dim)
		dims.WriteString(labelStyle.Render(fmt.Sprintf("%-13s", dim.Label())))
		if len(vals) == 0 {
			dims.WriteString(allStyle.Render("all"))
		} else {
			dims.WriteString(valueStyle.Render(truncStr(strings.Join(vals, ", "), innerW-13)))
		}
		dims.WriteString("\n")
	}
	dims.WriteString("\n")
	dims.WriteString(hintStyle.Render("enter: edit   c: clear"))

	var window strings.Builder
	if a.filter.MaturityMonths > 0 {
		cutoff := pipeline.MaturityCutoff(a.asOf, a.filter.MaturityMonths)
		window.WriteString(labelStyle.Render("Maturity      "))
		window.WriteString(valueStyle.Render(fmt.Sprintf("%d months, originated on or before %s",
			a.filter.MaturityMonths, cutoff.Format("02/01/2006"))))
	} else {
		window.WriteString(labelStyle.Render("Maturity      "))
		window.WriteString(allStyle.Render("off"))
	}
	window.WriteString("\n")
	window.WriteString(labelStyle.Render("Latest        "))
	if a.filter.ExcludeLatest {
		window.WriteString(valueStyle.Render("excluded (" + cli.FormatCosecha(pipeline.LatestCosecha(a.records)) + ")"))
	} else {
		window.WriteString(allStyle.Render("included"))
	}
	window.WriteString("\n\n")
	window.WriteString(hintStyle.Render("m: toggle maturity   l: toggle latest"))

	var data strings.Builder
	data.WriteString(labelStyle.Render("Source        "))
	data.WriteString(valueStyle.Render(truncStr(a.opts.DataPath, innerW-14)))
	data.WriteString("\n")
	data.WriteString(labelStyle.Render("Loans         "))
	data.WriteString(valueStyle.Render(fmt.Sprintf("%s loaded, %s selected",
		cli.FormatCount(len(a.records)), cli.FormatCount(len(a.filtered)))))
	data.WriteString("\n")
	data.WriteString(labelStyle.Render("Skipped rows  "))
	data.WriteString(valueStyle.Render(fmt.Sprintf("%d malformed, %d bad dates",
		a.parseStats.BadRows, a.parseStats.BadDates)))
	if ps := a.parseStats; ps.BadOutcomes+ps.BadNonPayments+ps.BadAmounts > 0 {
		data.WriteString("\n")
		data.WriteString(labelStyle.Render("Kept as-is    "))
		data.WriteString(valueStyle.Render(fmt.Sprintf("%d unreadable outcomes, %d unreadable non-payments, %d unreadable amounts",
			ps.BadOutcomes, ps.BadNonPayments, ps.BadAmounts)))
	}

	var b strings.Builder
	b.WriteString(components.ContentCard("Dimensions", dims.String(), cw))
	b.WriteString("\n")
	b.WriteString(components.ContentCard("Window", window.String(), cw))
	b.WriteString("\n")
	b.WriteString(components.ContentCard("Dataset", data.String(), cw))
	return b.String()
}
