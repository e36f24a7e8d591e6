// Package tui provides the interactive Bubble Tea dashboard for fpd.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/MichelOvalle/fpd-daily-mk/internal/cli"
	"github.com/MichelOvalle/fpd-daily-mk/internal/config"
	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/pipeline"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
	"github.com/MichelOvalle/fpd-daily-mk/internal/store"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/components"
	"github.com/MichelOvalle/fpd-daily-mk/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Options configures a dashboard session.
type Options struct {
	DataPath   string
	Source     source.Options
	Filter     pipeline.Filter
	MinVolume  int
	Thresholds model.RiskThresholds
	UseCache   bool
}

// DataLoadedMsg is sent when the data pipeline finishes, successfully or not.
type DataLoadedMsg struct {
	Records     []model.LoanRecord
	Fingerprint string
	Stats       source.ParseStats
	LoadTime    time.Duration
	Err         error
}

// ProgressMsg reports file parsing progress.
type ProgressMsg struct {
	Current int
	Total   int
}

const (
	tabVintages = iota
	tabBreakdown
	tabRankings
	tabAmounts
	tabFilters
)

// App is the root Bubble Tea model.
type App struct {
	opts Options

	// Data
	records     []model.LoanRecord
	fingerprint string
	parseStats  source.ParseStats
	loaded      bool
	loading     bool
	loadErr     error
	loadTime    time.Duration

	// Query state
	filter         pipeline.Filter
	maturityMonths int // restored when the window is toggled back on
	asOf           time.Time
	cache          *pipeline.QueryCache

	// Pre-computed for current filter
	filtered    []model.LoanRecord
	vintages    []model.VintageRow
	pivot       pipeline.Pivot
	comparisons []model.DimensionComparison
	ranked      []model.VintageRow
	rankCosecha string
	buckets     []model.BucketRow
	noAmount    int

	breakdownDim model.Dimension
	rankDim      model.Dimension
	rankOffset   int // cosechas back from the latest

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool

	filterForm *huh.Form
	filterVals *filterValues

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals *SetupValues
	needSetup bool

	// Loading, channel-based progress subscription
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180
	minContentHeight = 5
)

var dimensionCycle = []model.Dimension{
	model.DimRegion, model.DimBranch, model.DimProduct, model.DimClientType, model.DimChannel,
}

// NewApp creates a new TUI app model.
func NewApp(opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	maturity := opts.Filter.MaturityMonths
	if maturity <= 0 {
		maturity = pipeline.DefaultMaturityMonths
	}

	return App{
		opts:           opts,
		filter:         opts.Filter,
		maturityMonths: maturity,
		cache:          pipeline.NewQueryCache(128),
		asOf:           time.Now(),
		breakdownDim:   model.DimRegion,
		rankDim:        model.DimBranch,
		needSetup:      !config.Exists() || opts.DataPath == "",
		spinner:        sp,
		loadSub:        make(chan tea.Msg, 1),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.EnableMouseCellMotion, a.spinner.Tick}
	if a.opts.DataPath != "" {
		cmds = append(cmds, loadDataCmd(a.opts, a.loadSub))
	}
	return tea.Batch(cmds...)
}

func (a *App) recompute() {
	a.asOf = time.Now()
	f := a.filter

	if key, err := pipeline.Key("records", f, a.asOf); err == nil {
		a.filtered = pipeline.Cached(a.cache, a.fingerprint, key, func() []model.LoanRecord {
			return pipeline.Apply(a.records, f, a.asOf)
		})
	} else {
		a.filtered = pipeline.Apply(a.records, f, a.asOf)
	}

	a.vintages = a.cache.Query(a.records, a.fingerprint, f, a.asOf, "")
	a.pivot = pipeline.BuildPivot(a.cache.Query(a.records, a.fingerprint, f, a.asOf, a.breakdownDim))
	a.comparisons = pipeline.Summarize(a.filtered, []model.Dimension{a.breakdownDim})
	a.buckets, a.noAmount = pipeline.AggregateAmountBuckets(a.filtered)
	a.recomputeRanking()
}

func (a *App) recomputeRanking() {
	a.ranked = nil
	a.rankCosecha = ""
	if len(a.vintages) == 0 {
		return
	}
	a.rankOffset = min(max(a.rankOffset, 0), len(a.vintages)-1)
	a.rankCosecha = a.vintages[len(a.vintages)-1-a.rankOffset].Cosecha
	a.ranked = pipeline.RankDimension(a.filtered, a.rankCosecha, a.rankDim, a.opts.MinVolume)
}

func nextDimension(d model.Dimension) model.Dimension {
	for i, c := range dimensionCycle {
		if c == d {
			return dimensionCycle[(i+1)%len(dimensionCycle)]
		}
	}
	return dimensionCycle[0]
}

func (a *App) startSetup() tea.Cmd {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if cfg.General.Dataset == "" {
		cfg.General.Dataset = a.opts.DataPath
	}
	a.setupVals = SetupValuesFrom(cfg)
	a.setupForm = NewSetupForm(a.setupVals)
	if a.width > 0 {
		a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
	}
	return a.setupForm.Init()
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		if a.filterForm != nil {
			a.filterForm = a.filterForm.WithWidth(a.contentWidth() - 4).WithHeight(msg.Height - 6)
		}
		// The wizard starts once the terminal size is known.
		if a.needSetup && a.setupForm == nil && (a.opts.DataPath == "" || a.loaded) {
			return a, a.startSetup()
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || a.setupForm != nil || a.filterForm != nil {
			return a, nil
		}
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case DataLoadedMsg:
		a.loaded = true
		a.loading = false
		a.loadTime = msg.LoadTime
		a.loadErr = msg.Err
		if msg.Err == nil {
			a.records = msg.Records
			a.fingerprint = msg.Fingerprint
			a.parseStats = msg.Stats
		}
		a.recompute()

		if a.needSetup && a.setupForm == nil && a.width > 0 {
			return a, a.startSetup()
		}
		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	// Forward unhandled messages to an open form (cursor blinks, etc.)
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	if a.filterForm != nil {
		return a.updateFilterForm(msg)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}

	// Open forms intercept all keys
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	if a.filterForm != nil {
		return a.updateFilterForm(msg)
	}

	if !a.loaded {
		if key == "q" {
			return a, tea.Quit
		}
		return a, nil
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		if !a.loading && a.opts.DataPath != "" {
			a.loading = true
			return a, reloadCmd(a.opts)
		}
		return a, nil
	case "m":
		if a.filter.MaturityMonths > 0 {
			a.maturityMonths = a.filter.MaturityMonths
			a.filter.MaturityMonths = 0
		} else {
			a.filter.MaturityMonths = a.maturityMonths
		}
		a.recompute()
		return a, nil
	case "l":
		a.filter.ExcludeLatest = !a.filter.ExcludeLatest
		a.recompute()
		return a, nil
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	}

	switch a.activeTab {
	case tabBreakdown:
		if key == "d" {
			a.breakdownDim = nextDimension(a.breakdownDim)
			a.recompute()
			return a, nil
		}
	case tabRankings:
		switch key {
		case "d":
			a.rankDim = nextDimension(a.rankDim)
			a.recomputeRanking()
			return a, nil
		case "[":
			a.rankOffset++
			a.recomputeRanking()
			return a, nil
		case "]":
			a.rankOffset--
			a.recomputeRanking()
			return a, nil
		}
	case tabFilters:
		switch key {
		case "enter", "e":
			if len(a.records) > 0 {
				return a.openFilterForm()
			}
			return a, nil
		case "c":
			a.filter.Dimensions = pipeline.DimensionFilter{}
			a.recompute()
			return a, nil
		}
	}

	if len(key) == 1 {
		if idx := components.TabIdxByKey(rune(key[0])); idx >= 0 {
			a.activeTab = idx
		}
	}
	return a, nil
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		prevPath := a.opts.DataPath
		_ = a.saveSetup()
		a.needSetup = false
		a.setupForm = nil
		if a.opts.DataPath != "" && (a.opts.DataPath != prevPath || !a.loaded) {
			a.loaded = false
			a.progress, a.progressMax = 0, 0
			return a, tea.Batch(loadDataCmd(a.opts, a.loadSub), a.spinner.Tick)
		}
		a.recompute()
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		if a.opts.DataPath == "" {
			return a, tea.Quit
		}
		return a, nil
	}
	return a, cmd
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if a.setupForm != nil {
		return a.viewSetup()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  fpd needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewSetup() string {
	t := theme.Active
	title := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true).Render("◈ fpd setup")
	hint := lipgloss.NewStyle().Foreground(t.TextMuted).Render("Settings are saved to " + config.ConfigPath())
	return "\n  " + title + "\n  " + hint + "\n\n" + a.setupForm.View()
}

func (a App) viewLoading() string {
	t := theme.Active
	w := a.width
	h := a.height

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)
	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spinnerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	countStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ fpd"))
	b.WriteString(subtitleStyle.Render(" · First-payment default by cosecha"))
	b.WriteString("\n\n")

	if a.progressMax > 0 {
		barW := min(max(w-30, 20), 40)
		b.WriteString(spinnerStyle.Render(a.spinner.View()))
		b.WriteString(subtitleStyle.Render(" Parsing extracts\n\n"))
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
		b.WriteString("\n")
		b.WriteString(countStyle.Render(fmt.Sprintf("%d", a.progress)))
		b.WriteString(subtitleStyle.Render(" / "))
		b.WriteString(countStyle.Render(fmt.Sprintf("%d files", a.progressMax)))
	} else {
		b.WriteString(spinnerStyle.Render(a.spinner.View()))
		b.WriteString(subtitleStyle.Render(" Scanning " + a.opts.DataPath))
	}

	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	section := func(b *strings.Builder, name string, binds []struct{ key, desc string }) {
		b.WriteString(sectionStyle.Render(name))
		b.WriteString("\n")
		for _, bind := range binds {
			fmt.Fprintf(b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
				descStyle.Render(bind.desc))
		}
		b.WriteString("\n")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")
	section(&b, "Navigation", []struct{ key, desc string }{
		{"v b n a f", "Jump to tab"},
		{"← →", "Previous / Next tab"},
		{"d", "Change dimension (Breakdown, Rankings)"},
		{"[ ]", "Older / newer cosecha (Rankings)"},
	})
	section(&b, "Filters", []struct{ key, desc string }{
		{"enter", "Edit dimension filters (Filters tab)"},
		{"c", "Clear dimension filters (Filters tab)"},
		{"m", "Toggle maturity window"},
		{"l", "Toggle exclude-latest cosecha"},
	})
	section(&b, "Actions", []struct{ key, desc string }{
		{"r", "Reload dataset"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	})
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) filterSummary() string {
	var parts []string
	if a.filter.MaturityMonths > 0 {
		parts = append(parts, fmt.Sprintf("mature %dm", a.filter.MaturityMonths))
	} else {
		parts = append(parts, "all ages")
	}
	if a.filter.ExcludeLatest {
		parts = append(parts, "excl. latest")
	}
	for _, dim := range model.AllDimensions {
		if vals := a.filter.Dimensions.Values(dim); len(vals) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", dim.Label(), truncStr(strings.Join(vals, ","), 24)))
		}
	}
	return strings.Join(parts, " │ ")
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	filterRowStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface).
		Width(w)
	header := components.RenderTabBar(a.activeTab, w) + "\n" +
		filterRowStyle.Render(" "+a.filterSummary())

	statusBar := components.RenderStatusBar(w, components.StatusInfo{
		DataAge:    fmt.Sprintf("%.1fs", a.loadTime.Seconds()),
		Records:    len(a.records),
		Filtered:   len(a.filtered),
		Refreshing: a.loading,
		CacheHits:  a.cache.Stats().Hits,
	})

	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	content := a.renderContent(cw)
	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// renderContent picks the active tab, or the error and empty states.
func (a App) renderContent(cw int) string {
	t := theme.Active

	if a.loadErr != nil && len(a.records) == 0 {
		return components.StateCard("Could not load the dataset",
			wrapError(a.loadErr, components.CardInnerWidth(cw)),
			"r: retry   q: quit", cw, t.Red)
	}

	var banner string
	if a.loadErr != nil {
		banner = lipgloss.NewStyle().Foreground(t.Red).Background(t.Background).
			Render(truncStr(" Reload failed, showing previous data: "+a.loadErr.Error(), cw)) + "\n"
	}

	if a.activeTab == tabFilters {
		return banner + a.renderFiltersTab(cw)
	}
	if len(a.filtered) == 0 {
		detail := fmt.Sprintf("%s loans loaded, none match.", cli.FormatCount(len(a.records)))
		if len(a.records) == 0 {
			detail = "The dataset has no readable rows."
		}
		return banner + components.StateCard("No data for the selected filters", detail,
			"f: edit filters   m: toggle maturity   l: toggle latest", cw, t.Orange)
	}

	switch a.activeTab {
	case tabVintages:
		return banner + a.renderVintagesTab(cw)
	case tabBreakdown:
		return banner + a.renderBreakdownTab(cw)
	case tabRankings:
		return banner + a.renderRankingsTab(cw)
	case tabAmounts:
		return banner + a.renderAmountsTab(cw)
	}
	return banner
}

// ─── Helpers ────────────────────────────────────────────────────

// loadRecords runs the cached loader, falling back to a full parse.
func loadRecords(opts Options, progressFn pipeline.ProgressFunc) DataLoadedMsg {
	start := time.Now()

	if opts.UseCache {
		if cache, err := store.Open(pipeline.CachePath()); err == nil {
			cr, loadErr := pipeline.LoadWithCache(opts.DataPath, opts.Source, cache, progressFn)
			_ = cache.Close()
			if loadErr == nil {
				return DataLoadedMsg{
					Records:     cr.Records,
					Fingerprint: cr.Fingerprint,
					Stats:       cr.Stats,
					LoadTime:    time.Since(start),
				}
			}
		}
	}

	result, err := pipeline.Load(opts.DataPath, opts.Source, progressFn)
	if err != nil {
		return DataLoadedMsg{LoadTime: time.Since(start), Err: err}
	}
	return DataLoadedMsg{
		Records:     result.Records,
		Fingerprint: result.Fingerprint,
		Stats:       result.Stats,
		LoadTime:    time.Since(start),
	}
}

// loadDataCmd starts the data loading pipeline in a background goroutine.
// It streams ProgressMsg updates and a final DataLoadedMsg through sub.
func loadDataCmd(opts Options, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			// Non-blocking send so workers aren't stalled; the next update catches up.
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}
			sub <- loadRecords(opts, progressFn)
		}()

		// Block until the first message (either ProgressMsg or DataLoadedMsg)
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// reloadCmd reloads in the background without the progress screen.
func reloadCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		return loadRecords(opts, nil)
	}
}

func wrapError(err error, width int) string {
	return lipgloss.NewStyle().Width(width).Render(err.Error())
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1 // separator
	}
	return -1
}
