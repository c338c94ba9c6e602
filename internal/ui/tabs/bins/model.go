// Package bins provides the per-bin count and yield tab.
package bins

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/wafer-yield/internal/app"
	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/report"
	"github.com/j-veylop/wafer-yield/internal/services"
	"github.com/j-veylop/wafer-yield/internal/ui/components"
)

// chartHeight is the plot height of the yield chart, axis excluded.
const chartHeight = 6

// keyMap defines the key bindings specific to the bins tab.
type keyMap struct {
	TogglePercent key.Binding
	ToggleChart   key.Binding
	Up            key.Binding
	Down          key.Binding
}

// defaultKeyMap returns the default key bindings for the bins tab.
func defaultKeyMap() keyMap {
	return keyMap{
		TogglePercent: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "counts/percent"),
		),
		ToggleChart: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "toggle chart"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
	}
}

// Model represents the bins tab state.
type Model struct {
	state     *app.State
	table     table.Model
	spinner   components.RunSpinner
	keys      keyMap
	width     int
	height    int
	percent   bool
	showChart bool

	// snapshot and mode the table was last built from
	snap     *services.Snapshot
	built    bool
	builtPct bool
	series   [][]float64
	overall  []float64
	bins     []int
	buildErr error
}

// New creates a new bins model.
func New(state *app.State) *Model {
	return &Model{
		state:     state,
		table:     components.NewReportTable(10),
		spinner:   components.NewRunSpinner("Generating reports"),
		keys:      defaultKeyMap(),
		showChart: true,
	}
}

// Init initializes the bins tab.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick()
}

// Update handles messages for the bins tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.TogglePercent):
			m.percent = !m.percent
		case key.Matches(msg, m.keys.ToggleChart):
			m.showChart = !m.showChart
			m.resizeTable()
		default:
			m.table, cmd = m.table.Update(msg)
		}
	default:
		m.spinner.SetStages(m.state.GetLoadingResources())
		m.spinner, cmd = m.spinner.Update(msg)
	}

	m.sync()
	return m, cmd
}

// sync rebuilds the table when the snapshot or the display mode changed.
func (m *Model) sync() {
	snap := m.state.GetSnapshot()
	if snap == nil || (m.built && snap == m.snap && m.builtPct == m.percent) {
		return
	}
	m.snap, m.built, m.builtPct = snap, true, m.percent

	kind := models.ReportBinCount
	if m.percent {
		kind = models.ReportBinPercent
	}
	res, err := snap.Result(kind)
	m.buildErr = err
	if err != nil {
		components.SetTableData(&m.table, nil, nil)
		return
	}

	header := report.FormatRow(report.CountHeader(snap.Catalog.BinLUT().Names))
	rows := make([][]string, len(res.Counts))
	for i, r := range res.Counts {
		rows[i] = report.FormatRow(r.Cells())
	}
	components.SetTableData(&m.table, header, rows)

	m.bins, m.series, m.overall = yieldSeries(snap)
}

// yieldSeries returns, for every catalog bin, its share of each wafer and of
// all dies in percent. Wafers without dies contribute zero.
func yieldSeries(snap *services.Snapshot) (bins []int, series [][]float64, overall []float64) {
	res, err := snap.Result(models.ReportBinCount)
	if err != nil {
		return nil, nil, nil
	}
	bins = snap.Catalog.BinLUT().Names
	series = make([][]float64, len(bins))
	overall = make([]float64, len(bins))

	dies := 0
	for _, row := range res.Counts {
		dies += row.Total
	}
	for i := range bins {
		series[i] = make([]float64, len(res.Counts))
		binDies := 0
		for w, row := range res.Counts {
			binDies += row.Counts[i]
			if row.Total > 0 {
				series[i][w] = float64(row.Counts[i]) * 100 / float64(row.Total)
			}
		}
		if dies > 0 {
			overall[i] = float64(binDies) * 100 / float64(dies)
		}
	}
	return bins, series, overall
}

func (m *Model) chartRows() int {
	if !m.showChart {
		return 0
	}
	// plot, caption and legend
	return chartHeight + 3
}

func (m *Model) resizeTable() {
	// title, subtitle, card border and footer
	m.table.SetHeight(max(m.height-m.chartRows()-10, 3))
}

// SetSize sets the available size for the bins tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.resizeTable()
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.TogglePercent,
		m.keys.ToggleChart,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.TogglePercent, m.keys.ToggleChart},
		{m.keys.Up, m.keys.Down},
	}
}
