// Package stats provides the reading statistics tab.
package stats

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

type keyMap struct {
	ToggleSubBin key.Binding
	ToggleChart  key.Binding
	Up           key.Binding
	Down         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ToggleSubBin: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "bin/sub-bin"),
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

// binMean is the mean Reading_1 of one bin over every wafer.
type binMean struct {
	Bin   int
	Dies  int
	Value float64
}

// Model represents the stats tab state.
type Model struct {
	state     *app.State
	table     table.Model
	spinner   components.RunSpinner
	keys      keyMap
	width     int
	height    int
	subBin    bool
	showChart bool

	snap        *services.Snapshot
	built       bool
	builtSubBin bool
	means       []binMean
	buildErr    error
}

// New creates a new stats model.
func New(state *app.State) *Model {
	return &Model{
		state:     state,
		table:     components.NewReportTable(10),
		spinner:   components.NewRunSpinner("Generating reports"),
		keys:      defaultKeyMap(),
		showChart: true,
	}
}

// Init initializes the stats tab.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick()
}

// Update handles messages for the stats tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.ToggleSubBin):
			m.subBin = !m.subBin
			m.resizeTable()
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

func (m *Model) sync() {
	snap := m.state.GetSnapshot()
	if snap == nil || (m.built && snap == m.snap && m.builtSubBin == m.subBin) {
		return
	}
	m.snap, m.built, m.builtSubBin = snap, true, m.subBin

	kind := models.ReportBinStats
	if m.subBin {
		kind = models.ReportSubBinStats
	}
	res, err := snap.Result(kind)
	m.buildErr = err
	if err != nil {
		components.SetTableData(&m.table, nil, nil)
		return
	}

	header := report.FormatRow(report.StatsHeader(m.subBin))
	header = append(header, "Dies")
	rows := make([][]string, len(res.Stats))
	for i, r := range res.Stats {
		rows[i] = append(report.FormatRow(r.Cells()), report.FormatCell(r.Count))
	}
	components.SetTableData(&m.table, header, rows)

	m.means = binMeans(snap)
}

// binMeans weights every per-wafer bin mean by its die count to get the
// mean over all wafers.
func binMeans(snap *services.Snapshot) []binMean {
	res, err := snap.Result(models.ReportBinStats)
	if err != nil {
		return nil
	}
	sums := make(map[int]float64)
	dies := make(map[int]int)
	for _, r := range res.Stats {
		sums[r.Bin] += r.Mean * float64(r.Count)
		dies[r.Bin] += r.Count
	}

	var out []binMean
	for _, bin := range snap.Catalog.Bins() {
		if dies[bin] == 0 {
			continue
		}
		out = append(out, binMean{Bin: bin, Dies: dies[bin], Value: sums[bin] / float64(dies[bin])})
	}
	return out
}

func (m *Model) chartRows() int {
	if !m.showChart || m.subBin {
		return 0
	}
	// one bar per bin plus its heading
	return len(m.means) + 2
}

func (m *Model) resizeTable() {
	m.table.SetHeight(max(m.height-m.chartRows()-9, 3))
}

// SetSize sets the available size for the stats tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.resizeTable()
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.ToggleSubBin, m.keys.ToggleChart}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleSubBin, m.keys.ToggleChart},
		{m.keys.Up, m.keys.Down},
	}
}
