// Package subbins provides the per-sub-bin count tab, grouped by parent bin.
package subbins

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/wafer-yield/internal/app"
	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/report"
	"github.com/j-veylop/wafer-yield/internal/services"
	"github.com/j-veylop/wafer-yield/internal/ui/components"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

type keyMap struct {
	TogglePercent key.Binding
	Up            key.Binding
	Down          key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		TogglePercent: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "counts/percent"),
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

// Model represents the sub-bins tab state.
type Model struct {
	state   *app.State
	table   table.Model
	spinner components.RunSpinner
	keys    keyMap
	width   int
	height  int
	percent bool

	snap     *services.Snapshot
	built    bool
	builtPct bool
	spans    []components.Span
	buildErr error
}

// New creates a new sub-bins model.
func New(state *app.State) *Model {
	return &Model{
		state:   state,
		table:   components.NewReportTable(10),
		spinner: components.NewRunSpinner("Generating reports"),
		keys:    defaultKeyMap(),
	}
}

// Init initializes the sub-bins tab.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick()
}

// Update handles messages for the sub-bins tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.TogglePercent) {
			m.percent = !m.percent
		} else {
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
	if snap == nil || (m.built && snap == m.snap && m.builtPct == m.percent) {
		return
	}
	m.snap, m.built, m.builtPct = snap, true, m.percent

	kind := models.ReportSubBinCount
	if m.percent {
		kind = models.ReportSubBinPercent
	}
	res, err := snap.Result(kind)
	m.buildErr = err
	if err != nil {
		m.spans = nil
		components.SetTableData(&m.table, nil, nil)
		return
	}

	lut := snap.Catalog.SubBinLUT()
	header := report.FormatRow(report.CountHeader(lut.Names))
	rows := make([][]string, len(res.Counts))
	for i, r := range res.Counts {
		rows[i] = report.FormatRow(r.Cells())
	}
	components.SetTableData(&m.table, header, rows)
	m.spans = groupSpans(lut)
}

// groupSpans places one "Bin n" label over the sub-bin columns of every bin.
// Column 0 holds the wafer name.
func groupSpans(lut yield.SubBinLUT) []components.Span {
	spans := make([]components.Span, len(lut.Bins))
	for i, bin := range lut.Bins {
		spans[i] = components.Span{
			Label: "Bin " + strconv.Itoa(bin),
			Start: lut.Offsets[i] + 1,
			Size:  lut.GroupSize(i),
		}
	}
	return spans
}

// SetSize sets the available size for the sub-bins tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	// title, subtitle, group row, card border
	m.table.SetHeight(max(height-10, 3))
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.TogglePercent}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.TogglePercent},
		{m.keys.Up, m.keys.Down},
	}
}
