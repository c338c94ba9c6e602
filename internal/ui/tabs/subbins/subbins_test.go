package subbins

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/j-veylop/wafer-yield/internal/app"
	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/services"
	"github.com/j-veylop/wafer-yield/internal/ui/components"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

func scenario(policy yield.ZeroTotalPolicy) *services.Snapshot {
	ix := yield.NewIndex()
	for _, r := range []models.DieRecord{
		{Wafer: "W1", Bin: 1, SubBin: 11, Reading1: 10, Reading2: 5},
		{Wafer: "W1", Bin: 1, SubBin: 11, Reading1: 20, Reading2: 7},
		{Wafer: "W1", Bin: 2, SubBin: 21, Reading1: 3, Reading2: 3},
		{Wafer: "W2", Bin: 1, SubBin: 12, Reading1: 5, Reading2: 5},
	} {
		ix.Ingest(r)
	}
	agg := yield.NewAggregator(ix, policy)
	return &services.Snapshot{
		InputPath:  "dies.csv",
		Records:    ix.Len(),
		Wafers:     ix.Wafers(),
		Catalog:    agg.Catalog(),
		Aggregator: agg,
	}
}

func rows(m *Model) [][]string {
	var out [][]string
	for _, r := range m.table.Rows() {
		out = append(out, []string(r))
	}
	return out
}

func TestView_Loading(t *testing.T) {
	m := New(app.NewState())
	m.SetSize(80, 24)
	if !strings.Contains(m.View(), "Generating reports") {
		t.Error("View should show the spinner before the first snapshot")
	}
	if m.Init() == nil {
		t.Error("Init should start the spinner")
	}
}

func TestCountsGroupedByBin(t *testing.T) {
	state := app.NewState()
	state.SetSnapshot(scenario(yield.ZeroTotalFill))
	m := New(state)
	m.SetSize(120, 30)

	view := m.View()
	if !strings.Contains(view, "2 wafers · 3 sub-bins in 2 bins") {
		t.Error("subtitle should count wafers, sub-bins and bins")
	}
	if !strings.Contains(view, "Bin 1") || !strings.Contains(view, "Bin 2") {
		t.Error("group row should label both bins")
	}

	want := [][]string{
		{"W1", "2", "0", "1", "3"},
		{"W2", "0", "1", "0", "1"},
	}
	if diff := cmp.Diff(want, rows(m)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	wantSpans := []components.Span{
		{Label: "Bin 1", Start: 1, Size: 2},
		{Label: "Bin 2", Start: 3, Size: 1},
	}
	if diff := cmp.Diff(wantSpans, m.spans); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}
}

func TestTogglePercent(t *testing.T) {
	state := app.NewState()
	state.SetSnapshot(scenario(yield.ZeroTotalFill))
	m := New(state)
	m.SetSize(120, 30)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})

	want := [][]string{
		{"W1", "66.67%", "0.00%", "33.33%", "100.00%"},
		{"W2", "0.00%", "100.00%", "0.00%", "100.00%"},
	}
	if diff := cmp.Diff(want, rows(m)); diff != "" {
		t.Errorf("percent rows mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(m.View(), "Share of wafer total per sub-bin") {
		t.Error("title should reflect percent mode")
	}
	if len(m.ShortHelp()) != 1 || len(m.FullHelp()) != 2 {
		t.Error("unexpected help bindings")
	}
}
