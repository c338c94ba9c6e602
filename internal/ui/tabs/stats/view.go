package stats

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/wafer-yield/internal/ui/components"
	"github.com/j-veylop/wafer-yield/internal/ui/styles"
)

// View renders the stats tab.
func (m *Model) View() string {
	m.sync()

	snap := m.state.GetSnapshot()
	if snap == nil {
		if err := m.state.GetError(); err != nil {
			return styles.ErrorTextStyle.Render("Reports unavailable: " + err.Error())
		}
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	title := "Reading statistics per bin"
	if m.subBin {
		title = "Reading statistics per sub-bin"
	}
	subtitle := fmt.Sprintf("%s groups over %s dies",
		humanize.Comma(int64(len(m.table.Rows()))),
		humanize.Comma(int64(snap.Records)))

	sections := []string{
		styles.TitleStyle.Render(title),
		styles.HelpStyle.Render(subtitle),
		"",
	}

	switch {
	case m.buildErr != nil:
		sections = append(sections, styles.ErrorTextStyle.Render("Reports unavailable: "+m.buildErr.Error()))
	case len(m.table.Rows()) == 0:
		sections = append(sections, styles.HelpStyle.Render("No readings to report"))
	default:
		sections = append(sections, styles.CardStyle.Padding(0, 1).Render(m.table.View()))
		if m.showChart && !m.subBin && len(m.means) > 0 {
			sections = append(sections, m.renderChart())
		}
	}

	return styles.DocStyle.
		Width(m.width).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderChart() string {
	values := make([]float64, len(m.means))
	labels := make([]string, len(m.means))
	for i, bm := range m.means {
		values[i] = bm.Value
		labels[i] = "Bin " + strconv.Itoa(bm.Bin)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.SubTitleStyle.UnsetMarginBottom().Render("Mean - Reading_1 over all wafers"),
		components.RenderBarChart(values, labels, max(m.width-12, 30)),
	)
}
