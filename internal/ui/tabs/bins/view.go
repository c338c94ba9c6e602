package bins

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/wafer-yield/internal/ui/components"
	"github.com/j-veylop/wafer-yield/internal/ui/styles"
)

// View renders the bins tab.
func (m *Model) View() string {
	m.sync()

	snap := m.state.GetSnapshot()
	if snap == nil {
		if err := m.state.GetError(); err != nil {
			return m.renderError(err)
		}
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	sections := []string{m.renderTitle()}
	if m.buildErr != nil {
		sections = append(sections, m.renderError(m.buildErr))
	} else {
		sections = append(sections, m.renderTable())
		if m.showChart {
			sections = append(sections, m.renderChart())
		}
	}

	return styles.DocStyle.
		Width(m.width).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderTitle() string {
	mode := "Die counts per bin"
	if m.percent {
		mode = "Share of wafer total per bin"
	}
	title := styles.TitleStyle.Render(mode)

	snap := m.state.GetSnapshot()
	subtitle := styles.HelpStyle.Render(fmt.Sprintf("%s wafers · %s bins",
		humanize.Comma(int64(len(snap.Wafers))),
		humanize.Comma(int64(len(snap.Catalog.Bins())))))

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, m.renderOverall(), "")
}

// renderOverall lists every bin's share of all dies.
func (m *Model) renderOverall() string {
	parts := make([]string, len(m.bins))
	for i, bin := range m.bins {
		share := fmt.Sprintf("%.2f%%", m.overall[i])
		parts[i] = fmt.Sprintf("Bin %d %s", bin, styles.GetYieldStyle(m.overall[i]).Render(share))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderTable() string {
	if len(m.table.Rows()) == 0 {
		return styles.HelpStyle.Render("No wafers to report")
	}
	return styles.CardStyle.Padding(0, 1).Render(m.table.View())
}

func (m *Model) renderChart() string {
	if len(m.series) == 0 {
		return ""
	}
	width := max(m.width-16, 20)
	chart := components.RenderMultiLineChart(m.series, width, chartHeight, "Yield % per wafer")

	legend := make([]components.LegendItem, len(m.bins))
	for i, bin := range m.bins {
		legend[i] = components.LegendItem{Label: "Bin " + strconv.Itoa(bin), Color: components.SeriesColor(i)}
	}

	return lipgloss.JoinVertical(lipgloss.Left, chart, components.RenderLegend(legend))
}

func (m *Model) renderError(err error) string {
	return styles.CardStyle.BorderForeground(styles.Error).Render(
		styles.ErrorTextStyle.Render("Reports unavailable: " + err.Error()),
	)
}
