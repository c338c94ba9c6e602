package subbins

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/wafer-yield/internal/ui/components"
	"github.com/j-veylop/wafer-yield/internal/ui/styles"
)

// View renders the sub-bins tab.
func (m *Model) View() string {
	m.sync()

	snap := m.state.GetSnapshot()
	if snap == nil {
		if err := m.state.GetError(); err != nil {
			return styles.ErrorTextStyle.Render("Reports unavailable: " + err.Error())
		}
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	title := "Die counts per sub-bin"
	if m.percent {
		title = "Share of wafer total per sub-bin"
	}
	subBins := 0
	for _, bin := range snap.Catalog.Bins() {
		subBins += len(snap.Catalog.SubBins(bin))
	}
	subtitle := fmt.Sprintf("%s wafers · %s sub-bins in %s bins",
		humanize.Comma(int64(len(snap.Wafers))),
		humanize.Comma(int64(subBins)),
		humanize.Comma(int64(len(snap.Catalog.Bins()))))

	sections := []string{
		styles.TitleStyle.Render(title),
		styles.HelpStyle.Render(subtitle),
		"",
	}

	switch {
	case m.buildErr != nil:
		sections = append(sections, styles.ErrorTextStyle.Render("Reports unavailable: "+m.buildErr.Error()))
	case len(m.table.Rows()) == 0:
		sections = append(sections, styles.HelpStyle.Render("No wafers to report"))
	default:
		grid := lipgloss.JoinVertical(lipgloss.Left,
			components.RenderSpanRow(m.table.Columns(), m.spans),
			m.table.View(),
		)
		sections = append(sections, styles.CardStyle.Padding(0, 1).Render(grid))
	}

	return styles.DocStyle.
		Width(m.width).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
