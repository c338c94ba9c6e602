package info

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/wafer-yield/internal/ui/styles"
	"github.com/j-veylop/wafer-yield/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderProfileCard(),
		m.renderRunCard(),
		m.renderAboutCard(),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, last run and build information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-10, 50), 80)
}

func (m *Model) renderCard(title string, rows ...string) string {
	body := append([]string{styles.CardTitleStyle.Render(title)}, rows...)
	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, body...),
	)
}

func (m *Model) renderConfigCard() string {
	cfg := m.config
	if cfg == nil {
		return m.renderCard("Configuration", styles.HelpStyle.Render("Configuration not loaded"))
	}

	orNone := func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	}
	sheet := cfg.InputSheet
	if sheet == "" {
		sheet = "(first sheet)"
	}

	return m.renderCard("Configuration",
		renderRow("Input", cfg.InputPath),
		renderRow("Input Sheet", sheet),
		renderRow("Output", cfg.OutputPath),
		renderRow("Output Format", string(cfg.OutputFormat)),
		renderRow("Database", orNone(cfg.DatabasePath)),
		renderRow("Profile", orNone(cfg.ProfilePath)),
		renderRow("Zero Totals", cfg.ZeroTotalPolicy.String()),
		renderRow("Watch Debounce", cfg.WatchDebounce.String()),
		renderRow("Notifications", strconv.FormatBool(cfg.Notify)),
	)
}

func (m *Model) renderProfileCard() string {
	if m.config == nil || m.config.Profile == nil {
		return m.renderCard("Report Tables", styles.HelpStyle.Render("No profile resolved"))
	}

	rows := make([]string, 0, len(m.config.Profile.Tables))
	for _, t := range m.config.Profile.Tables {
		label := t.Kind
		if t.Title != "" {
			label += " · " + t.Title
		}
		rows = append(rows, renderRow(t.Name, label))
	}
	if len(rows) == 0 {
		rows = append(rows, styles.HelpStyle.Render("Profile has no tables"))
	}
	return m.renderCard("Report Tables", rows...)
}

func (m *Model) renderRunCard() string {
	snap := m.state.GetSnapshot()
	if snap == nil {
		msg := styles.HelpStyle.Render("No reports generated yet")
		if err := m.state.GetError(); err != nil {
			msg = styles.ErrorTextStyle.Render(err.Error())
		}
		return m.renderCard("Last Run", msg)
	}

	rows := []string{
		renderRow("Source", snap.InputPath),
		renderRow("Dies", humanize.Comma(int64(snap.Records))),
		renderRow("Wafers", humanize.Comma(int64(len(snap.Wafers)))),
		renderRow("Bins", humanize.Comma(int64(len(snap.Catalog.Bins())))),
		renderRow("Tables", humanize.Comma(int64(len(snap.Tables)))),
	}
	if !snap.GeneratedAt.IsZero() {
		rows = append(rows, renderRow("Generated",
			fmt.Sprintf("%s in %s", humanize.Time(snap.GeneratedAt), snap.Duration.Round(1e6))))
	}
	if written := m.state.GetWritten(); len(written) > 0 {
		rows = append(rows, renderRow("Written", humanize.Comma(int64(len(written)))+" tables"))
	}
	if err := m.state.GetError(); err != nil {
		rows = append(rows, "", styles.ErrorTextStyle.Render("Stale: "+err.Error()))
	}
	return m.renderCard("Last Run", rows...)
}

func (m *Model) renderAboutCard() string {
	return m.renderCard("About wafer-yield",
		renderRow("Version", version.GetVersion()),
		renderRow("Git Commit", version.GetCommit()),
		renderRow("Build Date", version.GetDate()),
		renderRow("Go Version", runtime.Version()),
		renderRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	)
}

func renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}
