package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/wafer-yield/internal/ui/styles"
)

// runStages maps loading resources to what a report run is doing for them.
var runStages = map[string]string{
	"initial": "reading input",
	"reports": "aggregating dies",
	"output":  "writing output",
}

// RunSpinner is shown while a report run is in flight. Its label names the
// run stages still pending.
type RunSpinner struct {
	spinner spinner.Model
	title   string
	stages  []string
	style   lipgloss.Style
}

// NewRunSpinner creates a spinner titled title with no pending stages.
func NewRunSpinner(title string) RunSpinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return RunSpinner{
		spinner: s,
		title:   title,
		style:   lipgloss.NewStyle().Foreground(styles.TextSecondary),
	}
}

// SetStages replaces the pending stages with the given loading resources,
// keeping their order. Resources without a stage name are shown as is.
func (r *RunSpinner) SetStages(resources []string) {
	r.stages = r.stages[:0]
	for _, res := range resources {
		if stage, ok := runStages[res]; ok {
			res = stage
		}
		r.stages = append(r.stages, res)
	}
}

// Label returns the title followed by the pending stages.
func (r RunSpinner) Label() string {
	if len(r.stages) == 0 {
		return r.title
	}
	return r.title + ": " + strings.Join(r.stages, ", ")
}

// Update advances the spinner on tick messages.
func (r RunSpinner) Update(msg tea.Msg) (RunSpinner, tea.Cmd) {
	var cmd tea.Cmd
	r.spinner, cmd = r.spinner.Update(msg)
	return r, cmd
}

func (r RunSpinner) View() string {
	return r.spinner.View() + " " + r.style.Render(r.Label())
}

func (r RunSpinner) Tick() tea.Cmd {
	return r.spinner.Tick
}

// RenderSpinnerCentered renders the spinner centered in width by height.
func RenderSpinnerCentered(r RunSpinner, width, height int) string {
	return styles.CenterBoth(r.View(), width, height)
}
