package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RunSummary aggregates the outcome of one workflow run for display and
// run-history persistence.
type RunSummary struct {
	RunID      string
	Kind       string
	Report     string
	Reports    int
	RecordsIn  int
	RecordsOut int
	APICalls   int
	Errors     int
	Duration   time.Duration
}

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("12"))

	summaryLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8")).
				Width(14)

	summaryErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9"))

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
)

// Render formats the summary for terminal output.
func (r *RunSummary) Render() string {
	var b strings.Builder
	b.WriteString(summaryTitleStyle.Render(fmt.Sprintf("%s run %s", r.Kind, r.RunID)))
	b.WriteString("\n")

	line := func(label, value string) {
		b.WriteString(summaryLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	line("Report", r.Report)
	line("Reports", fmt.Sprintf("%d", r.Reports))
	line("Records in", fmt.Sprintf("%d", r.RecordsIn))
	line("Records out", fmt.Sprintf("%d", r.RecordsOut))
	line("API calls", fmt.Sprintf("%d", r.APICalls))
	if r.Errors > 0 {
		line("Errors", summaryErrorStyle.Render(fmt.Sprintf("%d", r.Errors)))
	}
	line("Duration", FormatDuration(r.Duration))

	return summaryBoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// FormatDuration renders a duration as "XhYmZs", dropping leading zero
// units. Sub-second runs render as "0s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
