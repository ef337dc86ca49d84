package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/nextlevelbuilder/botsim/internal/scenario"
)

// Columns of the step table.
const (
	stepColumnWidth   = 36
	detailColumnWidth = 60
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// writeTextReport prints one block per scenario with a line per step.
func writeTextReport(w io.Writer, reports []*scenario.Report) error {
	var b strings.Builder
	failed := 0
	for _, r := range reports {
		mark := passStyle.Render("PASS")
		if !r.Passed {
			mark = failStyle.Render("FAIL")
			failed++
		}
		fmt.Fprintf(&b, "%s %s %s\n", mark, titleStyle.Render(r.Scenario), detailStyle.Render("("+r.Duration+")"))
		if r.Error != "" {
			fmt.Fprintf(&b, "     setup: %s\n", r.Error)
		}
		for _, s := range r.Steps {
			b.WriteString(stepLine(s))
		}
		if r.Skipped > 0 {
			fmt.Fprintf(&b, "     %s\n", skipStyle.Render(fmt.Sprintf("%d step(s) skipped", r.Skipped)))
		}
	}
	summary := passStyle.Render(fmt.Sprintf("%d passed", len(reports)-failed))
	if failed > 0 {
		summary += ", " + failStyle.Render(fmt.Sprintf("%d failed", failed))
	}
	fmt.Fprintf(&b, "\n%s\n", summary)
	_, err := io.WriteString(w, b.String())
	return err
}

func stepLine(s scenario.StepReport) string {
	mark := passStyle.Render("✓")
	detail := stepDetail(s)
	if !s.Passed {
		mark = failStyle.Render("✗")
		detail = s.Failure
	}
	return fmt.Sprintf("  %s %s %s\n", mark, pad(s.Step, stepColumnWidth),
		detailStyle.Render(runewidth.Truncate(oneLine(detail), detailColumnWidth, "…")))
}

func stepDetail(s scenario.StepReport) string {
	switch {
	case s.Error != nil:
		return fmt.Sprintf("%s %d: %s", s.Error.Kind, s.Error.Code, s.Error.Description)
	case s.Response != nil && len(s.Response.Texts) > 0:
		return strings.Join(s.Response.Texts, " | ")
	case s.Response != nil:
		return strings.Join(s.Response.Calls, ", ")
	case len(s.Responses) > 0:
		return fmt.Sprintf("%d timer(s) fired", len(s.Responses))
	}
	return ""
}

// pad truncates or right-pads s to exactly width terminal cells.
func pad(s string, width int) string {
	s = runewidth.Truncate(oneLine(s), width, "…")
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
