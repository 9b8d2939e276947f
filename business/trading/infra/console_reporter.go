// Package infra contains infrastructure adapters for the trading context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	ringsApp "github.com/railgun-trading/railgun/business/rings/app"
	"github.com/railgun-trading/railgun/business/trading/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7C3AED")).
			Padding(0, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	profitStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	lossStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#EF4444"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// maxCandidateRows caps the detection table printed per cycle.
const maxCandidateRows = 5

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, titleStyle.Render("RAILGUN"))
	fmt.Fprintln(r.out, mutedStyle.Render("triangular ring trader"))
	return nil
}

// ReportDetection prints the top ring candidates of a detection cycle.
func (r *ConsoleReporter) ReportDetection(detection ringsApp.Detection) {
	if len(detection.Candidates) == 0 {
		return
	}
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, headerStyle.Render("CANDIDATES"))
	rows := detection.Candidates
	if len(rows) > maxCandidateRows {
		rows = rows[:maxCandidateRows]
	}
	for _, c := range rows {
		line := fmt.Sprintf("  %-28s profit %s (%s%%)",
			c.Ring.String(), c.Profit.StringFixed(4), c.ProfitPct.StringFixed(4))
		if detection.Selected != nil && c.Ring == detection.Selected.Ring {
			line += "  <- selected, stability " + fmt.Sprint(c.Stability)
			fmt.Fprintln(r.out, profitStyle.Render(line))
			continue
		}
		fmt.Fprintln(r.out, line)
	}
}

// ReportCycle prints the result of one executed trade cycle.
func (r *ConsoleReporter) ReportCycle(report domain.CycleReport) {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, headerStyle.Render(fmt.Sprintf("CYCLE #%d  %s", report.Cycle, report.Ring.String())))
	fmt.Fprintf(r.out, "  Outcome:   %s\n", r.renderOutcome(report))
	fmt.Fprintf(r.out, "  Invested:  %s\n", report.Invest.StringFixed(4))
	fmt.Fprintf(r.out, "  Balance:   %s\n", report.FinalBalance.StringFixed(4))
	fmt.Fprintf(r.out, "  Profit:    %s\n", r.renderProfit(report))
	fmt.Fprintf(r.out, "  Duration:  %s\n", report.Duration.Round(time.Millisecond))
	if report.FallbackUsed {
		fmt.Fprintln(r.out, warnStyle.Render("  exited through a fallback sale"))
	}
	if report.Reason != "" {
		fmt.Fprintln(r.out, mutedStyle.Render("  "+report.Reason))
	}
}

// Stop prints the shutdown notice.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, mutedStyle.Render("trading stopped"))
	return nil
}

func (r *ConsoleReporter) renderOutcome(report domain.CycleReport) string {
	switch report.Outcome {
	case domain.OutcomeCompleted:
		return profitStyle.Render(string(report.Outcome))
	case domain.OutcomeFailed:
		return lossStyle.Render(string(report.Outcome))
	default:
		return warnStyle.Render(string(report.Outcome))
	}
}

func (r *ConsoleReporter) renderProfit(report domain.CycleReport) string {
	text := fmt.Sprintf("%s (%s%%)", report.Profit.StringFixed(4), report.ProfitPct.StringFixed(4))
	if report.Profit.IsNegative() {
		return lossStyle.Render(text)
	}
	if report.Profit.IsPositive() {
		return profitStyle.Render(text)
	}
	return text
}
