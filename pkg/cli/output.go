package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/devicelab-dev/scenario-runner/pkg/executor"
	"github.com/devicelab-dev/scenario-runner/pkg/report"
	"github.com/urfave/cli/v2"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (2 seconds)
const slowThresholdMs = 2000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// console writes run progress and results. Callbacks arrive from
// concurrent scenarios, so every write holds mu.
type console struct {
	w    io.Writer
	errW io.Writer

	colors bool
	// parallel prefixes step lines with the scenario name, since
	// scenarios interleave.
	parallel bool

	mu sync.Mutex
}

func newConsole(c *cli.Context, parallel bool) *console {
	w, errW := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if c.App != nil && c.App.Writer != nil {
		w = c.App.Writer
	}
	if c.App != nil && c.App.ErrWriter != nil {
		errW = c.App.ErrWriter
	}
	return &console{
		w:        w,
		errW:     errW,
		colors:   colorsEnabled && !c.Bool("no-ansi"),
		parallel: parallel,
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func (con *console) color(c string) string {
	if con.colors {
		return c
	}
	return ""
}

func (con *console) printf(format string, args ...interface{}) {
	con.mu.Lock()
	defer con.mu.Unlock()
	fmt.Fprintf(con.w, format, args...)
}

func (con *console) warnf(format string, args ...interface{}) {
	con.mu.Lock()
	defer con.mu.Unlock()
	fmt.Fprintf(con.errW, "  %s⚠%s Warning: %s\n", con.color(colorYellow), con.color(colorReset), fmt.Sprintf(format, args...))
}

func (con *console) errorf(format string, args ...interface{}) {
	con.mu.Lock()
	defer con.mu.Unlock()
	fmt.Fprintf(con.errW, format+"\n", args...)
}

// Live progress callbacks

func (con *console) onFlowStart(flowIdx, totalFlows int, name, file string) {
	con.printf("\n  %s[%d/%d]%s %s%s%s (%s)\n%s\n",
		con.color(colorCyan), flowIdx+1, totalFlows, con.color(colorReset),
		con.color(colorBold), name, con.color(colorReset), file,
		strings.Repeat("─", 60))
}

func (con *console) onStepComplete(flowName string, idx int, desc string, status report.Status, durationMs int64, errMsg string) {
	// runFlow and repeat contain multiple steps, never slow themselves
	isCompound := strings.HasPrefix(desc, "runFlow") || strings.HasPrefix(desc, "repeat")
	isSlow := durationMs >= slowThresholdMs && !isCompound
	durStr := formatDuration(durationMs)

	prefix := ""
	if con.parallel {
		prefix = con.color(colorDim) + "[" + flowName + "] " + con.color(colorReset)
	}

	var b strings.Builder
	switch status {
	case report.StatusPassed:
		symbol, symbolColor, durColor := "✓", con.color(colorGreen), ""
		if isSlow {
			symbol, symbolColor, durColor = "⚠", con.color(colorYellow), con.color(colorYellow)
		}
		fmt.Fprintf(&b, "    %s%s%s%s %s %s(%s)%s\n",
			prefix, symbolColor, symbol, con.color(colorReset), desc, durColor, durStr, con.color(colorReset))
	case report.StatusWarned:
		fmt.Fprintf(&b, "    %s%s⚠%s %s (%s, optional)\n",
			prefix, con.color(colorYellow), con.color(colorReset), desc, durStr)
		if errMsg != "" {
			fmt.Fprintf(&b, "      %s╰─%s %s\n", con.color(colorGray), con.color(colorReset), errMsg)
		}
	case report.StatusSkipped:
		fmt.Fprintf(&b, "    %s%s-%s %s\n", prefix, con.color(colorCyan), con.color(colorReset), desc)
	default:
		fmt.Fprintf(&b, "    %s%s✗%s %s (%s)\n", prefix, con.color(colorRed), con.color(colorReset), desc, durStr)
		if errMsg != "" {
			fmt.Fprintf(&b, "      %s╰─%s %s\n", con.color(colorGray), con.color(colorReset), errMsg)
		}
	}
	con.printf("%s", b.String())
}

func (con *console) onFlowEnd(fr executor.FlowResult) {
	symbol, c := "✓", colorGreen
	switch {
	case fr.Status == report.StatusSkipped:
		symbol, c = "-", colorCyan
	case !fr.Passed():
		symbol, c = "✗", colorRed
	}
	suffix := ""
	if fr.Flaky {
		suffix = fmt.Sprintf(" %s(flaky, %d attempts)%s", con.color(colorYellow), fr.Attempts, con.color(colorReset))
	}
	con.printf("%s%s %s%s %s%s%s%s\n",
		con.color(c), symbol, con.color(colorReset), fr.Name,
		con.color(colorGray), formatDuration(fr.Duration), con.color(colorReset), suffix)
}

func (con *console) printSummary(result *executor.RunResult) {
	con.mu.Lock()
	defer con.mu.Unlock()
	w := con.w
	color := con.color

	// Calculate totals
	totalSteps := 0
	passedSteps := 0
	failedSteps := 0
	skippedSteps := 0
	for _, fr := range result.FlowResults {
		totalSteps += fr.StepsTotal
		passedSteps += fr.StepsPassed
		failedSteps += fr.StepsFailed
		skippedSteps += fr.StepsSkipped
	}

	// Print step summary
	fmt.Fprintln(w)
	if passedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(result.Duration))
	}
	if failedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(w)

	// Print table
	tableWidth := 92
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Scenario", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, fr := range result.FlowResults {
		var status string
		var statusColor string
		switch {
		case fr.Status == report.StatusSkipped:
			status = "- SKIP"
			statusColor = color(colorCyan)
		case !fr.Passed():
			status = "✗ FAIL"
			statusColor = color(colorRed)
		case fr.Flaky:
			status = "~ FLKY"
			statusColor = color(colorYellow)
		default:
			status = "✓ PASS"
			statusColor = color(colorGreen)
		}

		// Truncate name if too long
		name := fr.Name
		if r := []rune(name); len(r) > 42 {
			name = string(r[:39]) + "..."
		}

		fmt.Fprintf(w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			fr.StepsTotal, fr.StepsPassed, fr.StepsFailed, fr.StepsSkipped,
			formatDuration(fr.Duration))
	}

	// Print totals row
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.PassedFlows, result.TotalFlows)
	statusColor := color(colorGreen)
	if result.FailedFlows > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(result.Duration))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// printFailures lists the diagnostic of every failed scenario.
func (con *console) printFailures(result *executor.RunResult) {
	con.mu.Lock()
	defer con.mu.Unlock()
	w := con.w

	var failed []executor.FlowResult
	for _, fr := range result.FlowResults {
		if fr.Status == report.StatusFailed {
			failed = append(failed, fr)
		}
	}
	if len(failed) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%sFailures%s\n", con.color(colorBold), con.color(colorReset))
	for i, fr := range failed {
		fmt.Fprintf(w, "\n  %d) %s %s(%s)%s\n", i+1, fr.Name, con.color(colorGray), fr.SourceFile, con.color(colorReset))
		if fr.ErrorType != "" {
			fmt.Fprintf(w, "     %s%s%s\n", con.color(colorRed), fr.ErrorType, con.color(colorReset))
		}
		if fr.FailedStep != nil {
			fmt.Fprintf(w, "     step %d: %s\n", *fr.FailedStep+1, fr.StepDesc)
		}
		if fr.Diagnostic != "" {
			fmt.Fprintf(w, "     %s\n", fr.Diagnostic)
		}
		if fr.Expected != "" || fr.Actual != "" {
			fmt.Fprintf(w, "     expected: %s\n", fr.Expected)
			fmt.Fprintf(w, "     actual:   %s\n", fr.Actual)
		}
		if fr.Attempts > 1 {
			fmt.Fprintf(w, "     attempts: %d\n", fr.Attempts)
		}
	}
}

func (con *console) printReportPaths(outputDir string, allure bool) {
	con.printf("\n  %sReports:%s\n    %s\n    %s\n    %s\n",
		con.color(colorBold), con.color(colorReset),
		filepath.Join(outputDir, "report.json"),
		filepath.Join(outputDir, "report.html"),
		filepath.Join(outputDir, "scenario-runner.log"))
	if allure {
		con.printf("    %s\n", filepath.Join(outputDir, report.AllureDir))
	}
}

// printReport prints a finished report directory scenario by scenario,
// followed by its totals.
func (con *console) printReport(index *report.Index, flows []report.FlowDetail) {
	con.mu.Lock()
	defer con.mu.Unlock()
	w := con.w
	color := con.color

	details := make(map[string]report.FlowDetail, len(flows))
	for _, d := range flows {
		details[d.ID] = d
	}

	for i, entry := range index.Flows {
		fmt.Fprintf(w, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
			color(colorCyan), i+1, len(index.Flows), color(colorReset),
			color(colorBold), entry.Name, color(colorReset), entry.SourceFile)
		fmt.Fprintln(w, "  "+strings.Repeat("─", 60))

		if detail, ok := details[entry.ID]; ok {
			for _, step := range detail.Steps {
				con.writeStep(step)
			}
		} else {
			fmt.Fprintln(w, "    (step details unavailable)")
		}

		duration := int64(0)
		if entry.Duration != nil {
			duration = *entry.Duration
		}
		switch entry.Status {
		case report.StatusPassed:
			fmt.Fprintf(w, "%s✓ %s%s %s%s%s\n",
				color(colorGreen), color(colorReset), entry.Name,
				color(colorGray), formatDuration(duration), color(colorReset))
		case report.StatusFailed:
			fmt.Fprintf(w, "%s✗ %s%s %s%s%s\n",
				color(colorRed), color(colorReset), entry.Name,
				color(colorGray), formatDuration(duration), color(colorReset))
			if entry.Error != nil {
				fmt.Fprintf(w, "  %s%s%s: %s\n", color(colorRed), entry.ErrorType, color(colorReset), *entry.Error)
			}
		default:
			fmt.Fprintf(w, "%s- %s%s (%s)\n", color(colorCyan), color(colorReset), entry.Name, entry.Status)
		}
	}

	s := index.Summary
	fmt.Fprintf(w, "\n  %d scenarios • Passed: %s%d%s • Failed: %s%d%s • Skipped: %d",
		s.Total,
		color(colorGreen), s.Passed, color(colorReset),
		color(colorRed), s.Failed, color(colorReset),
		s.Skipped)
	if s.Flaky > 0 {
		fmt.Fprintf(w, " • Flaky: %d", s.Flaky)
	}
	fmt.Fprintln(w)
}

// writeStep prints one recorded step. Callers hold mu.
func (con *console) writeStep(step report.Step) {
	w := con.w
	description := step.Label
	if description == "" {
		description = step.Describe
	}
	if description == "" {
		description = step.Type
	}

	duration := int64(0)
	if step.Duration != nil {
		duration = *step.Duration
	}

	switch step.Status {
	case report.StatusPassed:
		fmt.Fprintf(w, "    %s✓%s %s (%s)\n", con.color(colorGreen), con.color(colorReset), description, formatDuration(duration))
	case report.StatusWarned:
		fmt.Fprintf(w, "    %s⚠%s %s (%s, optional)\n", con.color(colorYellow), con.color(colorReset), description, formatDuration(duration))
	case report.StatusSkipped, report.StatusPending:
		fmt.Fprintf(w, "    %s-%s %s\n", con.color(colorCyan), con.color(colorReset), description)
	default:
		fmt.Fprintf(w, "    %s✗%s %s (%s)\n", con.color(colorRed), con.color(colorReset), description, formatDuration(duration))
	}
	if step.Error != nil && step.Error.Message != "" {
		fmt.Fprintf(w, "      %s╰─%s %s\n", con.color(colorGray), con.color(colorReset), step.Error.Message)
		if step.Error.Expected != "" || step.Error.Actual != "" {
			fmt.Fprintf(w, "         expected: %s\n         actual:   %s\n", step.Error.Expected, step.Error.Actual)
		}
	}
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
