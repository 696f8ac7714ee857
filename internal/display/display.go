// Package display provides unified output formatting for the vhostdoctor CLI.
// It separates the tool's own frame (banners, phases) from the details it
// found on the remote host.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/daydemir/vhostdoctor/internal/executor"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// Display handles all CLI output with visual hierarchy
type Display struct {
	out       io.Writer
	theme     *Theme
	termWidth int
	noColor   bool
}

// New creates a Display writing to stdout
func New() *Display {
	return NewWithOptions(os.Stdout, false)
}

// NewWithOptions creates a Display with configuration
func NewWithOptions(out io.Writer, noColor bool) *Display {
	d := &Display{
		out:       out,
		termWidth: getTerminalWidth(out),
		noColor:   noColor,
	}
	if noColor {
		d.theme = NoColorTheme()
	} else {
		d.theme = DefaultTheme()
	}
	return d
}

// getTerminalWidth returns the terminal width, defaulting to 80
func getTerminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	if width > 120 {
		return 120 // Cap at 120 for readability
	}
	return width
}

// Writer returns the underlying writer
func (d *Display) Writer() io.Writer {
	return d.out
}

// Banner prints a boxed message under the tool's name
func (d *Display) Banner(lines ...string) {
	d.Box("VHOSTDOCTOR", lines...)
}

// Box prints a boxed message with a custom title
func (d *Display) Box(title string, lines ...string) {
	if len(lines) == 0 {
		return
	}

	width := d.termWidth - 2
	titleLen := len(title) + 4 // "─ TITLE "
	remainingWidth := width - titleLen

	// Top border: ┌─ TITLE ─────────────────────────┐
	topLine := BoxTopLeft + BoxHorizontal + " " + title + " " + strings.Repeat(BoxHorizontal, remainingWidth) + BoxTopRight
	fmt.Fprintln(d.out, d.theme.FrameBorder(topLine))

	// Content lines: │ text                            │
	for _, line := range lines {
		paddedLine := d.padRight(line, width-2)
		fmt.Fprintln(d.out, d.theme.FrameBorder(BoxVertical)+" "+d.theme.FrameText(paddedLine)+" "+d.theme.FrameBorder(BoxVertical))
	}

	// Bottom border: └─────────────────────────────────┘
	bottomLine := BoxBottomLeft + strings.Repeat(BoxHorizontal, width) + BoxBottomRight
	fmt.Fprintln(d.out, d.theme.FrameBorder(bottomLine))
}

// Status prints a single timestamped status line (no box)
func (d *Display) Status(symbol, message string) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Fprintf(d.out, "%s %s %s\n",
		d.theme.FrameBorder(timestamp),
		symbol,
		d.theme.FrameText(message))
}

// Success prints a success message with green checkmark
func (d *Display) Success(message string) {
	d.Status(d.theme.Success(SymbolSuccess), message)
}

// Error prints an error message with red X
func (d *Display) Error(message string) {
	d.Status(d.theme.Error(SymbolError), message)
}

// Warning prints a warning message with yellow triangle
func (d *Display) Warning(message string) {
	d.Status(d.theme.Warning(SymbolWarning), message)
}

// Info prints an info message with cyan indicator
func (d *Display) Info(label, message string) {
	d.Status(d.theme.Info(label+":"), message)
}

// Resume prints a skip/resume message with cyan arrow
func (d *Display) Resume(message string) {
	d.Status(d.theme.Info(SymbolResume), message)
}

// Detail prints indented, wrapped text under the previous status line
func (d *Display) Detail(text string) {
	for _, line := range d.wrapText(text, d.termWidth-8) {
		fmt.Fprintf(d.out, "%s%s %s\n", Indent, Indent, d.theme.DetailText(line))
	}
}

// wrapText wraps text to specified width, returns up to 5 lines
func (d *Display) wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	text = strings.TrimSpace(text)
	if len(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len()+len(word)+1 > maxWidth {
			if currentLine.Len() > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
			}
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	// Limit to 5 lines
	if len(lines) > 5 {
		lines = lines[:5]
		if len(lines[4]) > maxWidth-3 {
			lines[4] = lines[4][:maxWidth-3]
		}
		lines[4] = lines[4] + "..."
	}

	return lines
}

// SectionBreak prints a horizontal separator between phases
func (d *Display) SectionBreak() {
	fmt.Fprintln(d.out, d.theme.Separator(strings.Repeat(SectionBreak, d.termWidth)))
}

// Phase prints the banner for a pipeline phase
func (d *Display) Phase(title, key string) {
	fmt.Fprintln(d.out)
	d.SectionBreak()
	fmt.Fprintf(d.out, "%s %s\n", d.theme.FrameLabel(strings.ToUpper(title)), d.theme.Dim("("+key+")"))
	d.SectionBreak()
}

// PhaseResult prints how a phase ended
func (d *Display) PhaseResult(key string, status types.Status, message, errText string) {
	switch status {
	case types.StatusCompleted:
		d.Success(fmt.Sprintf("%s: %s", key, message))
	case types.StatusSkipped:
		d.Resume(fmt.Sprintf("%s skipped: %s", key, message))
	default:
		d.Error(fmt.Sprintf("%s failed", key))
		if errText != "" {
			d.Detail(errText)
		}
	}
}

// Risk returns level coloured by severity
func (d *Display) Risk(level types.RiskLevel) string {
	label := fmt.Sprintf("%-6s", strings.ToUpper(string(level)))
	switch level {
	case types.RiskHigh:
		return d.theme.RiskHigh(label)
	case types.RiskMedium:
		return d.theme.RiskMedium(label)
	default:
		return d.theme.RiskLow(label)
	}
}

// Findings lists conflict findings with their source
func (d *Display) Findings(findings []types.ConflictFinding) {
	if len(findings) == 0 {
		d.Success("No conflicts found")
		return
	}
	d.Warning(fmt.Sprintf("%d finding(s)", len(findings)))
	for _, f := range findings {
		fmt.Fprintf(d.out, "%s%s %s %s\n", Indent,
			d.theme.Warning(SymbolPending),
			d.theme.DetailKey(fmt.Sprintf("[%s]", f.Kind)),
			d.theme.DetailText(f.Description))
		if src := f.Source(); src != "" {
			fmt.Fprintf(d.out, "%s%s  %s\n", Indent, Indent, d.theme.Dim(src))
		}
	}
}

// Plan lists remediation steps in the order they will run
func (d *Display) Plan(steps []types.RemediationStep) {
	if len(steps) == 0 {
		d.Success("Nothing to fix")
		return
	}
	d.Info("Plan", fmt.Sprintf("%d step(s)", len(steps)))
	for i, s := range steps {
		manual := ""
		if s.Manual {
			manual = " " + d.theme.Warning("(manual)")
		}
		fmt.Fprintf(d.out, "%s%2d. %s %s%s\n", Indent, i+1, d.Risk(s.Risk), d.theme.Bold(s.Key), manual)
		if s.Issue != "" {
			d.Detail(s.Issue)
		}
	}
}

// Step prints the outcome of one applied step
func (d *Display) Step(o executor.Outcome) {
	switch o.Status {
	case types.StatusCompleted:
		d.Success(fmt.Sprintf("%s: %s", o.Key, o.Message))
		if o.Backup != "" {
			d.Detail("backup: " + o.Backup)
		}
	case types.StatusSkipped:
		d.Resume(fmt.Sprintf("%s: %s", o.Key, o.Message))
	default:
		d.Error(o.Key)
		d.Detail(o.Error)
		if o.Restored {
			d.Detail("original content restored")
		}
	}
}

// Duration prints execution duration
func (d *Display) Duration(dur time.Duration) {
	fmt.Fprintf(d.out, "   Duration: %s\n", dur.Round(time.Millisecond))
}

// Theme returns the current theme for external use
func (d *Display) Theme() *Theme {
	return d.theme
}

// padRight pads a string to the specified width
func (d *Display) padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Truncate truncates text to max length with ellipsis
func Truncate(s string, max int) string {
	s = CleanText(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// CleanText removes newlines and collapses spaces
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
