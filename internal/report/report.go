// Package report renders a diagnosis report for people (text) or tools (json, yaml).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daydemir/vhostdoctor/internal/display"
	"github.com/daydemir/vhostdoctor/internal/orchestrator"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// Format is an output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// AllFormats returns the supported formats
func AllFormats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML}
}

// ParseFormat validates a --output value
func ParseFormat(s string) (Format, error) {
	for _, f := range AllFormats() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// Render writes r to w in format. Text goes through d.
func Render(w io.Writer, d *display.Display, r *orchestrator.Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatText:
		Summary(d, r)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Summary prints the end-of-run summary
func Summary(d *display.Display, r *orchestrator.Report) {
	lines := []string{
		fmt.Sprintf("Domain:  %s", r.Domain),
		fmt.Sprintf("Session: %s", r.SessionID),
		fmt.Sprintf("Result:  %s", verdict(r)),
		fmt.Sprintf("Phases:  %d completed, %d skipped, %d failed",
			len(r.PhasesWith(types.StatusCompleted)),
			len(r.PhasesWith(types.StatusSkipped)),
			len(r.PhasesWith(types.StatusFailed))),
		fmt.Sprintf("Steps:   %d applied, %d already done, %d failed",
			len(r.StepsWith(types.StatusCompleted)),
			len(r.StepsWith(types.StatusSkipped)),
			len(r.StepsWith(types.StatusFailed))),
	}
	if c := r.Certificate; c != nil && c.Cert != nil {
		lines = append(lines, fmt.Sprintf("Cert:    %s, issuer %s, %d day(s) left",
			strings.Join(c.Cert.Names(), " "), c.Cert.Issuer, c.DaysLeft))
	}
	if !r.FinishedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Took:    %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))
	}
	fmt.Fprintln(d.Writer())
	d.Box("SUMMARY", lines...)

	if r.Certificate != nil {
		for _, w := range r.Certificate.Warnings {
			d.Warning(w)
		}
	}
	for _, e := range r.Errors {
		d.Error(e)
	}
	if r.DryRun && r.Analysis != nil {
		d.Info("Dry run", "re-run without --dry-run to apply the plan above")
	}
}

func verdict(r *orchestrator.Report) string {
	switch {
	case r.Interrupted:
		return "interrupted"
	case r.Final == orchestrator.StateAborted:
		return "aborted in " + string(r.AbortedIn)
	case r.DryRun:
		return "dry run, nothing changed"
	case len(r.Declined) > 0:
		return "unresolved, declined " + strings.Join(r.Declined, ", ")
	case r.Resolved():
		return "resolved"
	default:
		return "unresolved, see errors below"
	}
}
