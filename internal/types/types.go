package types

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// StateVersion is written into every state document
const StateVersion = "1.0"

// ConfigFragment is one nginx vhost file as read from the remote host
type ConfigFragment struct {
	Path              string   `json:"path" yaml:"path"`
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	DeclaredHostnames []string `json:"declared_hostnames" yaml:"declared_hostnames"`
	ListenSpecs       []string `json:"listen_specs" yaml:"listen_specs"`
}

// Basename returns the file name of the fragment
func (f ConfigFragment) Basename() string {
	return path.Base(f.Path)
}

// IsCatchAll reports whether the fragment answers for arbitrary hostnames:
// it declares no server_name at all, or one of its names contains the wildcard "_"
func (f ConfigFragment) IsCatchAll() bool {
	return !f.HasServerName() || f.HasWildcardName()
}

// HasServerName reports whether any hostname was declared
func (f ConfigFragment) HasServerName() bool {
	return len(f.DeclaredHostnames) > 0
}

// HasWildcardName reports whether a declared name contains "_"
func (f ConfigFragment) HasWildcardName() bool {
	for _, name := range f.DeclaredHostnames {
		if strings.Contains(name, "_") {
			return true
		}
	}
	return false
}

// Declares reports whether the fragment lists hostname verbatim (case-insensitive)
func (f ConfigFragment) Declares(hostname string) bool {
	for _, name := range f.DeclaredHostnames {
		if strings.EqualFold(name, hostname) {
			return true
		}
	}
	return false
}

// HostsEntry is one non-comment line of the hosts file
type HostsEntry struct {
	LineNumber int            `json:"line_number" yaml:"line_number"`
	RawText    string         `json:"raw_text" yaml:"raw_text"`
	Kind       HostsEntryKind `json:"kind" yaml:"kind"`
	Address    string         `json:"address,omitempty" yaml:"address,omitempty"`
	Hostnames  []string       `json:"hostnames,omitempty" yaml:"hostnames,omitempty"`
}

// ConflictFinding describes one reason the target domain may not reach its vhost.
// FragmentPath is set for nginx findings; LineNumbers for hosts findings.
type ConflictFinding struct {
	Kind         FindingKind `json:"kind" yaml:"kind"`
	FragmentPath string      `json:"fragment_path,omitempty" yaml:"fragment_path,omitempty"`
	LineNumbers  []int       `json:"line_numbers,omitempty" yaml:"line_numbers,omitempty"`
	LineTexts    []string    `json:"line_texts,omitempty" yaml:"line_texts,omitempty"`
	Hostname     string      `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Description  string      `json:"description" yaml:"description"`
	Details      string      `json:"details,omitempty" yaml:"details,omitempty"`
}

// Source returns a short human-readable origin for the finding
func (f ConflictFinding) Source() string {
	switch {
	case f.FragmentPath != "":
		return path.Base(f.FragmentPath)
	case len(f.LineNumbers) == 1:
		return fmt.Sprintf("hosts line %d", f.LineNumbers[0])
	case len(f.LineNumbers) > 1:
		nums := make([]string, len(f.LineNumbers))
		for i, n := range f.LineNumbers {
			nums[i] = fmt.Sprintf("%d", n)
		}
		return "hosts lines " + strings.Join(nums, ",")
	case f.Kind == FindingSyntaxError:
		return "nginx -t"
	default:
		return ""
	}
}

// Validate checks the finding has a valid kind and a source matching it
func (f *ConflictFinding) Validate() error {
	if !f.Kind.IsValid() {
		return fmt.Errorf("finding.kind: invalid value %q", f.Kind)
	}
	if f.Kind.IsHosts() && len(f.LineNumbers) == 0 {
		return fmt.Errorf("finding.line_numbers: required for %s", f.Kind)
	}
	switch f.Kind {
	case FindingCatchAllPriority, FindingPortConflict, FindingDirectNameConflict:
		if f.FragmentPath == "" {
			return fmt.Errorf("finding.fragment_path: required for %s", f.Kind)
		}
	}
	return nil
}

// HostsLine pins a hosts line by its number and exact text at analysis time
type HostsLine struct {
	Number int    `json:"number" yaml:"number"`
	Text   string `json:"text" yaml:"text"`
}

// Action is the mutation carried by a remediation step.
// Only the fields relevant to Kind are set.
type Action struct {
	Kind         ActionKind  `json:"kind" yaml:"kind"`
	FragmentPath string      `json:"fragment_path,omitempty" yaml:"fragment_path,omitempty"`
	Domain       string      `json:"domain,omitempty" yaml:"domain,omitempty"`
	Lines        []HostsLine `json:"lines,omitempty" yaml:"lines,omitempty"`
	Hostname     string      `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	// KeepFirst leaves the first of Lines untouched (duplicate collapse)
	KeepFirst bool `json:"keep_first,omitempty" yaml:"keep_first,omitempty"`
}

// RemediationStep is a single planned fix, keyed for idempotent replay
type RemediationStep struct {
	Key    string    `json:"key" yaml:"key"`
	Risk   RiskLevel `json:"risk" yaml:"risk"`
	Action Action    `json:"action" yaml:"action"`
	Issue  string    `json:"issue" yaml:"issue"`
	Manual bool      `json:"manual,omitempty" yaml:"manual,omitempty"`
}

// Validate checks the step is well-formed
func (s *RemediationStep) Validate() error {
	ve := &ValidationErrors{}
	if s.Key == "" {
		ve.Add("step.key", "non-empty string", s.Key, "every step needs a deterministic key")
	}
	if !s.Risk.IsValid() {
		ve.Add("step.risk", "one of: low, medium, high", s.Risk, "set a valid risk level")
	}
	if !s.Action.Kind.IsValid() {
		ve.Add("step.action.kind", "a known action kind", s.Action.Kind, "set a valid action kind")
	}
	switch s.Action.Kind {
	case ActionDisableFragment:
		if s.Action.FragmentPath == "" {
			ve.Add("step.action.fragment_path", "non-empty path", "", "disable needs a fragment path")
		}
	case ActionCreateFragment:
		if s.Action.FragmentPath == "" || s.Action.Domain == "" {
			ve.Add("step.action", "fragment_path and domain", s.Action.FragmentPath, "create needs a path and a domain")
		}
	case ActionCommentHostsLine, ActionRewriteHostsFile:
		if len(s.Action.Lines) == 0 {
			ve.Add("step.action.lines", "at least one line", s.Action.Lines, "hosts actions need target lines")
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// StepRecord is the persisted proof that a step or phase completed
type StepRecord struct {
	CompletedAt time.Time         `json:"completed_at" yaml:"completed_at"`
	Details     map[string]string `json:"details,omitempty" yaml:"details,omitempty"`
}

// AnalysisRecord is a saved analysis result keyed by analysis type
type AnalysisRecord struct {
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Result    json.RawMessage `json:"result" yaml:"result"`
}

// StateDocument is the per-domain state file
type StateDocument struct {
	Domain          string                    `json:"domain" yaml:"domain"`
	CreatedAt       time.Time                 `json:"created_at" yaml:"created_at"`
	LastUpdated     time.Time                 `json:"last_updated" yaml:"last_updated"`
	CompletedSteps  []string                  `json:"completed_steps" yaml:"completed_steps"`
	StepDetails     map[string]StepRecord     `json:"step_details" yaml:"step_details"`
	AnalysisResults map[string]AnalysisRecord `json:"analysis_results" yaml:"analysis_results"`
	SessionData     map[string]string         `json:"session_data" yaml:"session_data"`
	Version         string                    `json:"version" yaml:"version"`
}

// NewStateDocument returns an empty document for domain
func NewStateDocument(domain string, now time.Time) *StateDocument {
	return &StateDocument{
		Domain:          domain,
		CreatedAt:       now,
		LastUpdated:     now,
		CompletedSteps:  []string{},
		StepDetails:     map[string]StepRecord{},
		AnalysisResults: map[string]AnalysisRecord{},
		SessionData:     map[string]string{},
		Version:         StateVersion,
	}
}

// Normalize fills nil maps and slices left by older or hand-edited files
func (d *StateDocument) Normalize() {
	if d.CompletedSteps == nil {
		d.CompletedSteps = []string{}
	}
	if d.StepDetails == nil {
		d.StepDetails = map[string]StepRecord{}
	}
	if d.AnalysisResults == nil {
		d.AnalysisResults = map[string]AnalysisRecord{}
	}
	if d.SessionData == nil {
		d.SessionData = map[string]string{}
	}
	if d.Version == "" {
		d.Version = StateVersion
	}
}

// HasStep reports whether key is recorded as completed
func (d *StateDocument) HasStep(key string) bool {
	for _, k := range d.CompletedSteps {
		if k == key {
			return true
		}
	}
	return false
}

// Validate checks the document is internally consistent
func (d *StateDocument) Validate() error {
	ve := &ValidationErrors{}
	if d.Domain == "" {
		ve.Add("domain", "non-empty string", d.Domain, "state documents belong to one domain")
	}
	if d.Version == "" {
		ve.Add("version", StateVersion, d.Version, "set the state version")
	}
	seen := make(map[string]bool, len(d.CompletedSteps))
	for i, key := range d.CompletedSteps {
		if key == "" {
			ve.Add(fmt.Sprintf("completed_steps[%d]", i), "non-empty key", key, "remove the empty key")
		}
		if seen[key] {
			ve.Add(fmt.Sprintf("completed_steps[%d]", i), "unique key", key, "remove the duplicate key")
		}
		seen[key] = true
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}
