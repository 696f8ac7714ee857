package hosts

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// Analysis is a parsed snapshot of the hosts file
type Analysis struct {
	FileExists  bool               `json:"file_exists" yaml:"file_exists"`
	Content     string             `json:"-" yaml:"-"`
	TotalLines  int                `json:"total_lines" yaml:"total_lines"`
	Entries     []types.HostsEntry `json:"entries" yaml:"entries"`
	HasProblems bool               `json:"has_problems" yaml:"has_problems"`
}

// ByKind returns the entries of one kind, in file order
func (a *Analysis) ByKind(kind types.HostsEntryKind) []types.HostsEntry {
	var out []types.HostsEntry
	for _, e := range a.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Duplicate is a hostname mapped to loopback on more than one line of the
// same address family
type Duplicate struct {
	Hostname string
	Entries  []types.HostsEntry
}

// Duplicates returns domain-class hostnames mapped more than once within one
// address family, ordered by first appearance. A name on both 127.0.0.1 and
// ::1 is a dual-stack mapping, not a duplicate.
func (a *Analysis) Duplicates() []Duplicate {
	byName := map[string][]types.HostsEntry{}
	var order []string
	for _, e := range a.ByKind(types.HostsDomain) {
		lineSeen := map[string]bool{}
		for _, h := range e.Hostnames {
			name := strings.ToLower(h)
			if IsCanonicalName(name) || lineSeen[name] {
				continue
			}
			lineSeen[name] = true
			key := addressFamily(e.Address) + " " + name
			if _, ok := byName[key]; !ok {
				order = append(order, key)
			}
			byName[key] = append(byName[key], e)
		}
	}

	var dups []Duplicate
	at := map[string]int{}
	for _, key := range order {
		entries := byName[key]
		if len(entries) < 2 {
			continue
		}
		name := key[strings.Index(key, " ")+1:]
		if i, ok := at[name]; ok {
			dups[i].Entries = append(dups[i].Entries, entries...)
			continue
		}
		at[name] = len(dups)
		dups = append(dups, Duplicate{Hostname: name, Entries: entries})
	}
	return dups
}

func addressFamily(addr string) string {
	if strings.Contains(addr, ":") {
		return "ipv6"
	}
	return "ipv4"
}

// DomainEntriesFor returns domain-class entries mapping any of names
func (a *Analysis) DomainEntriesFor(names ...string) []types.HostsEntry {
	want := map[string]bool{}
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	var out []types.HostsEntry
	for _, e := range a.ByKind(types.HostsDomain) {
		for _, h := range e.Hostnames {
			if want[strings.ToLower(h)] {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Analyzer reads the remote hosts file
type Analyzer struct {
	exec           remote.Executor
	path           string
	problemDomains []string
	logger         zerolog.Logger
}

// NewAnalyzer creates an analyzer for the hosts file at path.
// problemDomains is an operator denylist of names that must never map to loopback.
func NewAnalyzer(exec remote.Executor, path string, problemDomains []string, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		exec:           exec,
		path:           path,
		problemDomains: problemDomains,
		logger:         logger.With().Str("component", "hosts").Logger(),
	}
}

// Path returns the hosts file path
func (a *Analyzer) Path() string {
	return a.path
}

// ProblemDomains returns the configured denylist
func (a *Analyzer) ProblemDomains() []string {
	return a.problemDomains
}

// Analyze reads and classifies the hosts file. A missing file is not an error.
func (a *Analyzer) Analyze(ctx context.Context) (*Analysis, error) {
	exists, err := a.exec.FileExists(ctx, a.path)
	if err != nil {
		return nil, err
	}
	if !exists {
		a.logger.Warn().Str("path", a.path).Msg("hosts file not found")
		return &Analysis{}, nil
	}

	data, err := a.exec.ReadFile(ctx, a.path)
	if err != nil {
		if types.IsTransport(err) {
			return nil, err
		}
		return nil, &types.AnalysisError{Path: a.path, Err: err}
	}

	analysis := AnalyzeContent(string(data), a.problemDomains)
	a.logger.Debug().
		Int("lines", analysis.TotalLines).
		Int("entries", len(analysis.Entries)).
		Bool("problems", analysis.HasProblems).
		Msg("analyzed hosts file")
	return analysis, nil
}

// AnalyzeContent classifies content. HasProblems is set when a line is malformed
// or a domain-class entry maps a denylisted name.
func AnalyzeContent(content string, problemDomains []string) *Analysis {
	a := &Analysis{
		FileExists: true,
		Content:    content,
		TotalLines: len(strings.Split(content, "\n")),
		Entries:    ParseContent(content),
	}
	a.HasProblems = len(a.ByKind(types.HostsMalformed)) > 0 ||
		len(a.DomainEntriesFor(problemDomains...)) > 0
	return a
}
