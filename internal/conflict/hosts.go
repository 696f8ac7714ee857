package conflict

import (
	"fmt"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/hosts"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// FindHostsConflicts reports hosts entries that can defeat name resolution:
// malformed lines, loopback mappings of the target (or www.target) or of a
// denylisted name, and names mapped to loopback twice in one address family.
func FindHostsConflicts(a *hosts.Analysis, target string, denylist []string) []types.ConflictFinding {
	findings := []types.ConflictFinding{}
	if a == nil || !a.FileExists {
		return findings
	}

	for _, e := range a.ByKind(types.HostsMalformed) {
		findings = append(findings, types.ConflictFinding{
			Kind:        types.FindingMalformedHostsLine,
			LineNumbers: []int{e.LineNumber},
			LineTexts:   []string{e.RawText},
			Description: fmt.Sprintf("hosts line %d is malformed: %q", e.LineNumber, strings.TrimSpace(e.RawText)),
		})
	}

	target = strings.ToLower(strings.TrimSpace(target))
	risky := append([]string{target, "www." + target}, denylist...)
	seen := map[string]bool{}
	for _, name := range risky {
		name = strings.ToLower(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		entries := a.DomainEntriesFor(name)
		if len(entries) == 0 {
			continue
		}
		f := types.ConflictFinding{
			Kind:        types.FindingRiskyHostsDomain,
			Hostname:    name,
			Description: fmt.Sprintf("%s is mapped to loopback and bypasses DNS", name),
		}
		for _, e := range entries {
			f.LineNumbers = append(f.LineNumbers, e.LineNumber)
			f.LineTexts = append(f.LineTexts, e.RawText)
		}
		findings = append(findings, f)
	}

	for _, d := range a.Duplicates() {
		f := types.ConflictFinding{
			Kind:        types.FindingDuplicateHostsEntry,
			Hostname:    d.Hostname,
			Description: fmt.Sprintf("%s is mapped on %d lines", d.Hostname, len(d.Entries)),
		}
		for _, e := range d.Entries {
			f.LineNumbers = append(f.LineNumbers, e.LineNumber)
			f.LineTexts = append(f.LineTexts, e.RawText)
		}
		findings = append(findings, f)
	}

	return findings
}
