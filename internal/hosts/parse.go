// Package hosts reads and repairs the remote hosts file.
package hosts

import (
	"regexp"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/types"
)

// concatenated matches two entries glued together, e.g.
// "127.0.0.1site1127.0.0.1 site2" or "127.0.0.1 site1127.0.0.1 site2"
var concatenated = regexp.MustCompile(`(?:\d{1,3}\.){3}\d{1,3}\s*[A-Za-z][\w.-]*?(?:\d{1,3}\.){3}\d{1,3}(?:\s|$)`)

var loopbackAddrs = map[string]bool{
	"127.0.0.1": true,
	"::1":       true,
}

var canonicalNames = map[string]bool{
	"localhost":               true,
	"localhost.localdomain":   true,
	"localhost4":              true,
	"localhost4.localdomain4": true,
	"localhost6":              true,
	"localhost6.localdomain6": true,
	"ip6-localhost":           true,
	"ip6-loopback":            true,
}

// IsCanonicalName reports whether name is one of the standard loopback aliases
func IsCanonicalName(name string) bool {
	return canonicalNames[strings.ToLower(name)]
}

// ParseContent classifies every non-blank, non-comment line. Line numbers are 1-based.
func ParseContent(content string) []types.HostsEntry {
	var entries []types.HostsEntry
	for i, raw := range strings.Split(content, "\n") {
		if e, ok := ParseLine(i+1, raw); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// ParseLine classifies one line. ok is false for blank and comment lines.
func ParseLine(number int, raw string) (types.HostsEntry, bool) {
	text := strings.TrimSpace(strings.TrimRight(raw, "\r"))
	if text == "" || strings.HasPrefix(text, "#") {
		return types.HostsEntry{}, false
	}
	if idx := strings.Index(text, "#"); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}

	entry := types.HostsEntry{LineNumber: number, RawText: strings.TrimRight(raw, "\r")}

	fields := strings.Fields(text)
	if len(fields) < 2 || concatenated.MatchString(text) {
		entry.Kind = types.HostsMalformed
		return entry, true
	}

	entry.Address = fields[0]
	entry.Hostnames = fields[1:]
	entry.Kind = classify(entry.Address, entry.Hostnames)
	return entry, true
}

// classify: a loopback address carrying only canonical names is loopback,
// a loopback address carrying any other name is domain, anything else is external
func classify(addr string, names []string) types.HostsEntryKind {
	if !loopbackAddrs[addr] {
		return types.HostsExternal
	}
	for _, n := range names {
		if !IsCanonicalName(n) {
			return types.HostsDomain
		}
	}
	return types.HostsLoopback
}
