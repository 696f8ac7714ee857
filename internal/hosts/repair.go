package hosts

import (
	"regexp"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/types"
)

// CommentNote is appended to every line this tool comments out
const CommentNote = "disabled by vhostdoctor"

var splitRe = regexp.MustCompile(`^((?:\d{1,3}\.){3}\d{1,3})\s*([A-Za-z][\w.-]*?(?:\d{1,3}\.){3}\d{1,3})(?:\s+(.*))?$`)

var trailingIPRe = regexp.MustCompile(`(?:\d{1,3}\.){3}\d{1,3}$`)

// CommentLine returns the commented form of raw
func CommentLine(raw string) string {
	return "# " + strings.TrimSpace(raw) + " # " + CommentNote
}

// SplitMalformed separates entries glued together on one line:
// "127.0.0.1site1127.0.0.1 site2" becomes "127.0.0.1 site1" and "127.0.0.1 site2".
// ok is false when the line does not have that shape.
func SplitMalformed(raw string) (lines []string, ok bool) {
	text := strings.TrimSpace(raw)
	if idx := strings.Index(text, "#"); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}

	m := splitRe.FindStringSubmatch(text)
	if m == nil || strings.TrimSpace(m[3]) == "" {
		return nil, false
	}
	ip1, glued, rest := m[1], m[2], strings.TrimSpace(m[3])

	// Prefer cutting where the first address repeats ("site1" + "127.0.0.1"),
	// otherwise take the longest address the glued token ends with.
	var name, ip2 string
	if strings.HasSuffix(glued, ip1) && len(glued) > len(ip1) {
		name, ip2 = glued[:len(glued)-len(ip1)], ip1
	} else {
		ip2 = trailingIPRe.FindString(glued)
		name = glued[:len(glued)-len(ip2)]
	}
	if name == "" {
		return nil, false
	}

	first := ip1 + " " + name
	second := ip2 + " " + rest
	if more, ok := SplitMalformed(second); ok {
		return append([]string{first}, more...), true
	}
	if e, _ := ParseLine(0, second); e.Kind == types.HostsMalformed {
		return nil, false
	}
	return []string{first, second}, true
}

// RepairMalformed replaces the line pinned by ref with its split form, or
// comments it out when it cannot be split. changed is false when the line
// is no longer present.
func RepairMalformed(content string, ref types.HostsLine) (string, bool) {
	lines := strings.Split(content, "\n")
	idx := locate(lines, ref, nil)
	if idx < 0 {
		return content, false
	}

	replacement, ok := SplitMalformed(lines[idx])
	if !ok {
		replacement = []string{CommentLine(lines[idx])}
	}

	out := make([]string, 0, len(lines)+len(replacement))
	out = append(out, lines[:idx]...)
	out = append(out, replacement...)
	out = append(out, lines[idx+1:]...)
	return strings.Join(out, "\n"), true
}

// CommentLines comments out every pinned line still present and active.
// It returns the new content and how many lines changed.
func CommentLines(content string, refs []types.HostsLine) (string, int) {
	lines := strings.Split(content, "\n")
	used := map[int]bool{}
	changed := 0
	for _, ref := range refs {
		idx := locate(lines, ref, used)
		if idx < 0 {
			continue
		}
		used[idx] = true
		lines[idx] = CommentLine(lines[idx])
		changed++
	}
	return strings.Join(lines, "\n"), changed
}

// Dedupe keeps the first domain-class line mapping hostname in each address
// family. Later lines in the same family lose the hostname; a line left with no
// names is commented out. Running it on its own output changes nothing.
func Dedupe(content, hostname string) (string, int) {
	lines := strings.Split(content, "\n")
	kept := map[string]bool{}
	changed := 0
	for _, e := range ParseContent(content) {
		if e.Kind != types.HostsDomain || !mapsName(e, hostname) {
			continue
		}
		family := addressFamily(e.Address)
		if !kept[family] {
			kept[family] = true
			continue
		}
		lines[e.LineNumber-1] = dropName(e, hostname)
		changed++
	}
	if changed == 0 {
		return content, 0
	}
	return strings.Join(lines, "\n"), changed
}

// dropName rewrites e without hostname, keeping its other names and comment
func dropName(e types.HostsEntry, hostname string) string {
	var rest []string
	for _, h := range e.Hostnames {
		if !strings.EqualFold(h, hostname) {
			rest = append(rest, h)
		}
	}
	if len(rest) == 0 {
		return CommentLine(e.RawText)
	}
	line := e.Address + " " + strings.Join(rest, " ")
	if idx := strings.Index(e.RawText, "#"); idx >= 0 {
		line += " " + strings.TrimSpace(e.RawText[idx:])
	} else {
		line += " #"
	}
	return line + " " + hostname + " " + CommentNote
}

func mapsName(e types.HostsEntry, hostname string) bool {
	for _, h := range e.Hostnames {
		if strings.EqualFold(h, hostname) {
			return true
		}
	}
	return false
}

// locate finds the active line matching ref: at its recorded number if the
// text still matches there, otherwise the first unused line with that text.
func locate(lines []string, ref types.HostsLine, used map[int]bool) int {
	want := strings.TrimRight(ref.Text, "\r")
	matches := func(i int) bool {
		return !used[i] && strings.TrimRight(lines[i], "\r") == want
	}
	if n := ref.Number - 1; n >= 0 && n < len(lines) && matches(n) {
		return n
	}
	for i := range lines {
		if matches(i) {
			return i
		}
	}
	return -1
}
