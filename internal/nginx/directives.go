package nginx

import (
	"strconv"
	"strings"
)

// Directives are the hostname and listen declarations found in one fragment
type Directives struct {
	ServerNames []string
	Listen      []string
}

// ParseDirectives extracts server_name and listen values from fragment text.
// This is pattern extraction, not a grammar: comments are stripped, the text is
// cut at ; { and }, and every statement starting with server_name or listen is
// collected in order regardless of which block it sits in.
func ParseDirectives(content string) Directives {
	text := stripComments(content)

	var d Directives
	seen := map[string]bool{}
	statements := strings.FieldsFunc(text, func(r rune) bool {
		return r == ';' || r == '{' || r == '}'
	})
	for _, stmt := range statements {
		fields := strings.Fields(stmt)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "server_name":
			for _, name := range fields[1:] {
				if !seen[name] {
					seen[name] = true
					d.ServerNames = append(d.ServerNames, name)
				}
			}
		case "listen":
			d.Listen = append(d.Listen, strings.Join(fields[1:], " "))
		}
	}
	return d
}

func stripComments(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "#"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

// Listen is a parsed listen directive
type Listen struct {
	Port          int
	DefaultServer bool
}

// ParseListen reads the port and default_server flag from a listen value such as
// "443 ssl http2", "[::]:80 default_server" or "127.0.0.1:8080". Unix sockets
// report port 0. An address without a port listens on 80.
func ParseListen(spec string) Listen {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return Listen{}
	}

	var l Listen
	for _, f := range fields[1:] {
		if f == "default_server" || f == "default" {
			l.DefaultServer = true
		}
	}

	addr := fields[0]
	if strings.HasPrefix(addr, "unix:") {
		return l
	}
	if port, err := strconv.Atoi(addr); err == nil {
		l.Port = port
		return l
	}
	if idx := strings.LastIndex(addr, ":"); idx >= 0 && !strings.HasSuffix(addr, "]") {
		if port, err := strconv.Atoi(addr[idx+1:]); err == nil {
			l.Port = port
			return l
		}
	}
	l.Port = 80
	return l
}

// Ports returns the distinct ports a set of listen values bind, in order
func Ports(specs []string) []int {
	var ports []int
	seen := map[int]bool{}
	for _, s := range specs {
		p := ParseListen(s).Port
		if p != 0 && !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	return ports
}
