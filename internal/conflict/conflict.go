// Package conflict decides which fragments and hosts entries can keep a
// domain's traffic away from its own vhost.
//
// nginx includes *.conf in lexicographic order, so a fragment whose file name
// sorts before "<domain>.conf" is consulted first. The checks here encode that
// ordering rule as policy.
package conflict

import (
	"fmt"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/nginx"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// DefaultPorts are assumed for a target with no fragment of its own
var DefaultPorts = []int{80, 443}

// Result is the outcome of checking fragments against a target domain
type Result struct {
	Findings []types.ConflictFinding `json:"findings" yaml:"findings"`
	// MissingConfig is not a conflict; it gates whether fragment creation is proposed
	MissingConfig bool `json:"missing_config" yaml:"missing_config"`
	// TargetFragment is the target's own fragment, nil when missing
	TargetFragment *types.ConfigFragment `json:"target_fragment,omitempty" yaml:"target_fragment,omitempty"`
}

// FindConflicts checks enabled fragments against target.
// A fragment may produce more than one finding.
func FindConflicts(target string, fragments []types.ConfigFragment) Result {
	target = strings.ToLower(strings.TrimSpace(target))

	var enabled []types.ConfigFragment
	for _, f := range fragments {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}

	res := Result{Findings: []types.ConflictFinding{}}
	own := ownFragment(target, enabled)
	if own == nil {
		res.MissingConfig = true
	} else {
		ownCopy := *own
		res.TargetFragment = &ownCopy
	}

	// ordering is judged against the file nginx actually loads for the target
	targetName := nginx.FragmentName(target)
	required := DefaultPorts
	if own != nil {
		targetName = own.Basename()
		if ports := nginx.Ports(own.ListenSpecs); len(ports) > 0 {
			required = ports
		}
	}
	defaults := defaultHandlers(enabled, required)

	for _, f := range enabled {
		if own != nil && f.Path == own.Path {
			continue
		}
		name := f.Basename()
		earlier := name < targetName

		if !f.HasServerName() || (earlier && f.HasWildcardName()) {
			res.Findings = append(res.Findings, types.ConflictFinding{
				Kind:         types.FindingCatchAllPriority,
				FragmentPath: f.Path,
				Description:  catchAllDescription(f, target, targetName),
			})
		}

		if earlier {
			if port, ok := defaults[f.Path]; ok {
				res.Findings = append(res.Findings, types.ConflictFinding{
					Kind:         types.FindingPortConflict,
					FragmentPath: f.Path,
					Description: fmt.Sprintf("%s is the default server for port %d and is loaded before %s",
						name, port, targetName),
					Details: strings.Join(f.ListenSpecs, "; "),
				})
			}
		}

		if f.Declares(target) {
			res.Findings = append(res.Findings, types.ConflictFinding{
				Kind:         types.FindingDirectNameConflict,
				FragmentPath: f.Path,
				Hostname:     target,
				Description:  fmt.Sprintf("%s also declares server_name %s", name, target),
				Details:      strings.Join(f.DeclaredHostnames, " "),
			})
		}
	}

	return res
}

// ownFragment picks "<target>.conf" or "www.<target>.conf", else the first
// enabled fragment whose name contains the target and which declares it.
// A sibling such as shop.example.com.conf never stands in for example.com.
func ownFragment(target string, enabled []types.ConfigFragment) *types.ConfigFragment {
	for _, want := range []string{nginx.FragmentName(target), nginx.FragmentName("www." + target)} {
		for i := range enabled {
			if strings.EqualFold(enabled[i].Basename(), want) {
				return &enabled[i]
			}
		}
	}
	for i := range enabled {
		if strings.Contains(strings.ToLower(enabled[i].Basename()), target) && enabled[i].Declares(target) {
			return &enabled[i]
		}
	}
	return nil
}

// defaultHandlers maps fragment path to a required port for which it acts as
// nginx's default server: it marks that listen default_server, or it is the
// first enabled fragment listening there and no fragment marks default_server.
func defaultHandlers(enabled []types.ConfigFragment, required []int) map[string]int {
	out := map[string]int{}
	for _, port := range required {
		var first, marked string
		for _, f := range enabled {
			for _, spec := range f.ListenSpecs {
				l := nginx.ParseListen(spec)
				if l.Port != port {
					continue
				}
				if first == "" {
					first = f.Path
				}
				if l.DefaultServer && marked == "" {
					marked = f.Path
				}
			}
		}
		handler := marked
		if handler == "" {
			handler = first
		}
		if _, seen := out[handler]; handler != "" && !seen {
			out[handler] = port
		}
	}
	return out
}

func catchAllDescription(f types.ConfigFragment, target, targetName string) string {
	if !f.HasServerName() {
		return fmt.Sprintf("%s declares no server_name and can answer for %s", f.Basename(), target)
	}
	return fmt.Sprintf("%s uses a wildcard server_name and is loaded before %s", f.Basename(), targetName)
}

// SyntaxFinding turns a failed nginx configuration test into a finding.
// It returns nil when the test passed.
func SyntaxFinding(passed bool, output string) *types.ConflictFinding {
	if passed {
		return nil
	}
	return &types.ConflictFinding{
		Kind:        types.FindingSyntaxError,
		Description: "nginx configuration test failed",
		Details:     strings.TrimSpace(output),
	}
}
