// Package planner turns findings into an ordered, keyed remediation plan.
// Planning is pure: no remote access and no state lookups, so the same
// findings always produce the same plan.
package planner

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/nginx"
	"github.com/daydemir/vhostdoctor/internal/types"
	"github.com/daydemir/vhostdoctor/internal/utils"
)

// Step key prefixes. Keys derive from the finding kind and its target so a
// re-run of the same diagnosis finds the same keys in the state file.
const (
	KeyDisablePrefix   = "disable_"
	KeyCreatePrefix    = "create_config_"
	KeyFixSyntax       = "fix_nginx_syntax"
	KeyMalformedPrefix = "fix_malformed_hosts_line_"
	KeyRiskyPrefix     = "comment_risky_hosts_"
	KeyDedupePrefix    = "dedupe_hosts_"
)

// Options carries the facts planning needs beyond the findings
type Options struct {
	// VhostDir is where a missing fragment is created
	VhostDir string
	// MissingConfig proposes creating the target's fragment last
	MissingConfig bool
}

// Plan maps findings to steps.
//
// Order: high-risk structural fixes (hosts repair, syntax), then medium-risk
// routing fixes (loopback overrides, disabling claimants), then low-risk
// cleanups (duplicate collapse), then fragment creation.
// Several findings on one fragment produce a single disable step.
func Plan(findings []types.ConflictFinding, domain string, opts Options) []types.RemediationStep {
	domain = utils.NormalizeDomain(domain)

	var steps []types.RemediationStep
	byKey := map[string]int{}

	add := func(s types.RemediationStep) {
		if i, ok := byKey[s.Key]; ok {
			steps[i].Issue += "; " + s.Issue
			return
		}
		byKey[s.Key] = len(steps)
		steps = append(steps, s)
	}

	for _, f := range findings {
		if s, ok := stepFor(f, domain); ok {
			add(s)
		}
	}

	if opts.MissingConfig {
		add(types.RemediationStep{
			Key:  KeyCreatePrefix + utils.DomainKey(domain),
			Risk: types.RiskMedium,
			Action: types.Action{
				Kind:         types.ActionCreateFragment,
				FragmentPath: path.Join(opts.VhostDir, nginx.FragmentName(domain)),
				Domain:       domain,
			},
			Issue: fmt.Sprintf("no nginx configuration for %s", domain),
		})
	}

	sort.SliceStable(steps, func(i, j int) bool {
		return rank(steps[i]) < rank(steps[j])
	})
	return steps
}

func stepFor(f types.ConflictFinding, domain string) (types.RemediationStep, bool) {
	switch f.Kind {
	case types.FindingCatchAllPriority, types.FindingPortConflict, types.FindingDirectNameConflict:
		return types.RemediationStep{
			Key:  KeyDisablePrefix + path.Base(f.FragmentPath),
			Risk: types.RiskMedium,
			Action: types.Action{
				Kind:         types.ActionDisableFragment,
				FragmentPath: f.FragmentPath,
			},
			Issue: f.Description,
		}, true

	case types.FindingSyntaxError:
		return types.RemediationStep{
			Key:    KeyFixSyntax,
			Risk:   types.RiskHigh,
			Action: types.Action{Kind: types.ActionManualIntervention},
			Issue:  strings.TrimSpace(f.Description + ": " + f.Details),
			Manual: true,
		}, true

	case types.FindingMalformedHostsLine:
		if len(f.LineNumbers) == 0 {
			return types.RemediationStep{}, false
		}
		return types.RemediationStep{
			Key:  fmt.Sprintf("%s%d", KeyMalformedPrefix, f.LineNumbers[0]),
			Risk: types.RiskHigh,
			Action: types.Action{
				Kind:  types.ActionRewriteHostsFile,
				Lines: hostsLines(f),
			},
			Issue: f.Description,
		}, true

	case types.FindingRiskyHostsDomain:
		return types.RemediationStep{
			Key:  KeyRiskyPrefix + f.Hostname,
			Risk: types.RiskMedium,
			Action: types.Action{
				Kind:     types.ActionCommentHostsLine,
				Lines:    hostsLines(f),
				Hostname: f.Hostname,
			},
			Issue: f.Description,
		}, true

	case types.FindingDuplicateHostsEntry:
		return types.RemediationStep{
			Key:  KeyDedupePrefix + f.Hostname,
			Risk: types.RiskLow,
			Action: types.Action{
				Kind:      types.ActionCommentHostsLine,
				Lines:     hostsLines(f),
				Hostname:  f.Hostname,
				KeepFirst: true,
			},
			Issue: f.Description,
		}, true
	}
	return types.RemediationStep{}, false
}

func hostsLines(f types.ConflictFinding) []types.HostsLine {
	lines := make([]types.HostsLine, len(f.LineNumbers))
	for i, n := range f.LineNumbers {
		lines[i].Number = n
		if i < len(f.LineTexts) {
			lines[i].Text = f.LineTexts[i]
		}
	}
	return lines
}

// rank orders steps: high, medium, low, then creation
func rank(s types.RemediationStep) int {
	if s.Action.Kind == types.ActionCreateFragment {
		return 3
	}
	switch s.Risk {
	case types.RiskHigh:
		return 0
	case types.RiskMedium:
		return 1
	default:
		return 2
	}
}

// HostsSteps returns the steps that mutate the hosts file
func HostsSteps(steps []types.RemediationStep) []types.RemediationStep {
	var out []types.RemediationStep
	for _, s := range steps {
		if s.Action.Kind.TouchesHosts() {
			out = append(out, s)
		}
	}
	return out
}

// VhostSteps returns the steps that concern nginx fragments
func VhostSteps(steps []types.RemediationStep) []types.RemediationStep {
	var out []types.RemediationStep
	for _, s := range steps {
		if !s.Action.Kind.TouchesHosts() {
			out = append(out, s)
		}
	}
	return out
}
