package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/vhostdoctor/internal/types"
)

const vhostDir = "/www/server/panel/vhost/nginx"

func keys(steps []types.RemediationStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Key
	}
	return out
}

func TestPlanOrderingAndKeys(t *testing.T) {
	findings := []types.ConflictFinding{
		{Kind: types.FindingDuplicateHostsEntry, Hostname: "api.local", LineNumbers: []int{6, 7},
			LineTexts: []string{"127.0.0.1 api.local", "127.0.0.1 api.local"}, Description: "dup"},
		{Kind: types.FindingCatchAllPriority, FragmentPath: vhostDir + "/a.conf", Description: "catch-all"},
		{Kind: types.FindingPortConflict, FragmentPath: vhostDir + "/a.conf", Description: "default server"},
		{Kind: types.FindingSyntaxError, Description: "nginx configuration test failed", Details: "[emerg]"},
		{Kind: types.FindingRiskyHostsDomain, Hostname: "shop.com", LineNumbers: []int{3},
			LineTexts: []string{"127.0.0.1 shop.com"}, Description: "risky"},
		{Kind: types.FindingMalformedHostsLine, LineNumbers: []int{2},
			LineTexts: []string{"127.0.0.1site1127.0.0.1 site2"}, Description: "malformed"},
		{Kind: types.FindingDirectNameConflict, FragmentPath: vhostDir + "/zz.conf", Hostname: "shop.com", Description: "claims"},
	}

	steps := Plan(findings, "Shop.com", Options{VhostDir: vhostDir, MissingConfig: true})

	assert.Equal(t, []string{
		"fix_nginx_syntax",
		"fix_malformed_hosts_line_2",
		"disable_a.conf",
		"comment_risky_hosts_shop.com",
		"disable_zz.conf",
		"dedupe_hosts_api.local",
		"create_config_shop_com",
	}, keys(steps))

	for _, s := range steps {
		require.NoError(t, s.Validate(), s.Key)
	}

	disableA := steps[2]
	assert.Equal(t, types.ActionDisableFragment, disableA.Action.Kind)
	assert.Equal(t, "catch-all; default server", disableA.Issue, "findings on one fragment merge into one step")

	syntax := steps[0]
	assert.True(t, syntax.Manual)
	assert.Equal(t, types.RiskHigh, syntax.Risk)

	malformed := steps[1]
	assert.Equal(t, types.ActionRewriteHostsFile, malformed.Action.Kind)
	assert.Equal(t, []types.HostsLine{{Number: 2, Text: "127.0.0.1site1127.0.0.1 site2"}}, malformed.Action.Lines)

	dedupe := steps[5]
	assert.True(t, dedupe.Action.KeepFirst)
	assert.Equal(t, types.RiskLow, dedupe.Risk)
	assert.Len(t, dedupe.Action.Lines, 2)

	create := steps[6]
	assert.Equal(t, vhostDir+"/shop.com.conf", create.Action.FragmentPath)
	assert.Equal(t, "shop.com", create.Action.Domain)
}

func TestPlanIsDeterministic(t *testing.T) {
	findings := []types.ConflictFinding{
		{Kind: types.FindingCatchAllPriority, FragmentPath: vhostDir + "/b.conf"},
		{Kind: types.FindingCatchAllPriority, FragmentPath: vhostDir + "/a.conf"},
	}
	first := Plan(findings, "example.com", Options{VhostDir: vhostDir})
	second := Plan(findings, "example.com", Options{VhostDir: vhostDir})
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"disable_b.conf", "disable_a.conf"}, keys(first), "finding order is kept within a risk band")
}

func TestPlanEmpty(t *testing.T) {
	assert.Empty(t, Plan(nil, "example.com", Options{VhostDir: vhostDir}))

	steps := Plan(nil, "example.com", Options{VhostDir: vhostDir, MissingConfig: true})
	require.Len(t, steps, 1)
	assert.Equal(t, "create_config_example_com", steps[0].Key)
}

func TestSplitSteps(t *testing.T) {
	steps := Plan([]types.ConflictFinding{
		{Kind: types.FindingCatchAllPriority, FragmentPath: vhostDir + "/a.conf"},
		{Kind: types.FindingRiskyHostsDomain, Hostname: "x.com", LineNumbers: []int{1}, LineTexts: []string{"127.0.0.1 x.com"}},
	}, "x.com", Options{VhostDir: vhostDir})

	assert.Equal(t, []string{"comment_risky_hosts_x.com"}, keys(HostsSteps(steps)))
	assert.Equal(t, []string{"disable_a.conf"}, keys(VhostSteps(steps)))
}
