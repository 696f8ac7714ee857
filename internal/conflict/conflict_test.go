package conflict

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/vhostdoctor/internal/hosts"
	"github.com/daydemir/vhostdoctor/internal/types"
)

func fragment(name string, names []string, listens ...string) types.ConfigFragment {
	return types.ConfigFragment{
		Path:              "/www/server/panel/vhost/nginx/" + name,
		Enabled:           !strings.HasSuffix(name, ".disabled"),
		DeclaredHostnames: names,
		ListenSpecs:       listens,
	}
}

func kindsFor(res Result, basename string) []types.FindingKind {
	var kinds []types.FindingKind
	for _, f := range res.Findings {
		if strings.HasSuffix(f.FragmentPath, "/"+basename) {
			kinds = append(kinds, f.Kind)
		}
	}
	return kinds
}

func TestFindConflictsOrdering(t *testing.T) {
	wildcard := []string{"_"}

	res := FindConflicts("target", []types.ConfigFragment{
		fragment("a.conf", wildcard, "8080"),
		fragment("b.conf", wildcard, "8081"),
		fragment("target.conf", []string{"target"}, "80"),
	})
	assert.False(t, res.MissingConfig)
	require.NotNil(t, res.TargetFragment)
	assert.Equal(t, []types.FindingKind{types.FindingCatchAllPriority}, kindsFor(res, "a.conf"))
	assert.Equal(t, []types.FindingKind{types.FindingCatchAllPriority}, kindsFor(res, "b.conf"))

	renamed := FindConflicts("target", []types.ConfigFragment{
		fragment("0target.conf", []string{"target"}, "80"),
		fragment("a.conf", wildcard, "8080"),
		fragment("b.conf", wildcard, "8081"),
	})
	assert.False(t, renamed.MissingConfig)
	assert.Empty(t, renamed.Findings)
}

func TestFindConflictsNoServerNameIsAlwaysCatchAll(t *testing.T) {
	res := FindConflicts("example.com", []types.ConfigFragment{
		fragment("example.com.conf", []string{"example.com"}, "80"),
		fragment("zz.conf", nil, "8080"),
	})
	assert.Equal(t, []types.FindingKind{types.FindingCatchAllPriority}, kindsFor(res, "zz.conf"))
}

func TestFindConflictsPortConflict(t *testing.T) {
	tests := []struct {
		name      string
		fragments []types.ConfigFragment
		want      map[string][]types.FindingKind
	}{
		{
			name: "first listener on a target port",
			fragments: []types.ConfigFragment{
				fragment("alpha.com.conf", []string{"alpha.com"}, "80", "443 ssl"),
				fragment("beta.com.conf", []string{"beta.com"}, "80"),
				fragment("example.com.conf", []string{"example.com"}, "80", "443 ssl"),
			},
			want: map[string][]types.FindingKind{
				"alpha.com.conf": {types.FindingPortConflict},
			},
		},
		{
			name: "explicit default_server wins over order",
			fragments: []types.ConfigFragment{
				fragment("alpha.com.conf", []string{"alpha.com"}, "80"),
				fragment("beta.com.conf", []string{"beta.com"}, "80 default_server"),
				fragment("example.com.conf", []string{"example.com"}, "80"),
			},
			want: map[string][]types.FindingKind{
				"beta.com.conf": {types.FindingPortConflict},
			},
		},
		{
			name: "default server after the target is not a conflict",
			fragments: []types.ConfigFragment{
				fragment("example.com.conf", []string{"example.com"}, "80"),
				fragment("zulu.com.conf", []string{"zulu.com"}, "80 default_server"),
			},
			want: map[string][]types.FindingKind{},
		},
		{
			name: "missing target uses 80 and 443",
			fragments: []types.ConfigFragment{
				fragment("alpha.com.conf", []string{"alpha.com"}, "443 ssl"),
				fragment("beta.com.conf", []string{"beta.com"}, "80"),
			},
			want: map[string][]types.FindingKind{
				"alpha.com.conf": {types.FindingPortConflict},
				"beta.com.conf":  {types.FindingPortConflict},
			},
		},
		{
			name: "catch-all and port conflict on the same fragment",
			fragments: []types.ConfigFragment{
				fragment("00-default.conf", []string{"_"}, "80 default_server"),
				fragment("example.com.conf", []string{"example.com"}, "80"),
			},
			want: map[string][]types.FindingKind{
				"00-default.conf": {types.FindingCatchAllPriority, types.FindingPortConflict},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FindConflicts("example.com", tt.fragments)
			got := map[string][]types.FindingKind{}
			for _, f := range res.Findings {
				name := f.FragmentPath[strings.LastIndex(f.FragmentPath, "/")+1:]
				got[name] = append(got[name], f.Kind)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindConflictsDirectName(t *testing.T) {
	res := FindConflicts("Example.com", []types.ConfigFragment{
		fragment("example.com.conf", []string{"example.com"}, "8443"),
		fragment("zz-legacy.conf", []string{"legacy.com", "EXAMPLE.COM"}, "8080"),
		fragment("old.conf.disabled", []string{"example.com"}, "80"),
	})

	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, types.FindingDirectNameConflict, f.Kind)
	assert.Equal(t, "example.com", f.Hostname)
	assert.True(t, strings.HasSuffix(f.FragmentPath, "zz-legacy.conf"))
	assert.NoError(t, f.Validate())
}

func TestFindConflictsMissingConfig(t *testing.T) {
	res := FindConflicts("example.com", []types.ConfigFragment{
		fragment("other.com.conf", []string{"other.com"}, "8080"),
		fragment("example.com.conf.disabled", []string{"example.com"}, "80"),
	})
	assert.True(t, res.MissingConfig)
	assert.Nil(t, res.TargetFragment)
	assert.Empty(t, res.Findings)

	empty := FindConflicts("example.com", nil)
	assert.True(t, empty.MissingConfig)
	assert.NotNil(t, empty.Findings)
}

func TestFindConflictsOwnFragmentByContains(t *testing.T) {
	res := FindConflicts("example.com", []types.ConfigFragment{
		fragment("site-example.com-v2.conf", []string{"example.com"}, "80"),
	})
	assert.False(t, res.MissingConfig)
	require.NotNil(t, res.TargetFragment)
	assert.Empty(t, res.Findings)
}

func TestFindConflictsSubdomainFragmentIsNotOwn(t *testing.T) {
	res := FindConflicts("example.com", []types.ConfigFragment{
		fragment("shop.example.com.conf", []string{"shop.example.com"}, "80"),
	})
	assert.True(t, res.MissingConfig)
	assert.Nil(t, res.TargetFragment)
	assert.Empty(t, res.Findings)

	www := FindConflicts("example.com", []types.ConfigFragment{
		fragment("shop.example.com.conf", []string{"shop.example.com"}, "80"),
		fragment("www.example.com.conf", []string{"www.example.com", "example.com"}, "80"),
	})
	assert.False(t, www.MissingConfig)
	require.NotNil(t, www.TargetFragment)
	assert.Equal(t, "www.example.com.conf", www.TargetFragment.Basename())
}

func TestSyntaxFinding(t *testing.T) {
	assert.Nil(t, SyntaxFinding(true, "ok"))

	f := SyntaxFinding(false, "  nginx: [emerg] unexpected \"}\" in /x.conf:12\n")
	require.NotNil(t, f)
	assert.Equal(t, types.FindingSyntaxError, f.Kind)
	assert.Equal(t, `nginx: [emerg] unexpected "}" in /x.conf:12`, f.Details)
	assert.Equal(t, "nginx -t", f.Source())
}

func TestFindHostsConflicts(t *testing.T) {
	content := strings.Join([]string{
		"127.0.0.1 localhost",
		"127.0.0.1site1127.0.0.1 site2",
		"127.0.0.1 mydomain.com",
		"127.0.0.1 www.mydomain.com",
		"127.0.0.1 tracker.net",
		"127.0.0.1 dev.local",
		"127.0.0.1 dev.local www.dev.local",
		"::1 localhost dev.local",
		"10.0.0.2 api.local",
		"10.0.0.3 api.local",
	}, "\n")
	a := hosts.AnalyzeContent(content, []string{"tracker.net"})

	findings := FindHostsConflicts(a, "mydomain.com", []string{"tracker.net"})
	byKind := map[types.FindingKind][]types.ConflictFinding{}
	for _, f := range findings {
		require.NoError(t, f.Validate())
		byKind[f.Kind] = append(byKind[f.Kind], f)
	}

	require.Len(t, byKind[types.FindingMalformedHostsLine], 1)
	assert.Equal(t, []int{2}, byKind[types.FindingMalformedHostsLine][0].LineNumbers)

	risky := byKind[types.FindingRiskyHostsDomain]
	require.Len(t, risky, 3)
	assert.Equal(t, "mydomain.com", risky[0].Hostname)
	assert.Equal(t, []int{3}, risky[0].LineNumbers)
	assert.Equal(t, "www.mydomain.com", risky[1].Hostname)
	assert.Equal(t, "tracker.net", risky[2].Hostname)

	require.Len(t, byKind[types.FindingDuplicateHostsEntry], 1)
	dup := byKind[types.FindingDuplicateHostsEntry][0]
	assert.Equal(t, "dev.local", dup.Hostname, "external and dual-stack mappings are not duplicates")
	assert.Equal(t, []int{6, 7}, dup.LineNumbers)
	assert.Equal(t, []string{"127.0.0.1 dev.local", "127.0.0.1 dev.local www.dev.local"}, dup.LineTexts)

	assert.Empty(t, FindHostsConflicts(&hosts.Analysis{}, "mydomain.com", nil))
}
