package hosts

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/vhostdoctor/internal/remote/remotetest"
	"github.com/daydemir/vhostdoctor/internal/types"
)

func TestParseLineClassification(t *testing.T) {
	tests := []struct {
		line string
		want types.HostsEntryKind
	}{
		{"127.0.0.1 localhost", types.HostsLoopback},
		{"::1 localhost localhost.localdomain", types.HostsLoopback},
		{"127.0.0.1 mydomain.com", types.HostsDomain},
		{"127.0.0.1 localhost mydomain.com", types.HostsDomain},
		{"127.0.0.1site1127.0.0.1 site2", types.HostsMalformed},
		{"127.0.0.1 site1127.0.0.1 site2", types.HostsMalformed},
		{"127.0.0.1", types.HostsMalformed},
		{"10.0.0.5 db.internal", types.HostsExternal},
		{"127.0.1.1 myhost", types.HostsExternal},
		{"127.0.0.1 a1.2.3.4.nip.io", types.HostsDomain},
		{"192.168.1.10 app.local # office", types.HostsExternal},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			e, ok := ParseLine(1, tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.want, e.Kind)
		})
	}
}

func TestParseLineSkipsCommentsAndBlanks(t *testing.T) {
	for _, line := range []string{"", "   ", "# 127.0.0.1 example.com", "\t# note"} {
		_, ok := ParseLine(1, line)
		assert.False(t, ok, "line %q should be skipped", line)
	}
}

func TestAnalyzeContent(t *testing.T) {
	content := strings.Join([]string{
		"127.0.0.1 localhost",
		"127.0.0.1site1127.0.0.1 site2",
		"127.0.0.1 mydomain.com",
		"# comment",
		"",
	}, "\n")

	a := AnalyzeContent(content, nil)
	require.Len(t, a.Entries, 3)
	assert.Equal(t, types.HostsLoopback, a.Entries[0].Kind)
	assert.Equal(t, types.HostsMalformed, a.Entries[1].Kind)
	assert.Equal(t, 2, a.Entries[1].LineNumber)
	assert.Equal(t, types.HostsDomain, a.Entries[2].Kind)
	assert.Equal(t, "127.0.0.1", a.Entries[2].Address)
	assert.Equal(t, []string{"mydomain.com"}, a.Entries[2].Hostnames)
	assert.Equal(t, 5, a.TotalLines)
	assert.True(t, a.HasProblems, "malformed line is a problem")

	clean := AnalyzeContent("127.0.0.1 localhost\n127.0.0.1 mydomain.com\n", nil)
	assert.False(t, clean.HasProblems)
	denied := AnalyzeContent("127.0.0.1 localhost\n127.0.0.1 mydomain.com\n", []string{"MyDomain.com"})
	assert.True(t, denied.HasProblems)
	assert.Len(t, denied.DomainEntriesFor("mydomain.com"), 1)
}

func TestDuplicates(t *testing.T) {
	content := strings.Join([]string{
		"127.0.0.1 localhost",
		"::1 localhost",
		"127.0.0.1 shop.com",
		"10.0.0.2 api.local",
		"127.0.0.1 shop.com www.shop.com",
		"127.0.0.1 Shop.com",
	}, "\n")

	dups := AnalyzeContent(content, nil).Duplicates()
	require.Len(t, dups, 1, "localhost on both loopback lines is not a duplicate")
	assert.Equal(t, "shop.com", dups[0].Hostname)
	require.Len(t, dups[0].Entries, 3)
	assert.Equal(t, []int{3, 5, 6},
		[]int{dups[0].Entries[0].LineNumber, dups[0].Entries[1].LineNumber, dups[0].Entries[2].LineNumber})
}

func TestDuplicatesIgnoresDualStackMappings(t *testing.T) {
	content := "127.0.0.1 localhost myserver\n::1 localhost ip6-localhost myserver\n"

	assert.Empty(t, AnalyzeContent(content, nil).Duplicates())

	out, n := Dedupe(content, "myserver")
	assert.Equal(t, 0, n)
	assert.Equal(t, content, out, "the ::1 line keeps its names")
}

func TestDuplicatesSkipsExternalAddresses(t *testing.T) {
	content := "10.0.0.2 api.local\n10.0.0.3 api.local\n"
	assert.Empty(t, AnalyzeContent(content, nil).Duplicates())
}

func TestSplitMalformed(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   []string
		wantOK bool
	}{
		{
			name:   "glued without space",
			line:   "127.0.0.1site1127.0.0.1 site2",
			want:   []string{"127.0.0.1 site1", "127.0.0.1 site2"},
			wantOK: true,
		},
		{
			name:   "glued after space",
			line:   "127.0.0.1 site1127.0.0.1 site2",
			want:   []string{"127.0.0.1 site1", "127.0.0.1 site2"},
			wantOK: true,
		},
		{
			name:   "three entries",
			line:   "127.0.0.1 a.com127.0.0.1 b.com127.0.0.1 c.com",
			want:   []string{"127.0.0.1 a.com", "127.0.0.1 b.com", "127.0.0.1 c.com"},
			wantOK: true,
		},
		{
			name:   "different second address",
			line:   "10.0.0.1 alpha10.0.0.2 beta",
			want:   []string{"10.0.0.1 alpha", "10.0.0.2 beta"},
			wantOK: true,
		},
		{
			name: "lonely address",
			line: "127.0.0.1",
		},
		{
			name: "nothing after the second address",
			line: "127.0.0.1 site1127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SplitMalformed(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepairMalformed(t *testing.T) {
	content := "127.0.0.1 localhost\n127.0.0.1site1127.0.0.1 site2\n"

	out, changed := RepairMalformed(content, types.HostsLine{Number: 2, Text: "127.0.0.1site1127.0.0.1 site2"})
	assert.True(t, changed)
	assert.Equal(t, "127.0.0.1 localhost\n127.0.0.1 site1\n127.0.0.1 site2\n", out)

	again, changed := RepairMalformed(out, types.HostsLine{Number: 2, Text: "127.0.0.1site1127.0.0.1 site2"})
	assert.False(t, changed)
	assert.Equal(t, out, again)

	out, changed = RepairMalformed("127.0.0.1\n", types.HostsLine{Number: 1, Text: "127.0.0.1"})
	assert.True(t, changed)
	assert.Equal(t, "# 127.0.0.1 # "+CommentNote+"\n", out)
}

func TestCommentLinesFollowsMovedLine(t *testing.T) {
	content := "127.0.0.1 localhost\n127.0.0.1 new.com\n127.0.0.1 mydomain.com\n"

	// recorded at line 2 before another line was inserted above it
	out, n := CommentLines(content, []types.HostsLine{{Number: 2, Text: "127.0.0.1 mydomain.com"}})
	assert.Equal(t, 1, n)
	assert.Equal(t, "127.0.0.1 localhost\n127.0.0.1 new.com\n# 127.0.0.1 mydomain.com # "+CommentNote+"\n", out)

	_, n = CommentLines(out, []types.HostsLine{{Number: 3, Text: "127.0.0.1 mydomain.com"}})
	assert.Equal(t, 0, n)
}

func TestDedupeKeepsFirstAndIsIdempotent(t *testing.T) {
	content := strings.Join([]string{
		"127.0.0.1 localhost",
		"127.0.0.1 shop.com",
		"127.0.0.1 shop.com",
		"127.0.0.1 shop.com",
	}, "\n")

	out, n := Dedupe(content, "shop.com")
	assert.Equal(t, 2, n)

	active := 0
	for _, e := range AnalyzeContent(out, nil).Entries {
		if e.Kind == types.HostsDomain {
			active++
			assert.Equal(t, 2, e.LineNumber, "the first occurrence survives")
		}
	}
	assert.Equal(t, 1, active)

	again, n := Dedupe(out, "shop.com")
	assert.Equal(t, 0, n)
	assert.Equal(t, out, again)
}

func TestDedupeDropsOnlyTheRepeatedName(t *testing.T) {
	content := strings.Join([]string{
		"127.0.0.1 shop.com",
		"127.0.0.1 shop.com blog.shop.com # staging",
		"127.0.0.1 localhost Shop.com",
	}, "\n")

	out, n := Dedupe(content, "shop.com")
	assert.Equal(t, 2, n)
	assert.Equal(t, strings.Join([]string{
		"127.0.0.1 shop.com",
		"127.0.0.1 blog.shop.com # staging shop.com " + CommentNote,
		"127.0.0.1 localhost # shop.com " + CommentNote,
	}, "\n"), out)

	a := AnalyzeContent(out, nil)
	assert.Len(t, a.DomainEntriesFor("blog.shop.com"), 1)
	assert.Len(t, a.DomainEntriesFor("shop.com"), 1)
	assert.Empty(t, a.Duplicates())

	again, n := Dedupe(out, "shop.com")
	assert.Equal(t, 0, n)
	assert.Equal(t, out, again)
}

func TestAnalyzer(t *testing.T) {
	ctx := context.Background()

	missing, err := NewAnalyzer(remotetest.New(), "/etc/hosts", nil, zerolog.Nop()).Analyze(ctx)
	require.NoError(t, err)
	assert.False(t, missing.FileExists)
	assert.Empty(t, missing.Entries)

	host := remotetest.New().Put("/etc/hosts", "127.0.0.1 localhost\n127.0.0.1 blocked.com\n")
	a, err := NewAnalyzer(host, "/etc/hosts", []string{"blocked.com"}, zerolog.Nop()).Analyze(ctx)
	require.NoError(t, err)
	assert.True(t, a.FileExists)
	assert.True(t, a.HasProblems)
	assert.Len(t, a.ByKind(types.HostsDomain), 1)
}
