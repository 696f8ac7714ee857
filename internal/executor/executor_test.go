package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/vhostdoctor/internal/nginx"
	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/remote/remotetest"
	"github.com/daydemir/vhostdoctor/internal/state"
	"github.com/daydemir/vhostdoctor/internal/types"
)

const (
	vhostDir = "/www/server/panel/vhost/nginx"
	domain   = "shop.com"
)

var clock = func() time.Time { return time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC) }

type fixture struct {
	host  *remotetest.Host
	store *state.Store
	exec  *Executor
}

func newFixture(t *testing.T, host *remotetest.Host) *fixture {
	t.Helper()
	store, err := state.NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	cfg := DefaultConfig(domain)
	return &fixture{
		host:  host,
		store: store,
		exec:  New(cfg, host, store, zerolog.Nop()).WithClock(clock),
	}
}

func nginxOK(host *remotetest.Host) *remotetest.Host {
	return host.On("nginx -t", remote.Result{Stderr: "nginx: configuration file /etc/nginx/nginx.conf test is successful"})
}

func nginxFail(host *remotetest.Host) *remotetest.Host {
	return host.On("nginx -t", remote.Result{ExitCode: 1, Stderr: "nginx: [emerg] unknown directive"})
}

func disableStep(name string) types.RemediationStep {
	return types.RemediationStep{
		Key:    "disable_" + name,
		Risk:   types.RiskMedium,
		Action: types.Action{Kind: types.ActionDisableFragment, FragmentPath: vhostDir + "/" + name},
		Issue:  "catch-all",
	}
}

func TestDisableFragment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nginxOK(remotetest.New().Put(vhostDir+"/a.conf", "server { listen 80; }")))

	out := f.exec.Apply(ctx, disableStep("a.conf"))
	require.NoError(t, out.Err)
	assert.Equal(t, types.StatusCompleted, out.Status)
	assert.Equal(t, vhostDir+"/a.conf.backup.20240601_103000", out.Backup)

	_, ok := f.host.Get(vhostDir + "/a.conf")
	assert.False(t, ok)
	parked, ok := f.host.Get(vhostDir + "/a.conf.disabled")
	assert.True(t, ok)
	assert.Equal(t, "server { listen 80; }", parked)
	_, ok = f.host.Get(out.Backup)
	assert.True(t, ok)

	assert.True(t, f.store.IsCompleted(domain, "disable_a.conf"))
	rec, _ := f.store.StepRecord(domain, "disable_a.conf")
	assert.Equal(t, out.Backup, rec.Details["backup"])
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nginxOK(remotetest.New().Put(vhostDir+"/a.conf", "server { listen 80; }")))

	first := f.exec.Apply(ctx, disableStep("a.conf"))
	require.Equal(t, types.StatusCompleted, first.Status)
	mutations := f.host.MutationCount()
	commands := len(f.host.Commands)

	second := f.exec.Apply(ctx, disableStep("a.conf"))
	assert.Equal(t, types.StatusSkipped, second.Status)
	assert.Equal(t, mutations, f.host.MutationCount(), "a skipped step performs no remote mutation")
	assert.Equal(t, commands, len(f.host.Commands))
}

func TestDisableFragmentRestoresOnFailedTest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nginxFail(remotetest.New().Put(vhostDir+"/a.conf", "server { listen 80; }")))

	out := f.exec.Apply(ctx, disableStep("a.conf"))
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.True(t, out.Restored)

	var re *types.RemediationError
	require.True(t, errors.As(out.Err, &re))
	assert.Equal(t, "disable_a.conf", re.Key)

	content, ok := f.host.Get(vhostDir + "/a.conf")
	assert.True(t, ok, "fragment is renamed back")
	assert.Equal(t, "server { listen 80; }", content)
	assert.False(t, f.store.IsCompleted(domain, "disable_a.conf"))
}

func TestDisableAlreadyDisabled(t *testing.T) {
	f := newFixture(t, nginxOK(remotetest.New().Put(vhostDir+"/a.conf.disabled", "x")))

	out := f.exec.Apply(context.Background(), disableStep("a.conf"))
	assert.Equal(t, types.StatusCompleted, out.Status)
	assert.Zero(t, f.host.MutationCount())
	assert.True(t, f.store.IsCompleted(domain, "disable_a.conf"))
}

func TestDisableMissingFragment(t *testing.T) {
	f := newFixture(t, nginxOK(remotetest.New()))
	out := f.exec.Apply(context.Background(), disableStep("a.conf"))
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.False(t, f.store.IsCompleted(domain, "disable_a.conf"))
}

func TestDisableKeepsEarlierParkedCopy(t *testing.T) {
	f := newFixture(t, nginxOK(remotetest.New().
		Put(vhostDir+"/a.conf", "new").
		Put(vhostDir+"/a.conf.disabled", "old")))

	out := f.exec.Apply(context.Background(), disableStep("a.conf"))
	require.Equal(t, types.StatusCompleted, out.Status)

	old, _ := f.host.Get(vhostDir + "/a.conf.disabled")
	assert.Equal(t, "old", old)
	parked, ok := f.host.Get(vhostDir + "/a.conf.20240601_103000.disabled")
	assert.True(t, ok)
	assert.Equal(t, "new", parked)

	frags, err := nginx.NewStore(f.host, vhostDir, zerolog.Nop()).ListFragments(context.Background(), true)
	require.NoError(t, err)
	var names []string
	for _, fr := range frags {
		assert.False(t, fr.Enabled, fr.Basename())
		names = append(names, fr.Basename())
	}
	assert.ElementsMatch(t, []string{"a.conf.disabled", "a.conf.20240601_103000.disabled"}, names,
		"both parked copies are listed as disabled")
}

func createStep() types.RemediationStep {
	return types.RemediationStep{
		Key:  "create_config_shop_com",
		Risk: types.RiskMedium,
		Action: types.Action{
			Kind:         types.ActionCreateFragment,
			FragmentPath: vhostDir + "/shop.com.conf",
			Domain:       domain,
		},
	}
}

func TestCreateFragment(t *testing.T) {
	f := newFixture(t, nginxOK(remotetest.New()))

	out := f.exec.Apply(context.Background(), createStep())
	require.NoError(t, out.Err)
	assert.Equal(t, types.StatusCompleted, out.Status)

	content, ok := f.host.Get(vhostDir + "/shop.com.conf")
	require.True(t, ok)
	assert.Contains(t, content, "server_name shop.com www.shop.com;")
}

func TestCreateFragmentRemovedOnFailedTest(t *testing.T) {
	f := newFixture(t, nginxFail(remotetest.New()))

	out := f.exec.Apply(context.Background(), createStep())
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.True(t, out.Restored)
	_, ok := f.host.Get(vhostDir + "/shop.com.conf")
	assert.False(t, ok)
}

const hostsContent = "127.0.0.1 localhost\n127.0.0.1site1127.0.0.1 site2\n127.0.0.1 shop.com\n"

func TestRewriteHostsFile(t *testing.T) {
	f := newFixture(t, remotetest.New().Put("/etc/hosts", hostsContent))

	step := types.RemediationStep{
		Key:  "fix_malformed_hosts_line_2",
		Risk: types.RiskHigh,
		Action: types.Action{
			Kind:  types.ActionRewriteHostsFile,
			Lines: []types.HostsLine{{Number: 2, Text: "127.0.0.1site1127.0.0.1 site2"}},
		},
	}
	out := f.exec.Apply(context.Background(), step)
	require.NoError(t, out.Err)
	assert.Equal(t, types.StatusCompleted, out.Status)

	got, _ := f.host.Get("/etc/hosts")
	assert.Equal(t, "127.0.0.1 localhost\n127.0.0.1 site1\n127.0.0.1 site2\n127.0.0.1 shop.com\n", got)

	backup, ok := f.host.Get("/etc/hosts.backup.20240601_103000")
	require.True(t, ok)
	assert.Equal(t, hostsContent, backup)
}

func TestHostsWriteFailureLeavesContentIdentical(t *testing.T) {
	host := remotetest.New().Put("/etc/hosts", hostsContent)
	host.TruncateOnFail = true
	host.FailWrites("/etc/hosts", 1)
	f := newFixture(t, host)

	step := types.RemediationStep{
		Key:  "comment_risky_hosts_shop.com",
		Risk: types.RiskMedium,
		Action: types.Action{
			Kind:     types.ActionCommentHostsLine,
			Lines:    []types.HostsLine{{Number: 3, Text: "127.0.0.1 shop.com"}},
			Hostname: "shop.com",
		},
	}
	out := f.exec.Apply(context.Background(), step)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.True(t, out.Restored)

	got, _ := host.Get("/etc/hosts")
	assert.Equal(t, hostsContent, got, "content is byte-identical to the original")
	assert.False(t, f.store.IsCompleted(domain, step.Key))
}

func TestDedupeStepCollapsesAndRerunIsNoop(t *testing.T) {
	content := "127.0.0.1 localhost\n127.0.0.1 shop.com\n127.0.0.1 shop.com\n127.0.0.1 shop.com\n"
	f := newFixture(t, remotetest.New().Put("/etc/hosts", content))

	step := types.RemediationStep{
		Key:  "dedupe_hosts_shop.com",
		Risk: types.RiskLow,
		Action: types.Action{
			Kind:      types.ActionCommentHostsLine,
			Hostname:  "shop.com",
			KeepFirst: true,
			Lines: []types.HostsLine{
				{Number: 2, Text: "127.0.0.1 shop.com"},
				{Number: 3, Text: "127.0.0.1 shop.com"},
				{Number: 4, Text: "127.0.0.1 shop.com"},
			},
		},
	}
	out := f.exec.Apply(context.Background(), step)
	require.Equal(t, types.StatusCompleted, out.Status)

	got, _ := f.host.Get("/etc/hosts")
	assert.Equal(t, "127.0.0.1 localhost\n127.0.0.1 shop.com\n"+
		"# 127.0.0.1 shop.com # disabled by vhostdoctor\n"+
		"# 127.0.0.1 shop.com # disabled by vhostdoctor\n", got)

	// a fresh key over the already-collapsed file changes nothing
	step.Key = "dedupe_hosts_shop.com_again"
	mutations := f.host.MutationCount()
	again := f.exec.Apply(context.Background(), step)
	assert.Equal(t, types.StatusCompleted, again.Status)
	assert.Equal(t, "hosts file already resolved", again.Message)
	assert.Equal(t, mutations, f.host.MutationCount())
}

func TestManualInterventionStep(t *testing.T) {
	step := types.RemediationStep{
		Key:    "fix_nginx_syntax",
		Risk:   types.RiskHigh,
		Action: types.Action{Kind: types.ActionManualIntervention},
		Manual: true,
	}

	failing := newFixture(t, nginxFail(remotetest.New()))
	out := failing.exec.Apply(context.Background(), step)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Error, "manual intervention required")
	assert.Zero(t, failing.host.MutationCount())

	passing := newFixture(t, nginxOK(remotetest.New()))
	out = passing.exec.Apply(context.Background(), step)
	assert.Equal(t, types.StatusCompleted, out.Status)
}

func TestTransportErrorPassesThrough(t *testing.T) {
	host := remotetest.New()
	host.TransportErr = &types.TransportError{Op: "stat", Err: errors.New("connection reset")}
	f := newFixture(t, host)

	out := f.exec.Apply(context.Background(), disableStep("a.conf"))
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.True(t, types.IsTransport(out.Err))
}

func TestInvalidStepFails(t *testing.T) {
	f := newFixture(t, remotetest.New())
	out := f.exec.Apply(context.Background(), types.RemediationStep{Key: "bad", Risk: types.RiskLow,
		Action: types.Action{Kind: types.ActionDisableFragment}})
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Zero(t, f.host.MutationCount())
}
