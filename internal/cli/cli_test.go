package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/vhostdoctor/internal/display"
	"github.com/daydemir/vhostdoctor/internal/report"
	"github.com/daydemir/vhostdoctor/internal/state"
	"github.com/daydemir/vhostdoctor/internal/workspace"
)

func TestExitCode(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ExitOK, exitCode(&buf, nil))
	assert.Equal(t, ExitInterrupted, exitCode(&buf, ErrInterrupted))
	assert.Equal(t, ExitFailure, exitCode(&buf, ErrUnresolved))
	assert.Equal(t, ExitUsage, exitCode(&buf, &usageError{msg: "invalid domain: x"}))
	assert.Equal(t, ExitFailure, exitCode(&buf, errors.New("dial tcp: refused")))

	out := buf.String()
	assert.Contains(t, out, "Interrupted")
	assert.Contains(t, out, "Error: invalid domain: x")
	assert.Contains(t, out, "Error: dial tcp: refused")
	assert.NotContains(t, out, ErrUnresolved.Error())
}

func TestDomainArg(t *testing.T) {
	d, err := domainArg(" Shop.COM. ")
	require.NoError(t, err)
	assert.Equal(t, "shop.com", d)

	for _, bad := range []string{"", "localhost", "shop.com;", "a b.com", "../x.com/"} {
		_, err := domainArg(bad)
		assert.Error(t, err, bad)
	}
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := newPromptConfirmer(strings.NewReader(tt.input), &out)
		got, err := p.Confirm(context.Background(), "Apply 2 step(s)?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "Apply 2 step(s)? [y/N]")
	}
}

func TestPromptConfirmerCancelled(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newPromptConfirmer(r, &bytes.Buffer{}).Confirm(ctx, "Restart nginx now?")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigSetRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, workspace.Init(dir, false, &bytes.Buffer{}))
	path := workspace.ConfigPath(dir)

	var out bytes.Buffer
	require.NoError(t, setConfigValue(&out, path, "ssh.host", "203.0.113.10"))
	assert.Contains(t, out.String(), "Set ssh.host = 203.0.113.10")

	out.Reset()
	require.NoError(t, getConfigValue(&out, path, "ssh.host"))
	assert.Equal(t, "203.0.113.10\n", out.String())

	err := setConfigValue(&out, path, "ssh.port", "99999")
	assert.Error(t, err)
	out.Reset()
	require.NoError(t, getConfigValue(&out, path, "ssh.port"))
	assert.Equal(t, "22\n", out.String())

	assert.Error(t, getConfigValue(&out, path, "ssh.nope"))
	assert.Error(t, showConfig(&out, filepath.Join(dir, "missing.yaml")))
}

func TestShowStateWithoutFile(t *testing.T) {
	store, err := state.NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	var buf bytes.Buffer
	d := display.NewWithOptions(&buf, true)
	require.NoError(t, showState(d, store, "shop.com", report.FormatText))
	assert.Contains(t, buf.String(), "nothing recorded for shop.com")
	assert.False(t, store.Recorded("shop.com"))
	_, err = os.Stat(store.Path("shop.com"))
	assert.True(t, os.IsNotExist(err), "showing state creates no file")

	buf.Reset()
	require.NoError(t, showState(d, store, "shop.com", report.FormatJSON))
	var sum state.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &sum))
	assert.Equal(t, "shop.com", sum.Domain)
	assert.True(t, sum.CreatedAt.IsZero())
	assert.Empty(t, sum.CompletedSteps)

	require.NoError(t, store.MarkCompleted("shop.com", "restart_services", nil))
	assert.True(t, store.Recorded("shop.com"))

	buf.Reset()
	require.NoError(t, showState(d, store, "shop.com", report.FormatText))
	out := buf.String()
	assert.NotContains(t, out, "nothing recorded")
	assert.Contains(t, out, "1 completed key(s)")
	assert.Contains(t, out, "restart_services")
}

func TestStateAcceptsShowFlag(t *testing.T) {
	f := stateCmd.Flags().Lookup("show")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)
}
