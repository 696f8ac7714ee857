package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/daydemir/vhostdoctor/internal/display"
	"github.com/daydemir/vhostdoctor/internal/executor"
	"github.com/daydemir/vhostdoctor/internal/orchestrator"
	"github.com/daydemir/vhostdoctor/internal/types"
)

func sampleReport() *orchestrator.Report {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &orchestrator.Report{
		SessionID:  "0b0e3f5c-9d55-4c53-8f0b-0a3c1f1d2e77",
		Domain:     "shop.com",
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Final:      orchestrator.StateDone,
		Phases: []orchestrator.PhaseResult{
			{State: orchestrator.StateConnecting, Key: orchestrator.KeyConnection, Status: types.StatusCompleted},
			{State: orchestrator.StateFixingVhosts, Key: "fix_nginx_domain_shop_com", Status: types.StatusFailed, Error: "1 of 1 nginx step(s) failed"},
		},
		Steps: []executor.Outcome{
			{Key: "disable_a.conf", Action: types.ActionDisableFragment, Status: types.StatusFailed, Error: "nginx test failed", Restored: true},
		},
		Errors: []string{"fix_nginx_domain_shop_com: 1 of 1 nginx step(s) failed"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, sampleReport(), FormatJSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "shop.com", got["domain"])
	assert.Equal(t, "done", got["final_state"])
	steps := got["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, true, steps[0].(map[string]any)["restored"])
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, sampleReport(), FormatYAML))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "0b0e3f5c-9d55-4c53-8f0b-0a3c1f1d2e77", got["session_id"])
	assert.Contains(t, buf.String(), "key: disable_a.conf")
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	d := display.NewWithOptions(&buf, true)
	require.NoError(t, Render(&buf, d, sampleReport(), FormatText))

	out := buf.String()
	assert.Contains(t, out, "┌─ SUMMARY")
	assert.Contains(t, out, "Result:  unresolved, see errors below")
	assert.Contains(t, out, "Phases:  1 completed, 0 skipped, 1 failed")
	assert.Contains(t, out, "Steps:   0 applied, 0 already done, 1 failed")
	assert.Contains(t, out, "✗ fix_nginx_domain_shop_com: 1 of 1 nginx step(s) failed")
}

func TestVerdict(t *testing.T) {
	r := sampleReport()
	r.Phases = r.Phases[:1]
	r.Steps = nil
	assert.Equal(t, "resolved", verdict(r))

	r.Declined = []string{"fix_hosts_file_issues"}
	assert.False(t, r.Resolved())
	assert.Equal(t, "unresolved, declined fix_hosts_file_issues", verdict(r))
	r.Declined = nil

	r.Final, r.AbortedIn = orchestrator.StateAborted, orchestrator.StateAnalyzing
	assert.Equal(t, "aborted in analyzing", verdict(r))

	r.Interrupted = true
	assert.Equal(t, "interrupted", verdict(r))
}
