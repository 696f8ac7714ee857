package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/vhostdoctor/internal/config"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vhostdoctor.log")
	var stderr bytes.Buffer

	l, err := New(config.LoggingConfig{Level: "info", File: path, Format: "json"}, &stderr)
	require.NoError(t, err)
	l.Info().Str("domain", "shop.com").Msg("analysis started")
	l.Debug().Msg("hidden")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var event map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, "info", event["level"])
	assert.Equal(t, "shop.com", event["domain"])
	assert.Equal(t, "analysis started", event["message"])
	assert.Empty(t, stderr.String())
}

func TestDebugMirrorsToStderr(t *testing.T) {
	var stderr bytes.Buffer
	l, err := New(config.LoggingConfig{Level: "debug", Format: "json"}, &stderr)
	require.NoError(t, err)
	l.Debug().Str("cmd", "nginx -t").Msg("executing")

	assert.Contains(t, stderr.String(), "executing")
	assert.Contains(t, stderr.String(), "nginx -t")
	assert.NoError(t, l.Close())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, nil)
	assert.Error(t, err)
}
