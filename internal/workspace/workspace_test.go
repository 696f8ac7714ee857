package workspace

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/vhostdoctor/internal/config"
)

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, Init(dir, false, &out))

	assert.DirExists(t, StateDir(dir))
	assert.Contains(t, out.String(), "Initialized vhostdoctor workspace")

	info, err := os.Stat(ConfigPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(ConfigPath(dir))
	require.NoError(t, err)
	assert.Equal(t, StateDir(dir), cfg.State.Dir)
	assert.Equal(t, LogPath(dir), cfg.Logging.File)
	assert.Equal(t, "/www/server/panel/vhost/nginx", cfg.Paths.VhostDir)
	assert.Empty(t, cfg.Hosts.ProblemDomains)
}

func TestInitRefusesExistingWithoutForce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir, false, &bytes.Buffer{}))
	assert.ErrorIs(t, Init(dir, false, &bytes.Buffer{}), ErrWorkspaceExists)

	stateFile := filepath.Join(StateDir(dir), "shop_com_state.json")
	require.NoError(t, os.WriteFile(stateFile, []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(ConfigPath(dir), []byte("ssh: {host: old}\n"), 0600))

	require.NoError(t, Init(dir, true, &bytes.Buffer{}))
	assert.FileExists(t, stateFile)
	data, err := os.ReadFile(ConfigPath(dir))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "old")
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(Path(root), 0755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := Find(nested)
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, want, got)

	_, err = Find(t.TempDir())
	if err != nil {
		assert.ErrorIs(t, err, ErrNoWorkspace)
	}
}
