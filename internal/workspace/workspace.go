package workspace

import (
	"errors"
	"os"
	"path/filepath"
)

const Dir = ".vhostdoctor"

var ErrNoWorkspace = errors.New("no vhostdoctor workspace found (run 'vhostdoctor init' first)")
var ErrWorkspaceExists = errors.New("vhostdoctor workspace already exists (use --force to overwrite)")

// Find walks up from start looking for a .vhostdoctor/ directory
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		wsPath := filepath.Join(dir, Dir)
		if info, err := os.Stat(wsPath); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoWorkspace
		}
		dir = parent
	}
}

// Resolve returns the workspace enclosing the working directory, or the
// home directory when there is none
func Resolve() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if dir, err := Find(cwd); err == nil {
		return dir, nil
	}
	return os.UserHomeDir()
}

// Path returns the .vhostdoctor directory path for a workspace
func Path(workspaceDir string) string {
	return filepath.Join(workspaceDir, Dir)
}

// ConfigPath returns the config.yaml path
func ConfigPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, Dir, "config.yaml")
}

// StateDir returns the directory holding per-domain state files
func StateDir(workspaceDir string) string {
	return filepath.Join(workspaceDir, Dir, "state")
}

// LogPath returns the log file path
func LogPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, Dir, "vhostdoctor.log")
}
