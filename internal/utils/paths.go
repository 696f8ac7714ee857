package utils

import (
	"path/filepath"
	"time"
)

// BackupTimeFormat is the timestamp suffix of remote backups
const BackupTimeFormat = "20060102_150405"

// BuildStatePath builds the state file path for a domain
// Format: {stateDir}/{domain_key}_state.json
func BuildStatePath(stateDir, domain string) string {
	return filepath.Join(stateDir, DomainKey(domain)+"_state.json")
}

// BuildBackupPath builds the remote backup path for a file
// Format: {path}.backup.{YYYYmmdd_HHMMSS}
func BuildBackupPath(path string, at time.Time) string {
	return path + ".backup." + at.Format(BackupTimeFormat)
}
