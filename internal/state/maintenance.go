package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/daydemir/vhostdoctor/internal/types"
)

const stateSuffix = "_state.json"

// StateInfo describes one state file on disk
type StateInfo struct {
	Domain         string    `json:"domain" yaml:"domain"`
	Path           string    `json:"path" yaml:"path"`
	ModTime        time.Time `json:"modified" yaml:"modified"`
	CompletedSteps int       `json:"completed_steps" yaml:"completed_steps"`
	// Readable is false when the file could not be decoded
	Readable bool `json:"readable" yaml:"readable"`
}

// ListStates returns every state file in dir, most recently modified first.
// A missing directory has no states.
func ListStates(dir string) ([]StateInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []StateInfo{}, nil
		}
		return nil, fmt.Errorf("cannot read state directory: %w", err)
	}

	infos := []StateInfo{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), stateSuffix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info := StateInfo{
			Domain:  strings.ReplaceAll(strings.TrimSuffix(e.Name(), stateSuffix), "_", "."),
			Path:    filepath.Join(dir, e.Name()),
			ModTime: fi.ModTime(),
		}
		if data, err := os.ReadFile(info.Path); err == nil {
			var doc types.StateDocument
			if json.Unmarshal(data, &doc) == nil && doc.Domain != "" {
				info.Domain = doc.Domain
				info.CompletedSteps = len(doc.CompletedSteps)
				info.Readable = true
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModTime.After(infos[j].ModTime)
	})
	return infos, nil
}

// CleanupOldStates removes state files not modified within days of now.
// It returns the removed paths.
func CleanupOldStates(dir string, days int, now time.Time) ([]string, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must not be negative, got %d", days)
	}
	infos, err := ListStates(dir)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	removed := []string{}
	for _, info := range infos {
		if !info.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(info.Path); err != nil {
			return removed, fmt.Errorf("cannot remove %s: %w", info.Path, err)
		}
		removed = append(removed, info.Path)
	}
	return removed, nil
}
