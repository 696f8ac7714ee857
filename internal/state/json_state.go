package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/types"
	"github.com/daydemir/vhostdoctor/internal/utils"
)

// errDomainMismatch marks a state file written for a different domain
var errDomainMismatch = errors.New("state file belongs to another domain")

// LoadStateJSON loads a domain's state document from statePath.
// Returns an error wrapping os.ErrNotExist if there is no file, and a
// *types.StateCorruptionError for malformed JSON, failed validation, or a
// document recorded for another domain.
func LoadStateJSON(statePath, domain string) (*types.StateDocument, error) {
	data, err := os.ReadFile(statePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open state file: %w", err)
	}

	var doc types.StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &types.StateCorruptionError{Path: statePath, Err: fmt.Errorf("cannot decode: %w", err)}
	}
	doc.Normalize()

	if err := doc.Validate(); err != nil {
		return nil, &types.StateCorruptionError{Path: statePath, Err: err}
	}

	if !strings.EqualFold(utils.NormalizeDomain(doc.Domain), utils.NormalizeDomain(domain)) {
		return nil, &types.StateCorruptionError{
			Path: statePath,
			Err:  fmt.Errorf("%w: recorded %q, want %q", errDomainMismatch, doc.Domain, domain),
		}
	}

	return &doc, nil
}

// SaveStateJSON saves a state document atomically
// Validates before writing - no silent failures
func SaveStateJSON(statePath string, doc *types.StateDocument) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid state: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal state: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tempPath := statePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("cannot write temp state file: %w", err)
	}

	if err := os.Rename(tempPath, statePath); err != nil {
		os.Remove(tempPath) // Clean up temp file on failure
		return fmt.Errorf("cannot rename temp state file: %w", err)
	}

	return nil
}
