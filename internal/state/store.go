// Package state records which remediation steps and phases have completed,
// one JSON document per domain, so an interrupted run resumes where it stopped.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/daydemir/vhostdoctor/internal/types"
	"github.com/daydemir/vhostdoctor/internal/utils"
)

// Store persists per-domain progress under one directory.
// Documents are loaded on first use and written on every change.
type Store struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger

	mu   sync.Mutex
	docs map[string]*types.StateDocument
}

// NewStore opens (creating if needed) the state directory
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory: %w", err)
	}
	return &Store{
		dir:    dir,
		now:    time.Now,
		logger: logger.With().Str("component", "state").Logger(),
		docs:   map[string]*types.StateDocument{},
	}, nil
}

// WithClock replaces the time source, for tests
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Dir returns the state directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the state file for domain
func (s *Store) Path(domain string) string {
	return utils.BuildStatePath(s.dir, domain)
}

// Recorded reports whether a state file exists for domain
func (s *Store) Recorded(domain string) bool {
	_, err := os.Stat(s.Path(domain))
	return err == nil
}

// IsCompleted reports whether key is recorded for domain
func (s *Store) IsCompleted(domain, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(domain).HasStep(key)
}

// MarkCompleted records key with optional details and persists immediately.
// Marking an already-completed key refreshes its details.
func (s *Store) MarkCompleted(domain, key string, details map[string]string) error {
	return s.update(domain, func(doc *types.StateDocument, now time.Time) {
		if !doc.HasStep(key) {
			doc.CompletedSteps = append(doc.CompletedSteps, key)
		}
		doc.StepDetails[key] = types.StepRecord{CompletedAt: now, Details: details}
	})
}

// Clear forgets one key so the step runs again
func (s *Store) Clear(domain, key string) error {
	return s.update(domain, func(doc *types.StateDocument, _ time.Time) {
		kept := doc.CompletedSteps[:0]
		for _, k := range doc.CompletedSteps {
			if k != key {
				kept = append(kept, k)
			}
		}
		doc.CompletedSteps = kept
		delete(doc.StepDetails, key)
	})
}

// ClearAll forgets every completed key, keeping analysis results and session data
func (s *Store) ClearAll(domain string) error {
	return s.update(domain, func(doc *types.StateDocument, _ time.Time) {
		doc.CompletedSteps = []string{}
		doc.StepDetails = map[string]types.StepRecord{}
	})
}

// Reset deletes the domain's state file entirely
func (s *Store) Reset(domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, utils.NormalizeDomain(domain))
	if err := os.Remove(s.Path(domain)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cannot remove state file: %w", err)
	}
	s.logger.Info().Str("domain", domain).Msg("state reset")
	return nil
}

// SaveAnalysisResult stores result as JSON under kind
func (s *Store) SaveAnalysisResult(domain, kind string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cannot marshal %s result: %w", kind, err)
	}
	return s.update(domain, func(doc *types.StateDocument, now time.Time) {
		doc.AnalysisResults[kind] = types.AnalysisRecord{Timestamp: now, Result: data}
	})
}

// AnalysisResult decodes the stored result for kind into out.
// ok is false when nothing is stored.
func (s *Store) AnalysisResult(domain, kind string, out any) (at time.Time, ok bool, err error) {
	s.mu.Lock()
	rec, found := s.load(domain).AnalysisResults[kind]
	s.mu.Unlock()
	if !found {
		return time.Time{}, false, nil
	}
	if err := json.Unmarshal(rec.Result, out); err != nil {
		return rec.Timestamp, true, fmt.Errorf("cannot decode %s result: %w", kind, err)
	}
	return rec.Timestamp, true, nil
}

// SaveSessionData stores a free-form value for the domain
func (s *Store) SaveSessionData(domain, key, value string) error {
	return s.update(domain, func(doc *types.StateDocument, _ time.Time) {
		doc.SessionData[key] = value
	})
}

// SessionData returns a stored session value
func (s *Store) SessionData(domain, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.load(domain).SessionData[key]
	return v, ok
}

// Summary describes a domain's recorded progress
type Summary struct {
	Domain         string    `json:"domain" yaml:"domain"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	LastUpdated    time.Time `json:"last_updated" yaml:"last_updated"`
	CompletedSteps []string  `json:"completed_steps" yaml:"completed_steps"`
	AnalysisTypes  []string  `json:"analysis_types" yaml:"analysis_types"`
	SessionKeys    []string  `json:"session_keys" yaml:"session_keys"`
	Path           string    `json:"path" yaml:"path"`
}

// Summary returns a snapshot of the domain's state
func (s *Store) Summary(domain string) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load(domain)

	sum := Summary{
		Domain:         doc.Domain,
		CreatedAt:      doc.CreatedAt,
		LastUpdated:    doc.LastUpdated,
		CompletedSteps: append([]string{}, doc.CompletedSteps...),
		AnalysisTypes:  []string{},
		SessionKeys:    []string{},
		Path:           s.Path(domain),
	}
	for k := range doc.AnalysisResults {
		sum.AnalysisTypes = append(sum.AnalysisTypes, k)
	}
	for k := range doc.SessionData {
		sum.SessionKeys = append(sum.SessionKeys, k)
	}
	sort.Strings(sum.AnalysisTypes)
	sort.Strings(sum.SessionKeys)
	return sum
}

// StepRecord returns the record for a completed key
func (s *Store) StepRecord(domain, key string) (types.StepRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.load(domain).StepDetails[key]
	return rec, ok
}

// load returns the cached document, reading it from disk on first use.
// Unreadable or foreign documents are logged and replaced by a fresh one.
// Callers hold s.mu.
func (s *Store) load(domain string) *types.StateDocument {
	domain = utils.NormalizeDomain(domain)
	if doc, ok := s.docs[domain]; ok {
		return doc
	}

	path := s.Path(domain)
	doc, err := LoadStateJSON(path, domain)
	if err != nil {
		var corrupt *types.StateCorruptionError
		if errors.As(err, &corrupt) {
			s.logger.Warn().Err(err).Str("domain", domain).Msg("discarding state file, starting fresh")
		} else if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("domain", domain).Msg("cannot read state file, starting fresh")
		}
		doc = types.NewStateDocument(domain, s.now())
	}
	s.docs[domain] = doc
	return doc
}

// update applies fn and persists. On a failed write the in-memory document
// is rolled back so memory never claims more than disk.
func (s *Store) update(domain string, fn func(doc *types.StateDocument, now time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(domain)
	before := clone(doc)
	now := s.now()

	fn(doc, now)
	doc.LastUpdated = now

	if err := SaveStateJSON(s.Path(domain), doc); err != nil {
		s.docs[utils.NormalizeDomain(domain)] = before
		return err
	}
	return nil
}

func clone(doc *types.StateDocument) *types.StateDocument {
	c := *doc
	c.CompletedSteps = append([]string{}, doc.CompletedSteps...)
	c.StepDetails = make(map[string]types.StepRecord, len(doc.StepDetails))
	for k, v := range doc.StepDetails {
		c.StepDetails[k] = v
	}
	c.AnalysisResults = make(map[string]types.AnalysisRecord, len(doc.AnalysisResults))
	for k, v := range doc.AnalysisResults {
		c.AnalysisResults[k] = v
	}
	c.SessionData = make(map[string]string, len(doc.SessionData))
	for k, v := range doc.SessionData {
		c.SessionData[k] = v
	}
	return &c
}
