// Package nginx reads vhost fragments from the remote configuration directory.
package nginx

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// DisabledSuffix is appended to a fragment to take it out of nginx's include glob
const DisabledSuffix = ".disabled"

var disabledSuffixes = []string{".disabled", ".backup", ".old"}

// IsEnabledName reports whether nginx loads a file with this name
func IsEnabledName(name string) bool {
	return strings.HasSuffix(name, ".conf")
}

// IsDisabledName reports whether the name is a parked fragment
func IsDisabledName(name string) bool {
	for _, s := range disabledSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// FragmentName is the file name the target domain's own fragment should have
func FragmentName(domain string) string {
	return domain + ".conf"
}

// Store lists and reads fragments under one vhost directory
type Store struct {
	exec   remote.Executor
	dir    string
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir
func NewStore(exec remote.Executor, dir string, logger zerolog.Logger) *Store {
	return &Store{
		exec:   exec,
		dir:    strings.TrimSuffix(dir, "/"),
		logger: logger.With().Str("component", "nginx").Logger(),
	}
}

// Dir returns the vhost directory
func (s *Store) Dir() string {
	return s.dir
}

// Path joins name onto the vhost directory
func (s *Store) Path(name string) string {
	return path.Join(s.dir, name)
}

// ListFragments returns fragments sorted ascending by basename, the order nginx
// includes them in. Disabled fragments are included only when asked for.
// An empty or missing directory yields an empty slice.
func (s *Store) ListFragments(ctx context.Context, includeDisabled bool) ([]types.ConfigFragment, error) {
	names, err := s.exec.ListDir(ctx, s.dir)
	if err != nil {
		return nil, err
	}

	fragments := []types.ConfigFragment{}
	for _, name := range names {
		enabled := IsEnabledName(name)
		if !enabled && !(includeDisabled && IsDisabledName(name)) {
			continue
		}

		p := s.Path(name)
		d, err := s.ReadDirectives(ctx, p)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, types.ConfigFragment{
			Path:              p,
			Enabled:           enabled,
			DeclaredHostnames: d.ServerNames,
			ListenSpecs:       d.Listen,
		})
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Basename() < fragments[j].Basename()
	})

	s.logger.Debug().Int("count", len(fragments)).Bool("include_disabled", includeDisabled).Msg("listed fragments")
	return fragments, nil
}

// ReadDirectives reads one fragment and extracts its directives
func (s *Store) ReadDirectives(ctx context.Context, p string) (Directives, error) {
	data, err := s.exec.ReadFile(ctx, p)
	if err != nil {
		if types.IsTransport(err) {
			return Directives{}, err
		}
		return Directives{}, &types.AnalysisError{Path: p, Err: err}
	}
	return ParseDirectives(string(data)), nil
}
