package nginx

import (
	"context"
	"sort"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/types"
)

// Inventory summarizes every fragment in the vhost directory
type Inventory struct {
	Active   []string `json:"active" yaml:"active"`
	Disabled []string `json:"disabled" yaml:"disabled"`
	CatchAll []string `json:"catch_all" yaml:"catch_all"`
	// SharedNames maps a hostname to the active fragments that all declare it
	SharedNames map[string][]string `json:"shared_names,omitempty" yaml:"shared_names,omitempty"`
}

// TakeInventory lists active and disabled fragments and flags catch-alls and shared names
func (s *Store) TakeInventory(ctx context.Context) (*Inventory, error) {
	fragments, err := s.ListFragments(ctx, true)
	if err != nil {
		return nil, err
	}
	return BuildInventory(fragments), nil
}

// BuildInventory summarizes already-read fragments
func BuildInventory(fragments []types.ConfigFragment) *Inventory {
	inv := &Inventory{
		Active:      []string{},
		Disabled:    []string{},
		CatchAll:    []string{},
		SharedNames: map[string][]string{},
	}

	claims := map[string][]string{}
	for _, f := range fragments {
		name := f.Basename()
		if !f.Enabled {
			inv.Disabled = append(inv.Disabled, name)
			continue
		}
		inv.Active = append(inv.Active, name)
		if f.IsCatchAll() {
			inv.CatchAll = append(inv.CatchAll, name)
		}
		for _, host := range f.DeclaredHostnames {
			if host == "_" {
				continue
			}
			key := strings.ToLower(host)
			claims[key] = append(claims[key], name)
		}
	}

	for host, files := range claims {
		if len(files) > 1 {
			sort.Strings(files)
			inv.SharedNames[host] = files
		}
	}
	return inv
}
