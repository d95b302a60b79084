// Package mock serves dashboard data from JSON fixture files instead of a
// live backend. Intended for development and demos: edit a fixture on disk
// and the running dashboard picks it up on the next poll, or immediately
// when the directory watcher is enabled.
//
// Fixture layout inside the directory:
//
//	state.json            combined dashboard state
//	layout-<view>.json    layout per view, view name slugified
//	health.json           health snapshot
//	tile-<id>.json        per-card detail payloads
//	profile.json          active profile
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/gibbs-codes/projectorUIv2/pkg/api"
	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

// Source reads fixtures from a directory. It is stateless between calls;
// every fetch re-reads the file, so edits show up without restarts.
type Source struct {
	dir string
}

// NewSource creates a fixture source rooted at dir.
func NewSource(dir string) (*Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixture path %s is not a directory", dir)
	}
	return &Source{dir: dir}, nil
}

// Dir returns the fixture directory.
func (s *Source) Dir() string {
	return s.dir
}

// Slugify maps a view or card name to its fixture file fragment: lowercase,
// spaces and path separators become dashes.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '-'
		default:
			return r
		}
	}, slug)
	return slug
}

// GetState loads state.json.
func (s *Source) GetState(ctx context.Context) (*model.State, error) {
	var state model.State
	if err := s.load("state.json", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetLayout loads layout-<view>.json.
func (s *Source) GetLayout(ctx context.Context, view string) (*model.Layout, error) {
	var layout model.Layout
	if err := s.load("layout-"+Slugify(view)+".json", &layout); err != nil {
		return nil, err
	}
	if layout.View == "" {
		layout.View = view
	}
	return &layout, nil
}

// GetHealth loads health.json.
func (s *Source) GetHealth(ctx context.Context) (*model.Health, error) {
	var health model.Health
	if err := s.load("health.json", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetTile loads tile-<id>.json.
func (s *Source) GetTile(ctx context.Context, id string) (*model.Card, error) {
	var card model.Card
	if err := s.load("tile-"+Slugify(id)+".json", &card); err != nil {
		return nil, err
	}
	if card.ID == "" {
		card.ID = id
	}
	return &card, nil
}

// RefreshTile re-reads the fixture; there is no backend to command.
func (s *Source) RefreshTile(ctx context.Context, id string) (*model.Card, error) {
	return s.GetTile(ctx, id)
}

// GetActiveProfile loads profile.json under the same strict validation as
// the live gateway. Referenced cards resolve against tile fixtures; a
// missing fixture yields a placeholder, matching live behavior for a failed
// card fetch.
func (s *Source) GetActiveProfile(ctx context.Context) (*model.Profile, error) {
	raw, err := s.read("profile.json")
	if err != nil {
		return nil, err
	}
	profile, err := api.ParseProfile(raw)
	if err != nil {
		return nil, err
	}

	for _, zone := range profile.Zones {
		for _, id := range zone.CardIDs {
			if _, ok := profile.Cards[id]; ok {
				continue
			}
			card, err := s.GetTile(ctx, id)
			if err != nil {
				debug.Log("mock: card %s unresolved: %v", id, err)
				card = model.PlaceholderCard(id, err)
			}
			profile.Cards[id] = card
		}
	}
	return profile, nil
}

func (s *Source) read(name string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, &api.TransportError{Err: err}
	}
	return raw, nil
}

func (s *Source) load(name string, out any) error {
	raw, err := s.read(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &api.MalformedResponseError{
			Reason: fmt.Sprintf("decoding fixture %s: %v", name, err),
			Raw:    raw,
		}
	}
	return nil
}
