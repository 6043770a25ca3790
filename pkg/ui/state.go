package ui

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// UIState is the persisted terminal preference file. It never records
// navigation state; every run starts at the root.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "show_descriptions": true,
//	  "recent": ["/home/me/features.tree.yaml"]
//	}
//
// A corrupted or missing file yields the defaults.
type UIState struct {
	Version          int      `json:"version"`
	ShowDescriptions *bool    `json:"show_descriptions,omitempty"`
	Recent           []string `json:"recent,omitempty"`
}

// UIStateVersion is the current schema version.
const UIStateVersion = 1

// maxRecent bounds the recent-files list.
const maxRecent = 10

const uiStateFileName = "ui-state.json"

// UIStatePath returns the state file path inside dir.
func UIStatePath(dir string) string {
	return filepath.Join(dir, uiStateFileName)
}

// LoadUIState reads the state file, falling back to defaults.
func LoadUIState(path string) *UIState {
	state := &UIState{Version: UIStateVersion}
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, state); err != nil {
		return &UIState{Version: UIStateVersion}
	}
	state.Version = UIStateVersion
	return state
}

// Save writes the state file, creating its directory.
func (s *UIState) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Remember moves path to the front of the recent list.
func (s *UIState) Remember(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	recent := []string{path}
	for _, p := range s.Recent {
		if p != path && len(recent) < maxRecent {
			recent = append(recent, p)
		}
	}
	s.Recent = recent
}

// MostRecent returns the newest recent file that still exists.
func (s *UIState) MostRecent() (string, bool) {
	for _, p := range s.Recent {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// SetShowDescriptions records the description pane preference.
func (s *UIState) SetShowDescriptions(v bool) {
	s.ShowDescriptions = &v
}
