// Package config handles loading and saving peektree configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/peektree/config.yaml
//   - State:   ~/.local/state/peektree/ (last opened hierarchy)
//
// PEEKTREE_CONFIG overrides the config file path.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/input"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config path.
const EnvConfigPath = "PEEKTREE_CONFIG"

// Hierarchy is a registered hierarchy file.
type Hierarchy struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// UIConfig holds terminal renderer preferences.
type UIConfig struct {
	SlotWidthPercent int    `yaml:"slot_width_percent,omitempty"` // Slide offset per level, as in the web widget
	RootLabel        string `yaml:"root_label,omitempty"`         // Overrides the hierarchy's root crumb
	ShowDescriptions *bool  `yaml:"show_descriptions,omitempty"`
	CopyLeafPath     *bool  `yaml:"copy_leaf_path,omitempty"` // Copy the path of a selected leaf to the clipboard
	Watch            bool   `yaml:"watch,omitempty"`          // Reload when the hierarchy file changes
}

// InputConfig tunes the gesture policy.
type InputConfig struct {
	SwipeThreshold   float64  `yaml:"swipe_threshold,omitempty"`
	MaxVerticalDrift float64  `yaml:"max_vertical_drift,omitempty"`
	BackKeys         []string `yaml:"back_keys,omitempty"`
}

// DiscoveryConfig controls auto-discovery of hierarchy files.
type DiscoveryConfig struct {
	ScanPaths []string `yaml:"scan_paths,omitempty"` // Directories to scan for *.tree.* files and .peektree/
	MaxDepth  int      `yaml:"max_depth,omitempty"`  // How deep to scan (default 3)
}

// ServerConfig holds HTTP adapter settings.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the top-level configuration for peektree.
type Config struct {
	Hierarchies []Hierarchy     `yaml:"hierarchies,omitempty"`
	Default     string          `yaml:"default,omitempty"` // Name of the hierarchy opened without --file
	UI          UIConfig        `yaml:"ui,omitempty"`
	Input       InputConfig     `yaml:"input,omitempty"`
	Discovery   DiscoveryConfig `yaml:"discovery,omitempty"`
	Server      ServerConfig    `yaml:"server,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	policy := input.DefaultPolicy()
	return Config{
		UI: UIConfig{
			SlotWidthPercent: 60,
		},
		Input: InputConfig{
			SwipeThreshold:   policy.SwipeThreshold,
			MaxVerticalDrift: policy.MaxVerticalDrift,
			BackKeys:         policy.BackKeys,
		},
		Discovery: DiscoveryConfig{
			MaxDepth: 3,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7070",
		},
	}
}

// ConfigDir returns the XDG config directory for peektree.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "peektree")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "peektree")
}

// StateDir returns the XDG state directory for peektree.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "peektree")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "peektree")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return expandHome(p)
	}
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	// Expand ~ in paths
	for i := range cfg.Hierarchies {
		cfg.Hierarchies[i].Path = expandHome(cfg.Hierarchies[i].Path)
	}
	for i := range cfg.Discovery.ScanPaths {
		cfg.Discovery.ScanPaths[i] = expandHome(cfg.Discovery.ScanPaths[i])
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks value ranges. All problems are joined into one error.
func (c Config) Validate() error {
	var errs []error
	if p := c.UI.SlotWidthPercent; p < 10 || p > 100 {
		errs = append(errs, fmt.Errorf("ui.slot_width_percent must be between 10 and 100 (got %d)", p))
	}
	if c.Input.SwipeThreshold <= 0 {
		errs = append(errs, fmt.Errorf("input.swipe_threshold must be positive (got %v)", c.Input.SwipeThreshold))
	}
	if c.Input.MaxVerticalDrift <= 0 {
		errs = append(errs, fmt.Errorf("input.max_vertical_drift must be positive (got %v)", c.Input.MaxVerticalDrift))
	}
	if c.Discovery.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("discovery.max_depth must not be negative (got %d)", c.Discovery.MaxDepth))
	}
	seen := make(map[string]bool)
	for _, h := range c.Hierarchies {
		key := strings.ToLower(h.Name)
		if h.Name == "" || h.Path == "" {
			errs = append(errs, fmt.Errorf("hierarchy entries need a name and a path (%q, %q)", h.Name, h.Path))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("hierarchy %q registered twice", h.Name))
		}
		seen[key] = true
	}
	if c.Default != "" && c.FindHierarchy(c.Default) == nil {
		errs = append(errs, fmt.Errorf("default hierarchy %q is not registered", c.Default))
	}
	return errors.Join(errs...)
}

// FindHierarchy returns the hierarchy with the given name, or nil.
func (c Config) FindHierarchy(name string) *Hierarchy {
	for i := range c.Hierarchies {
		if strings.EqualFold(c.Hierarchies[i].Name, name) {
			return &c.Hierarchies[i]
		}
	}
	return nil
}

// InputPolicy converts the input section into a gesture policy.
func (c Config) InputPolicy() input.Policy {
	p := input.DefaultPolicy()
	if c.Input.SwipeThreshold > 0 {
		p.SwipeThreshold = c.Input.SwipeThreshold
	}
	if c.Input.MaxVerticalDrift > 0 {
		p.MaxVerticalDrift = c.Input.MaxVerticalDrift
	}
	if len(c.Input.BackKeys) > 0 {
		p.BackKeys = append([]string(nil), c.Input.BackKeys...)
	}
	return p
}

// DescriptionsEnabled reports whether node descriptions are rendered (default true).
func (u UIConfig) DescriptionsEnabled() bool {
	return u.ShowDescriptions == nil || *u.ShowDescriptions
}

// ClipboardEnabled reports whether leaf paths are copied (default true).
func (u UIConfig) ClipboardEnabled() bool {
	return u.CopyLeafPath == nil || *u.CopyLeafPath
}

// ResolvedPath returns the hierarchy path with ~ expanded.
func (h Hierarchy) ResolvedPath() string {
	return expandHome(h.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
