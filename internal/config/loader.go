package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultEnabled decides whether a plugin without an entry in the settings
// file is started by StartAll. A settings file may override it with
// default_enabled.
const DefaultEnabled = true

// PluginSettings is one plugin's entry in the settings file.
type PluginSettings struct {
	Enabled *bool          `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

// Settings is the snapshot of plugin settings read at startup.
// It is never modified after loading.
type Settings struct {
	DefaultEnabled *bool                     `yaml:"default_enabled"`
	Plugins        map[string]PluginSettings `yaml:"plugins"`
}

// Enabled reports whether the named plugin should be started.
func (s *Settings) Enabled(name string) bool {
	if s != nil {
		if ps, ok := s.Plugins[name]; ok && ps.Enabled != nil {
			return *ps.Enabled
		}
		if s.DefaultEnabled != nil {
			return *s.DefaultEnabled
		}
	}
	return DefaultEnabled
}

// PluginConfig returns a copy of the named plugin's config map.
func (s *Settings) PluginConfig(name string) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	cfg := maps.Clone(s.Plugins[name].Config)
	if cfg == nil {
		cfg = map[string]any{}
	}
	return cfg
}

// ParseSettings decodes a settings document.
func ParseSettings(data []byte) (*Settings, error) {
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if settings.Plugins == nil {
		settings.Plugins = make(map[string]PluginSettings)
	}
	return &settings, nil
}

// Loader reads the plugin settings file
type Loader struct {
	path     string
	logger   *zap.Logger
	settings *Settings
}

// NewLoader creates a settings loader for path
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{
		path:   path,
		logger: logger,
	}
}

// LoadSettings loads the settings file. A missing file is not an error:
// every plugin then falls back to DefaultEnabled with an empty config.
func (l *Loader) LoadSettings() error {
	l.logger.Debug("Loading plugin settings", zap.String("path", l.path))

	if l.path == "" {
		l.logger.Info("No settings file configured, using defaults")
		l.settings = &Settings{Plugins: make(map[string]PluginSettings)}
		return nil
	}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Settings file not found, using defaults", zap.String("path", l.path))
		l.settings = &Settings{Plugins: make(map[string]PluginSettings)}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	settings, err := ParseSettings(data)
	if err != nil {
		return err
	}

	l.settings = settings
	l.logger.Info("Plugin settings loaded",
		zap.String("path", l.path),
		zap.Int("plugins", len(settings.Plugins)))
	return nil
}

// GetSettings returns the loaded snapshot, or nil before LoadSettings.
func (l *Loader) GetSettings() *Settings {
	return l.settings
}
