package theme

import (
	"context"
	"fmt"
	"sync"

	themelib "bridgemod/internal/theme"
	"bridgemod/pkg/plugin"

	"go.uber.org/zap"
)

// Name is the plugin name.
const Name = "theme"

const (
	defaultAccent   = "#5865f2"
	defaultSelector = ":root"
)

// baseCSS applies the generated variables to the client chrome.
const baseCSS = `body {
  background-color: var(--bm-background);
  color: var(--bm-text);
}
a, .link {
  color: var(--bm-accent);
}
a:hover, .link:hover {
  color: var(--bm-accent-hover);
}
.panel, .sidebar {
  background-color: var(--bm-surface);
}
.selected {
  background-color: var(--bm-accent-muted);
}
`

// Manager generates the client's color scheme from the configured accent.
type Manager struct {
	mu      sync.RWMutex
	palette *themelib.Palette
	logger  *zap.Logger
}

// New creates a theme plugin instance.
func New() *Manager {
	return &Manager{logger: zap.NewNop()}
}

// Descriptor describes the plugin to the lifecycle manager.
func (m *Manager) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:        Name,
		Description: "Recolors the client from a single accent color",
		Version:     "1.0.0",
		Authors:     []string{"bridgemod"},
		Settings: []plugin.Setting{
			{Key: "accent", Type: "string", Description: "Accent color as #rrggbb", Default: defaultAccent},
			{Key: "dark", Type: "bool", Description: "Generate a dark scheme", Default: true},
			{Key: "selector", Type: "string", Description: "Selector the variables are set on", Default: defaultSelector},
		},
		Start: m.start,
		Stop:  m.stop,
	}
}

func (m *Manager) start(_ context.Context, pctx *plugin.Context) error {
	if pctx.Logger != nil {
		m.logger = pctx.Logger
	}

	accent := pctx.String("accent", defaultAccent)
	dark := pctx.Bool("dark", true)

	palette, err := themelib.Generate(accent, dark)
	if err != nil {
		return fmt.Errorf("failed to generate palette: %w", err)
	}

	pctx.ApplyCSS(palette.CSS(pctx.String("selector", defaultSelector)) + baseCSS)

	m.mu.Lock()
	m.palette = &palette
	m.mu.Unlock()

	m.logger.Info("Theme applied",
		zap.String("accent", palette.Accent),
		zap.Bool("dark", dark))
	return nil
}

func (m *Manager) stop(context.Context, *plugin.Context) error {
	m.mu.Lock()
	m.palette = nil
	m.mu.Unlock()
	return nil
}

// Palette returns the palette in use, or nil while the plugin is stopped.
func (m *Manager) Palette() *themelib.Palette {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.palette == nil {
		return nil
	}
	p := *m.palette
	return &p
}
