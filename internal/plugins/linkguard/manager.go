package linkguard

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"sync"

	"bridgemod/pkg/plugin"

	"go.uber.org/zap"
)

// Name is the plugin name.
const Name = "linkguard"

var defaultSchemes = []string{"http", "https"}

// Manager vetoes OpenURL calls whose scheme is not allow-listed.
type Manager struct {
	mu      sync.RWMutex
	schemes []string
	blocked []string
	logger  *zap.Logger
}

// New creates a linkguard plugin instance.
func New() *Manager {
	return &Manager{
		schemes: slices.Clone(defaultSchemes),
		logger:  zap.NewNop(),
	}
}

// Descriptor describes the plugin to the lifecycle manager.
func (m *Manager) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:        Name,
		Description: "Blocks the client from opening links with unexpected schemes",
		Version:     "1.0.0",
		Authors:     []string{"bridgemod"},
		Patches: []plugin.PatchSpec{{
			Bridge: plugin.ClientToHost,
			Method: plugin.MethodOpenURL,
			Before: m.allow,
		}},
		Settings: []plugin.Setting{
			{Key: "schemes", Type: "[]string", Description: "URL schemes the client may open", Default: defaultSchemes},
		},
		Start: m.start,
		Stop:  m.stop,
	}
}

func (m *Manager) start(_ context.Context, pctx *plugin.Context) error {
	schemes := slices.Clone(pctx.Strings("schemes", defaultSchemes))
	for i, s := range schemes {
		schemes[i] = strings.ToLower(s)
	}

	m.mu.Lock()
	m.schemes = schemes
	m.blocked = nil
	if pctx.Logger != nil {
		m.logger = pctx.Logger
	}
	m.mu.Unlock()

	m.logger.Info("Link guard armed", zap.Strings("schemes", schemes))
	return nil
}

func (m *Manager) stop(context.Context, *plugin.Context) error {
	m.mu.RLock()
	n := len(m.blocked)
	m.mu.RUnlock()

	m.logger.Info("Link guard disarmed", zap.Int("blocked", n))
	return nil
}

// allow is the OpenURL before-handler. Returning false vetoes the call.
func (m *Manager) allow(args []any) bool {
	raw, _ := args[0].(string)

	u, err := url.Parse(raw)
	scheme := ""
	if err == nil {
		scheme = strings.ToLower(u.Scheme)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if scheme != "" && slices.Contains(m.schemes, scheme) {
		return true
	}

	m.blocked = append(m.blocked, raw)
	m.logger.Warn("Blocked link",
		zap.String("url", raw),
		zap.String("scheme", scheme))
	return false
}

// Blocked returns the URLs vetoed since the plugin last started.
func (m *Manager) Blocked() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.blocked)
}
