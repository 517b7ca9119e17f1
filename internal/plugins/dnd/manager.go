package dnd

import (
	"context"
	"sync"

	"bridgemod/pkg/plugin"

	"go.uber.org/zap"
)

// Name is the plugin name.
const Name = "dnd"

// Manager swallows host notifications while active. Each OnNotification is
// replaced by a call that reports the notification as handled without
// showing it.
type Manager struct {
	mu         sync.Mutex
	suppressed []string
	logger     *zap.Logger
}

// New creates a do-not-disturb plugin instance.
func New() *Manager {
	return &Manager{logger: zap.NewNop()}
}

// Descriptor describes the plugin to the lifecycle manager.
func (m *Manager) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:        Name,
		Description: "Do not disturb: hides host notifications",
		Version:     "1.0.0",
		Authors:     []string{"bridgemod"},
		Patches: []plugin.PatchSpec{{
			Bridge:  plugin.HostToClient,
			Method:  plugin.MethodOnNotification,
			Replace: func(...any) any { return true },
			After:   m.suppress,
		}},
		Start: func(_ context.Context, pctx *plugin.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.suppressed = nil
			if pctx.Logger != nil {
				m.logger = pctx.Logger
			}
			return nil
		},
	}
}

func (m *Manager) suppress(_ any, args []any) {
	title, _ := args[0].(string)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.suppressed = append(m.suppressed, title)
	m.logger.Debug("Notification suppressed", zap.String("title", title))
}

// Suppressed returns the number of notifications hidden since start.
func (m *Manager) Suppressed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.suppressed)
}
