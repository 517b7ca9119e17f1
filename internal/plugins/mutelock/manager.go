package mutelock

import (
	"context"
	"sync"
	"time"

	"bridgemod/internal/clock"
	"bridgemod/pkg/plugin"

	"go.uber.org/zap"
)

// Name is the plugin name.
const Name = "mutelock"

const css = `.mute-button[aria-checked="true"] {
  box-shadow: inset 0 0 0 2px var(--bm-accent, #f23f43);
  cursor: not-allowed;
}
`

// Manager keeps the microphone muted while the lock is engaged by vetoing
// every SetMute(false) call.
type Manager struct {
	mu     sync.Mutex
	clock  clock.Clock
	locked bool
	timer  clock.Timer
	vetoed int
	logger *zap.Logger
}

// New creates a mutelock plugin instance using c for the auto-release timer.
func New(c clock.Clock) *Manager {
	return &Manager{
		clock:  c,
		logger: zap.NewNop(),
	}
}

// Descriptor describes the plugin to the lifecycle manager.
func (m *Manager) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:        Name,
		Description: "Prevents unmuting while the mute lock is engaged",
		Version:     "1.0.0",
		Authors:     []string{"bridgemod"},
		Patches: []plugin.PatchSpec{{
			Bridge: plugin.ClientToHost,
			Method: plugin.MethodSetMute,
			Before: m.beforeSetMute,
		}},
		CSS: css,
		Settings: []plugin.Setting{
			{Key: "locked", Type: "bool", Description: "Engage the lock on start", Default: false},
			{Key: "unlock_after", Type: "duration", Description: "Release the lock automatically after this long"},
		},
		Start: m.start,
		Stop:  m.stop,
	}
}

func (m *Manager) start(_ context.Context, pctx *plugin.Context) error {
	m.mu.Lock()
	if pctx.Logger != nil {
		m.logger = pctx.Logger
	}
	m.vetoed = 0
	m.mu.Unlock()

	if pctx.Bool("locked", false) {
		m.Lock(pctx.Duration("unlock_after", 0))
	}
	return nil
}

func (m *Manager) stop(context.Context, *plugin.Context) error {
	m.Unlock()
	return nil
}

// beforeSetMute vetoes unmuting while locked.
func (m *Manager) beforeSetMute(args []any) bool {
	muted, _ := args[0].(bool)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locked && !muted {
		m.vetoed++
		m.logger.Info("Unmute blocked by mute lock", zap.Int("vetoed", m.vetoed))
		return false
	}
	return true
}

// Lock engages the lock. A positive releaseAfter schedules an automatic
// Unlock; locking again replaces any pending release.
func (m *Manager) Lock(releaseAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.locked = true
	if releaseAfter > 0 {
		m.timer = m.clock.AfterFunc(releaseAfter, m.Unlock)
	}

	m.logger.Info("Mute lock engaged", zap.Duration("release_after", releaseAfter))
}

// Unlock releases the lock.
func (m *Manager) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.locked {
		m.locked = false
		m.logger.Info("Mute lock released")
	}
}

// Locked reports whether the lock is engaged.
func (m *Manager) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Vetoed returns how many unmute calls were blocked since the plugin started.
func (m *Manager) Vetoed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vetoed
}
