// Package lifecycle owns the set of known plugins and moves them between
// registered and active. Starting a plugin installs its patches and CSS and
// runs its start hook; stopping it undoes all three.
package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"bridgemod/internal/config"
	"bridgemod/internal/dispatch"
	"bridgemod/internal/patch"
	"bridgemod/pkg/plugin"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Settings supplies per-plugin enablement and configuration.
type Settings interface {
	Enabled(name string) bool
	PluginConfig(name string) map[string]any
}

// Status is a point-in-time view of one plugin.
type Status struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Version     string           `json:"version,omitempty"`
	Authors     []string         `json:"authors,omitempty"`
	State       State            `json:"state"`
	Enabled     bool             `json:"enabled"`
	Patches     int              `json:"patches"`
	HasCSS      bool             `json:"has_css"`
	Settings    []plugin.Setting `json:"settings,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithSettings sets the snapshot consulted by StartAll and handed to hooks.
func WithSettings(s Settings) Option {
	return func(m *Manager) {
		m.settings = s
	}
}

// WithStyles sets the CSS collaborator plugins' stylesheets are written to.
func WithStyles(s plugin.StyleInjector) Option {
	return func(m *Manager) {
		m.styles = s
	}
}

// WithHookTimeout bounds every start and stop hook. Zero disables the bound.
func WithHookTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.hookTimeout = d
	}
}

// Manager is the plugin registry and lifecycle state machine.
type Manager struct {
	mu          sync.Mutex
	descriptors map[string]plugin.Descriptor
	order       []string
	states      map[string]State
	active      []string
	contexts    map[string]*plugin.Context

	registry    *dispatch.Registry
	installer   *patch.Installer
	styles      plugin.StyleInjector
	settings    Settings
	hookTimeout time.Duration
	logger      *zap.Logger
}

// NewManager creates a manager that installs patches into registry.
func NewManager(registry *dispatch.Registry, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		descriptors: make(map[string]plugin.Descriptor),
		states:      make(map[string]State),
		contexts:    make(map[string]*plugin.Context),
		registry:    registry,
		installer:   patch.NewInstaller(registry, logger),
		settings:    (*config.Settings)(nil),
		logger:      logger.Named("lifecycle"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register stores a descriptor in the registered state. A name that is
// already registered is logged and ignored.
func (m *Manager) Register(desc plugin.Descriptor) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlugin, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.descriptors[desc.Name]; exists {
		m.logger.Warn("Plugin already registered, ignoring",
			zap.String("plugin", desc.Name))
		return nil
	}

	m.descriptors[desc.Name] = desc.Clone()
	m.order = append(m.order, desc.Name)
	m.states[desc.Name] = StateRegistered

	m.logger.Info("Plugin registered",
		zap.String("plugin", desc.Name),
		zap.String("version", desc.Version),
		zap.Int("patches", len(desc.Patches)))
	return nil
}

// RegisterAll registers each descriptor in order. Invalid descriptors are
// skipped and reported together.
func (m *Manager) RegisterAll(descs []plugin.Descriptor) error {
	var errs error
	for _, desc := range descs {
		errs = multierr.Append(errs, m.Register(desc))
	}
	return errs
}

// Start activates a plugin. Unknown names return ErrPluginNotFound; a plugin
// that is not in the registered state is left alone.
//
// If any step fails, everything the plugin installed so far is retracted and
// it stays registered. The error is logged and returned.
func (m *Manager) Start(ctx context.Context, name string) error {
	m.mu.Lock()
	desc, ok := m.descriptors[name]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("Cannot start unknown plugin", zap.String("plugin", name))
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if m.states[name] != StateRegistered {
		state := m.states[name]
		m.mu.Unlock()
		m.logger.Debug("Plugin not startable, skipping",
			zap.String("plugin", name),
			zap.Stringer("state", state))
		return nil
	}
	m.states[name] = StateStarting
	m.mu.Unlock()

	m.logger.Info("Starting plugin", zap.String("plugin", name))

	pctx, err := m.activate(ctx, desc)

	m.mu.Lock()
	if err != nil {
		m.states[name] = StateRegistered
	} else {
		m.states[name] = StateActive
		m.active = append(m.active, name)
		m.contexts[name] = pctx
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Failed to start plugin",
			zap.String("plugin", name),
			zap.Error(err))
		return err
	}

	m.logger.Info("Plugin started", zap.String("plugin", name))
	return nil
}

// activate installs patches and CSS and runs the start hook, rolling all of
// it back on failure. The returned context stays attached until the plugin
// stops.
func (m *Manager) activate(ctx context.Context, desc plugin.Descriptor) (*plugin.Context, error) {
	for i, spec := range desc.Patches {
		if _, err := m.installer.Install(desc.Name, spec); err != nil {
			m.rollback(desc.Name)
			return nil, fmt.Errorf("failed to install patch %d: %w", i, err)
		}
	}

	if desc.CSS != "" && m.styles != nil {
		m.styles.Upsert(plugin.StyleKey(desc.Name), desc.CSS)
	}

	pctx := m.newContext(desc.Name)
	if err := m.runHook(ctx, pctx, desc.Start); err != nil {
		// A hook that outlived its timeout must not reapply CSS after rollback.
		pctx.Detach()
		m.rollback(desc.Name)
		return nil, fmt.Errorf("start hook failed: %w", err)
	}
	return pctx, nil
}

func (m *Manager) newContext(name string) *plugin.Context {
	return plugin.NewContext(name, m.logger.Named(name), m.settings.PluginConfig(name), m.styles)
}

func (m *Manager) rollback(name string) {
	removed := m.installer.UninstallOwner(name)
	if m.styles != nil {
		m.styles.Remove(plugin.StyleKey(name))
	}
	m.logger.Debug("Rolled back plugin start",
		zap.String("plugin", name),
		zap.Int("handlers", removed))
}

// Stop deactivates a plugin. Unknown names return ErrPluginNotFound; a plugin
// that is not active is left alone.
//
// The stop hook, CSS removal and handler retraction run independently, so a
// failing hook does not leave handlers behind. The plugin always leaves the
// active set.
func (m *Manager) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	desc, ok := m.descriptors[name]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("Cannot stop unknown plugin", zap.String("plugin", name))
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if m.states[name] != StateActive {
		m.mu.Unlock()
		return nil
	}
	m.states[name] = StateStopping
	started := m.contexts[name]
	delete(m.contexts, name)
	m.mu.Unlock()

	m.logger.Info("Stopping plugin", zap.String("plugin", name))

	var errs error
	pctx := m.newContext(name)
	if err := m.runHook(ctx, pctx, desc.Stop); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("stop hook failed: %w", err))
	}

	pctx.Detach()
	if started != nil {
		started.Detach()
	}
	if m.styles != nil {
		m.styles.Remove(plugin.StyleKey(name))
	}

	removed := m.installer.UninstallOwner(name)

	m.mu.Lock()
	m.states[name] = StateRegistered
	m.active = slices.DeleteFunc(m.active, func(n string) bool { return n == name })
	m.mu.Unlock()

	if errs != nil {
		m.logger.Error("Plugin stopped with errors",
			zap.String("plugin", name),
			zap.Int("handlers_removed", removed),
			zap.Error(errs))
		return errs
	}

	m.logger.Info("Plugin stopped",
		zap.String("plugin", name),
		zap.Int("handlers_removed", removed))
	return nil
}

// StartAll starts every enabled plugin, one at a time, in registration
// order. Failures are logged and do not prevent later plugins from starting.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	names := slices.Clone(m.order)
	m.mu.Unlock()

	started := 0
	for _, name := range names {
		if !m.settings.Enabled(name) {
			m.logger.Debug("Plugin disabled, not starting", zap.String("plugin", name))
			continue
		}
		if err := m.Start(ctx, name); err == nil && m.IsActive(name) {
			started++
		}
	}

	m.logger.Info("Plugins started",
		zap.Int("started", started),
		zap.Int("registered", len(names)))
}

// StopAll stops every active plugin in reverse start order.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	names := slices.Clone(m.active)
	m.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		// Errors are already logged by Stop.
		_ = m.Stop(ctx, names[i])
	}
}

// Emit dispatches an intercepted bridge call to the handlers installed for it.
func (m *Manager) Emit(b plugin.Bridge, ev *plugin.Event) error {
	return m.registry.Dispatch(b.EventKey(ev.Method), ev)
}

// Complete runs the completion observers queued while ev was dispatched.
func (m *Manager) Complete(b plugin.Bridge, ev *plugin.Event, result any) error {
	return m.registry.Complete(b.EventKey(ev.Method), ev, result)
}

// runHook runs a start or stop hook, converting a panic into an error and
// honouring ctx and the configured hook timeout. A hook that times out keeps
// running in the background with pctx; callers detach it.
func (m *Manager) runHook(ctx context.Context, pctx *plugin.Context, hook plugin.Hook) error {
	if hook == nil {
		return nil
	}

	if m.hookTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.hookTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("%w: %v", ErrHookPanic, p)
			}
		}()
		done <- hook(ctx, pctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if m.hookTimeout > 0 {
			return fmt.Errorf("%w after %s: %w", ErrHookTimeout, m.hookTimeout, ctx.Err())
		}
		return ctx.Err()
	}
}

// IsActive reports whether the plugin is in the active set.
func (m *Manager) IsActive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[name] == StateActive
}

// State returns the plugin's lifecycle state.
func (m *Manager) State(name string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[name]
}

// Active returns the active plugins in start order.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.active)
}

// Names returns the registered plugins in registration order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

// Plugins returns the status of every registered plugin in registration order.
func (m *Manager) Plugins() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Status, 0, len(m.order))
	for _, name := range m.order {
		desc := m.descriptors[name]
		result = append(result, Status{
			Name:        name,
			Description: desc.Description,
			Version:     desc.Version,
			Authors:     slices.Clone(desc.Authors),
			State:       m.states[name],
			Enabled:     m.settings.Enabled(name),
			Patches:     len(desc.Patches),
			HasCSS:      desc.CSS != "",
			Settings:    slices.Clone(desc.Settings),
		})
	}
	return result
}
