// Package patch turns declarative plugin patches into dispatch handlers.
package patch

import (
	"bridgemod/internal/dispatch"
	"bridgemod/pkg/plugin"

	"go.uber.org/zap"
)

// Installer registers generated patch handlers on a dispatch registry.
type Installer struct {
	registry *dispatch.Registry
	logger   *zap.Logger
}

// NewInstaller creates an installer writing to registry.
func NewInstaller(registry *dispatch.Registry, logger *zap.Logger) *Installer {
	return &Installer{
		registry: registry,
		logger:   logger.Named("patch"),
	}
}

// Install registers one handler for spec under owner and returns its
// registration ID. Installing the same spec twice yields two handlers.
func (i *Installer) Install(owner string, spec plugin.PatchSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	key := spec.Bridge.EventKey(spec.Method)
	id := i.registry.Register(key, owner, Handler(spec))

	i.logger.Debug("Patch installed",
		zap.String("plugin", owner),
		zap.String("key", key))

	return id, nil
}

// UninstallOwner removes every handler installed for owner.
func (i *Installer) UninstallOwner(owner string) int {
	return i.registry.UnregisterOwner(owner)
}

// Handler builds the dispatch handler for spec.
//
// A Before returning false cancels the event and skips the rest of the spec,
// including its After. Replace substitutes the result and cancels the event.
// After is queued to observe the final result of the call, whichever way it
// was produced.
func Handler(spec plugin.PatchSpec) dispatch.Handler {
	return func(ev *plugin.Event) error {
		if spec.Before != nil && !spec.Before(ev.Args) {
			ev.Cancelled = true
			return nil
		}
		if spec.Replace != nil {
			ev.Cancel(spec.Replace(ev.Args...))
		}
		if spec.After != nil {
			ev.OnComplete(spec.After)
		}
		return nil
	}
}
