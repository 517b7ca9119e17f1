package lifecycle

import "errors"

// Lifecycle errors.
var (
	// ErrPluginNotFound is returned when start or stop names an unknown plugin.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrInvalidPlugin is returned when a descriptor fails validation.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrHookPanic is returned when a start or stop hook panics.
	ErrHookPanic = errors.New("lifecycle hook panicked")

	// ErrHookTimeout is returned when a hook does not finish within the
	// configured hook timeout.
	ErrHookTimeout = errors.New("lifecycle hook timed out")
)
