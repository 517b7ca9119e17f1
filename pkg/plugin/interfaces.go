// Package plugin provides the public plugin contract for bridgemod and the
// catalog that built-in plugins register into. Plugins describe themselves
// with a Descriptor, usually from an init() function, and declare the
// bridge calls they want to intercept as PatchSpecs. Descriptors are
// activated and deactivated by the lifecycle manager at runtime.
package plugin

import (
	"context"
	"slices"
)

// Bridge identifies one of the two host-exposed bridge interfaces.
type Bridge int

const (
	// HostToClient carries calls from the native host into the client layer.
	HostToClient Bridge = iota + 1

	// ClientToHost carries calls from the client layer into the native host.
	ClientToHost
)

// Method names on the HostToClient bridge.
const (
	MethodOnMessage         = "OnMessage"
	MethodOnVoiceState      = "OnVoiceState"
	MethodOnNotification    = "OnNotification"
	MethodOnConnectionState = "OnConnectionState"
)

// Method names on the ClientToHost bridge.
const (
	MethodSetMute     = "SetMute"
	MethodSetDeafen   = "SetDeafen"
	MethodSendMessage = "SendMessage"
	MethodOpenURL     = "OpenURL"
	MethodGetVersion  = "GetVersion"
)

var bridgeMethods = map[Bridge][]string{
	HostToClient: {
		MethodOnMessage,
		MethodOnVoiceState,
		MethodOnNotification,
		MethodOnConnectionState,
	},
	ClientToHost: {
		MethodSetMute,
		MethodSetDeafen,
		MethodSendMessage,
		MethodOpenURL,
		MethodGetVersion,
	},
}

// String returns the bridge's interface name.
func (b Bridge) String() string {
	switch b {
	case HostToClient:
		return "HostToClient"
	case ClientToHost:
		return "ClientToHost"
	default:
		return "unknown"
	}
}

// Valid reports whether b is one of the known bridges.
func (b Bridge) Valid() bool {
	return b == HostToClient || b == ClientToHost
}

// Name returns the dispatch namespace of the bridge, e.g. "bridge:ClientToHost".
func (b Bridge) Name() string {
	return "bridge:" + b.String()
}

// EventKey returns the dispatch key for a method on this bridge,
// e.g. "bridge:ClientToHost:SetMute".
func (b Bridge) EventKey(method string) string {
	return b.Name() + ":" + method
}

// Methods returns the interceptable method names of the bridge.
func (b Bridge) Methods() []string {
	return slices.Clone(bridgeMethods[b])
}

// HasMethod reports whether method belongs to the bridge's method set.
func (b Bridge) HasMethod(method string) bool {
	return slices.Contains(bridgeMethods[b], method)
}

// PatchSpec declares the intent to intercept one bridge method.
// It is plain data; the patch installer turns it into a dispatch handler
// when the owning plugin starts.
type PatchSpec struct {
	// Bridge is the interface the method lives on.
	Bridge Bridge

	// Method is the method name, one of the Method* constants.
	Method string

	// Before runs first and may edit args in place. Returning false vetoes
	// the call: the original is never invoked and After is skipped.
	Before func(args []any) bool

	// Replace substitutes the call. Its result becomes the call's result and
	// the original is never invoked.
	Replace func(args ...any) any

	// After observes the final outcome of the call.
	After func(result any, args []any)
}

// HasHandler reports whether at least one of Before, Replace or After is set.
func (p PatchSpec) HasHandler() bool {
	return p.Before != nil || p.Replace != nil || p.After != nil
}

// Setting documents one configuration key a plugin understands.
// It is informational only and shown by the status API.
type Setting struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// Hook is a lifecycle callback. It blocks until the plugin is ready (or torn
// down) and should honour ctx cancellation.
type Hook func(ctx context.Context, pctx *Context) error

// Descriptor is the immutable description of a plugin.
type Descriptor struct {
	// Name is the unique identity of the plugin.
	Name        string
	Description string
	Version     string
	Authors     []string

	// Patches are installed in order when the plugin starts.
	Patches []PatchSpec

	// CSS is applied while the plugin is active.
	CSS string

	// Settings documents the plugin's configuration keys.
	Settings []Setting

	Start Hook
	Stop  Hook
}

// Clone returns a copy of d that shares no slices with it.
func (d Descriptor) Clone() Descriptor {
	d.Authors = slices.Clone(d.Authors)
	d.Patches = slices.Clone(d.Patches)
	d.Settings = slices.Clone(d.Settings)
	return d
}
