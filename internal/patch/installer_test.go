package patch

import (
	"testing"

	"bridgemod/internal/dispatch"
	"bridgemod/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInstaller() (*Installer, *dispatch.Registry) {
	logger := zap.NewNop()
	reg := dispatch.NewRegistry(logger)
	return NewInstaller(reg, logger), reg
}

// run dispatches one call and completes it the way the bridge wrapper does.
func run(t *testing.T, reg *dispatch.Registry, b plugin.Bridge, method string, original any, args ...any) (*plugin.Event, any) {
	t.Helper()
	ev := plugin.NewEvent(method, args)
	require.NoError(t, reg.Dispatch(b.EventKey(method), ev))

	result := original
	if ev.Cancelled {
		result = ev.ReturnValue
	}
	ev.Complete(result)
	return ev, result
}

func TestInstaller_InstallValidates(t *testing.T) {
	inst, reg := newInstaller()

	tests := []struct {
		name string
		spec plugin.PatchSpec
	}{
		{"unknown bridge", plugin.PatchSpec{Bridge: plugin.Bridge(9), Method: plugin.MethodSetMute, Before: func([]any) bool { return true }}},
		{"wrong method", plugin.PatchSpec{Bridge: plugin.HostToClient, Method: plugin.MethodSetMute, Before: func([]any) bool { return true }}},
		{"no handler", plugin.PatchSpec{Bridge: plugin.ClientToHost, Method: plugin.MethodSetMute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inst.Install("p", tt.spec)
			assert.ErrorIs(t, err, plugin.ErrInvalidPatch)
		})
	}
	assert.Empty(t, reg.Keys())
}

func TestInstaller_InstallResolvesKey(t *testing.T) {
	inst, reg := newInstaller()

	id, err := inst.Install("p", plugin.PatchSpec{
		Bridge: plugin.HostToClient,
		Method: plugin.MethodOnMessage,
		After:  func(any, []any) {},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"bridge:HostToClient:OnMessage"}, reg.Keys())
}

func TestInstaller_NoDeduplication(t *testing.T) {
	inst, reg := newInstaller()
	spec := plugin.PatchSpec{Bridge: plugin.ClientToHost, Method: plugin.MethodSetMute, After: func(any, []any) {}}

	_, err := inst.Install("p", spec)
	require.NoError(t, err)
	_, err = inst.Install("p", spec)
	require.NoError(t, err)

	key := plugin.ClientToHost.EventKey(plugin.MethodSetMute)
	assert.Equal(t, 2, reg.Len(key))

	assert.Equal(t, 2, inst.UninstallOwner("p"))
	assert.Empty(t, reg.Keys())
}

func TestHandler_BeforeVetoSkipsAfter(t *testing.T) {
	inst, reg := newInstaller()
	afterCalled := false

	_, err := inst.Install("p", plugin.PatchSpec{
		Bridge: plugin.ClientToHost,
		Method: plugin.MethodSetMute,
		Before: func(args []any) bool { return args[0] != true },
		After:  func(any, []any) { afterCalled = true },
	})
	require.NoError(t, err)

	ev, result := run(t, reg, plugin.ClientToHost, plugin.MethodSetMute, true, true)
	assert.True(t, ev.Cancelled)
	assert.Nil(t, result)
	assert.False(t, afterCalled)

	ev, result = run(t, reg, plugin.ClientToHost, plugin.MethodSetMute, true, false)
	assert.False(t, ev.Cancelled)
	assert.Equal(t, true, result)
	assert.True(t, afterCalled)
}

func TestHandler_ReplaceStillRunsAfter(t *testing.T) {
	inst, reg := newInstaller()
	var recorded any

	_, err := inst.Install("p", plugin.PatchSpec{
		Bridge:  plugin.ClientToHost,
		Method:  plugin.MethodGetVersion,
		Replace: func(...any) any { return 42 },
		After:   func(result any, _ []any) { recorded = result },
	})
	require.NoError(t, err)

	ev, result := run(t, reg, plugin.ClientToHost, plugin.MethodGetVersion, "original")
	assert.True(t, ev.Cancelled)
	assert.Equal(t, 42, result)
	assert.Equal(t, 42, recorded)
}

func TestHandler_BeforeCanRewriteArgs(t *testing.T) {
	inst, reg := newInstaller()

	_, err := inst.Install("p", plugin.PatchSpec{
		Bridge: plugin.ClientToHost,
		Method: plugin.MethodSendMessage,
		Before: func(args []any) bool {
			args[1] = "[redacted]"
			return true
		},
	})
	require.NoError(t, err)

	ev, _ := run(t, reg, plugin.ClientToHost, plugin.MethodSendMessage, "id", "general", "secret")
	assert.False(t, ev.Cancelled)
	assert.Equal(t, []any{"general", "[redacted]"}, ev.Args)
}

func TestHandler_ReplaceReceivesArgs(t *testing.T) {
	inst, reg := newInstaller()

	_, err := inst.Install("p", plugin.PatchSpec{
		Bridge:  plugin.ClientToHost,
		Method:  plugin.MethodSetDeafen,
		Replace: func(args ...any) any { return !args[0].(bool) },
	})
	require.NoError(t, err)

	_, result := run(t, reg, plugin.ClientToHost, plugin.MethodSetDeafen, true, true)
	assert.Equal(t, false, result)
}

func TestHandler_LaterVetoStillCompletesEarlierAfter(t *testing.T) {
	inst, reg := newInstaller()
	var observed []any

	_, err := inst.Install("observer", plugin.PatchSpec{
		Bridge: plugin.ClientToHost,
		Method: plugin.MethodOpenURL,
		After:  func(result any, _ []any) { observed = append(observed, result) },
	})
	require.NoError(t, err)
	_, err = inst.Install("guard", plugin.PatchSpec{
		Bridge: plugin.ClientToHost,
		Method: plugin.MethodOpenURL,
		Before: func([]any) bool { return false },
	})
	require.NoError(t, err)

	ev, _ := run(t, reg, plugin.ClientToHost, plugin.MethodOpenURL, true, "file:///etc/passwd")
	assert.True(t, ev.Cancelled)
	assert.Equal(t, []any{nil}, observed)
}
