package bridge

import (
	"testing"

	"bridgemod/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingEmitter counts emitted events per method.
type countingEmitter struct {
	emitted map[string]int
}

func newCountingEmitter() *countingEmitter {
	return &countingEmitter{emitted: make(map[string]int)}
}

func (c *countingEmitter) Emit(b plugin.Bridge, ev *plugin.Event) error {
	c.emitted[b.EventKey(ev.Method)]++
	return nil
}

func (c *countingEmitter) Complete(plugin.Bridge, *plugin.Event, any) error {
	return nil
}

func TestSlots_InstallWrapsPresentValue(t *testing.T) {
	emitter := newCountingEmitter()
	slots := NewSlots(emitter, zap.NewNop())
	host := &fakeHost{}

	assert.False(t, slots.SetClientToHost(host), "nothing is wrapped before Install")
	assert.Same(t, host, slots.ClientToHost())

	slots.Install()

	c2h := slots.ClientToHost()
	assert.True(t, IsWrapped(c2h))
	_, err := c2h.SetMute(true)
	require.NoError(t, err)
	assert.Equal(t, 1, emitter.emitted["bridge:ClientToHost:SetMute"])
	assert.Equal(t, []string{"SetMute"}, host.calls)
}

func TestSlots_LateBindingExactlyOnce(t *testing.T) {
	emitter := newCountingEmitter()
	slots := NewSlots(emitter, zap.NewNop())
	slots.Install()

	assert.Nil(t, slots.HostToClient())

	first := &fakeClient{}
	assert.True(t, slots.SetHostToClient(first))

	h2c := slots.HostToClient()
	require.True(t, IsWrapped(h2c))
	_, err := h2c.OnMessage("general", "ada", "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, emitter.emitted["bridge:HostToClient:OnMessage"])
	assert.Equal(t, []string{"OnMessage"}, first.calls)

	// A second assignment is stored as is and bypasses interception.
	second := &fakeClient{}
	assert.False(t, slots.SetHostToClient(second))
	assert.Same(t, second, slots.HostToClient())

	_, err = slots.HostToClient().OnMessage("general", "ada", "again")
	require.NoError(t, err)
	assert.Equal(t, 1, emitter.emitted["bridge:HostToClient:OnMessage"])
	assert.Equal(t, []string{"OnMessage"}, second.calls)
}

func TestSlots_ClearingKeepsWatcherArmed(t *testing.T) {
	slots := NewSlots(newCountingEmitter(), zap.NewNop())
	slots.Install()

	assert.False(t, slots.SetClientToHost(nil))
	assert.Nil(t, slots.ClientToHost())

	assert.True(t, slots.SetClientToHost(&fakeHost{}))
	assert.True(t, IsWrapped(slots.ClientToHost()))
}

func TestSlots_TypedNilClearsSlot(t *testing.T) {
	slots := NewSlots(newCountingEmitter(), zap.NewNop())
	slots.Install()

	var host *fakeHost
	assert.False(t, slots.SetClientToHost(host))
	assert.Nil(t, slots.ClientToHost())

	var client *fakeClient
	assert.False(t, slots.SetHostToClient(client))
	assert.Nil(t, slots.HostToClient())

	for _, status := range slots.Status() {
		assert.False(t, status.Present, status.Bridge)
		assert.True(t, status.Armed, status.Bridge)
	}

	// The watcher is still armed for the first real value.
	assert.True(t, slots.SetClientToHost(&fakeHost{}))
	assert.True(t, IsWrapped(slots.ClientToHost()))
}

func TestSlots_InstallIdempotent(t *testing.T) {
	slots := NewSlots(newCountingEmitter(), zap.NewNop())
	slots.Install()

	assert.True(t, slots.SetClientToHost(&fakeHost{}))
	slots.Install()

	// The watcher was consumed and a second Install does not re-arm it.
	assert.False(t, slots.SetClientToHost(&fakeHost{}))
}

func TestSlots_Status(t *testing.T) {
	slots := NewSlots(newCountingEmitter(), zap.NewNop())
	slots.SetClientToHost(&fakeHost{})
	slots.Install()

	status := slots.Status()
	require.Len(t, status, 2)

	assert.Equal(t, SlotStatus{Bridge: "HostToClient", Present: false, Wrapped: false, Armed: true}, status[0])
	assert.Equal(t, SlotStatus{Bridge: "ClientToHost", Present: true, Wrapped: true, Armed: false}, status[1])
}
