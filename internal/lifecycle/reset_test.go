package lifecycle

import (
	"context"
	"errors"
	"testing"

	"bridgemod/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Reset(t *testing.T) {
	m, reg, _ := newTestManager()
	ctx := context.Background()

	var calls []string
	starts := map[string]int{}
	counting := func(name string, fail bool) plugin.Descriptor {
		d := observer(name, &calls)
		d.Start = func(context.Context, *plugin.Context) error {
			starts[name]++
			if fail && starts[name] > 1 {
				return errors.New("cannot restart")
			}
			return nil
		}
		return d
	}

	require.NoError(t, m.RegisterAll([]plugin.Descriptor{
		counting("a", false),
		counting("b", true),
		counting("c", false),
		counting("idle", false),
	}))
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, m.Start(ctx, name))
	}

	result, err := m.Reset(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset b")
	assert.Equal(t, []string{"c", "a"}, result.Restarted)
	assert.Equal(t, []string{"b"}, result.Failed)

	assert.Equal(t, 2, starts["a"])
	assert.Equal(t, 2, starts["c"])
	assert.Zero(t, starts["idle"])
	assert.Equal(t, StateRegistered, m.State("b"))
	assert.Equal(t, []string{"c", "a"}, m.Active())
	assert.Equal(t, 2, reg.Len(muteKey))

	calls = nil
	emitMute(t, m, true)
	assert.Equal(t, []string{"c", "a"}, calls)
}

func TestManager_ResetNothingActive(t *testing.T) {
	m, _, _ := newTestManager()

	result, err := m.Reset(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Restarted)
	assert.Empty(t, result.Failed)
}

func TestManager_ResetStopFailureStillRestarts(t *testing.T) {
	m, reg, _ := newTestManager()
	ctx := context.Background()

	var calls []string
	desc := observer("sticky", &calls)
	desc.Stop = func(context.Context, *plugin.Context) error { return errors.New("teardown failed") }
	require.NoError(t, m.Register(desc))
	require.NoError(t, m.Start(ctx, "sticky"))

	result, err := m.Reset(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teardown failed")
	assert.Equal(t, []string{"sticky"}, result.Restarted)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"sticky"}, result.StopFailed)

	assert.True(t, m.IsActive("sticky"))
	assert.Equal(t, 1, reg.Len(muteKey))
}
