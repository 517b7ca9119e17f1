package dispatch

import (
	"errors"
	"sync"
	"testing"

	"bridgemod/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

const testKey = "bridge:ClientToHost:SetMute"

// recorder returns a handler that appends name to calls.
func recorder(calls *[]string, name string) Handler {
	return func(ev *plugin.Event) error {
		*calls = append(*calls, name)
		return nil
	}
}

func TestRegistry_DispatchOrder(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var calls []string

	r.Register(testKey, "a", recorder(&calls, "h1"))
	r.Register(testKey, "b", recorder(&calls, "h2"))
	r.Register(testKey, "a", recorder(&calls, "h3"))

	ev := plugin.NewEvent("SetMute", []any{true})
	require.NoError(t, r.Dispatch(testKey, ev))

	assert.Equal(t, []string{"h1", "h2", "h3"}, calls)
	assert.False(t, ev.Cancelled)
}

func TestRegistry_DispatchNoHandlers(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	ev := plugin.NewEvent("SetMute", []any{true})
	require.NoError(t, r.Dispatch("bridge:ClientToHost:Unknown", ev))

	assert.False(t, ev.Cancelled)
	assert.Nil(t, ev.ReturnValue)
	assert.Equal(t, []any{true}, ev.Args)
}

func TestRegistry_CancellationShortCircuits(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var calls []string

	r.Register(testKey, "a", func(ev *plugin.Event) error {
		calls = append(calls, "h1")
		ev.Cancel("vetoed")
		return nil
	})
	r.Register(testKey, "b", recorder(&calls, "h2"))
	r.Register(testKey, "c", recorder(&calls, "h3"))

	ev := plugin.NewEvent("SetMute", []any{true})
	require.NoError(t, r.Dispatch(testKey, ev))

	assert.Equal(t, []string{"h1"}, calls)
	assert.True(t, ev.Cancelled)
	assert.Equal(t, "vetoed", ev.ReturnValue)
}

func TestRegistry_HandlersSeeEarlierMutations(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	r.Register(testKey, "a", func(ev *plugin.Event) error {
		ev.Args[0] = false
		return nil
	})
	var seen any
	r.Register(testKey, "b", func(ev *plugin.Event) error {
		seen = ev.Args[0]
		return nil
	})

	require.NoError(t, r.Dispatch(testKey, plugin.NewEvent("SetMute", []any{true})))
	assert.Equal(t, false, seen)
}

func TestRegistry_UnregisterOwner(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var calls []string
	other := "bridge:HostToClient:OnMessage"

	r.Register(testKey, "a", recorder(&calls, "a1"))
	r.Register(testKey, "b", recorder(&calls, "b1"))
	r.Register(testKey, "c", recorder(&calls, "c1"))
	r.Register(other, "b", recorder(&calls, "b2"))

	assert.Equal(t, 2, r.UnregisterOwner("b"))

	require.NoError(t, r.Dispatch(testKey, plugin.NewEvent("SetMute", nil)))
	assert.Equal(t, []string{"a1", "c1"}, calls)
	assert.Equal(t, []string{"a", "c"}, r.Owners(testKey))

	// The other key lost its only handler and must be gone entirely.
	assert.Equal(t, []string{testKey}, r.Keys())
	assert.Equal(t, 0, r.Len(other))

	assert.Equal(t, 0, r.UnregisterOwner("nobody"))
}

func TestRegistry_EmptyKeysAreDeleted(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	r.Register(testKey, "a", func(*plugin.Event) error { return nil })
	r.Register(testKey, "a", func(*plugin.Event) error { return nil })
	require.Len(t, r.Keys(), 1)

	r.UnregisterOwner("a")

	assert.Empty(t, r.Keys())
	assert.Empty(t, r.Entries())
}

func TestRegistry_HandlerErrorPropagates(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	boom := errors.New("boom")
	var calls []string

	r.Register(testKey, "a", recorder(&calls, "h1"))
	r.Register(testKey, "bad", func(*plugin.Event) error { return boom })
	r.Register(testKey, "c", recorder(&calls, "h3"))

	err := r.Dispatch(testKey, plugin.NewEvent("SetMute", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "bad", herr.Owner)
	assert.Equal(t, testKey, herr.Key)
	assert.Equal(t, []string{"h1"}, calls)

	// A retry dispatches the whole chain again.
	calls = nil
	_ = r.Dispatch(testKey, plugin.NewEvent("SetMute", nil))
	assert.Equal(t, []string{"h1"}, calls)
}

func TestRegistry_PanicIsRecovered(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(testKey, "bad", func(*plugin.Event) error { panic("kaboom") })

	var err error
	assert.NotPanics(t, func() {
		err = r.Dispatch(testKey, plugin.NewEvent("SetMute", nil))
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRegistry_IsolatePolicy(t *testing.T) {
	r := NewRegistry(zap.NewNop(), WithFailurePolicy(FailureIsolate))
	var calls []string

	r.Register(testKey, "bad", func(*plugin.Event) error { return errors.New("boom") })
	r.Register(testKey, "panics", func(*plugin.Event) error { panic("kaboom") })
	r.Register(testKey, "good", recorder(&calls, "good"))

	require.NoError(t, r.Dispatch(testKey, plugin.NewEvent("SetMute", nil)))
	assert.Equal(t, []string{"good"}, calls)
}

func TestRegistry_CompleteRecoversObservers(t *testing.T) {
	queue := func(fn func(any, []any)) Handler {
		return func(ev *plugin.Event) error {
			ev.OnComplete(fn)
			return nil
		}
	}

	var seen []any
	setup := func(opts ...Option) (*Registry, string) {
		seen = nil
		r := NewRegistry(zap.NewNop(), opts...)
		id := r.Register(testKey, "bad", queue(func(any, []any) { panic("kaboom") }))
		r.Register(testKey, "good", queue(func(result any, _ []any) { seen = append(seen, result) }))
		return r, id
	}

	t.Run("propagate", func(t *testing.T) {
		r, id := setup()
		ev := plugin.NewEvent("SetMute", []any{true})
		require.NoError(t, r.Dispatch(testKey, ev))

		var err error
		require.NotPanics(t, func() { err = r.Complete(testKey, ev, true) })
		require.ErrorIs(t, err, ErrHandlerPanic)

		var herr *HandlerError
		require.ErrorAs(t, err, &herr)
		assert.Equal(t, "bad", herr.Owner)
		assert.Equal(t, id, herr.ID)
		assert.Empty(t, seen)
	})

	t.Run("isolate", func(t *testing.T) {
		r, _ := setup(WithFailurePolicy(FailureIsolate))
		ev := plugin.NewEvent("SetMute", []any{true})
		require.NoError(t, r.Dispatch(testKey, ev))

		require.NotPanics(t, func() { require.NoError(t, r.Complete(testKey, ev, true)) })
		assert.Equal(t, []any{true}, seen)

		require.NoError(t, r.Complete(testKey, ev, false), "observers run once")
		assert.Len(t, seen, 1)
	})
}

func TestRegistry_MutationDuringDispatchAffectsNextDispatch(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var calls []string

	r.Register(testKey, "a", func(ev *plugin.Event) error {
		calls = append(calls, "a")
		// Stop another plugin in the middle of the chain.
		r.UnregisterOwner("b")
		return nil
	})
	r.Register(testKey, "b", recorder(&calls, "b"))

	require.NoError(t, r.Dispatch(testKey, plugin.NewEvent("SetMute", nil)))
	assert.Equal(t, []string{"a", "b"}, calls)

	calls = nil
	require.NoError(t, r.Dispatch(testKey, plugin.NewEvent("SetMute", nil)))
	assert.Equal(t, []string{"a"}, calls)
}

func TestRegistry_Entries(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	id1 := r.Register("k2", "a", func(*plugin.Event) error { return nil })
	id2 := r.Register("k1", "b", func(*plugin.Event) error { return nil })
	assert.NotEqual(t, id1, id2)

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ID: id2, Key: "k1", Owner: "b"}, entries[0])
	assert.Equal(t, Entry{ID: id1, Key: "k2", Owner: "a"}, entries[1])
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		owner := string(rune('a' + i))
		go func() {
			defer wg.Done()
			r.Register(testKey, owner, func(*plugin.Event) error { return nil })
			r.UnregisterOwner(owner)
		}()
		go func() {
			defer wg.Done()
			_ = r.Dispatch(testKey, plugin.NewEvent("SetMute", nil))
		}()
	}
	wg.Wait()

	assert.Empty(t, r.Keys())
}

// After removing any owner, the remaining handlers keep their relative order
// and no key is left with an empty chain.
func TestRegistry_UnregisterOwnerProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry(zap.NewNop())
		owners := []string{"a", "b", "c", "d"}
		keys := []string{"k1", "k2", "k3"}

		n := rapid.IntRange(0, 30).Draw(t, "n")
		expected := make(map[string][]string)
		for i := 0; i < n; i++ {
			owner := rapid.SampledFrom(owners).Draw(t, "owner")
			key := rapid.SampledFrom(keys).Draw(t, "key")
			r.Register(key, owner, func(*plugin.Event) error { return nil })
			expected[key] = append(expected[key], owner)
		}

		victim := rapid.SampledFrom(owners).Draw(t, "victim")
		removed := r.UnregisterOwner(victim)

		wantRemoved := 0
		for key, chain := range expected {
			kept := chain[:0:0]
			for _, owner := range chain {
				if owner == victim {
					wantRemoved++
					continue
				}
				kept = append(kept, owner)
			}
			if len(kept) == 0 {
				delete(expected, key)
			} else {
				expected[key] = kept
			}
		}

		if removed != wantRemoved {
			t.Fatalf("removed %d handlers, want %d", removed, wantRemoved)
		}
		if len(r.Keys()) != len(expected) {
			t.Fatalf("have keys %v, want %d keys", r.Keys(), len(expected))
		}
		for key, chain := range expected {
			got := r.Owners(key)
			if len(got) != len(chain) {
				t.Fatalf("key %s: owners %v, want %v", key, got, chain)
			}
			for i := range chain {
				if got[i] != chain[i] {
					t.Fatalf("key %s: owners %v, want %v", key, got, chain)
				}
			}
		}
	})
}
