package bridge

import (
	"reflect"
	"sync"

	"bridgemod/pkg/plugin"

	"go.uber.org/zap"
)

// slot holds one bridge value plus the one-shot watcher that wraps the first
// value assigned after Install.
type slot[T any] struct {
	value T
	set   bool
	armed bool
}

// install wraps a present value, or arms the watcher when the slot is empty.
func (s *slot[T]) install(wrap func(T) T) (wrapped bool) {
	if s.set {
		s.value = wrap(s.value)
		return true
	}
	s.armed = true
	return false
}

// assign stores v. An armed slot wraps v and disarms; later assignments are
// stored unchanged. Clearing the slot does not consume the watcher.
func (s *slot[T]) assign(v T, present bool, wrap func(T) T) (wrapped bool) {
	if !present {
		var zero T
		s.value = zero
		s.set = false
		return false
	}
	if s.armed {
		v = wrap(v)
		s.armed = false
		wrapped = true
	}
	s.value = v
	s.set = true
	return wrapped
}

// present reports whether v holds a usable bridge. A nil pointer (or other
// nil reference) stored in the interface counts as empty.
func present(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Slots are the two well-known places the host puts its bridge objects.
// After Install, whatever is in a slot (now, or the first value assigned
// later) is the wrapped bridge.
type Slots struct {
	mu        sync.RWMutex
	emitter   Emitter
	logger    *zap.Logger
	installed bool

	hostToClient slot[HostToClient]
	clientToHost slot[ClientToHost]
}

// NewSlots creates empty bridge slots whose wrappers emit into emitter.
func NewSlots(emitter Emitter, logger *zap.Logger) *Slots {
	return &Slots{
		emitter: emitter,
		logger:  logger.Named("bridge"),
	}
}

func (s *Slots) wrapHostToClient(v HostToClient) HostToClient {
	return WrapHostToClient(v, s.emitter)
}

func (s *Slots) wrapClientToHost(v ClientToHost) ClientToHost {
	return WrapClientToHost(v, s.emitter)
}

// Install wraps every bridge already present and arms a watcher on each
// empty slot. Calling it again has no effect.
func (s *Slots) Install() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.installed {
		return
	}
	s.installed = true

	s.logInstall(plugin.HostToClient, s.hostToClient.install(s.wrapHostToClient))
	s.logInstall(plugin.ClientToHost, s.clientToHost.install(s.wrapClientToHost))
}

func (s *Slots) logInstall(b plugin.Bridge, wrapped bool) {
	if wrapped {
		s.logger.Info("Bridge wrapped", zap.Stringer("bridge", b))
		return
	}
	s.logger.Info("Bridge not present yet, watching slot", zap.Stringer("bridge", b))
}

// SetHostToClient assigns the HostToClient slot and reports whether the
// value was wrapped. A nil value, typed or not, clears the slot.
func (s *Slots) SetHostToClient(v HostToClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := present(v)
	wrapped := s.hostToClient.assign(v, ok, s.wrapHostToClient)
	s.logAssign(plugin.HostToClient, ok, wrapped)
	return wrapped
}

// SetClientToHost assigns the ClientToHost slot and reports whether the
// value was wrapped. A nil value, typed or not, clears the slot.
func (s *Slots) SetClientToHost(v ClientToHost) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := present(v)
	wrapped := s.clientToHost.assign(v, ok, s.wrapClientToHost)
	s.logAssign(plugin.ClientToHost, ok, wrapped)
	return wrapped
}

func (s *Slots) logAssign(b plugin.Bridge, present, wrapped bool) {
	switch {
	case !present:
		s.logger.Debug("Bridge slot cleared", zap.Stringer("bridge", b))
	case wrapped:
		s.logger.Info("Late bridge assignment wrapped", zap.Stringer("bridge", b))
	case s.installed:
		// Only the first assignment after Install is wrapped.
		s.logger.Warn("Bridge reassigned, new value is not intercepted", zap.Stringer("bridge", b))
	}
}

// HostToClient returns the value in the HostToClient slot, or nil.
func (s *Slots) HostToClient() HostToClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostToClient.value
}

// ClientToHost returns the value in the ClientToHost slot, or nil.
func (s *Slots) ClientToHost() ClientToHost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientToHost.value
}

// SlotStatus describes one bridge slot.
type SlotStatus struct {
	Bridge  string `json:"bridge"`
	Present bool   `json:"present"`
	Wrapped bool   `json:"wrapped"`
	Armed   bool   `json:"armed"`
}

// Status reports the state of both slots.
func (s *Slots) Status() []SlotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return []SlotStatus{
		{
			Bridge:  plugin.HostToClient.String(),
			Present: s.hostToClient.set,
			Wrapped: IsWrapped(s.hostToClient.value),
			Armed:   s.hostToClient.armed,
		},
		{
			Bridge:  plugin.ClientToHost.String(),
			Present: s.clientToHost.set,
			Wrapped: IsWrapped(s.clientToHost.value),
			Armed:   s.clientToHost.armed,
		},
	}
}
