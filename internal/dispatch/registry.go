// Package dispatch holds the ordered handler chains that intercepted bridge
// calls are run through. Handlers are keyed by event key and tagged with the
// name of the plugin that owns them so a plugin's handlers can be retracted
// in one step.
package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"bridgemod/pkg/plugin"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrHandlerPanic marks a handler that panicked during dispatch.
var ErrHandlerPanic = errors.New("handler panicked")

// Handler processes one intercepted call. Returning an error aborts the
// chain unless the registry isolates handler failures.
type Handler func(ev *plugin.Event) error

// FailurePolicy decides what a failing handler does to the rest of the chain.
type FailurePolicy int

const (
	// FailurePropagate stops the chain and returns the error to the caller.
	FailurePropagate FailurePolicy = iota

	// FailureIsolate logs the error and continues with the next handler.
	FailureIsolate
)

// HandlerError reports which handler failed.
type HandlerError struct {
	Key   string
	Owner string
	ID    string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s of plugin %s failed on %s: %v", e.ID, e.Owner, e.Key, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Entry describes an installed handler.
type Entry struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Owner string `json:"owner"`
}

// registration associates a handler with its key and owning plugin.
type registration struct {
	id      string
	key     string
	owner   string
	handler Handler
}

// Option configures a Registry.
type Option func(*Registry)

// WithFailurePolicy sets how handler failures are treated.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// Registry maps event keys to ordered handler chains.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	policy   FailurePolicy
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[string][]registration),
		policy:   FailurePropagate,
		logger:   logger.Named("dispatch"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends handler to the chain for key and returns its registration ID.
func (r *Registry) Register(key, owner string, handler Handler) string {
	reg := registration{
		id:      uuid.NewString(),
		key:     key,
		owner:   owner,
		handler: handler,
	}

	r.mu.Lock()
	r.handlers[key] = append(r.handlers[key], reg)
	r.mu.Unlock()

	r.logger.Debug("Handler registered",
		zap.String("key", key),
		zap.String("owner", owner),
		zap.String("id", reg.id))

	return reg.id
}

// UnregisterOwner removes every handler owned by owner and returns how many
// were removed. Keys left without handlers are deleted.
func (r *Registry) UnregisterOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, chain := range r.handlers {
		// Build a fresh slice: in-flight dispatches may still hold the old one.
		kept := make([]registration, 0, len(chain))
		for _, reg := range chain {
			if reg.owner == owner {
				removed++
				continue
			}
			kept = append(kept, reg)
		}

		if len(kept) == 0 {
			delete(r.handlers, key)
		} else if len(kept) != len(chain) {
			r.handlers[key] = kept
		}
	}

	if removed > 0 {
		r.logger.Debug("Handlers unregistered",
			zap.String("owner", owner),
			zap.Int("count", removed))
	}

	return removed
}

// Dispatch runs the chain for key against ev in registration order and stops
// as soon as a handler cancels the event. Handlers registered or removed while
// a dispatch is running only affect later dispatches.
func (r *Registry) Dispatch(key string, ev *plugin.Event) error {
	r.mu.RLock()
	chain := r.handlers[key]
	r.mu.RUnlock()

	for _, reg := range chain {
		if err := r.invoke(reg, ev); err != nil {
			if r.policy != FailureIsolate {
				return err
			}
			r.logger.Error("Handler failed, continuing chain",
				zap.String("key", key),
				zap.String("owner", reg.owner),
				zap.Error(err))
		}
		if ev.Cancelled {
			break
		}
	}
	return nil
}

// invoke runs one handler, turning a panic into a HandlerError.
func (r *Registry) invoke(reg registration, ev *plugin.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{
				Key:   reg.key,
				Owner: reg.owner,
				ID:    reg.id,
				Err:   fmt.Errorf("%w: %v", ErrHandlerPanic, p),
			}
		}
	}()

	ev.Attribute(reg.owner, reg.id)
	defer ev.Attribute("", "")

	if herr := reg.handler(ev); herr != nil {
		return &HandlerError{Key: reg.key, Owner: reg.owner, ID: reg.id, Err: herr}
	}
	return nil
}

// Complete runs the completion observers queued on ev during Dispatch with
// the call's result. A panicking observer becomes a HandlerError and is
// treated under the registry's failure policy like a failing handler.
func (r *Registry) Complete(key string, ev *plugin.Event, result any) error {
	for _, obs := range ev.TakeObservers() {
		if err := r.observe(key, obs, ev, result); err != nil {
			if r.policy != FailureIsolate {
				return err
			}
			r.logger.Error("Completion observer failed, continuing",
				zap.String("key", key),
				zap.String("owner", obs.Owner),
				zap.Error(err))
		}
	}
	return nil
}

func (r *Registry) observe(key string, obs plugin.Observer, ev *plugin.Event, result any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{
				Key:   key,
				Owner: obs.Owner,
				ID:    obs.HandlerID,
				Err:   fmt.Errorf("%w: %v", ErrHandlerPanic, p),
			}
		}
	}()
	obs.Fn(result, ev.Args)
	return nil
}

// Keys returns the keys that currently have handlers, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.handlers))
	for key := range r.handlers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of handlers installed for key.
func (r *Registry) Len(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[key])
}

// Owners returns the owner of each handler for key, in chain order.
func (r *Registry) Owners(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.handlers[key]
	owners := make([]string, len(chain))
	for i, reg := range chain {
		owners[i] = reg.owner
	}
	return owners
}

// Entries lists all installed handlers, sorted by key and then chain order.
func (r *Registry) Entries() []Entry {
	keys := r.Keys()

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0)
	for _, key := range keys {
		for _, reg := range r.handlers[key] {
			entries = append(entries, Entry{ID: reg.id, Key: key, Owner: reg.owner})
		}
	}
	return entries
}
