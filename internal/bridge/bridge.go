// Package bridge wraps the two host bridges so every call is dispatched to
// plugin handlers before the real method may run, and binds the wrappers to
// the bridge slots even when the host fills them in late.
package bridge

import (
	"errors"
	"fmt"

	"bridgemod/pkg/plugin"
)

var (
	// ErrArgType is returned when a handler replaced a call argument with a
	// value of the wrong type.
	ErrArgType = errors.New("argument has wrong type")

	// ErrReturnType is returned when a handler cancelled a call with a return
	// value of the wrong type.
	ErrReturnType = errors.New("return value has wrong type")

	// ErrUnknownMethod is returned when invoking a method outside a bridge's
	// method set.
	ErrUnknownMethod = errors.New("unknown bridge method")
)

// ClientToHost is the bridge the client layer uses to call into the host.
// Boolean results report whether the host applied the call.
type ClientToHost interface {
	SetMute(muted bool) (bool, error)
	SetDeafen(deafened bool) (bool, error)
	SendMessage(channelID, text string) (string, error)
	OpenURL(url string) (bool, error)
	GetVersion() (string, error)
}

// HostToClient is the bridge the host uses to deliver events to the client.
// Boolean results report whether the client handled the event.
type HostToClient interface {
	OnMessage(channelID, author, text string) (bool, error)
	OnVoiceState(userID string, speaking bool) (bool, error)
	OnNotification(title, body string) (bool, error)
	OnConnectionState(state string) (bool, error)
}

// Emitter dispatches an intercepted call to the installed handlers and
// later runs the completion observers those handlers queued.
type Emitter interface {
	Emit(b plugin.Bridge, ev *plugin.Event) error
	Complete(b plugin.Bridge, ev *plugin.Event, result any) error
}

// call is the trampoline shared by every wrapped method. It emits a fresh
// event, then either returns the handlers' substitute result or runs the
// original with the (possibly rewritten) arguments. Completion observers see
// the final result unless the original failed.
func call[T any](e Emitter, b plugin.Bridge, method string, args []any, original func(args []any) (T, error)) (T, error) {
	var zero T

	ev := plugin.NewEvent(method, args)
	if err := e.Emit(b, ev); err != nil {
		return zero, fmt.Errorf("%s.%s: %w", b, method, err)
	}

	var result T
	if ev.Cancelled {
		r, err := as[T](ev.ReturnValue)
		if err != nil {
			return zero, fmt.Errorf("%s.%s: %w", b, method, err)
		}
		result = r
	} else {
		r, err := original(ev.Args)
		if err != nil {
			if errors.Is(err, ErrArgType) {
				return zero, fmt.Errorf("%s.%s: %w", b, method, err)
			}
			return r, err
		}
		result = r
	}

	if err := e.Complete(b, ev, result); err != nil {
		return zero, fmt.Errorf("%s.%s: %w", b, method, err)
	}
	return result, nil
}

// as converts a cancelled call's return value. nil becomes the zero value.
func as[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrReturnType, v, zero)
	}
	return t, nil
}

// arg extracts argument i as a T.
func arg[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("%w: argument %d missing", ErrArgType, i)
	}
	t, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d is %T, want %T", ErrArgType, i, args[i], zero)
	}
	return t, nil
}
