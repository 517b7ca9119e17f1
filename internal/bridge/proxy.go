package bridge

import (
	"fmt"

	"bridgemod/pkg/plugin"
)

type clientToHostProxy struct {
	target  ClientToHost
	emitter Emitter
}

// WrapClientToHost returns a ClientToHost whose calls are dispatched through
// emitter first. nil stays nil and an already wrapped value is returned as is.
func WrapClientToHost(target ClientToHost, emitter Emitter) ClientToHost {
	if target == nil {
		return nil
	}
	if p, ok := target.(*clientToHostProxy); ok {
		return p
	}
	return &clientToHostProxy{target: target, emitter: emitter}
}

// Unwrap returns the wrapped bridge.
func (p *clientToHostProxy) Unwrap() ClientToHost {
	return p.target
}

func (p *clientToHostProxy) SetMute(muted bool) (bool, error) {
	return call(p.emitter, plugin.ClientToHost, plugin.MethodSetMute, []any{muted},
		func(args []any) (bool, error) {
			m, err := arg[bool](args, 0)
			if err != nil {
				return false, err
			}
			return p.target.SetMute(m)
		})
}

func (p *clientToHostProxy) SetDeafen(deafened bool) (bool, error) {
	return call(p.emitter, plugin.ClientToHost, plugin.MethodSetDeafen, []any{deafened},
		func(args []any) (bool, error) {
			d, err := arg[bool](args, 0)
			if err != nil {
				return false, err
			}
			return p.target.SetDeafen(d)
		})
}

func (p *clientToHostProxy) SendMessage(channelID, text string) (string, error) {
	return call(p.emitter, plugin.ClientToHost, plugin.MethodSendMessage, []any{channelID, text},
		func(args []any) (string, error) {
			ch, err := arg[string](args, 0)
			if err != nil {
				return "", err
			}
			t, err := arg[string](args, 1)
			if err != nil {
				return "", err
			}
			return p.target.SendMessage(ch, t)
		})
}

func (p *clientToHostProxy) OpenURL(url string) (bool, error) {
	return call(p.emitter, plugin.ClientToHost, plugin.MethodOpenURL, []any{url},
		func(args []any) (bool, error) {
			u, err := arg[string](args, 0)
			if err != nil {
				return false, err
			}
			return p.target.OpenURL(u)
		})
}

func (p *clientToHostProxy) GetVersion() (string, error) {
	return call(p.emitter, plugin.ClientToHost, plugin.MethodGetVersion, []any{},
		func([]any) (string, error) {
			return p.target.GetVersion()
		})
}

type hostToClientProxy struct {
	target  HostToClient
	emitter Emitter
}

// WrapHostToClient returns a HostToClient whose calls are dispatched through
// emitter first. nil stays nil and an already wrapped value is returned as is.
func WrapHostToClient(target HostToClient, emitter Emitter) HostToClient {
	if target == nil {
		return nil
	}
	if p, ok := target.(*hostToClientProxy); ok {
		return p
	}
	return &hostToClientProxy{target: target, emitter: emitter}
}

// Unwrap returns the wrapped bridge.
func (p *hostToClientProxy) Unwrap() HostToClient {
	return p.target
}

func (p *hostToClientProxy) OnMessage(channelID, author, text string) (bool, error) {
	return call(p.emitter, plugin.HostToClient, plugin.MethodOnMessage, []any{channelID, author, text},
		func(args []any) (bool, error) {
			ch, err := arg[string](args, 0)
			if err != nil {
				return false, err
			}
			a, err := arg[string](args, 1)
			if err != nil {
				return false, err
			}
			t, err := arg[string](args, 2)
			if err != nil {
				return false, err
			}
			return p.target.OnMessage(ch, a, t)
		})
}

func (p *hostToClientProxy) OnVoiceState(userID string, speaking bool) (bool, error) {
	return call(p.emitter, plugin.HostToClient, plugin.MethodOnVoiceState, []any{userID, speaking},
		func(args []any) (bool, error) {
			u, err := arg[string](args, 0)
			if err != nil {
				return false, err
			}
			s, err := arg[bool](args, 1)
			if err != nil {
				return false, err
			}
			return p.target.OnVoiceState(u, s)
		})
}

func (p *hostToClientProxy) OnNotification(title, body string) (bool, error) {
	return call(p.emitter, plugin.HostToClient, plugin.MethodOnNotification, []any{title, body},
		func(args []any) (bool, error) {
			t, err := arg[string](args, 0)
			if err != nil {
				return false, err
			}
			b, err := arg[string](args, 1)
			if err != nil {
				return false, err
			}
			return p.target.OnNotification(t, b)
		})
}

func (p *hostToClientProxy) OnConnectionState(state string) (bool, error) {
	return call(p.emitter, plugin.HostToClient, plugin.MethodOnConnectionState, []any{state},
		func(args []any) (bool, error) {
			s, err := arg[string](args, 0)
			if err != nil {
				return false, err
			}
			return p.target.OnConnectionState(s)
		})
}

// IsWrapped reports whether v is a bridge proxy built by this package.
func IsWrapped(v any) bool {
	switch v.(type) {
	case *clientToHostProxy, *hostToClientProxy:
		return true
	default:
		return false
	}
}

// InvokeHostToClient calls a HostToClient method by name with loosely typed
// arguments, as they arrive off the wire.
func InvokeHostToClient(b HostToClient, method string, args []any) (any, error) {
	str := func(i int) (string, error) { return arg[string](args, i) }

	switch method {
	case plugin.MethodOnMessage:
		ch, err := str(0)
		if err != nil {
			return nil, err
		}
		a, err := str(1)
		if err != nil {
			return nil, err
		}
		t, err := str(2)
		if err != nil {
			return nil, err
		}
		return b.OnMessage(ch, a, t)
	case plugin.MethodOnVoiceState:
		u, err := str(0)
		if err != nil {
			return nil, err
		}
		s, err := arg[bool](args, 1)
		if err != nil {
			return nil, err
		}
		return b.OnVoiceState(u, s)
	case plugin.MethodOnNotification:
		t, err := str(0)
		if err != nil {
			return nil, err
		}
		body, err := str(1)
		if err != nil {
			return nil, err
		}
		return b.OnNotification(t, body)
	case plugin.MethodOnConnectionState:
		s, err := str(0)
		if err != nil {
			return nil, err
		}
		return b.OnConnectionState(s)
	default:
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, plugin.HostToClient, method)
	}
}
