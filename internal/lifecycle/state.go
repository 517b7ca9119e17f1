package lifecycle

import "fmt"

// State is the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUnregistered - no descriptor with this name is known.
	StateUnregistered State = iota

	// StateRegistered - the descriptor is known but the plugin is not running.
	StateRegistered

	// StateStarting - patches are being installed and the start hook is running.
	StateStarting

	// StateActive - the plugin is running and its handlers are installed.
	StateActive

	// StateStopping - the stop hook is running and handlers are being retracted.
	StateStopping
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// MarshalText lets states appear by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateUnregistered; st <= StateStopping; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown plugin state %q", text)
}
