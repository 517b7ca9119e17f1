package messagelog

import (
	"bridgemod/internal/clock"
	"bridgemod/pkg/plugin"
)

// Default is the registered instance; the status API reads its history.
var Default = New(clock.NewReal())

func init() {
	plugin.MustRegister(Default.Descriptor())
}
