package mutelock

import (
	"bridgemod/internal/clock"
	"bridgemod/pkg/plugin"
)

// Default is the registered instance; the status API locks and unlocks it.
var Default = New(clock.NewReal())

func init() {
	plugin.MustRegister(Default.Descriptor())
}
