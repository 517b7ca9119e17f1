package theme

import "bridgemod/pkg/plugin"

func init() {
	plugin.MustRegister(New().Descriptor())
}
