package linkguard

import "bridgemod/pkg/plugin"

func init() {
	plugin.MustRegister(New().Descriptor())
}
