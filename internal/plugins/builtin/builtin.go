// Package builtin links every built-in plugin into the binary. Importing it
// for side effects fills the global plugin catalog.
package builtin

import (
	_ "bridgemod/internal/plugins/dnd"
	_ "bridgemod/internal/plugins/linkguard"
	_ "bridgemod/internal/plugins/messagelog"
	_ "bridgemod/internal/plugins/mutelock"
	_ "bridgemod/internal/plugins/theme"
)
