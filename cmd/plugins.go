package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"bridgemod/internal/config"
	"bridgemod/pkg/plugin"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPluginsCmd() *cobra.Command {
	var settingsPath string

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List built-in plugins and whether the settings enable them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if settingsPath == "" {
				cfg, err := config.FromEnv()
				if err != nil {
					return err
				}
				settingsPath = cfg.SettingsPath
			}

			loader := config.NewLoader(settingsPath, zap.NewNop())
			if err := loader.LoadSettings(); err != nil {
				return err
			}
			settings := loader.GetSettings()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tENABLED\tPATCHES\tDESCRIPTION")
			for _, d := range plugin.List() {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
					d.Name, d.Version, settings.Enabled(d.Name), patchSummary(d), d.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&settingsPath, "settings", "s", "", "Settings file (default from BRIDGEMOD_SETTINGS)")
	return cmd
}

func patchSummary(d plugin.Descriptor) string {
	if len(d.Patches) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(d.Patches))
	for _, p := range d.Patches {
		parts = append(parts, p.Bridge.String()+"."+p.Method)
	}
	return strings.Join(parts, ",")
}
