package main

import (
	"fmt"
	"os"

	_ "bridgemod/internal/plugins/builtin"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	debug   bool
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bridgemod",
		Short: "Plugin framework that intercepts calls between a client and its native host",
		Long: `bridgemod loads plugins that observe, rewrite, veto or replace calls on the
two bridges between a client and its native host:

  HostToClient   events the host delivers to the client
  ClientToHost   requests the client makes of the host

Plugins are enabled and configured in a YAML settings file.

Environment Variables:
  BRIDGEMOD_HOST_URL          Websocket URL of the host (empty runs without a host)
  BRIDGEMOD_HOST_TOKEN        Token sent in the hello handshake
  BRIDGEMOD_SETTINGS          Settings file (default: settings.yaml)
  BRIDGEMOD_API_PORT          Status API port (default: 8080)
  BRIDGEMOD_HOOK_TIMEOUT      Bound on each plugin start/stop hook, e.g. 5s
  BRIDGEMOD_ISOLATE_HANDLERS  Keep running the handler chain after a failure`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", envFile, err)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable development logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")

	rootCmd.AddCommand(newRunCmd(), newPluginsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
