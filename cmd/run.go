package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bridgemod/internal/api"
	"bridgemod/internal/bridge"
	"bridgemod/internal/config"
	"bridgemod/internal/css"
	"bridgemod/internal/dispatch"
	"bridgemod/internal/hostlink"
	"bridgemod/internal/lifecycle"
	"bridgemod/internal/plugins/messagelog"
	"bridgemod/internal/plugins/mutelock"
	"bridgemod/pkg/plugin"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start enabled plugins, connect to the host and serve the status API",
		RunE:  runClient,
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger.Info("Starting bridgemod",
		zap.String("host_url", cfg.HostURL),
		zap.String("settings", cfg.SettingsPath),
		zap.Int("api_port", cfg.APIPort),
		zap.Bool("isolate_handlers", cfg.IsolateHandlers))

	loader := config.NewLoader(cfg.SettingsPath, logger)
	if err := loader.LoadSettings(); err != nil {
		return err
	}

	var registryOpts []dispatch.Option
	if cfg.IsolateHandlers {
		registryOpts = append(registryOpts, dispatch.WithFailurePolicy(dispatch.FailureIsolate))
	}
	registry := dispatch.NewRegistry(logger, registryOpts...)
	styles := css.NewStore(logger)

	lm := lifecycle.NewManager(registry, logger,
		lifecycle.WithSettings(loader.GetSettings()),
		lifecycle.WithStyles(styles),
		lifecycle.WithHookTimeout(cfg.HookTimeout))

	if err := lm.RegisterAll(plugin.List()); err != nil {
		logger.Warn("Some plugins failed to register", zap.Error(err))
	}

	slots := bridge.NewSlots(lm, logger)
	slots.Install()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm.StartAll(ctx)
	defer lm.StopAll(context.Background())

	slots.SetHostToClient(&logClient{logger: logger.Named("client")})

	if cfg.HostURL != "" {
		client := hostlink.NewClient(cfg.HostURL, cfg.HostToken, slots, logger)
		if err := client.Connect(); err != nil {
			return fmt.Errorf("failed to connect to host: %w", err)
		}
		defer client.Disconnect()

		slots.SetClientToHost(client)

		if version, err := slots.ClientToHost().GetVersion(); err != nil {
			logger.Warn("Failed to query host version", zap.Error(err))
		} else {
			logger.Info("Host version", zap.String("version", version))
		}
	} else {
		logger.Info("No host URL configured, running without a host connection")
	}

	server := api.NewServer(api.Deps{
		Lifecycle: lm,
		Registry:  registry,
		Slots:     slots,
		Styles:    styles,
		Messages:  messagelog.Default,
		MuteLock:  mutelock.Default,
	}, logger, cfg.APIPort)
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	logger.Info("Plugins active", zap.Strings("plugins", lm.Active()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Application running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")
	return nil
}

// logClient is the process's own HostToClient implementation. It logs each
// event that survives the plugin chain.
type logClient struct {
	logger *zap.Logger
}

func (c *logClient) OnMessage(channelID, author, text string) (bool, error) {
	c.logger.Info("Message",
		zap.String("channel", channelID),
		zap.String("author", author),
		zap.String("text", text))
	return true, nil
}

func (c *logClient) OnVoiceState(userID string, speaking bool) (bool, error) {
	c.logger.Debug("Voice state", zap.String("user", userID), zap.Bool("speaking", speaking))
	return true, nil
}

func (c *logClient) OnNotification(title, body string) (bool, error) {
	c.logger.Info("Notification", zap.String("title", title), zap.String("body", body))
	return true, nil
}

func (c *logClient) OnConnectionState(state string) (bool, error) {
	c.logger.Info("Connection state", zap.String("state", state))
	return true, nil
}
