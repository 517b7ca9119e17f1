// Package config holds the process configuration read from the environment
// and the plugin settings snapshot read from disk.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvHostURL         = "BRIDGEMOD_HOST_URL"
	EnvHostToken       = "BRIDGEMOD_HOST_TOKEN"
	EnvSettings        = "BRIDGEMOD_SETTINGS"
	EnvAPIPort         = "BRIDGEMOD_API_PORT"
	EnvHookTimeout     = "BRIDGEMOD_HOOK_TIMEOUT"
	EnvIsolateHandlers = "BRIDGEMOD_ISOLATE_HANDLERS"
)

const (
	defaultSettingsPath = "settings.yaml"
	defaultAPIPort      = 8080
)

// Config is the runtime configuration of the bridgemod process.
type Config struct {
	// HostURL is the websocket URL of the native host. Empty runs the
	// framework without a host connection.
	HostURL   string
	HostToken string

	SettingsPath string
	APIPort      int

	// HookTimeout bounds each plugin start/stop hook. Zero waits forever.
	HookTimeout time.Duration

	// IsolateHandlers keeps a failing patch handler from aborting the rest
	// of the chain.
	IsolateHandlers bool
}

// FromEnv builds a Config from the environment.
func FromEnv() (Config, error) {
	cfg := Config{
		HostURL:      os.Getenv(EnvHostURL),
		HostToken:    os.Getenv(EnvHostToken),
		SettingsPath: os.Getenv(EnvSettings),
		APIPort:      defaultAPIPort,
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = defaultSettingsPath
	}

	if v := os.Getenv(EnvAPIPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid %s %q", EnvAPIPort, v)
		}
		cfg.APIPort = port
	}

	if v := os.Getenv(EnvHookTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvHookTimeout, err)
		}
		cfg.HookTimeout = d
	}

	if v := os.Getenv(EnvIsolateHandlers); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvIsolateHandlers, err)
		}
		cfg.IsolateHandlers = b
	}

	if cfg.HostURL != "" && cfg.HostToken == "" {
		return Config{}, fmt.Errorf("%s is set but %s is empty", EnvHostURL, EnvHostToken)
	}

	return cfg, nil
}
