// Package testutil provides testing utilities for bridge plugins.
// This file provides a TestEnv for integration testing plugins end to end.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"bridgemod/internal/bridge"
	"bridgemod/internal/css"
	"bridgemod/internal/dispatch"
	"bridgemod/internal/hostlink"
	"bridgemod/internal/lifecycle"
	"bridgemod/pkg/plugin"

	"go.uber.org/zap"
)

// TestEnv provides a complete test environment for plugin integration tests.
// The host link, both bridge slots and the plugin lifecycle are real; only
// the host and the client's own HostToClient implementation are fakes.
type TestEnv struct {
	Host      *MockHost
	Client    *hostlink.Client
	Slots     *bridge.Slots
	Lifecycle *lifecycle.Manager
	Registry  *dispatch.Registry
	Styles    *css.Store
	Delivered *RecordingClient
	Logger    *zap.Logger
}

// NewTestEnv starts a mock host, registers descs with a fresh lifecycle
// manager, installs the bridge slots and connects a client.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv("test_token", myplugin.New().Descriptor())
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
//
//	require.NoError(t, env.Lifecycle.Start(ctx, myplugin.Name))
func NewTestEnv(token string, descs ...plugin.Descriptor) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()

	host := NewMockHost(token)
	if err := host.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mock host: %w", err)
	}

	registry := dispatch.NewRegistry(logger)
	styles := css.NewStore(logger)
	lm := lifecycle.NewManager(registry, logger, lifecycle.WithStyles(styles))
	if err := lm.RegisterAll(descs); err != nil {
		host.Stop()
		return nil, fmt.Errorf("failed to register plugins: %w", err)
	}

	slots := bridge.NewSlots(lm, logger)
	slots.Install()

	delivered := &RecordingClient{}
	slots.SetHostToClient(delivered)

	client := hostlink.NewClient(host.URL(), token, slots, logger, hostlink.WithReconnect(false))
	if err := client.Connect(); err != nil {
		host.Stop()
		return nil, fmt.Errorf("failed to connect client: %w", err)
	}
	slots.SetClientToHost(client)

	return &TestEnv{
		Host:      host,
		Client:    client,
		Slots:     slots,
		Lifecycle: lm,
		Registry:  registry,
		Styles:    styles,
		Delivered: delivered,
		Logger:    logger,
	}, nil
}

// ClientToHost returns the wrapped bridge plugins observe calls through.
func (e *TestEnv) ClientToHost() bridge.ClientToHost {
	return e.Slots.ClientToHost()
}

// Cleanup stops all components in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	if e.Lifecycle != nil {
		e.Lifecycle.StopAll(context.Background())
	}
	if e.Client != nil {
		e.Client.Disconnect()
	}
	if e.Host != nil {
		e.Host.Stop()
	}
}

// GetCalls returns all calls the client made to the mock host.
func (e *TestEnv) GetCalls() []Call {
	return e.Host.GetCalls()
}

// ClearCalls clears the recorded calls.
func (e *TestEnv) ClearCalls() {
	e.Host.ClearCalls()
}

// Delivery is one HostToClient call that reached the client implementation.
type Delivery struct {
	Method string
	Args   []any
}

// RecordingClient is a HostToClient that records what it is given and
// reports every call as handled.
type RecordingClient struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *RecordingClient) record(method string, args ...any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Method: method, Args: args})
	return true, nil
}

func (r *RecordingClient) OnMessage(channelID, author, text string) (bool, error) {
	return r.record(plugin.MethodOnMessage, channelID, author, text)
}

func (r *RecordingClient) OnVoiceState(userID string, speaking bool) (bool, error) {
	return r.record(plugin.MethodOnVoiceState, userID, speaking)
}

func (r *RecordingClient) OnNotification(title, body string) (bool, error) {
	return r.record(plugin.MethodOnNotification, title, body)
}

func (r *RecordingClient) OnConnectionState(state string) (bool, error) {
	return r.record(plugin.MethodOnConnectionState, state)
}

// Deliveries returns a copy of everything recorded so far.
func (r *RecordingClient) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Count returns how many calls to method were recorded.
func (r *RecordingClient) Count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.deliveries {
		if d.Method == method {
			n++
		}
	}
	return n
}
