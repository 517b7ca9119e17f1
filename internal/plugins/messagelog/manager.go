package messagelog

import (
	"context"
	"sync"
	"time"

	"bridgemod/internal/clock"
	"bridgemod/pkg/plugin"

	"go.uber.org/zap"
)

// Name is the plugin name.
const Name = "messagelog"

const defaultCapacity = 100

// Direction tells whether a message came from the host or was sent by the client.
type Direction string

const (
	Incoming Direction = "in"
	Outgoing Direction = "out"
)

// Entry is one logged message.
type Entry struct {
	Direction Direction `json:"direction"`
	ChannelID string    `json:"channel_id"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text"`
	MessageID string    `json:"message_id,omitempty"`
	At        time.Time `json:"at"`
}

// Manager keeps a bounded history of the messages crossing the bridges.
type Manager struct {
	mu       sync.Mutex
	clock    clock.Clock
	entries  []Entry
	capacity int
	logger   *zap.Logger
}

// New creates a messagelog plugin instance reading time from c.
func New(c clock.Clock) *Manager {
	return &Manager{
		clock:    c,
		capacity: defaultCapacity,
		logger:   zap.NewNop(),
	}
}

// Descriptor describes the plugin to the lifecycle manager.
func (m *Manager) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:        Name,
		Description: "Keeps a short history of received and sent messages",
		Version:     "1.0.0",
		Authors:     []string{"bridgemod"},
		Patches: []plugin.PatchSpec{
			{
				Bridge: plugin.HostToClient,
				Method: plugin.MethodOnMessage,
				After:  m.received,
			},
			{
				Bridge: plugin.ClientToHost,
				Method: plugin.MethodSendMessage,
				After:  m.sent,
			},
		},
		Settings: []plugin.Setting{
			{Key: "capacity", Type: "int", Description: "Number of messages kept", Default: defaultCapacity},
		},
		Start: m.start,
		Stop:  m.stop,
	}
}

func (m *Manager) start(_ context.Context, pctx *plugin.Context) error {
	capacity := pctx.Int("capacity", defaultCapacity)
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	m.mu.Lock()
	m.capacity = capacity
	m.entries = make([]Entry, 0, capacity)
	if pctx.Logger != nil {
		m.logger = pctx.Logger
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) stop(context.Context, *plugin.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("Discarding message history", zap.Int("entries", len(m.entries)))
	m.entries = nil
	return nil
}

// received observes HostToClient.OnMessage(channelID, author, text).
func (m *Manager) received(_ any, args []any) {
	channel, _ := args[0].(string)
	author, _ := args[1].(string)
	text, _ := args[2].(string)

	m.record(Entry{Direction: Incoming, ChannelID: channel, Author: author, Text: text})
}

// sent observes ClientToHost.SendMessage(channelID, text) -> messageID.
func (m *Manager) sent(result any, args []any) {
	channel, _ := args[0].(string)
	text, _ := args[1].(string)
	id, _ := result.(string)

	m.record(Entry{Direction: Outgoing, ChannelID: channel, Text: text, MessageID: id})
}

func (m *Manager) record(e Entry) {
	e.At = m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.capacity {
		m.entries = append(m.entries[:0], m.entries[1:]...)
	}
	m.entries = append(m.entries, e)
}

// Recent returns up to n of the newest entries, oldest first. n <= 0 returns all.
func (m *Manager) Recent(n int) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if n > 0 && n < len(m.entries) {
		start = len(m.entries) - n
	}
	out := make([]Entry, len(m.entries)-start)
	copy(out, m.entries[start:])
	return out
}
