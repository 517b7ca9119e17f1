// Package testutil provides testing utilities for bridge plugins.
// This package contains a mock host websocket server and helpers
// for writing integration tests.
package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"bridgemod/internal/hostlink"
	"bridgemod/pkg/plugin"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MethodHandler answers a ClientToHost call made against the mock host.
type MethodHandler func(args []any) (any, error)

// connWrapper wraps a WebSocket connection with its write mutex
type connWrapper struct {
	conn    *websocket.Conn
	session string
	writeMu sync.Mutex
}

func (w *connWrapper) write(msg hostlink.Message) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(msg)
}

// MockHost simulates the host end of the link. It records every call the
// client makes and can push HostToClient calls to connected clients.
type MockHost struct {
	server *httptest.Server
	token  string

	handlers   map[string]MethodHandler
	handlersMu sync.RWMutex

	connections []*connWrapper
	connsMu     sync.Mutex

	calls   []Call
	callsMu sync.Mutex

	msgID     int
	pending   map[int]chan hostlink.Message
	pendingMu sync.Mutex

	sentMessages int
}

// NewMockHost creates a mock host that accepts token. Every ClientToHost
// method starts with a handler that reports success.
func NewMockHost(token string) *MockHost {
	h := &MockHost{
		token:    token,
		handlers: make(map[string]MethodHandler),
		pending:  make(map[int]chan hostlink.Message),
	}
	h.handlers[plugin.MethodSetMute] = func([]any) (any, error) { return true, nil }
	h.handlers[plugin.MethodSetDeafen] = func([]any) (any, error) { return true, nil }
	h.handlers[plugin.MethodOpenURL] = func([]any) (any, error) { return true, nil }
	h.handlers[plugin.MethodGetVersion] = func([]any) (any, error) { return "mock-host/1.0", nil }
	h.handlers[plugin.MethodSendMessage] = func([]any) (any, error) {
		h.callsMu.Lock()
		defer h.callsMu.Unlock()
		h.sentMessages++
		return fmt.Sprintf("msg-%d", h.sentMessages), nil
	}
	return h
}

// Start starts the mock host on a free local port.
func (h *MockHost) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/host", h.handleWebSocket)
	h.server = httptest.NewServer(mux)
	return nil
}

// URL returns the websocket URL clients should dial.
func (h *MockHost) URL() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/host"
}

// Stop closes every connection and shuts the server down.
func (h *MockHost) Stop() error {
	h.DropConnections()
	if h.server != nil {
		h.server.Close()
	}
	return nil
}

// DropConnections closes every client connection without stopping the
// server, so clients can reconnect.
func (h *MockHost) DropConnections() {
	h.connsMu.Lock()
	for _, wrapper := range h.connections {
		wrapper.conn.Close()
	}
	h.connections = nil
	h.connsMu.Unlock()
}

// Handle replaces the handler for a ClientToHost method.
func (h *MockHost) Handle(method string, handler MethodHandler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[method] = handler
}

// Sessions returns the session IDs of connected clients.
func (h *MockHost) Sessions() []string {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	sessions := make([]string, 0, len(h.connections))
	for _, w := range h.connections {
		sessions = append(sessions, w.session)
	}
	return sessions
}

// CallClient sends a HostToClient call to the most recently connected client
// and waits for its result.
func (h *MockHost) CallClient(method string, args ...any) (json.RawMessage, error) {
	h.connsMu.Lock()
	if len(h.connections) == 0 {
		h.connsMu.Unlock()
		return nil, errors.New("no client connected")
	}
	wrapper := h.connections[len(h.connections)-1]
	h.connsMu.Unlock()

	respChan := make(chan hostlink.Message, 1)
	h.pendingMu.Lock()
	h.msgID++
	id := h.msgID
	h.pending[id] = respChan
	h.pendingMu.Unlock()

	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, id)
		h.pendingMu.Unlock()
	}()

	if args == nil {
		args = []any{}
	}
	if err := wrapper.write(hostlink.Message{ID: id, Type: hostlink.TypeCall, Method: method, Args: args}); err != nil {
		return nil, err
	}

	select {
	case resp := <-respChan:
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, errors.New("call failed")
		}
		return resp.Result, nil
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("timeout waiting for %s result", method)
	}
}

// handleWebSocket handles WebSocket connections
func (h *MockHost) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	wrapper := &connWrapper{conn: conn}
	wrapper.write(hostlink.Message{Type: hostlink.TypeHelloRequired})

	var hello hostlink.Message
	if err := conn.ReadJSON(&hello); err != nil {
		log.Printf("Failed to read hello: %v", err)
		return
	}
	if hello.Type != hostlink.TypeHello || hello.Token != h.token {
		wrapper.write(hostlink.Message{Type: hostlink.TypeHelloInvalid})
		return
	}
	wrapper.session = hello.Session
	wrapper.write(hostlink.Message{Type: hostlink.TypeHelloOK, Version: hello.Version})

	h.connsMu.Lock()
	h.connections = append(h.connections, wrapper)
	h.connsMu.Unlock()

	defer func() {
		h.connsMu.Lock()
		for i, c := range h.connections {
			if c == wrapper {
				h.connections = append(h.connections[:i], h.connections[i+1:]...)
				break
			}
		}
		h.connsMu.Unlock()
	}()

	for {
		var msg hostlink.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case hostlink.TypeCall:
			h.handleCall(wrapper, msg)
		case hostlink.TypeResult:
			h.pendingMu.Lock()
			if ch, ok := h.pending[msg.ID]; ok {
				ch <- msg
			}
			h.pendingMu.Unlock()
		}
	}
}

func (h *MockHost) handleCall(wrapper *connWrapper, msg hostlink.Message) {
	h.callsMu.Lock()
	h.calls = append(h.calls, Call{
		Timestamp: time.Now(),
		Method:    msg.Method,
		Args:      msg.Args,
	})
	h.callsMu.Unlock()

	h.handlersMu.RLock()
	handler, ok := h.handlers[msg.Method]
	h.handlersMu.RUnlock()

	reply := hostlink.Message{ID: msg.ID, Type: hostlink.TypeResult}
	success := false
	reply.Success = &success

	if !ok {
		reply.Error = &hostlink.Error{Code: hostlink.CodeBadRequest, Message: "unknown method " + msg.Method}
		wrapper.write(reply)
		return
	}

	result, err := handler(msg.Args)
	if err != nil {
		reply.Error = &hostlink.Error{Code: hostlink.CodeFailed, Message: err.Error()}
		wrapper.write(reply)
		return
	}

	data, _ := json.Marshal(result)
	success = true
	reply.Result = data
	wrapper.write(reply)
}

// GetCalls returns all calls made by clients since the last clear
func (h *MockHost) GetCalls() []Call {
	h.callsMu.Lock()
	defer h.callsMu.Unlock()
	calls := make([]Call, len(h.calls))
	copy(calls, h.calls)
	return calls
}

// ClearCalls resets the call log
func (h *MockHost) ClearCalls() {
	h.callsMu.Lock()
	defer h.callsMu.Unlock()
	h.calls = nil
}

// CountCalls counts calls to method
func (h *MockHost) CountCalls(method string) int {
	return len(FilterCalls(h.GetCalls(), method))
}
