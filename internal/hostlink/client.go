// Package hostlink connects the client process to its host over a websocket.
// The link carries calls both ways: the host invokes HostToClient methods on
// us, and we invoke ClientToHost methods on the host.
package hostlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bridgemod/internal/bridge"
	"bridgemod/pkg/plugin"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Version is announced to the host in the hello message.
const Version = "1"

var (
	ErrNotConnected = errors.New("not connected")
	ErrAuth         = errors.New("host rejected token")
	ErrCallTimeout  = errors.New("timeout waiting for result")
	ErrRemote       = errors.New("host error")
)

// HostToClientSource yields the HostToClient bridge that incoming calls are
// delivered to. *bridge.Slots satisfies it.
type HostToClientSource interface {
	HostToClient() bridge.HostToClient
}

// Option configures a Client.
type Option func(*Client)

// WithCallTimeout overrides how long a call waits for its result.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// WithReconnect toggles automatic reconnection after the link drops.
func WithReconnect(enabled bool) Option {
	return func(c *Client) {
		c.autoReconnect = enabled
	}
}

// Client is the client end of the host link. It implements
// bridge.ClientToHost by forwarding each call to the host.
type Client struct {
	url           string
	token         string
	session       string
	source        HostToClientSource
	logger        *zap.Logger
	callTimeout   time.Duration
	autoReconnect bool

	conn      *websocket.Conn
	connected bool
	connMu    sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	reconnect bool

	msgID   int
	msgIDMu sync.Mutex

	pending   map[int]chan Message
	pendingMu sync.Mutex

	writeMu sync.Mutex
}

var _ bridge.ClientToHost = (*Client)(nil)

// NewClient creates a host link client. Calls arriving from the host are
// delivered to source.HostToClient().
func NewClient(url, token string, source HostToClientSource, logger *zap.Logger, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:           url,
		token:         token,
		session:       uuid.NewString(),
		source:        source,
		logger:        logger.Named("hostlink"),
		callTimeout:   10 * time.Second,
		autoReconnect: true,
		pending:       make(map[int]chan Message),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the ID this client announces in its hello.
func (c *Client) Session() string {
	return c.session
}

// Connect dials the host and performs the hello handshake.
func (c *Client) Connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to host: %w", err)
	}

	if err := c.handshake(conn); err != nil {
		conn.Close()
		return err
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.conn = conn
	c.connected = true
	c.reconnect = c.autoReconnect
	c.logger.Info("Connected to host", zap.String("url", c.url), zap.String("session", c.session))

	go c.receiveMessages(c.ctx, conn)
	return nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(c.callTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var required Message
	if err := conn.ReadJSON(&required); err != nil {
		return fmt.Errorf("failed to read hello_required: %w", err)
	}
	if required.Type != TypeHelloRequired {
		return fmt.Errorf("expected %s, got %s", TypeHelloRequired, required.Type)
	}

	hello := Message{Type: TypeHello, Token: c.token, Session: c.session, Version: Version}
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}

	var resp Message
	if err := conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("failed to read hello response: %w", err)
	}
	switch resp.Type {
	case TypeHelloOK:
		return nil
	case TypeHelloInvalid:
		return ErrAuth
	default:
		return fmt.Errorf("expected %s, got %s", TypeHelloOK, resp.Type)
	}
}

// Disconnect closes the link and disables reconnection.
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.reconnect = false
	c.cancel()

	if !c.connected {
		return nil
	}
	c.connected = false

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.logger.Info("Disconnected from host")
	return nil
}

// IsConnected reports whether the handshake has completed and the link is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

func (c *Client) nextMsgID() int {
	c.msgIDMu.Lock()
	defer c.msgIDMu.Unlock()
	c.msgID++
	return c.msgID
}

func (c *Client) write(conn *websocket.Conn, msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// Call invokes a ClientToHost method on the host and returns the raw result.
func (c *Client) Call(method string, args ...any) (json.RawMessage, error) {
	c.connMu.RLock()
	if !c.connected {
		c.connMu.RUnlock()
		return nil, ErrNotConnected
	}
	conn, ctx := c.conn, c.ctx
	c.connMu.RUnlock()

	if args == nil {
		args = []any{}
	}
	msg := Message{ID: c.nextMsgID(), Type: TypeCall, Method: method, Args: args}

	respChan := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.ID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.write(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("%w: %s: %s - %s", ErrRemote, method, resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("%w: %s failed", ErrRemote, method)
		}
		return resp.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrCallTimeout, method)
	case <-ctx.Done():
		return nil, ErrNotConnected
	}
}

func invoke[T any](c *Client, method string, args ...any) (T, error) {
	var out T
	raw, err := c.Call(method, args...)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal %s result: %w", method, err)
	}
	return out, nil
}

func (c *Client) SetMute(muted bool) (bool, error) {
	return invoke[bool](c, plugin.MethodSetMute, muted)
}

func (c *Client) SetDeafen(deafened bool) (bool, error) {
	return invoke[bool](c, plugin.MethodSetDeafen, deafened)
}

func (c *Client) SendMessage(channelID, text string) (string, error) {
	return invoke[string](c, plugin.MethodSendMessage, channelID, text)
}

func (c *Client) OpenURL(url string) (bool, error) {
	return invoke[bool](c, plugin.MethodOpenURL, url)
}

func (c *Client) GetVersion() (string, error) {
	return invoke[string](c, plugin.MethodGetVersion)
}

func (c *Client) receiveMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.logger.Error("Failed to read message", zap.Error(err))
			c.handleDisconnect(conn)
			return
		}

		switch msg.Type {
		case TypeCall:
			// Handlers may call back into the host, which needs this loop free
			// to deliver the result.
			go c.handleCall(conn, msg)
		case TypeResult:
			c.pendingMu.Lock()
			if ch, ok := c.pending[msg.ID]; ok {
				select {
				case ch <- msg:
				default:
					c.logger.Warn("Result channel full", zap.Int("msg_id", msg.ID))
				}
			}
			c.pendingMu.Unlock()
		default:
			c.logger.Debug("Ignoring message", zap.String("type", msg.Type))
		}
	}
}

func (c *Client) handleCall(conn *websocket.Conn, msg Message) {
	reply := Message{ID: msg.ID, Type: TypeResult}
	fail := func(code string, err error) {
		ok := false
		reply.Success = &ok
		reply.Error = &Error{Code: code, Message: err.Error()}
	}

	var target bridge.HostToClient
	if c.source != nil {
		target = c.source.HostToClient()
	}

	if target == nil {
		fail(CodeNotReady, fmt.Errorf("no %s bridge registered", plugin.HostToClient))
	} else {
		result, err := bridge.InvokeHostToClient(target, msg.Method, msg.Args)
		switch {
		case errors.Is(err, bridge.ErrUnknownMethod), errors.Is(err, bridge.ErrArgType):
			fail(CodeBadRequest, err)
		case err != nil:
			fail(CodeFailed, err)
		default:
			data, merr := json.Marshal(result)
			if merr != nil {
				fail(CodeFailed, merr)
				break
			}
			ok := true
			reply.Success = &ok
			reply.Result = data
		}
	}

	if reply.Error != nil {
		c.logger.Warn("Host call failed",
			zap.String("method", msg.Method),
			zap.String("code", reply.Error.Code),
			zap.String("error", reply.Error.Message))
	}

	if err := c.write(conn, reply); err != nil {
		c.logger.Error("Failed to send result", zap.Int("msg_id", msg.ID), zap.Error(err))
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	conn.Close()
	c.cancel()
	reconnect := c.reconnect
	c.connMu.Unlock()

	c.logger.Warn("Connection to host lost")

	if reconnect {
		go c.attemptReconnect()
	}
}

func (c *Client) attemptReconnect() {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		time.Sleep(backoff)

		c.connMu.RLock()
		stop := !c.reconnect || c.connected
		c.connMu.RUnlock()
		if stop {
			return
		}

		c.logger.Info("Attempting to reconnect...")

		if err := c.Connect(); err != nil {
			c.logger.Error("Reconnection failed", zap.Error(err), zap.Duration("backoff", backoff))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected successfully")
		return
	}
}
