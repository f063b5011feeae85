// Package websocket wraps the Socket.IO client used for the realtime chat
// connection. It exposes the named events of the chat protocol and leaves
// reconnect policy to the underlying transport.
package websocket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	sio "github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/phyoewaiaung/devnexus-go/pkg/logger"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// EventType names a chat protocol event.
type EventType string

// Outbound (client -> server) events.
const (
	EventJoinAllRooms EventType = "join-all-rooms"
	EventJoinRoom     EventType = "join-room"
	EventSendMessage  EventType = "send-message"
	EventTypingSignal EventType = "typing-signal"
	EventMarkRead     EventType = "mark-read"
)

// Inbound (server -> client) events.
const (
	EventConnected         EventType = "connected"
	EventMessageNew        EventType = "message-new"
	EventTyping            EventType = "typing"
	EventPresenceSnapshot  EventType = "presence-snapshot"
	EventPresenceDelta     EventType = "presence-delta"
	EventMessageRead       EventType = "message-read"
	EventNotificationNew   EventType = "notification-new"
	EventNotificationCount EventType = "notification-count"
)

// inboundEvents lists every server event the client subscribes to.
var inboundEvents = []EventType{
	EventConnected,
	EventMessageNew,
	EventTyping,
	EventPresenceSnapshot,
	EventPresenceDelta,
	EventMessageRead,
	EventNotificationNew,
	EventNotificationCount,
}

// ErrNotConnected is returned when an emit is attempted before Connect.
var ErrNotConnected = errors.New("socket not connected")

// sendAckTimeout bounds how long a send waits for the server ack.
const sendAckTimeout = 10 * time.Second

// Client is a Socket.IO connection to the chat endpoint.
//
// Inbound event handlers are registered before Connect; lifecycle callbacks
// fire on every connect/disconnect, including transport-level reconnects.
type Client struct {
	serverURL string
	token     string

	mu            sync.RWMutex
	socket        *socket.Socket
	connected     bool
	handlers      map[EventType]func(map[string]any)
	onConnect     []func()
	onDisconnect  []func(reason string)
	closeOnce     sync.Once
	done          chan struct{}
}

// NewClient creates a chat socket client. The token authenticates the
// connection at handshake time; callers must not Connect without one.
func NewClient(serverURL, token string) *Client {
	return &Client{
		serverURL: serverURL,
		token:     token,
		handlers:  make(map[EventType]func(map[string]any)),
		done:      make(chan struct{}),
	}
}

// On registers the handler for a named inbound event. Only one handler per
// event is kept; the engine owns all dispatch.
func (c *Client) On(event EventType, handler func(map[string]any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

// OnConnect registers a lifecycle callback fired after each (re)connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// OnDisconnect registers a lifecycle callback fired after each disconnect.
func (c *Client) OnDisconnect(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// Connect establishes the Socket.IO connection, authenticating with the
// client's token. Reconnects after transient drops are handled by the
// transport itself.
func (c *Client) Connect() error {
	if c.token == "" {
		return fmt.Errorf("connect: no access token")
	}

	opts := socket.DefaultOptions()
	opts.SetPath("/v1/chat")
	opts.SetTransports(sio.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAuth(map[string]any{"token": c.token})

	sock, err := socket.Connect(c.serverURL, opts)
	if err != nil {
		return fmt.Errorf("socket connect: %w", err)
	}

	c.mu.Lock()
	c.socket = sock
	c.mu.Unlock()

	sock.On(sio.EventName("connect"), func(args ...any) {
		c.mu.Lock()
		c.connected = true
		fns := append([]func(){}, c.onConnect...)
		c.mu.Unlock()

		logger.Debugf("socket connected, id=%s", sock.Id())
		for _, fn := range fns {
			fn()
		}
	})

	sock.On(sio.EventName("disconnect"), func(args ...any) {
		reason := ""
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}

		c.mu.Lock()
		c.connected = false
		fns := append([]func(string){}, c.onDisconnect...)
		c.mu.Unlock()

		logger.Debugf("socket disconnected: %s", reason)
		for _, fn := range fns {
			fn(reason)
		}
	})

	sock.On(sio.EventName("connect_error"), func(args ...any) {
		if len(args) > 0 {
			logger.Warnf("socket connect error: %v", args[0])
		}
	})

	for _, event := range inboundEvents {
		ev := event
		sock.On(sio.EventName(ev), func(args ...any) {
			var data map[string]any
			if len(args) > 0 {
				if m, ok := args[0].(map[string]any); ok {
					data = m
				}
			}

			c.mu.RLock()
			handler := c.handlers[ev]
			c.mu.RUnlock()

			logger.Tracef("socket event %s", ev)
			if handler != nil {
				handler(data)
			}
		})
	}

	return nil
}

// IsConnected reports whether the socket is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	sock := c.socket
	connected := c.connected
	c.mu.RUnlock()

	if connected {
		return true
	}
	return sock != nil && sock.Connected()
}

// Emit sends a named event to the server.
func (c *Client) Emit(event EventType, data map[string]any) error {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()

	if sock == nil {
		return ErrNotConnected
	}
	sock.Emit(string(event), data)
	return nil
}

// EmitWithAck sends a named event and waits for the server's ack payload.
func (c *Client) EmitWithAck(event EventType, data map[string]any, timeout time.Duration) (map[string]any, error) {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()

	if sock == nil {
		return nil, ErrNotConnected
	}

	resultCh := make(chan map[string]any, 1)
	errCh := make(chan error, 1)

	sock.Emit(string(event), data, func(args []any, err error) {
		if err != nil {
			errCh <- err
			return
		}
		if len(args) == 0 {
			resultCh <- nil
			return
		}
		if payload, ok := args[0].(map[string]any); ok {
			resultCh <- payload
			return
		}
		resultCh <- nil
	})

	select {
	case res := <-resultCh:
		return res, nil
	case err := <-errCh:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%s: ack timeout", event)
	case <-c.done:
		return nil, ErrNotConnected
	}
}

// EmitJoinAllRooms subscribes to all of the user's conversation rooms.
func (c *Client) EmitJoinAllRooms() error {
	return c.Emit(EventJoinAllRooms, nil)
}

// EmitJoinRoom subscribes to a single conversation room.
func (c *Client) EmitJoinRoom(conversationID string) error {
	return c.Emit(EventJoinRoom, map[string]any{
		"conversationId": conversationID,
	})
}

// EmitTyping broadcasts the local user's typing state for a conversation.
func (c *Client) EmitTyping(conversationID string, isTyping bool) error {
	return c.Emit(EventTypingSignal, map[string]any{
		"conversationId": conversationID,
		"isTyping":       isTyping,
	})
}

// EmitMarkRead signals a read receipt for a conversation.
func (c *Client) EmitMarkRead(conversationID string) error {
	return c.Emit(EventMarkRead, map[string]any{
		"conversationId": conversationID,
	})
}

// SendMessage persists a message through the socket, carrying the client
// correlation id so the ack and the broadcast echo can be matched back. The
// returned message is the authoritative server copy.
func (c *Client) SendMessage(conversationID, clientMsgID, text string, attachments []types.Attachment) (types.Message, error) {
	atts := make([]map[string]any, 0, len(attachments))
	for _, a := range attachments {
		atts = append(atts, map[string]any{
			"url":  a.URL,
			"type": a.Type,
			"name": a.Name,
			"size": a.Size,
		})
	}

	ack, err := c.EmitWithAck(EventSendMessage, map[string]any{
		"conversationId": conversationID,
		"clientMsgId":    clientMsgID,
		"text":           text,
		"attachments":    atts,
	}, sendAckTimeout)
	if err != nil {
		return types.Message{}, err
	}
	if ack == nil {
		return types.Message{}, fmt.Errorf("send-message: missing ack")
	}
	if errMsg, ok := ack["error"].(string); ok && errMsg != "" {
		return types.Message{}, fmt.Errorf("send-message: %s", errMsg)
	}

	payload, _ := ack["message"].(map[string]any)
	if payload == nil {
		// Some server versions ack with the message at the top level.
		payload = ack
	}
	msg, ok := DecodeMessage(payload)
	if !ok || msg.ID == "" {
		return types.Message{}, fmt.Errorf("send-message: malformed ack")
	}
	return msg, nil
}

// Close tears down the connection. Lifecycle callbacks fire one final
// disconnect before the socket is discarded.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket != nil {
		c.socket.Disconnect()
		c.socket = nil
	}
	c.connected = false
	return nil
}
