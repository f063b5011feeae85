package sync

import (
	"github.com/phyoewaiaung/devnexus-go/internal/websocket"
	"github.com/phyoewaiaung/devnexus-go/pkg/logger"
)

// bindTransport maps inbound socket events onto typed loop inputs. Payloads
// are decoded tolerantly; a malformed event is logged and dropped, never
// fatal.
func (e *Engine) bindTransport() {
	e.socket.OnConnect(func() {
		e.enqueue(evConnected{})
	})
	e.socket.OnDisconnect(func(reason string) {
		e.enqueue(evDisconnected{Reason: reason})
	})

	// Server-level ready event, emitted once the connection is registered.
	// Idempotent with the transport-level connect callback.
	e.socket.On(websocket.EventConnected, func(map[string]any) {
		e.enqueue(evConnected{})
	})

	e.socket.On(websocket.EventMessageNew, func(data map[string]any) {
		payload := data
		if m := websocket.GetMap(data, "message"); m != nil {
			payload = m
		}
		msg, ok := websocket.DecodeMessage(payload)
		if !ok {
			logger.Warnf("sync: dropping malformed message-new event")
			return
		}
		convID := websocket.GetString(data, "conversationId")
		if convID == "" {
			convID = msg.ConversationID
		}
		e.enqueue(evMessageNew{ConversationID: convID, Message: msg})
	})

	e.socket.On(websocket.EventTyping, func(data map[string]any) {
		e.enqueue(evTypingChanged{
			ConversationID: websocket.GetString(data, "conversationId"),
			UserID:         websocket.GetString(data, "userId"),
			IsTyping:       websocket.GetBool(data, "isTyping"),
		})
	})

	e.socket.On(websocket.EventPresenceSnapshot, func(data map[string]any) {
		ids, ok := websocket.GetStringSlice(data, "userIds")
		if !ok {
			ids, ok = websocket.GetStringSlice(data, "online")
		}
		if !ok {
			logger.Warnf("sync: dropping malformed presence-snapshot event")
			return
		}
		e.enqueue(evPresenceSnapshot{UserIDs: ids})
	})

	e.socket.On(websocket.EventPresenceDelta, func(data map[string]any) {
		userID := websocket.GetString(data, "userId")
		if userID == "" {
			logger.Warnf("sync: dropping malformed presence-delta event")
			return
		}
		e.enqueue(evPresenceDelta{
			UserID: userID,
			Online: websocket.GetBool(data, "online"),
		})
	})

	e.socket.On(websocket.EventMessageRead, func(data map[string]any) {
		convID := websocket.GetString(data, "conversationId")
		if convID == "" {
			return
		}
		e.enqueue(evMessageRead{ConversationID: convID})
	})

	e.socket.On(websocket.EventNotificationNew, func(data map[string]any) {
		payload := data
		if m := websocket.GetMap(data, "notification"); m != nil {
			payload = m
		}
		n, ok := websocket.DecodeNotification(payload)
		if !ok {
			logger.Warnf("sync: dropping malformed notification-new event")
			return
		}
		e.enqueue(evNotificationNew{Notification: n})
	})

	e.socket.On(websocket.EventNotificationCount, func(data map[string]any) {
		unread, ok := websocket.GetInt(data, "unread")
		if !ok {
			unread, ok = websocket.GetInt(data, "count")
		}
		if !ok {
			logger.Warnf("sync: dropping malformed notification-count event")
			return
		}
		e.enqueue(evNotificationCount{Unread: unread})
	})
}
