package sync

import (
	"github.com/phyoewaiaung/devnexus-go/internal/actor"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// Inputs form a closed set: commands issued by the engine's public API and
// events observed from the transport, REST calls, and timers. The reducer
// dispatches on the concrete type; there is no stringly-typed payload access
// past this boundary.

// Commands

// cmdSend starts an optimistic send. ClientID and NowMs are stamped by the
// engine so the reducer stays deterministic.
type cmdSend struct {
	actor.InputBase
	ConversationID string
	ClientID       string
	Text           string
	Attachments    []types.Attachment
	NowMs          int64
	Reply          chan SendResult
}

// cmdSetTyping broadcasts the local user's typing state.
type cmdSetTyping struct {
	actor.InputBase
	ConversationID string
	IsTyping       bool
}

// cmdMarkRead zeroes the local unread counter and persists the read state.
type cmdMarkRead struct {
	actor.InputBase
	ConversationID string
	Reply          chan error
}

// cmdEnsureJoined joins the conversation room if not joined on this
// connection.
type cmdEnsureJoined struct {
	actor.InputBase
	ConversationID string
}

// cmdLoadConversations replaces the conversation list from a bulk fetch.
type cmdLoadConversations struct {
	actor.InputBase
	Reply chan error
}

// cmdLoadHistory fetches one history page for a conversation.
type cmdLoadHistory struct {
	actor.InputBase
	ConversationID string
	Cursor         string
	Limit          int
	Reply          chan HistoryResult
}

// cmdLoadNotifications bulk-fetches the notification stream.
type cmdLoadNotifications struct {
	actor.InputBase
	Limit int
	Reply chan error
}

// cmdMarkNotificationsRead flips every notification to read, locally and on
// the server.
type cmdMarkNotificationsRead struct {
	actor.InputBase
	Reply chan error
}

// cmdLeaveConversation removes a conversation and all of its local state.
type cmdLeaveConversation struct {
	actor.InputBase
	ConversationID string
	Reply          chan error
}

// cmdSnapshot requests a deep copy of the observable state.
type cmdSnapshot struct {
	actor.InputBase
	Reply chan Snapshot
}

// Events

// evConnecting marks the start of a connection attempt.
type evConnecting struct {
	actor.InputBase
}

// evConnected fires when the transport is established (or re-established).
type evConnected struct {
	actor.InputBase
}

// evDisconnected fires when the transport drops. Room membership, presence
// and typing state are invalidated.
type evDisconnected struct {
	actor.InputBase
	Reason string
}

// evMessageNew is a server-broadcast message, possibly the echo of a local
// send (carrying its client correlation id).
type evMessageNew struct {
	actor.InputBase
	ConversationID string
	Message        types.Message
}

// evTypingChanged is an inbound typing state change for a remote user.
type evTypingChanged struct {
	actor.InputBase
	ConversationID string
	UserID         string
	IsTyping       bool
}

// evPresenceSnapshot replaces the online set wholesale.
type evPresenceSnapshot struct {
	actor.InputBase
	UserIDs []string
}

// evPresenceDelta upserts a single user's online state.
type evPresenceDelta struct {
	actor.InputBase
	UserID string
	Online bool
}

// evMessageRead is a read receipt from another participant.
type evMessageRead struct {
	actor.InputBase
	ConversationID string
}

// evNotificationNew is a pushed notification.
type evNotificationNew struct {
	actor.InputBase
	Notification types.Notification
}

// evNotificationCount carries the server's authoritative unread count.
type evNotificationCount struct {
	actor.InputBase
	Unread int
}

// evTimerFired delivers a named timer expiry back into the loop.
type evTimerFired struct {
	actor.InputBase
	Name  string
	NowMs int64
}

// evSendAcked is the direct-response resolution path of a send: the server
// acknowledged with the authoritative message.
type evSendAcked struct {
	actor.InputBase
	ClientID string
	Message  types.Message
}

// evSendFailed is the failure path of a send.
type evSendFailed struct {
	actor.InputBase
	ClientID string
	Err      error
}

// evConversationsLoaded delivers the bulk conversation fetch.
type evConversationsLoaded struct {
	actor.InputBase
	Conversations []types.Conversation
	Reply         chan error
}

// evConversationsLoadFailed reports a failed bulk fetch.
type evConversationsLoadFailed struct {
	actor.InputBase
	Err   error
	Reply chan error
}

// evConversationFetched delivers a single conversation fetched after a
// message arrived for an unknown conversation.
type evConversationFetched struct {
	actor.InputBase
	Conversation types.Conversation
}

// evHistoryLoaded delivers one history page, oldest first.
type evHistoryLoaded struct {
	actor.InputBase
	ConversationID string
	Messages       []types.Message
	NextCursor     string
	Reply          chan HistoryResult
}

// evHistoryLoadFailed reports a failed history fetch; the existing bucket is
// left untouched.
type evHistoryLoadFailed struct {
	actor.InputBase
	ConversationID string
	Err            error
	Reply          chan HistoryResult
}

// evNotificationsLoaded delivers the bulk notification fetch.
type evNotificationsLoaded struct {
	actor.InputBase
	Notifications []types.Notification
	Reply         chan error
}

// evNotificationsLoadFailed reports a failed notification fetch.
type evNotificationsLoadFailed struct {
	actor.InputBase
	Err   error
	Reply chan error
}
