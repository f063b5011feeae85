package sync

import (
	"github.com/phyoewaiaung/devnexus-go/internal/actor"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// Effects are the reducer's declarative outputs. The Runtime executes them:
// socket emits, REST calls, timers, reply completion, and listener
// notification.

// effEmitJoinAll subscribes to all of the user's conversation rooms.
type effEmitJoinAll struct {
	actor.EffectBase
}

// effEmitJoinRoom subscribes to one conversation room.
type effEmitJoinRoom struct {
	actor.EffectBase
	ConversationID string
}

// effEmitSend issues the send over the transport. The runtime reports the
// outcome as evSendAcked or evSendFailed.
type effEmitSend struct {
	actor.EffectBase
	ConversationID string
	ClientID       string
	Text           string
	Attachments    []types.Attachment
}

// effEmitTyping broadcasts the local typing state.
type effEmitTyping struct {
	actor.EffectBase
	ConversationID string
	IsTyping       bool
}

// effEmitMarkRead signals a read receipt over the transport.
type effEmitMarkRead struct {
	actor.EffectBase
	ConversationID string
}

// effPersistMarkRead persists read state over REST. The local reset is not
// rolled back on failure; the error only reaches the caller's reply.
type effPersistMarkRead struct {
	actor.EffectBase
	ConversationID string
	Reply          chan error
}

// effFetchConversations bulk-fetches the conversation list.
type effFetchConversations struct {
	actor.EffectBase
	Reply chan error
}

// effFetchConversation fetches one conversation in the background, used
// when a message arrives for a conversation missing from the list.
type effFetchConversation struct {
	actor.EffectBase
	ConversationID string
}

// effFetchHistory fetches one history page.
type effFetchHistory struct {
	actor.EffectBase
	ConversationID string
	Cursor         string
	Limit          int
	Reply          chan HistoryResult
}

// effFetchNotifications bulk-fetches the notification stream.
type effFetchNotifications struct {
	actor.EffectBase
	Limit int
	Reply chan error
}

// effPersistNotificationsRead flags notifications read on the server.
type effPersistNotificationsRead struct {
	actor.EffectBase
	IDs   []string
	Reply chan error
}

// effDeleteConversation removes the user from a conversation over REST.
type effDeleteConversation struct {
	actor.EffectBase
	ConversationID string
	Reply          chan error
}

// effStartTimer schedules (or restarts) a named timer.
type effStartTimer struct {
	actor.EffectBase
	Name    string
	AfterMs int64
}

// effCancelTimer cancels a named timer if pending.
type effCancelTimer struct {
	actor.EffectBase
	Name string
}

// effCompleteSend delivers a send outcome to its caller.
type effCompleteSend struct {
	actor.EffectBase
	Reply  chan SendResult
	Result SendResult
}

// effCompleteHistory delivers a history outcome to its caller.
type effCompleteHistory struct {
	actor.EffectBase
	Reply  chan HistoryResult
	Result HistoryResult
}

// effCompleteSnapshot delivers a state snapshot to its caller.
type effCompleteSnapshot struct {
	actor.EffectBase
	Reply chan Snapshot
	Snap  Snapshot
}

// effCompleteReply delivers a plain error outcome to its caller.
type effCompleteReply struct {
	actor.EffectBase
	Reply chan error
	Err   error
}

// Change identifies which slice of observable state changed.
type Change string

const (
	ChangeConnected     Change = "connected"
	ChangeDisconnected  Change = "disconnected"
	ChangeConversations Change = "conversations"
	ChangeMessages      Change = "messages"
	ChangeTyping        Change = "typing"
	ChangePresence      Change = "presence"
	ChangeNotifications Change = "notifications"
)

// effNotify fans a change out to the engine listener.
type effNotify struct {
	actor.EffectBase
	Change         Change
	ConversationID string
	Reason         string
}

// effNotifyNotification delivers a single pushed notification to the
// listener, in addition to the ChangeNotifications signal.
type effNotifyNotification struct {
	actor.EffectBase
	Notification types.Notification
}
