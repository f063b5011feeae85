// Package types defines the domain entities shared between the sync engine,
// the REST client, and the socket transport.
package types

import "github.com/google/uuid"

// NewClientID generates a client correlation id for an outbound message.
//
// The id travels with the send request so the server ack and the broadcast
// echo can both be matched back to the optimistic store entry.
func NewClientID() string {
	return "c-" + uuid.NewString()
}

// User is a minimal user reference as embedded in messages, participants and
// notifications.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Message is a single chat message.
//
// A message has exactly one authoritative identity at any time: the
// server-assigned ID once persisted, or the ClientID while an optimistic
// send is in flight. During the in-flight window it may carry both.
type Message struct {
	ID             string       `json:"id,omitempty"`
	ClientID       string       `json:"clientMsgId,omitempty"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	Text           string       `json:"text"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	// CreatedAt is a wall-clock timestamp in ms since epoch.
	CreatedAt int64 `json:"createdAt"`
	Read      bool  `json:"read"`
}

// Identity returns the resolved identity of the message: the server id when
// assigned, otherwise the client correlation id.
func (m Message) Identity() string {
	if m.ID != "" {
		return m.ID
	}
	return m.ClientID
}

// Participant roles and invite statuses as reported by the server.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"

	InvitePending  = "pending"
	InviteAccepted = "accepted"
)

// Participant is a member of a conversation.
type Participant struct {
	User         User   `json:"user"`
	Role         string `json:"role"`
	InviteStatus string `json:"inviteStatus,omitempty"`
}

// Conversation is a summary entry in the conversation list.
type Conversation struct {
	ID           string        `json:"id"`
	IsGroup      bool          `json:"isGroup"`
	Title        string        `json:"title,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UpdatedAt    int64         `json:"updatedAt"`
	UnreadCount  int           `json:"unreadCount"`
}

// NotificationType enumerates the notification kinds pushed by the server.
type NotificationType string

const (
	NotificationLike        NotificationType = "like"
	NotificationComment     NotificationType = "comment"
	NotificationFollow      NotificationType = "follow"
	NotificationChatInvite  NotificationType = "chat-invite"
	NotificationChatMessage NotificationType = "chat-message"
)

// Notification is a single notification stream item.
type Notification struct {
	ID    string           `json:"id"`
	Type  NotificationType `json:"type"`
	Actor User             `json:"actor"`
	// ConversationKind and ConversationTitle are set for chat-related kinds.
	ConversationKind  string `json:"conversationKind,omitempty"`
	ConversationTitle string `json:"conversationTitle,omitempty"`
	// Preview is a short excerpt of the triggering message, when applicable.
	Preview   string `json:"preview,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"createdAt"`
}
