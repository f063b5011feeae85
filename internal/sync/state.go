// Package sync implements the client-side realtime state synchronization
// engine: connection lifecycle, room membership, the optimistic-send
// reconcile protocol, typing decay, presence, and conversation/notification
// bookkeeping.
//
// All state lives behind a single actor loop. Callers issue commands and the
// transport feeds events; a pure reducer applies both, which keeps the
// racy parts (ack vs broadcast echo, typing timers vs new events) correct
// under any interleaving.
package sync

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// ErrEmptyMessage rejects a send with neither text nor attachments.
var ErrEmptyMessage = errors.New("message has no text or attachments")

// ErrStopped is returned when the engine has been closed.
var ErrStopped = errors.New("sync engine stopped")

// ErrBusy is returned when the engine mailbox is full. The condition is
// transient; the engine is still running.
var ErrBusy = errors.New("sync engine mailbox full")

const (
	// typingTimeoutMs is how long a typing indicator survives without a
	// refresh before it decays.
	typingTimeoutMs = 5000

	// resolvedSendGCMs is how long a resolved pending-send record is kept
	// around so the second resolution path can detect "already resolved"
	// before the record is dropped.
	resolvedSendGCMs = 60000

	// defaultHistoryLimit is the page size used when a caller passes none.
	defaultHistoryLimit = 30
)

// ConnState is the connection lifecycle state.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
)

// sendPhase tracks a pending send through its two-state lifecycle.
type sendPhase int

const (
	sendPending sendPhase = iota
	sendResolved
)

// pendingSend is the reconciliation record for one optimistic send, keyed by
// client correlation id. Whichever resolution path (server ack or broadcast
// echo) arrives first moves it to sendResolved; the later arrival observes
// the phase and becomes a no-op.
type pendingSend struct {
	ConversationID string
	Phase          sendPhase
	ServerID       string
	Reply          chan SendResult
}

// SendResult is the final outcome of a send, delivered asynchronously.
type SendResult struct {
	Message types.Message
	Err     error
}

// HistoryResult is the outcome of a history page load.
type HistoryResult struct {
	Messages   []types.Message
	NextCursor string
	Err        error
}

// State is the loop-owned engine state. The reducer is the only writer.
type State struct {
	UserID string

	Conn ConnState
	// everConnected distinguishes Reconnecting from the initial
	// Disconnected/Connecting states after a transport drop.
	everConnected bool

	// Rooms tracks conversation rooms joined on the current connection.
	// Cleared on every disconnect; the server forgets joins across
	// reconnects.
	Rooms map[string]bool

	// Conversations is the summary list, keyed by conversation id.
	Conversations map[string]types.Conversation

	// Messages holds the per-conversation ordered buckets.
	Messages map[string][]types.Message

	// Pending holds optimistic-send reconciliation records by client id.
	Pending map[string]pendingSend

	// Typing maps conversation id -> remote user id -> the generation of the
	// decay timer currently guarding that indicator. Each refresh bumps the
	// generation, so a fire from an earlier generation is recognizably stale.
	Typing map[string]map[string]int

	// Online is the presence set. Absence means offline.
	Online map[string]bool

	Notifications      []types.Notification
	NotificationUnread int
}

// NewState returns the empty engine state for a session.
func NewState(userID string) State {
	return State{
		UserID:        userID,
		Conn:          ConnDisconnected,
		Rooms:         make(map[string]bool),
		Conversations: make(map[string]types.Conversation),
		Messages:      make(map[string][]types.Message),
		Pending:       make(map[string]pendingSend),
		Typing:        make(map[string]map[string]int),
		Online:        make(map[string]bool),
	}
}

// Timer name layout. Conversation and user ids are opaque server ids that
// never contain '/'.
const (
	timerKindTyping = "typing"
	timerKindSendGC = "sendgc"
)

// typingTimerName embeds the generation so a fire can be matched against the
// generation currently recorded in state. A fire whose generation is behind
// the recorded one was superseded by a refresh while it sat in the mailbox.
func typingTimerName(conversationID, userID string, gen int) string {
	return timerKindTyping + "/" + conversationID + "/" + userID + "/" + strconv.Itoa(gen)
}

func sendGCTimerName(clientID string) string {
	return timerKindSendGC + "/" + clientID
}

// splitTimerName splits a timer name into its kind and parts.
func splitTimerName(name string) (kind string, parts []string) {
	fields := strings.Split(name, "/")
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// Snapshot is a deep copy of the observable engine state handed to
// consumers. Consumers never see the live maps.
type Snapshot struct {
	Connection         ConnState
	Conversations      []types.Conversation
	Messages           map[string][]types.Message
	Typing             map[string][]string
	Online             []string
	JoinedRooms        []string
	Notifications      []types.Notification
	NotificationUnread int
}

// snapshot builds a Snapshot from the current state. Runs inside the
// reducer, so it sees a consistent view.
func snapshot(state State) Snapshot {
	snap := Snapshot{
		Connection:         state.Conn,
		Messages:           make(map[string][]types.Message, len(state.Messages)),
		Typing:             make(map[string][]string, len(state.Typing)),
		NotificationUnread: state.NotificationUnread,
	}

	snap.Conversations = make([]types.Conversation, 0, len(state.Conversations))
	for _, conv := range state.Conversations {
		snap.Conversations = append(snap.Conversations, copyConversation(conv))
	}
	// Most recently updated first; ties broken by id for determinism.
	sort.Slice(snap.Conversations, func(i, j int) bool {
		a, b := snap.Conversations[i], snap.Conversations[j]
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		return a.ID < b.ID
	})

	for id, bucket := range state.Messages {
		snap.Messages[id] = append([]types.Message(nil), bucket...)
	}
	for id, set := range state.Typing {
		if len(set) == 0 {
			continue
		}
		users := make([]string, 0, len(set))
		for u := range set {
			users = append(users, u)
		}
		sort.Strings(users)
		snap.Typing[id] = users
	}
	for id, online := range state.Online {
		if online {
			snap.Online = append(snap.Online, id)
		}
	}
	sort.Strings(snap.Online)
	for id := range state.Rooms {
		snap.JoinedRooms = append(snap.JoinedRooms, id)
	}
	sort.Strings(snap.JoinedRooms)

	snap.Notifications = append([]types.Notification(nil), state.Notifications...)
	return snap
}

func copyConversation(conv types.Conversation) types.Conversation {
	out := conv
	out.Participants = append([]types.Participant(nil), conv.Participants...)
	if conv.LastMessage != nil {
		last := *conv.LastMessage
		out.LastMessage = &last
	}
	return out
}
