package sync

import (
	"strconv"

	"github.com/phyoewaiaung/devnexus-go/internal/actor"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// Reduce is the engine reducer: the single state transition function for
// every command and event.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	case cmdSend:
		return reduceSend(state, in)
	case cmdSetTyping:
		return reduceSetTyping(state, in)
	case cmdMarkRead:
		return reduceMarkRead(state, in)
	case cmdEnsureJoined:
		return state, ensureJoined(&state, in.ConversationID)
	case cmdLoadConversations:
		return state, []actor.Effect{effFetchConversations{Reply: in.Reply}}
	case cmdLoadHistory:
		return reduceLoadHistory(state, in)
	case cmdLoadNotifications:
		return reduceLoadNotifications(state, in)
	case cmdMarkNotificationsRead:
		return reduceMarkNotificationsRead(state, in)
	case cmdLeaveConversation:
		return reduceLeaveConversation(state, in)
	case cmdSnapshot:
		return state, []actor.Effect{effCompleteSnapshot{Reply: in.Reply, Snap: snapshot(state)}}

	case evConnecting:
		return reduceConnecting(state)
	case evConnected:
		return reduceConnected(state)
	case evDisconnected:
		return reduceDisconnected(state, in)
	case evMessageNew:
		return reduceMessageNew(state, in)
	case evTypingChanged:
		return reduceTypingChanged(state, in)
	case evPresenceSnapshot:
		return reducePresenceSnapshot(state, in)
	case evPresenceDelta:
		return reducePresenceDelta(state, in)
	case evMessageRead:
		return reduceMessageRead(state, in)
	case evNotificationNew:
		return reduceNotificationNew(state, in)
	case evNotificationCount:
		return reduceNotificationCount(state, in)
	case evTimerFired:
		return reduceTimerFired(state, in)
	case evSendAcked:
		return reduceSendAcked(state, in)
	case evSendFailed:
		return reduceSendFailed(state, in)
	case evConversationsLoaded:
		return reduceConversationsLoaded(state, in)
	case evConversationsLoadFailed:
		return state, []actor.Effect{effCompleteReply{Reply: in.Reply, Err: in.Err}}
	case evConversationFetched:
		return reduceConversationFetched(state, in)
	case evHistoryLoaded:
		return reduceHistoryLoaded(state, in)
	case evHistoryLoadFailed:
		return state, []actor.Effect{effCompleteHistory{Reply: in.Reply, Result: HistoryResult{Err: in.Err}}}
	case evNotificationsLoaded:
		return reduceNotificationsLoaded(state, in)
	case evNotificationsLoadFailed:
		return state, []actor.Effect{effCompleteReply{Reply: in.Reply, Err: in.Err}}

	default:
		return state, nil
	}
}

// Connection lifecycle

func reduceConnecting(state State) (State, []actor.Effect) {
	if state.Conn == ConnConnected {
		return state, nil
	}
	if state.everConnected {
		state.Conn = ConnReconnecting
	} else {
		state.Conn = ConnConnecting
	}
	return state, nil
}

func reduceConnected(state State) (State, []actor.Effect) {
	if state.Conn == ConnConnected {
		// The server "connected" event and the transport-level connect both
		// land here; the second one is a no-op.
		return state, nil
	}
	state.Conn = ConnConnected
	state.everConnected = true
	return state, []actor.Effect{
		effEmitJoinAll{},
		effNotify{Change: ChangeConnected},
	}
}

func reduceDisconnected(state State, ev evDisconnected) (State, []actor.Effect) {
	var effects []actor.Effect

	// Typing timers are dead weight once the connection drops; cancel them
	// before clearing the sets they guard.
	for convID, set := range state.Typing {
		for userID, gen := range set {
			effects = append(effects, effCancelTimer{Name: typingTimerName(convID, userID, gen)})
		}
	}

	// No assumption survives a reconnect: rooms must be re-joined, presence
	// must be repopulated from the next snapshot, typing state is stale.
	state.Rooms = make(map[string]bool)
	state.Online = make(map[string]bool)
	state.Typing = make(map[string]map[string]int)

	if state.everConnected {
		state.Conn = ConnReconnecting
	} else {
		state.Conn = ConnDisconnected
	}

	effects = append(effects, effNotify{Change: ChangeDisconnected, Reason: ev.Reason})
	return state, effects
}

// ensureJoined marks the conversation room joined on this connection and
// emits the join request if it was not. Idempotent per connection.
func ensureJoined(state *State, conversationID string) []actor.Effect {
	if conversationID == "" || state.Rooms[conversationID] {
		return nil
	}
	state.Rooms[conversationID] = true
	return []actor.Effect{effEmitJoinRoom{ConversationID: conversationID}}
}

// Typing

func reduceSetTyping(state State, cmd cmdSetTyping) (State, []actor.Effect) {
	effects := ensureJoined(&state, cmd.ConversationID)
	effects = append(effects, effEmitTyping{
		ConversationID: cmd.ConversationID,
		IsTyping:       cmd.IsTyping,
	})
	return state, effects
}

func reduceTypingChanged(state State, ev evTypingChanged) (State, []actor.Effect) {
	if ev.UserID == "" || ev.UserID == state.UserID {
		// The tracker only reflects other users.
		return state, nil
	}

	if ev.IsTyping {
		set := state.Typing[ev.ConversationID]
		if set == nil {
			set = make(map[string]int)
			state.Typing[ev.ConversationID] = set
		}
		// A repeat "typing" restarts the decay clock under a new generation.
		// The previous generation's timer is cancelled, and even if its fire
		// is already en route it no longer matches the recorded generation.
		gen := set[ev.UserID] + 1
		set[ev.UserID] = gen

		var effects []actor.Effect
		if gen > 1 {
			effects = append(effects, effCancelTimer{Name: typingTimerName(ev.ConversationID, ev.UserID, gen-1)})
		}
		effects = append(effects,
			effStartTimer{Name: typingTimerName(ev.ConversationID, ev.UserID, gen), AfterMs: typingTimeoutMs},
			effNotify{Change: ChangeTyping, ConversationID: ev.ConversationID},
		)
		return state, effects
	}

	set := state.Typing[ev.ConversationID]
	gen, ok := set[ev.UserID]
	if !ok {
		return state, nil
	}
	delete(set, ev.UserID)
	if len(set) == 0 {
		delete(state.Typing, ev.ConversationID)
	}
	return state, []actor.Effect{
		effCancelTimer{Name: typingTimerName(ev.ConversationID, ev.UserID, gen)},
		effNotify{Change: ChangeTyping, ConversationID: ev.ConversationID},
	}
}

// Presence

func reducePresenceSnapshot(state State, ev evPresenceSnapshot) (State, []actor.Effect) {
	state.Online = make(map[string]bool, len(ev.UserIDs))
	for _, id := range ev.UserIDs {
		if id != "" {
			state.Online[id] = true
		}
	}
	return state, []actor.Effect{effNotify{Change: ChangePresence}}
}

func reducePresenceDelta(state State, ev evPresenceDelta) (State, []actor.Effect) {
	if ev.UserID == "" {
		return state, nil
	}
	if ev.Online {
		if state.Online[ev.UserID] {
			return state, nil
		}
		state.Online[ev.UserID] = true
	} else {
		if !state.Online[ev.UserID] {
			return state, nil
		}
		delete(state.Online, ev.UserID)
	}
	return state, []actor.Effect{effNotify{Change: ChangePresence}}
}

// Timers

func reduceTimerFired(state State, ev evTimerFired) (State, []actor.Effect) {
	kind, parts := splitTimerName(ev.Name)
	switch kind {
	case timerKindTyping:
		if len(parts) != 3 {
			return state, nil
		}
		convID, userID := parts[0], parts[1]
		gen, err := strconv.Atoi(parts[2])
		if err != nil {
			return state, nil
		}
		set := state.Typing[convID]
		cur, ok := set[userID]
		if !ok || cur != gen {
			// Stale fire: the indicator was refreshed (or removed) after this
			// timer was armed but before its event was processed.
			return state, nil
		}
		delete(set, userID)
		if len(set) == 0 {
			delete(state.Typing, convID)
		}
		return state, []actor.Effect{effNotify{Change: ChangeTyping, ConversationID: convID}}

	case timerKindSendGC:
		if len(parts) != 1 {
			return state, nil
		}
		if p, ok := state.Pending[parts[0]]; ok && p.Phase == sendResolved {
			delete(state.Pending, parts[0])
		}
		return state, nil

	default:
		return state, nil
	}
}

// Notifications

func reduceLoadNotifications(state State, cmd cmdLoadNotifications) (State, []actor.Effect) {
	return state, []actor.Effect{effFetchNotifications{Limit: cmd.Limit, Reply: cmd.Reply}}
}

func reduceNotificationsLoaded(state State, ev evNotificationsLoaded) (State, []actor.Effect) {
	state.Notifications = append([]types.Notification(nil), ev.Notifications...)
	unread := 0
	for _, n := range state.Notifications {
		if !n.Read {
			unread++
		}
	}
	state.NotificationUnread = unread
	return state, []actor.Effect{
		effCompleteReply{Reply: ev.Reply},
		effNotify{Change: ChangeNotifications},
	}
}

func reduceNotificationNew(state State, ev evNotificationNew) (State, []actor.Effect) {
	n := ev.Notification
	if n.ID == "" {
		return state, nil
	}

	for i, existing := range state.Notifications {
		if existing.ID == n.ID {
			if !existing.Read && n.Read {
				state.NotificationUnread = max(0, state.NotificationUnread-1)
			}
			if existing.Read && !n.Read {
				state.NotificationUnread++
			}
			state.Notifications[i] = n
			return state, []actor.Effect{effNotify{Change: ChangeNotifications}}
		}
	}

	state.Notifications = append([]types.Notification{n}, state.Notifications...)
	if !n.Read {
		state.NotificationUnread++
	}
	return state, []actor.Effect{
		effNotifyNotification{Notification: n},
		effNotify{Change: ChangeNotifications},
	}
}

func reduceNotificationCount(state State, ev evNotificationCount) (State, []actor.Effect) {
	if ev.Unread < 0 {
		return state, nil
	}
	// The server count is authoritative even when it disagrees with the
	// local list; the list catches up on the next fetch.
	state.NotificationUnread = ev.Unread
	return state, []actor.Effect{effNotify{Change: ChangeNotifications}}
}

func reduceMarkNotificationsRead(state State, cmd cmdMarkNotificationsRead) (State, []actor.Effect) {
	var ids []string
	for i := range state.Notifications {
		if !state.Notifications[i].Read {
			ids = append(ids, state.Notifications[i].ID)
			state.Notifications[i].Read = true
		}
	}
	state.NotificationUnread = 0

	if len(ids) == 0 {
		return state, []actor.Effect{effCompleteReply{Reply: cmd.Reply}}
	}
	return state, []actor.Effect{
		effPersistNotificationsRead{IDs: ids, Reply: cmd.Reply},
		effNotify{Change: ChangeNotifications},
	}
}
