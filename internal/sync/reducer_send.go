package sync

import (
	"github.com/phyoewaiaung/devnexus-go/internal/actor"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// Optimistic send, message store, and conversation-list reducers.
//
// A send has two independent resolution paths: the server ack
// (evSendAcked) and the broadcast echo (evMessageNew carrying the client
// correlation id). Either may arrive first; the pendingSend record's phase
// makes the second arrival a no-op, so the store ends with exactly one entry
// per logical message.

func reduceSend(state State, cmd cmdSend) (State, []actor.Effect) {
	if cmd.Text == "" && len(cmd.Attachments) == 0 {
		return state, []actor.Effect{effCompleteSend{
			Reply:  cmd.Reply,
			Result: SendResult{Err: ErrEmptyMessage},
		}}
	}

	msg := types.Message{
		ClientID:       cmd.ClientID,
		ConversationID: cmd.ConversationID,
		SenderID:       state.UserID,
		Text:           cmd.Text,
		Attachments:    cmd.Attachments,
		CreatedAt:      cmd.NowMs,
		Read:           true,
	}

	state.Messages[cmd.ConversationID] = append(state.Messages[cmd.ConversationID], msg)
	state.Pending[cmd.ClientID] = pendingSend{
		ConversationID: cmd.ConversationID,
		Phase:          sendPending,
		Reply:          cmd.Reply,
	}
	patchLastMessage(&state, cmd.ConversationID, msg)

	effects := ensureJoined(&state, cmd.ConversationID)
	effects = append(effects,
		effEmitSend{
			ConversationID: cmd.ConversationID,
			ClientID:       cmd.ClientID,
			Text:           cmd.Text,
			Attachments:    cmd.Attachments,
		},
		effNotify{Change: ChangeMessages, ConversationID: cmd.ConversationID},
		effNotify{Change: ChangeConversations},
	)
	return state, effects
}

// reduceSendAcked handles the direct-response path. The optimistic entry
// keeps its local content; only the identity flips to the server id.
func reduceSendAcked(state State, ev evSendAcked) (State, []actor.Effect) {
	p, ok := state.Pending[ev.ClientID]
	if !ok {
		// Rolled back, or the record was already garbage collected.
		return state, nil
	}

	if p.Phase == sendResolved {
		// The broadcast echo won the race; the record has served its
		// purpose.
		delete(state.Pending, ev.ClientID)
		return state, []actor.Effect{effCancelTimer{Name: sendGCTimerName(ev.ClientID)}}
	}

	resolved := ev.Message
	bucket := state.Messages[p.ConversationID]
	if i := indexByClientID(bucket, ev.ClientID); i >= 0 {
		bucket[i].ID = ev.Message.ID
		resolved = bucket[i]
	}
	if conv, ok := state.Conversations[p.ConversationID]; ok &&
		conv.LastMessage != nil && conv.LastMessage.ClientID == ev.ClientID {
		conv.LastMessage.ID = ev.Message.ID
		state.Conversations[p.ConversationID] = conv
	}

	return resolvePending(state, ev.ClientID, p, resolved)
}

// reduceSendFailed rolls back the optimistic entry, unless the broadcast
// echo already confirmed the message.
func reduceSendFailed(state State, ev evSendFailed) (State, []actor.Effect) {
	p, ok := state.Pending[ev.ClientID]
	if !ok || p.Phase == sendResolved {
		return state, nil
	}

	bucket := state.Messages[p.ConversationID]
	if i := indexByClientID(bucket, ev.ClientID); i >= 0 {
		state.Messages[p.ConversationID] = append(bucket[:i], bucket[i+1:]...)
	}
	recomputeLastMessage(&state, p.ConversationID)
	delete(state.Pending, ev.ClientID)

	return state, []actor.Effect{
		effCompleteSend{Reply: p.Reply, Result: SendResult{Err: ev.Err}},
		effNotify{Change: ChangeMessages, ConversationID: p.ConversationID},
		effNotify{Change: ChangeConversations},
	}
}

// resolvePending moves a pending send to resolved exactly once: it answers
// the caller, remembers the server id, and schedules the record for cleanup
// in case the complementary path never shows up.
func resolvePending(state State, clientID string, p pendingSend, resolved types.Message) (State, []actor.Effect) {
	effects := []actor.Effect{
		effCompleteSend{Reply: p.Reply, Result: SendResult{Message: resolved}},
		effStartTimer{Name: sendGCTimerName(clientID), AfterMs: resolvedSendGCMs},
		effNotify{Change: ChangeMessages, ConversationID: p.ConversationID},
	}

	p.Phase = sendResolved
	p.ServerID = resolved.ID
	p.Reply = nil
	state.Pending[clientID] = p
	return state, effects
}

// reduceMessageNew merges a server-broadcast message: echo resolution for
// local sends, dedupe-by-identity for everything else.
func reduceMessageNew(state State, ev evMessageNew) (State, []actor.Effect) {
	msg := ev.Message
	if msg.ID == "" {
		return state, nil
	}
	convID := ev.ConversationID
	if convID == "" {
		convID = msg.ConversationID
	}
	if convID == "" {
		return state, nil
	}
	msg.ConversationID = convID

	// Echo of a local in-flight send: replace the optimistic entry with the
	// authoritative copy.
	if msg.ClientID != "" {
		if p, ok := state.Pending[msg.ClientID]; ok {
			if p.Phase == sendPending {
				msg.Read = true
				bucket := state.Messages[p.ConversationID]
				if i := indexByClientID(bucket, msg.ClientID); i >= 0 {
					bucket[i] = msg
				} else {
					state.Messages[p.ConversationID] = append(bucket, msg)
				}
				patchLastMessage(&state, p.ConversationID, msg)
				next, effects := resolvePending(state, msg.ClientID, p, msg)
				return next, append(effects, effNotify{Change: ChangeConversations})
			}

			// Already resolved by the ack: overwrite in place by server id
			// and drop the record.
			msg.Read = true
			bucket := state.Messages[p.ConversationID]
			if i := indexByServerID(bucket, msg.ID); i >= 0 {
				bucket[i] = msg
			}
			delete(state.Pending, msg.ClientID)
			return state, []actor.Effect{
				effCancelTimer{Name: sendGCTimerName(msg.ClientID)},
				effNotify{Change: ChangeMessages, ConversationID: p.ConversationID},
			}
		}
	}

	// Duplicate of something already merged (history page vs live broadcast,
	// or a GC'd echo): overwrite in place, never append twice.
	bucket := state.Messages[convID]
	if i := indexByServerID(bucket, msg.ID); i >= 0 {
		msg.Read = bucket[i].Read || msg.Read
		bucket[i] = msg
		return state, []actor.Effect{effNotify{Change: ChangeMessages, ConversationID: convID}}
	}

	own := msg.SenderID == state.UserID
	if own {
		msg.Read = true
	}
	state.Messages[convID] = append(bucket, msg)

	effects := []actor.Effect{
		effNotify{Change: ChangeMessages, ConversationID: convID},
	}

	if conv, ok := state.Conversations[convID]; ok {
		if !own {
			conv.UnreadCount++
		}
		state.Conversations[convID] = conv
		patchLastMessage(&state, convID, msg)
		effects = append(effects, effNotify{Change: ChangeConversations})
	} else {
		// Message for a conversation we have never seen (fresh invite or a
		// list fetched before it existed); pull the summary in the
		// background.
		effects = append(effects, effFetchConversation{ConversationID: convID})
	}

	return state, effects
}

// reduceMessageRead applies an inbound read receipt: the other participant
// has seen the local user's messages in this conversation.
func reduceMessageRead(state State, ev evMessageRead) (State, []actor.Effect) {
	bucket := state.Messages[ev.ConversationID]
	changed := false
	for i := range bucket {
		if bucket[i].SenderID == state.UserID && !bucket[i].Read {
			bucket[i].Read = true
			changed = true
		}
	}
	if !changed {
		return state, nil
	}
	return state, []actor.Effect{effNotify{Change: ChangeMessages, ConversationID: ev.ConversationID}}
}

// Read state

func reduceMarkRead(state State, cmd cmdMarkRead) (State, []actor.Effect) {
	if conv, ok := state.Conversations[cmd.ConversationID]; ok {
		conv.UnreadCount = 0
		state.Conversations[cmd.ConversationID] = conv
	}
	bucket := state.Messages[cmd.ConversationID]
	for i := range bucket {
		bucket[i].Read = true
	}

	effects := ensureJoined(&state, cmd.ConversationID)
	effects = append(effects,
		effEmitMarkRead{ConversationID: cmd.ConversationID},
		effPersistMarkRead{ConversationID: cmd.ConversationID, Reply: cmd.Reply},
		effNotify{Change: ChangeConversations},
	)
	return state, effects
}

// Conversation list

func reduceConversationsLoaded(state State, ev evConversationsLoaded) (State, []actor.Effect) {
	state.Conversations = make(map[string]types.Conversation, len(ev.Conversations))
	for _, conv := range ev.Conversations {
		if conv.ID != "" {
			state.Conversations[conv.ID] = conv
		}
	}
	return state, []actor.Effect{
		effCompleteReply{Reply: ev.Reply},
		effNotify{Change: ChangeConversations},
	}
}

func reduceConversationFetched(state State, ev evConversationFetched) (State, []actor.Effect) {
	if ev.Conversation.ID == "" {
		return state, nil
	}
	state.Conversations[ev.Conversation.ID] = ev.Conversation
	return state, []actor.Effect{effNotify{Change: ChangeConversations}}
}

func reduceLeaveConversation(state State, cmd cmdLeaveConversation) (State, []actor.Effect) {
	var effects []actor.Effect
	for userID, gen := range state.Typing[cmd.ConversationID] {
		effects = append(effects, effCancelTimer{Name: typingTimerName(cmd.ConversationID, userID, gen)})
	}

	delete(state.Conversations, cmd.ConversationID)
	delete(state.Messages, cmd.ConversationID)
	delete(state.Typing, cmd.ConversationID)
	delete(state.Rooms, cmd.ConversationID)

	effects = append(effects,
		effDeleteConversation{ConversationID: cmd.ConversationID, Reply: cmd.Reply},
		effNotify{Change: ChangeConversations},
		effNotify{Change: ChangeMessages, ConversationID: cmd.ConversationID},
	)
	return state, effects
}

// History pagination

func reduceLoadHistory(state State, cmd cmdLoadHistory) (State, []actor.Effect) {
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	effects := ensureJoined(&state, cmd.ConversationID)
	effects = append(effects, effFetchHistory{
		ConversationID: cmd.ConversationID,
		Cursor:         cmd.Cursor,
		Limit:          limit,
		Reply:          cmd.Reply,
	})
	return state, effects
}

// reduceHistoryLoaded merges a fetched page (oldest first) into the bucket.
// History is always older than whatever arrived live or optimistically, so
// missing entries are prepended in page order; entries already present —
// under either identity — are skipped.
func reduceHistoryLoaded(state State, ev evHistoryLoaded) (State, []actor.Effect) {
	bucket := state.Messages[ev.ConversationID]

	seen := make(map[string]bool, len(bucket)*2)
	for _, m := range bucket {
		if m.ID != "" {
			seen[m.ID] = true
		}
		if m.ClientID != "" {
			seen[m.ClientID] = true
		}
	}

	var fresh []types.Message
	for _, m := range ev.Messages {
		if m.ID == "" || seen[m.ID] || (m.ClientID != "" && seen[m.ClientID]) {
			continue
		}
		m.ConversationID = ev.ConversationID
		fresh = append(fresh, m)
	}

	effects := []actor.Effect{effCompleteHistory{
		Reply: ev.Reply,
		Result: HistoryResult{
			Messages:   append([]types.Message(nil), ev.Messages...),
			NextCursor: ev.NextCursor,
		},
	}}

	if len(fresh) == 0 {
		return state, effects
	}
	state.Messages[ev.ConversationID] = append(fresh, bucket...)
	effects = append(effects, effNotify{Change: ChangeMessages, ConversationID: ev.ConversationID})
	return state, effects
}

// Bucket helpers

func indexByClientID(bucket []types.Message, clientID string) int {
	for i := range bucket {
		if bucket[i].ClientID == clientID {
			return i
		}
	}
	return -1
}

func indexByServerID(bucket []types.Message, id string) int {
	for i := range bucket {
		if bucket[i].ID == id {
			return i
		}
	}
	return -1
}

// patchLastMessage points the conversation summary at msg when the
// conversation is known.
func patchLastMessage(state *State, conversationID string, msg types.Message) {
	conv, ok := state.Conversations[conversationID]
	if !ok {
		return
	}
	last := msg
	conv.LastMessage = &last
	if msg.CreatedAt > conv.UpdatedAt {
		conv.UpdatedAt = msg.CreatedAt
	}
	state.Conversations[conversationID] = conv
}

// recomputeLastMessage re-derives the summary's last message after a
// rollback: the next most recent bucket entry, or nothing.
func recomputeLastMessage(state *State, conversationID string) {
	conv, ok := state.Conversations[conversationID]
	if !ok {
		return
	}
	bucket := state.Messages[conversationID]
	if len(bucket) == 0 {
		conv.LastMessage = nil
	} else {
		last := bucket[len(bucket)-1]
		conv.LastMessage = &last
		conv.UpdatedAt = last.CreatedAt
	}
	state.Conversations[conversationID] = conv
}
