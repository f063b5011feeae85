package sync

import (
	"errors"
	"testing"

	"github.com/phyoewaiaung/devnexus-go/internal/actor"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

const (
	testUser  = "u-local"
	otherUser = "u-remote"
	testConv  = "conv-1"
)

func connectedState() State {
	state := NewState(testUser)
	state, _ = Reduce(state, evConnected{})
	return state
}

func effectsOfType[T actor.Effect](t *testing.T, effects []actor.Effect) []T {
	t.Helper()
	var out []T
	for _, eff := range effects {
		if typed, ok := eff.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func singleEffect[T actor.Effect](t *testing.T, effects []actor.Effect) T {
	t.Helper()
	found := effectsOfType[T](t, effects)
	if len(found) != 1 {
		t.Fatalf("want exactly one %T, got %d in %#v", *new(T), len(found), effects)
	}
	return found[0]
}

func hasEffect[T actor.Effect](effects []actor.Effect) bool {
	for _, eff := range effects {
		if _, ok := eff.(T); ok {
			return true
		}
	}
	return false
}

func startSend(t *testing.T, state State, clientID, text string) (State, chan SendResult) {
	t.Helper()
	reply := make(chan SendResult, 1)
	state, effects := Reduce(state, cmdSend{
		ConversationID: testConv,
		ClientID:       clientID,
		Text:           text,
		NowMs:          1000,
		Reply:          reply,
	})
	if !hasEffect[effEmitSend](effects) {
		t.Fatalf("send did not emit over transport: %#v", effects)
	}
	return state, reply
}

// Connection lifecycle

func TestConnectJoinsAllRooms(t *testing.T) {
	t.Parallel()

	state := NewState(testUser)
	state, effects := Reduce(state, evConnected{})

	if state.Conn != ConnConnected {
		t.Fatalf("conn=%v, want connected", state.Conn)
	}
	if !hasEffect[effEmitJoinAll](effects) {
		t.Fatalf("missing join-all effect: %#v", effects)
	}

	// A repeated connected event is a no-op.
	_, effects = Reduce(state, evConnected{})
	if len(effects) != 0 {
		t.Fatalf("repeat connected produced effects: %#v", effects)
	}
}

func TestDisconnectClearsVolatileState(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, _ = Reduce(state, cmdEnsureJoined{ConversationID: testConv})
	state, _ = Reduce(state, evPresenceDelta{UserID: otherUser, Online: true})
	state, _ = Reduce(state, evTypingChanged{ConversationID: testConv, UserID: otherUser, IsTyping: true})

	state, effects := Reduce(state, evDisconnected{Reason: "transport close"})

	if state.Conn != ConnReconnecting {
		t.Fatalf("conn=%v, want reconnecting", state.Conn)
	}
	if len(state.Rooms) != 0 || len(state.Online) != 0 || len(state.Typing) != 0 {
		t.Fatalf("volatile state survived disconnect: rooms=%v online=%v typing=%v",
			state.Rooms, state.Online, state.Typing)
	}
	cancel := singleEffect[effCancelTimer](t, effects)
	if cancel.Name != typingTimerName(testConv, otherUser, 1) {
		t.Fatalf("cancelled timer %q", cancel.Name)
	}

	// Reconnecting re-joins all rooms, and the room must be re-joined lazily
	// afterwards.
	state, effects = Reduce(state, evConnected{})
	if !hasEffect[effEmitJoinAll](effects) {
		t.Fatalf("reconnect did not join all rooms")
	}
	_, effects = Reduce(state, cmdEnsureJoined{ConversationID: testConv})
	if !hasEffect[effEmitJoinRoom](effects) {
		t.Fatalf("room join was not re-emitted after reconnect")
	}
}

func TestInitialDisconnectIsNotReconnecting(t *testing.T) {
	t.Parallel()

	state := NewState(testUser)
	state, _ = Reduce(state, evDisconnected{Reason: "dial failed"})
	if state.Conn != ConnDisconnected {
		t.Fatalf("conn=%v, want disconnected before any successful connect", state.Conn)
	}
}

// Optimistic send

func TestSendEmptyIsRejected(t *testing.T) {
	t.Parallel()

	state := connectedState()
	reply := make(chan SendResult, 1)
	state, effects := Reduce(state, cmdSend{ConversationID: testConv, ClientID: "c-1", Reply: reply})

	complete := singleEffect[effCompleteSend](t, effects)
	if !errors.Is(complete.Result.Err, ErrEmptyMessage) {
		t.Fatalf("err=%v, want ErrEmptyMessage", complete.Result.Err)
	}
	if len(state.Messages[testConv]) != 0 || len(state.Pending) != 0 {
		t.Fatalf("rejected send mutated state")
	}
}

func TestSendAppendsOptimisticMessage(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, _ = startSend(t, state, "c-1", "hello")

	bucket := state.Messages[testConv]
	if len(bucket) != 1 {
		t.Fatalf("bucket len=%d, want 1", len(bucket))
	}
	msg := bucket[0]
	if msg.ID != "" || msg.ClientID != "c-1" || msg.SenderID != testUser || !msg.Read {
		t.Fatalf("optimistic message wrong: %+v", msg)
	}
	p, ok := state.Pending["c-1"]
	if !ok || p.Phase != sendPending || p.ConversationID != testConv {
		t.Fatalf("pending record wrong: %+v ok=%v", p, ok)
	}
}

func TestSendAckThenEcho(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, reply := startSend(t, state, "c-1", "hello")

	server := types.Message{ID: "m-9", ClientID: "c-1", ConversationID: testConv, SenderID: testUser, Text: "hello", CreatedAt: 1200}

	state, effects := Reduce(state, evSendAcked{ClientID: "c-1", Message: server})

	complete := singleEffect[effCompleteSend](t, effects)
	if complete.Result.Err != nil || complete.Result.Message.ID != "m-9" {
		t.Fatalf("ack completion wrong: %+v", complete.Result)
	}
	if complete.Reply != reply {
		t.Fatalf("completion targets wrong reply channel")
	}
	gc := singleEffect[effStartTimer](t, effects)
	if gc.Name != sendGCTimerName("c-1") {
		t.Fatalf("gc timer %q", gc.Name)
	}
	if p := state.Pending["c-1"]; p.Phase != sendResolved || p.ServerID != "m-9" {
		t.Fatalf("record not resolved: %+v", p)
	}

	bucket := state.Messages[testConv]
	if len(bucket) != 1 || bucket[0].ID != "m-9" || bucket[0].ClientID != "c-1" {
		t.Fatalf("identity swap wrong: %+v", bucket)
	}

	// The broadcast echo arrives second: the record is dropped, nothing is
	// duplicated, no second completion.
	state, effects = Reduce(state, evMessageNew{ConversationID: testConv, Message: server})
	if hasEffect[effCompleteSend](effects) {
		t.Fatalf("echo after ack completed the send twice")
	}
	if !hasEffect[effCancelTimer](effects) {
		t.Fatalf("echo after ack did not cancel the gc timer")
	}
	if _, ok := state.Pending["c-1"]; ok {
		t.Fatalf("record survived both resolution paths")
	}
	if len(state.Messages[testConv]) != 1 {
		t.Fatalf("message duplicated: %+v", state.Messages[testConv])
	}
}

func TestSendEchoThenAck(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, _ = startSend(t, state, "c-1", "hello")

	server := types.Message{ID: "m-9", ClientID: "c-1", ConversationID: testConv, SenderID: testUser, Text: "hello", CreatedAt: 1200}

	state, effects := Reduce(state, evMessageNew{ConversationID: testConv, Message: server})

	complete := singleEffect[effCompleteSend](t, effects)
	if complete.Result.Message.ID != "m-9" {
		t.Fatalf("echo completion wrong: %+v", complete.Result)
	}
	bucket := state.Messages[testConv]
	if len(bucket) != 1 || bucket[0].ID != "m-9" || !bucket[0].Read {
		t.Fatalf("echo did not replace optimistic entry: %+v", bucket)
	}

	state, effects = Reduce(state, evSendAcked{ClientID: "c-1", Message: server})
	if hasEffect[effCompleteSend](effects) {
		t.Fatalf("ack after echo completed the send twice")
	}
	if _, ok := state.Pending["c-1"]; ok {
		t.Fatalf("record survived both resolution paths")
	}
	if len(state.Messages[testConv]) != 1 {
		t.Fatalf("message duplicated: %+v", state.Messages[testConv])
	}
}

func TestConcurrentSendsResolveOutOfOrder(t *testing.T) {
	t.Parallel()

	// Two sends are in flight at once; the second one's ack arrives first.
	// Each resolves through its own record and the bucket keeps send order.
	state := connectedState()
	state, replyA := startSend(t, state, "c-a", "first")
	state, replyB := startSend(t, state, "c-b", "second")

	state, effects := Reduce(state, evSendAcked{ClientID: "c-b", Message: types.Message{ID: "m-b", ClientID: "c-b", ConversationID: testConv, Text: "second"}})
	if got := singleEffect[effCompleteSend](t, effects); got.Reply != replyB || got.Result.Message.ID != "m-b" {
		t.Fatalf("second ack resolved the wrong send: %+v", got)
	}
	if p := state.Pending["c-a"]; p.Phase != sendPending {
		t.Fatalf("first send disturbed by second ack: %+v", p)
	}

	state, effects = Reduce(state, evSendAcked{ClientID: "c-a", Message: types.Message{ID: "m-a", ClientID: "c-a", ConversationID: testConv, Text: "first"}})
	if got := singleEffect[effCompleteSend](t, effects); got.Reply != replyA || got.Result.Message.ID != "m-a" {
		t.Fatalf("first ack resolved the wrong send: %+v", got)
	}

	bucket := state.Messages[testConv]
	if len(bucket) != 2 {
		t.Fatalf("bucket len=%d, want 2", len(bucket))
	}
	if bucket[0].ID != "m-a" || bucket[0].Text != "first" || bucket[1].ID != "m-b" || bucket[1].Text != "second" {
		t.Fatalf("send order not preserved: %+v", bucket)
	}
}

func TestSendFailureRollsBack(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Conversations[testConv] = types.Conversation{ID: testConv}
	state, _ = startSend(t, state, "c-1", "hello")

	sendErr := errors.New("ack timeout")
	state, effects := Reduce(state, evSendFailed{ClientID: "c-1", Err: sendErr})

	complete := singleEffect[effCompleteSend](t, effects)
	if !errors.Is(complete.Result.Err, sendErr) {
		t.Fatalf("failure err=%v", complete.Result.Err)
	}
	if len(state.Messages[testConv]) != 0 {
		t.Fatalf("optimistic entry survived rollback: %+v", state.Messages[testConv])
	}
	if _, ok := state.Pending["c-1"]; ok {
		t.Fatalf("pending record survived rollback")
	}
	if state.Conversations[testConv].LastMessage != nil {
		t.Fatalf("last message not recomputed after rollback")
	}
}

func TestSendFailureAfterEchoIsIgnored(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, _ = startSend(t, state, "c-1", "hello")

	server := types.Message{ID: "m-9", ClientID: "c-1", ConversationID: testConv, SenderID: testUser, Text: "hello"}
	state, _ = Reduce(state, evMessageNew{ConversationID: testConv, Message: server})

	state, effects := Reduce(state, evSendFailed{ClientID: "c-1", Err: errors.New("late timeout")})
	if len(effects) != 0 {
		t.Fatalf("late failure produced effects: %#v", effects)
	}
	if len(state.Messages[testConv]) != 1 {
		t.Fatalf("confirmed message was rolled back")
	}
}

func TestSendGCTimerDropsResolvedRecord(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, _ = startSend(t, state, "c-1", "hello")
	state, _ = Reduce(state, evSendAcked{ClientID: "c-1", Message: types.Message{ID: "m-9", ClientID: "c-1", ConversationID: testConv}})

	state, _ = Reduce(state, evTimerFired{Name: sendGCTimerName("c-1"), NowMs: 70000})
	if _, ok := state.Pending["c-1"]; ok {
		t.Fatalf("gc timer did not drop resolved record")
	}

	// A very late echo after GC falls through to generic dedupe and must not
	// duplicate the message.
	state, _ = Reduce(state, evMessageNew{ConversationID: testConv, Message: types.Message{ID: "m-9", ClientID: "c-1", ConversationID: testConv, SenderID: testUser}})
	if len(state.Messages[testConv]) != 1 {
		t.Fatalf("late echo duplicated message: %+v", state.Messages[testConv])
	}
}

// Inbound messages and unread accounting

func TestInboundMessageIncrementsUnread(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Conversations[testConv] = types.Conversation{ID: testConv}

	inbound := types.Message{ID: "m-1", ConversationID: testConv, SenderID: otherUser, Text: "hi", CreatedAt: 500}
	state, _ = Reduce(state, evMessageNew{ConversationID: testConv, Message: inbound})

	conv := state.Conversations[testConv]
	if conv.UnreadCount != 1 {
		t.Fatalf("unread=%d, want 1", conv.UnreadCount)
	}
	if conv.LastMessage == nil || conv.LastMessage.ID != "m-1" {
		t.Fatalf("last message not updated: %+v", conv.LastMessage)
	}

	// A duplicate of the same server id must not double count.
	state, _ = Reduce(state, evMessageNew{ConversationID: testConv, Message: inbound})
	if got := state.Conversations[testConv].UnreadCount; got != 1 {
		t.Fatalf("duplicate incremented unread: %d", got)
	}
	if len(state.Messages[testConv]) != 1 {
		t.Fatalf("duplicate appended: %+v", state.Messages[testConv])
	}
}

func TestInboundOwnMessageDoesNotCountUnread(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Conversations[testConv] = types.Conversation{ID: testConv}

	own := types.Message{ID: "m-1", ConversationID: testConv, SenderID: testUser, Text: "from other device"}
	state, _ = Reduce(state, evMessageNew{ConversationID: testConv, Message: own})

	if got := state.Conversations[testConv].UnreadCount; got != 0 {
		t.Fatalf("own message counted unread: %d", got)
	}
	if bucket := state.Messages[testConv]; len(bucket) != 1 || !bucket[0].Read {
		t.Fatalf("own message not stored read: %+v", bucket)
	}
}

func TestInboundMessageForUnknownConversationFetchesSummary(t *testing.T) {
	t.Parallel()

	state := connectedState()
	inbound := types.Message{ID: "m-1", ConversationID: "conv-new", SenderID: otherUser}
	state, effects := Reduce(state, evMessageNew{ConversationID: "conv-new", Message: inbound})

	fetch := singleEffect[effFetchConversation](t, effects)
	if fetch.ConversationID != "conv-new" {
		t.Fatalf("fetch targets %q", fetch.ConversationID)
	}
	if len(state.Messages["conv-new"]) != 1 {
		t.Fatalf("message not stored while summary is missing")
	}
}

func TestMarkReadResetsLocallyAndPersists(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Conversations[testConv] = types.Conversation{ID: testConv, UnreadCount: 3}
	state.Messages[testConv] = []types.Message{
		{ID: "m-1", ConversationID: testConv, SenderID: otherUser},
	}

	reply := make(chan error, 1)
	state, effects := Reduce(state, cmdMarkRead{ConversationID: testConv, Reply: reply})

	if got := state.Conversations[testConv].UnreadCount; got != 0 {
		t.Fatalf("unread=%d after mark read", got)
	}
	if !state.Messages[testConv][0].Read {
		t.Fatalf("messages not flipped read")
	}
	if !hasEffect[effEmitMarkRead](effects) {
		t.Fatalf("read receipt not emitted")
	}
	persist := singleEffect[effPersistMarkRead](t, effects)
	if persist.ConversationID != testConv || persist.Reply != reply {
		t.Fatalf("persist effect wrong: %+v", persist)
	}
}

func TestReadReceiptMarksOwnMessages(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Messages[testConv] = []types.Message{
		{ID: "m-1", SenderID: testUser, Read: false},
		{ID: "m-2", SenderID: otherUser, Read: false},
	}

	state, _ = Reduce(state, evMessageRead{ConversationID: testConv})

	bucket := state.Messages[testConv]
	if !bucket[0].Read {
		t.Fatalf("own message not marked read by receipt")
	}
	if bucket[1].Read {
		t.Fatalf("receipt flipped the other participant's message")
	}
}

// Typing

func TestTypingDecayAndRefresh(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, effects := Reduce(state, evTypingChanged{ConversationID: testConv, UserID: otherUser, IsTyping: true})

	timer := singleEffect[effStartTimer](t, effects)
	if timer.Name != typingTimerName(testConv, otherUser, 1) || timer.AfterMs != typingTimeoutMs {
		t.Fatalf("timer wrong: %+v", timer)
	}
	if state.Typing[testConv][otherUser] != 1 {
		t.Fatalf("typing not tracked: %v", state.Typing)
	}

	// A repeat restarts the decay clock under the next generation and
	// cancels the previous one.
	state, effects = Reduce(state, evTypingChanged{ConversationID: testConv, UserID: otherUser, IsTyping: true})
	if got := singleEffect[effStartTimer](t, effects).Name; got != typingTimerName(testConv, otherUser, 2) {
		t.Fatalf("refresh started %q", got)
	}
	if got := singleEffect[effCancelTimer](t, effects).Name; got != typingTimerName(testConv, otherUser, 1) {
		t.Fatalf("refresh cancelled %q", got)
	}

	state, _ = Reduce(state, evTimerFired{Name: typingTimerName(testConv, otherUser, 2), NowMs: 6000})
	if len(state.Typing[testConv]) != 0 {
		t.Fatalf("typing survived decay: %v", state.Typing)
	}
}

func TestTypingRefreshIgnoresStaleTimerFire(t *testing.T) {
	t.Parallel()

	// The first generation's timer fires while the refresh is still ahead of
	// it in the mailbox; by the time the fire is processed the indicator has
	// been refreshed and must survive until the new deadline.
	state := connectedState()
	state, _ = Reduce(state, evTypingChanged{ConversationID: testConv, UserID: otherUser, IsTyping: true})
	state, _ = Reduce(state, evTypingChanged{ConversationID: testConv, UserID: otherUser, IsTyping: true})

	state, effects := Reduce(state, evTimerFired{Name: typingTimerName(testConv, otherUser, 1), NowMs: 5100})
	if len(effects) != 0 {
		t.Fatalf("stale fire produced effects: %#v", effects)
	}
	if state.Typing[testConv][otherUser] != 2 {
		t.Fatalf("stale fire removed a refreshed indicator: %v", state.Typing)
	}

	// The live generation's fire still decays it.
	state, _ = Reduce(state, evTimerFired{Name: typingTimerName(testConv, otherUser, 2), NowMs: 10100})
	if len(state.Typing[testConv]) != 0 {
		t.Fatalf("live fire did not decay the indicator: %v", state.Typing)
	}
}

func TestTypingExplicitStopCancelsTimer(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, _ = Reduce(state, evTypingChanged{ConversationID: testConv, UserID: otherUser, IsTyping: true})
	state, effects := Reduce(state, evTypingChanged{ConversationID: testConv, UserID: otherUser, IsTyping: false})

	cancel := singleEffect[effCancelTimer](t, effects)
	if cancel.Name != typingTimerName(testConv, otherUser, 1) {
		t.Fatalf("cancelled %q", cancel.Name)
	}
	if len(state.Typing) != 0 {
		t.Fatalf("typing set not cleared")
	}
}

func TestOwnTypingEventIsIgnored(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, effects := Reduce(state, evTypingChanged{ConversationID: testConv, UserID: testUser, IsTyping: true})
	if len(effects) != 0 || len(state.Typing) != 0 {
		t.Fatalf("local user's own typing echo was tracked")
	}
}

// Presence

func TestPresenceSnapshotReplacesWholesale(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, _ = Reduce(state, evPresenceDelta{UserID: "u-gone", Online: true})
	state, _ = Reduce(state, evPresenceSnapshot{UserIDs: []string{"u-a", "u-b"}})

	if state.Online["u-gone"] {
		t.Fatalf("snapshot did not replace previous presence")
	}
	if !state.Online["u-a"] || !state.Online["u-b"] {
		t.Fatalf("snapshot members missing: %v", state.Online)
	}

	state, _ = Reduce(state, evPresenceDelta{UserID: "u-a", Online: false})
	if state.Online["u-a"] {
		t.Fatalf("delta did not remove user")
	}

	// A no-op delta produces no change notification.
	_, effects := Reduce(state, evPresenceDelta{UserID: "u-a", Online: false})
	if len(effects) != 0 {
		t.Fatalf("no-op delta produced effects: %#v", effects)
	}
}

// History

func TestHistoryMergePreservesOrderWithoutDuplicates(t *testing.T) {
	t.Parallel()

	mk := func(n int) types.Message {
		return types.Message{ID: "m-" + string(rune('0'+n/10)) + string(rune('0'+n%10)), ConversationID: testConv, CreatedAt: int64(n)}
	}

	state := connectedState()
	// Recent page already loaded, plus one live message.
	for n := 21; n <= 31; n++ {
		state.Messages[testConv] = append(state.Messages[testConv], mk(n))
	}

	// An older page arrives, overlapping nothing.
	var page []types.Message
	for n := 11; n <= 20; n++ {
		page = append(page, mk(n))
	}
	reply := make(chan HistoryResult, 1)
	state, effects := Reduce(state, evHistoryLoaded{ConversationID: testConv, Messages: page, NextCursor: "m-11", Reply: reply})

	complete := singleEffect[effCompleteHistory](t, effects)
	if complete.Result.NextCursor != "m-11" || len(complete.Result.Messages) != 10 {
		t.Fatalf("history completion wrong: %+v", complete.Result)
	}

	bucket := state.Messages[testConv]
	if len(bucket) != 21 {
		t.Fatalf("bucket len=%d, want 21", len(bucket))
	}
	for i := 0; i < len(bucket); i++ {
		if want := int64(11 + i); bucket[i].CreatedAt != want {
			t.Fatalf("bucket[%d].CreatedAt=%d, want %d", i, bucket[i].CreatedAt, want)
		}
	}

	// Re-fetching the same page changes nothing.
	state, _ = Reduce(state, evHistoryLoaded{ConversationID: testConv, Messages: page, Reply: nil})
	if len(state.Messages[testConv]) != 21 {
		t.Fatalf("duplicate page grew the bucket")
	}
}

func TestHistorySkipsOptimisticDuplicatesByClientID(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, _ = startSend(t, state, "c-1", "hello")

	// The history page contains the persisted form of the in-flight send.
	page := []types.Message{{ID: "m-9", ClientID: "c-1", ConversationID: testConv, Text: "hello"}}
	state, _ = Reduce(state, evHistoryLoaded{ConversationID: testConv, Messages: page})

	if len(state.Messages[testConv]) != 1 {
		t.Fatalf("history duplicated an in-flight send: %+v", state.Messages[testConv])
	}
}

// Conversations

func TestConversationsLoadedReplacesList(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Conversations["stale"] = types.Conversation{ID: "stale"}

	reply := make(chan error, 1)
	state, effects := Reduce(state, evConversationsLoaded{
		Conversations: []types.Conversation{{ID: "a"}, {ID: "b"}},
		Reply:         reply,
	})

	if _, ok := state.Conversations["stale"]; ok {
		t.Fatalf("stale conversation survived bulk load")
	}
	if len(state.Conversations) != 2 {
		t.Fatalf("conversations=%v", state.Conversations)
	}
	if singleEffect[effCompleteReply](t, effects).Reply != reply {
		t.Fatalf("bulk load did not complete its reply")
	}
}

func TestLeaveConversationDropsAllLocalState(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Conversations[testConv] = types.Conversation{ID: testConv}
	state.Messages[testConv] = []types.Message{{ID: "m-1"}}
	state, _ = Reduce(state, cmdEnsureJoined{ConversationID: testConv})
	state, _ = Reduce(state, evTypingChanged{ConversationID: testConv, UserID: otherUser, IsTyping: true})

	reply := make(chan error, 1)
	state, effects := Reduce(state, cmdLeaveConversation{ConversationID: testConv, Reply: reply})

	if _, ok := state.Conversations[testConv]; ok {
		t.Fatalf("conversation survived leave")
	}
	if len(state.Messages[testConv]) != 0 || len(state.Typing[testConv]) != 0 || state.Rooms[testConv] {
		t.Fatalf("leave left residue behind")
	}
	if !hasEffect[effCancelTimer](effects) {
		t.Fatalf("typing timer not cancelled on leave")
	}
	if singleEffect[effDeleteConversation](t, effects).ConversationID != testConv {
		t.Fatalf("server delete not requested")
	}
}

// Notifications

func TestNotificationPushAndAuthoritativeCount(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state, effects := Reduce(state, evNotificationNew{Notification: types.Notification{ID: "n-1", Type: types.NotificationChatMessage}})

	if state.NotificationUnread != 1 || len(state.Notifications) != 1 {
		t.Fatalf("push not tracked: unread=%d list=%d", state.NotificationUnread, len(state.Notifications))
	}
	if !hasEffect[effNotifyNotification](effects) {
		t.Fatalf("push not surfaced to listener")
	}

	// Same id again upserts rather than duplicating.
	state, effects = Reduce(state, evNotificationNew{Notification: types.Notification{ID: "n-1", Read: true}})
	if len(state.Notifications) != 1 || state.NotificationUnread != 0 {
		t.Fatalf("upsert wrong: list=%d unread=%d", len(state.Notifications), state.NotificationUnread)
	}
	if hasEffect[effNotifyNotification](effects) {
		t.Fatalf("upsert surfaced as a new push")
	}

	// Server count wins regardless of the local list.
	state, _ = Reduce(state, evNotificationCount{Unread: 7})
	if state.NotificationUnread != 7 {
		t.Fatalf("server count not applied: %d", state.NotificationUnread)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Notifications = []types.Notification{
		{ID: "n-1", Read: false},
		{ID: "n-2", Read: true},
		{ID: "n-3", Read: false},
	}
	state.NotificationUnread = 2

	reply := make(chan error, 1)
	state, effects := Reduce(state, cmdMarkNotificationsRead{Reply: reply})

	if state.NotificationUnread != 0 {
		t.Fatalf("unread=%d after mark all", state.NotificationUnread)
	}
	persist := singleEffect[effPersistNotificationsRead](t, effects)
	if len(persist.IDs) != 2 || persist.IDs[0] != "n-1" || persist.IDs[1] != "n-3" {
		t.Fatalf("persisted ids wrong: %v", persist.IDs)
	}
	for _, n := range state.Notifications {
		if !n.Read {
			t.Fatalf("notification %s still unread", n.ID)
		}
	}
}

// Snapshot

func TestSnapshotIsDeepAndOrdered(t *testing.T) {
	t.Parallel()

	state := connectedState()
	state.Conversations["old"] = types.Conversation{ID: "old", UpdatedAt: 100}
	state.Conversations["new"] = types.Conversation{ID: "new", UpdatedAt: 200}
	state.Messages["old"] = []types.Message{{ID: "m-1", Text: "original"}}
	state, _ = Reduce(state, evTypingChanged{ConversationID: "old", UserID: otherUser, IsTyping: true})

	_, effects := Reduce(state, cmdSnapshot{Reply: make(chan Snapshot, 1)})
	snap := singleEffect[effCompleteSnapshot](t, effects).Snap

	if len(snap.Conversations) != 2 || snap.Conversations[0].ID != "new" {
		t.Fatalf("conversations not ordered by recency: %+v", snap.Conversations)
	}
	if got := snap.Typing["old"]; len(got) != 1 || got[0] != otherUser {
		t.Fatalf("typing snapshot wrong: %v", snap.Typing)
	}

	// Mutating the snapshot must not leak into engine state.
	snap.Messages["old"][0].Text = "mutated"
	if state.Messages["old"][0].Text != "original" {
		t.Fatalf("snapshot shares backing storage with state")
	}
}
