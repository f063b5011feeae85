package sync

import (
	"context"
	"errors"

	"github.com/phyoewaiaung/devnexus-go/internal/actor"
	"github.com/phyoewaiaung/devnexus-go/internal/api"
	"github.com/phyoewaiaung/devnexus-go/internal/websocket"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// Options configures an Engine.
type Options struct {
	// ServerURL is the Socket.IO endpoint, e.g. "https://chat.example.com".
	ServerURL string
	// APIBaseURL is the REST base, e.g. "https://chat.example.com/api".
	APIBaseURL string
	// Token authenticates both the socket handshake and REST calls.
	Token string
	// UserID is the local user; the engine needs it to tell own messages
	// from everyone else's.
	UserID string

	// Listener receives change notifications. Optional.
	Listener Listener
	// Clock overrides the time source. Optional; defaults to wall clock.
	Clock actor.Clock
}

// Engine is the public face of the sync state machine. All mutation flows
// through the actor loop; every method is safe for concurrent use.
type Engine struct {
	clock  actor.Clock
	socket *websocket.Client
	api    *api.Client
	loop   *actor.Loop[State]
}

// New builds an engine. Nothing connects until Start.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.ServerURL == "":
		return nil, errors.New("sync: ServerURL is required")
	case opts.APIBaseURL == "":
		return nil, errors.New("sync: APIBaseURL is required")
	case opts.Token == "":
		return nil, errors.New("sync: Token is required")
	case opts.UserID == "":
		return nil, errors.New("sync: UserID is required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = actor.RealClock{}
	}

	e := &Engine{
		clock:  clock,
		socket: websocket.NewClient(opts.ServerURL, opts.Token),
		api:    api.NewClient(opts.APIBaseURL, opts.Token),
	}
	runtime := NewRuntime(e.socket, e.api, clock, opts.Listener)
	e.loop = actor.NewLoop(NewState(opts.UserID), Reduce, runtime)
	e.bindTransport()
	return e, nil
}

// Start launches the loop and connects the socket. The initial conversation
// list is fetched once connected; callers wanting it eagerly use
// LoadConversations.
func (e *Engine) Start() error {
	e.loop.Start()
	e.enqueue(evConnecting{})
	if err := e.socket.Connect(); err != nil {
		e.enqueue(evDisconnected{Reason: err.Error()})
		return err
	}
	return nil
}

// Close stops the loop, cancels timers, and tears the socket down.
func (e *Engine) Close() error {
	e.loop.Stop()
	return e.socket.Close()
}

// Send starts an optimistic send and returns immediately with the client
// correlation id of the new message. The final outcome (authoritative
// message or rollback error) arrives on the returned channel.
func (e *Engine) Send(conversationID, text string, attachments []types.Attachment) (string, <-chan SendResult, error) {
	if conversationID == "" {
		return "", nil, errors.New("sync: conversation id is required")
	}
	clientID := types.NewClientID()
	reply := make(chan SendResult, 1)
	if err := e.enqueue(cmdSend{
		ConversationID: conversationID,
		ClientID:       clientID,
		Text:           text,
		Attachments:    attachments,
		NowMs:          e.clock.Now().UnixMilli(),
		Reply:          reply,
	}); err != nil {
		return "", nil, err
	}
	return clientID, reply, nil
}

// SendAndWait sends and blocks until the outcome is known.
func (e *Engine) SendAndWait(ctx context.Context, conversationID, text string, attachments []types.Attachment) (types.Message, error) {
	_, reply, err := e.Send(conversationID, text, attachments)
	if err != nil {
		return types.Message{}, err
	}
	select {
	case res := <-reply:
		return res.Message, res.Err
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	case <-e.loop.Done():
		return types.Message{}, ErrStopped
	}
}

// SetTyping broadcasts the local typing state for a conversation.
func (e *Engine) SetTyping(conversationID string, isTyping bool) error {
	return e.enqueue(cmdSetTyping{ConversationID: conversationID, IsTyping: isTyping})
}

// MarkRead zeroes the conversation's unread count locally, signals the read
// over the socket, and persists it. The local reset sticks even when
// persistence fails; the error is only reported.
func (e *Engine) MarkRead(ctx context.Context, conversationID string) error {
	reply := make(chan error, 1)
	if err := e.enqueue(cmdMarkRead{ConversationID: conversationID, Reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply)
}

// EnsureJoined joins the conversation's room if this connection has not yet.
func (e *Engine) EnsureJoined(conversationID string) error {
	return e.enqueue(cmdEnsureJoined{ConversationID: conversationID})
}

// LoadConversations replaces the conversation list from the server.
func (e *Engine) LoadConversations(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := e.enqueue(cmdLoadConversations{Reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply)
}

// LoadHistory fetches one page of older messages (oldest first) and merges
// it into the conversation. It returns the page and the cursor for the next
// older page; an empty cursor means the history is exhausted.
func (e *Engine) LoadHistory(ctx context.Context, conversationID, cursor string, limit int) ([]types.Message, string, error) {
	reply := make(chan HistoryResult, 1)
	if err := e.enqueue(cmdLoadHistory{
		ConversationID: conversationID,
		Cursor:         cursor,
		Limit:          limit,
		Reply:          reply,
	}); err != nil {
		return nil, "", err
	}
	select {
	case res := <-reply:
		return res.Messages, res.NextCursor, res.Err
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-e.loop.Done():
		return nil, "", ErrStopped
	}
}

// LoadNotifications replaces the notification list from the server.
func (e *Engine) LoadNotifications(ctx context.Context, limit int) error {
	reply := make(chan error, 1)
	if err := e.enqueue(cmdLoadNotifications{Limit: limit, Reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply)
}

// MarkAllNotificationsRead flips every notification to read, locally and on
// the server.
func (e *Engine) MarkAllNotificationsRead(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := e.enqueue(cmdMarkNotificationsRead{Reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply)
}

// LeaveConversation removes the conversation locally and on the server.
func (e *Engine) LeaveConversation(ctx context.Context, conversationID string) error {
	reply := make(chan error, 1)
	if err := e.enqueue(cmdLeaveConversation{ConversationID: conversationID, Reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply)
}

// Snapshot returns a deep copy of the observable state, consistent as of a
// single point in the loop.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := e.enqueue(cmdSnapshot{Reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-e.loop.Done():
		return Snapshot{}, ErrStopped
	}
}

// Conversations returns the conversation list, most recently updated first.
func (e *Engine) Conversations(ctx context.Context) ([]types.Conversation, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Conversations, nil
}

// Messages returns the locally held messages of one conversation in order.
func (e *Engine) Messages(ctx context.Context, conversationID string) ([]types.Message, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Messages[conversationID], nil
}

// IsOnline reports a user's presence. Users absent from the presence set
// are offline.
func (e *Engine) IsOnline(ctx context.Context, userID string) (bool, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range snap.Online {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// Connection returns the current connection lifecycle state.
func (e *Engine) Connection(ctx context.Context) (ConnState, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return ConnDisconnected, err
	}
	return snap.Connection, nil
}

func (e *Engine) enqueue(input actor.Input) error {
	return translateEnqueueErr(e.loop.Enqueue(input))
}

// translateEnqueueErr maps the loop's enqueue errors onto the engine's
// public error values, keeping transient backpressure distinguishable from
// shutdown.
func translateEnqueueErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, actor.ErrMailboxFull):
		return ErrBusy
	default:
		return ErrStopped
	}
}

func (e *Engine) await(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.loop.Done():
		return ErrStopped
	}
}
