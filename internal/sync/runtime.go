package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/phyoewaiaung/devnexus-go/internal/actor"
	"github.com/phyoewaiaung/devnexus-go/pkg/logger"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// Transport is the realtime surface the runtime emits on. Satisfied by
// *websocket.Client.
type Transport interface {
	EmitJoinAllRooms() error
	EmitJoinRoom(conversationID string) error
	EmitTyping(conversationID string, isTyping bool) error
	EmitMarkRead(conversationID string) error
	SendMessage(conversationID, clientMsgID, text string, attachments []types.Attachment) (types.Message, error)
}

// Store is the REST surface the runtime fetches and persists through.
// Satisfied by *api.Client.
type Store interface {
	ListConversations(ctx context.Context) ([]types.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (types.Conversation, error)
	ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]types.Message, string, error)
	MarkRead(ctx context.Context, conversationID string) error
	LeaveConversation(ctx context.Context, conversationID string) error
	ListNotifications(ctx context.Context, limit int) ([]types.Notification, error)
	MarkNotificationsRead(ctx context.Context, ids []string) error
}

// Runtime executes the reducer's effects: socket emits, REST calls in
// background goroutines, named timers, reply completion, and listener
// notification. It never reads or writes engine state.
type Runtime struct {
	transport Transport
	store     Store
	clock     actor.Clock
	notifier  *notifier

	mu     stdsync.Mutex
	timers map[string]*time.Timer
}

// NewRuntime wires a runtime over the given transport and store. The
// listener may be nil.
func NewRuntime(transport Transport, store Store, clock actor.Clock, listener Listener) *Runtime {
	if clock == nil {
		clock = actor.RealClock{}
	}
	return &Runtime{
		transport: transport,
		store:     store,
		clock:     clock,
		notifier:  newNotifier(listener),
		timers:    make(map[string]*time.Timer),
	}
}

// HandleEffects interprets one reducer output batch. Socket emits run
// inline (they only enqueue on the socket.io send buffer); REST calls run
// in goroutines and feed their outcome back as events.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, effect := range effects {
		switch eff := effect.(type) {
		case effEmitJoinAll:
			if err := r.transport.EmitJoinAllRooms(); err != nil {
				logger.Warnf("sync: join-all-rooms emit: %v", err)
				r.notifier.notifyError(err)
			}
		case effEmitJoinRoom:
			if err := r.transport.EmitJoinRoom(eff.ConversationID); err != nil {
				logger.Warnf("sync: join-room emit: %v", err)
				r.notifier.notifyError(err)
			}
		case effEmitSend:
			go r.runSend(eff, emit)
		case effEmitTyping:
			if err := r.transport.EmitTyping(eff.ConversationID, eff.IsTyping); err != nil {
				logger.Debugf("sync: typing emit: %v", err)
			}
		case effEmitMarkRead:
			if err := r.transport.EmitMarkRead(eff.ConversationID); err != nil {
				logger.Debugf("sync: mark-read emit: %v", err)
			}

		case effPersistMarkRead:
			go func() {
				completeErr(eff.Reply, r.store.MarkRead(ctx, eff.ConversationID))
			}()
		case effFetchConversations:
			go r.runFetchConversations(ctx, eff, emit)
		case effFetchConversation:
			go func() {
				conv, err := r.store.GetConversation(ctx, eff.ConversationID)
				if err != nil {
					logger.Warnf("sync: fetch conversation %s: %v", eff.ConversationID, err)
					r.notifier.notifyError(err)
					return
				}
				emit(evConversationFetched{Conversation: conv})
			}()
		case effFetchHistory:
			go r.runFetchHistory(ctx, eff, emit)
		case effFetchNotifications:
			go func() {
				ns, err := r.store.ListNotifications(ctx, eff.Limit)
				if err != nil {
					emit(evNotificationsLoadFailed{Err: err, Reply: eff.Reply})
					return
				}
				emit(evNotificationsLoaded{Notifications: ns, Reply: eff.Reply})
			}()
		case effPersistNotificationsRead:
			go func() {
				completeErr(eff.Reply, r.store.MarkNotificationsRead(ctx, eff.IDs))
			}()
		case effDeleteConversation:
			go func() {
				completeErr(eff.Reply, r.store.LeaveConversation(ctx, eff.ConversationID))
			}()

		case effStartTimer:
			r.startTimer(eff.Name, eff.AfterMs, emit)
		case effCancelTimer:
			r.cancelTimer(eff.Name)

		case effCompleteSend:
			if eff.Reply != nil {
				select {
				case eff.Reply <- eff.Result:
				default:
				}
			}
		case effCompleteHistory:
			if eff.Reply != nil {
				select {
				case eff.Reply <- eff.Result:
				default:
				}
			}
		case effCompleteSnapshot:
			if eff.Reply != nil {
				select {
				case eff.Reply <- eff.Snap:
				default:
				}
			}
		case effCompleteReply:
			completeErr(eff.Reply, eff.Err)

		case effNotify:
			r.notifier.notifyChange(eff)
		case effNotifyNotification:
			r.notifier.notifyNotification(eff.Notification)

		default:
			logger.Warnf("sync: unhandled effect %T", effect)
		}
	}
}

// Stop cancels all pending timers and shuts the notifier down.
func (r *Runtime) Stop() {
	r.mu.Lock()
	for name, t := range r.timers {
		t.Stop()
		delete(r.timers, name)
	}
	r.mu.Unlock()
	r.notifier.stop()
}

func (r *Runtime) runSend(eff effEmitSend, emit func(actor.Input)) {
	msg, err := r.transport.SendMessage(eff.ConversationID, eff.ClientID, eff.Text, eff.Attachments)
	if err != nil {
		emit(evSendFailed{ClientID: eff.ClientID, Err: err})
		return
	}
	emit(evSendAcked{ClientID: eff.ClientID, Message: msg})
}

func (r *Runtime) runFetchConversations(ctx context.Context, eff effFetchConversations, emit func(actor.Input)) {
	convs, err := r.store.ListConversations(ctx)
	if err != nil {
		emit(evConversationsLoadFailed{Err: err, Reply: eff.Reply})
		return
	}
	emit(evConversationsLoaded{Conversations: convs, Reply: eff.Reply})
}

func (r *Runtime) runFetchHistory(ctx context.Context, eff effFetchHistory, emit func(actor.Input)) {
	msgs, next, err := r.store.ListMessages(ctx, eff.ConversationID, eff.Cursor, eff.Limit)
	if err != nil {
		emit(evHistoryLoadFailed{ConversationID: eff.ConversationID, Err: err, Reply: eff.Reply})
		return
	}
	emit(evHistoryLoaded{
		ConversationID: eff.ConversationID,
		Messages:       msgs,
		NextCursor:     next,
		Reply:          eff.Reply,
	})
}

// startTimer restarts the named timer. Firing removes the entry before
// emitting, so a cancel racing the callback is harmless.
func (r *Runtime) startTimer(name string, afterMs int64, emit func(actor.Input)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[name]; ok {
		t.Stop()
	}
	r.timers[name] = time.AfterFunc(time.Duration(afterMs)*time.Millisecond, func() {
		r.mu.Lock()
		delete(r.timers, name)
		r.mu.Unlock()
		emit(evTimerFired{Name: name, NowMs: r.clock.Now().UnixMilli()})
	})
}

func (r *Runtime) cancelTimer(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[name]; ok {
		t.Stop()
		delete(r.timers, name)
	}
}

// completeErr answers a buffered reply channel without ever blocking the
// effect interpreter.
func completeErr(ch chan error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}
