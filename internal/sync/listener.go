package sync

import (
	"github.com/phyoewaiaung/devnexus-go/pkg/logger"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// Listener receives engine change notifications. Callbacks are invoked from
// a single dispatcher goroutine, in order, and must not call back into the
// engine synchronously if they can block.
type Listener interface {
	OnConnected()
	OnDisconnected(reason string)
	OnConversationsChanged()
	OnMessagesChanged(conversationID string)
	OnTypingChanged(conversationID string)
	OnPresenceChanged()
	OnNotificationsChanged()
	OnNotification(n types.Notification)
	// OnError reports background failures that have no caller to return
	// to, such as a failed room join or a background conversation fetch.
	OnError(err error)
}

// NoopListener implements Listener with empty methods, for embedding when a
// consumer only cares about a subset of callbacks.
type NoopListener struct{}

func (NoopListener) OnConnected()                      {}
func (NoopListener) OnDisconnected(string)             {}
func (NoopListener) OnConversationsChanged()           {}
func (NoopListener) OnMessagesChanged(string)          {}
func (NoopListener) OnTypingChanged(string)            {}
func (NoopListener) OnPresenceChanged()                {}
func (NoopListener) OnNotificationsChanged()           {}
func (NoopListener) OnNotification(types.Notification) {}
func (NoopListener) OnError(error)                     {}

var _ Listener = NoopListener{}

// notifierQueueSize bounds the callback queue; a consumer that cannot keep
// up loses notifications rather than stalling the effect interpreter.
const notifierQueueSize = 128

// notifier serializes listener callbacks onto one goroutine so consumers
// never observe concurrent or reordered notifications.
type notifier struct {
	listener Listener
	queue    chan func(Listener)
	done     chan struct{}
}

func newNotifier(listener Listener) *notifier {
	n := &notifier{
		listener: listener,
		queue:    make(chan func(Listener), notifierQueueSize),
		done:     make(chan struct{}),
	}
	if listener != nil {
		go n.run()
	}
	return n
}

func (n *notifier) run() {
	for {
		select {
		case <-n.done:
			return
		case fn := <-n.queue:
			fn(n.listener)
		}
	}
}

func (n *notifier) enqueue(fn func(Listener)) {
	if n.listener == nil {
		return
	}
	select {
	case <-n.done:
	case n.queue <- fn:
	default:
		logger.Warnf("sync: listener queue full, dropping notification")
	}
}

func (n *notifier) notifyChange(eff effNotify) {
	switch eff.Change {
	case ChangeConnected:
		n.enqueue(func(l Listener) { l.OnConnected() })
	case ChangeDisconnected:
		reason := eff.Reason
		n.enqueue(func(l Listener) { l.OnDisconnected(reason) })
	case ChangeConversations:
		n.enqueue(func(l Listener) { l.OnConversationsChanged() })
	case ChangeMessages:
		convID := eff.ConversationID
		n.enqueue(func(l Listener) { l.OnMessagesChanged(convID) })
	case ChangeTyping:
		convID := eff.ConversationID
		n.enqueue(func(l Listener) { l.OnTypingChanged(convID) })
	case ChangePresence:
		n.enqueue(func(l Listener) { l.OnPresenceChanged() })
	case ChangeNotifications:
		n.enqueue(func(l Listener) { l.OnNotificationsChanged() })
	}
}

func (n *notifier) notifyNotification(notification types.Notification) {
	n.enqueue(func(l Listener) { l.OnNotification(notification) })
}

func (n *notifier) notifyError(err error) {
	if err == nil {
		return
	}
	n.enqueue(func(l Listener) { l.OnError(err) })
}

func (n *notifier) stop() {
	select {
	case <-n.done:
	default:
		close(n.done)
	}
}
