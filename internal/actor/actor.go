// Package actor implements the event-loop scaffold the sync engine is built
// on: one goroutine owns all mutable state, a pure reducer computes state
// transitions, and a runtime interprets the declarative effects the reducer
// returns.
//
// Keeping the reducer pure (no I/O, no timers, no time.Now) is what makes
// the engine's race-sensitive logic — dual-path send resolution, typing
// decay, reconnect bookkeeping — testable under any interleaving of inputs.
package actor

import (
	"context"
	"errors"
	"sync"
)

// Input is an item delivered to the actor mailbox: either a command issued
// by a caller or an event observed by the runtime.
type Input interface {
	isInput()
}

// InputBase can be embedded in input structs to satisfy Input.
type InputBase struct{}

func (InputBase) isInput() {}

// Effect is a declarative side effect produced by a reducer. Effects are
// data; the Runtime is responsible for executing them.
type Effect interface {
	isEffect()
}

// EffectBase can be embedded in effect structs to satisfy Effect.
type EffectBase struct{}

func (EffectBase) isEffect() {}

// ReducerFunc is a pure state transition function. For a given (state,
// input) pair it must be deterministic and must not perform I/O.
type ReducerFunc[S any] func(state S, input Input) (next S, effects []Effect)

// Runtime executes effects and feeds follow-up inputs back into the loop.
//
// HandleEffects must return promptly; blocking work belongs in goroutines.
// Implementations must stop emitting once the context is canceled, and must
// never touch actor state directly.
type Runtime interface {
	HandleEffects(ctx context.Context, effects []Effect, emit func(Input))
	Stop()
}

// ErrStopped is returned by callers when the loop has shut down.
var ErrStopped = errors.New("actor stopped")

// ErrMailboxFull is returned by Enqueue when the inbox is at capacity. The
// loop is still running; the condition is transient backpressure.
var ErrMailboxFull = errors.New("actor mailbox full")

var errNilInput = errors.New("nil input")

// defaultMailboxSize bounds the inbox; enqueue drops when full.
const defaultMailboxSize = 256

// Loop is a single-threaded event loop owning state of type S.
type Loop[S any] struct {
	reduce  ReducerFunc[S]
	runtime Runtime

	// onTransition, when set, observes every applied state change.
	onTransition func(prev, next S, input Input)
	// onPanic, when set, intercepts reducer panics instead of crashing.
	onPanic func(recovered any)

	mu     sync.Mutex
	state  S
	inbox  chan Input
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Option configures a Loop.
type Option[S any] func(*Loop[S])

// WithTransitionHook attaches an observer called after each applied input.
func WithTransitionHook[S any](fn func(prev, next S, input Input)) Option[S] {
	return func(l *Loop[S]) { l.onTransition = fn }
}

// WithPanicHook attaches a recovery handler for reducer panics.
func WithPanicHook[S any](fn func(recovered any)) Option[S] {
	return func(l *Loop[S]) { l.onPanic = fn }
}

// WithMailboxSize overrides the inbox buffer size.
func WithMailboxSize[S any](n int) Option[S] {
	return func(l *Loop[S]) {
		if n > 0 {
			l.inbox = make(chan Input, n)
		}
	}
}

// NewLoop creates a loop with the given initial state, reducer and runtime.
func NewLoop[S any](initial S, reducer ReducerFunc[S], runtime Runtime, opts ...Option[S]) *Loop[S] {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop[S]{
		reduce:  reducer,
		runtime: runtime,
		state:   initial,
		inbox:   make(chan Input, defaultMailboxSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the loop goroutine. Start is idempotent.
func (l *Loop[S]) Start() {
	l.once.Do(func() { go l.run() })
}

// Stop cancels the loop and stops the runtime. Safe to call multiple times.
func (l *Loop[S]) Stop() {
	l.cancel()
	if l.runtime != nil {
		l.runtime.Stop()
	}
}

// Done closes when the loop goroutine has exited.
func (l *Loop[S]) Done() <-chan struct{} { return l.done }

// Enqueue delivers an input to the mailbox. It returns ErrStopped once the
// loop has shut down and ErrMailboxFull when the inbox is at capacity;
// callers expecting bursts should use a larger mailbox.
func (l *Loop[S]) Enqueue(input Input) error {
	if input == nil {
		return errNilInput
	}
	select {
	case <-l.ctx.Done():
		return ErrStopped
	default:
	}
	select {
	case l.inbox <- input:
		return nil
	default:
		return ErrMailboxFull
	}
}

// State returns a shallow snapshot of the loop state.
//
// Intended for observability and tests. Engine reads that need consistency
// go through the loop as query inputs instead.
func (l *Loop[S]) State() S {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop[S]) run() {
	defer close(l.done)
	defer func() {
		if r := recover(); r != nil {
			if l.onPanic != nil {
				l.onPanic(r)
				return
			}
			panic(r)
		}
	}()

	emit := func(in Input) { _ = l.Enqueue(in) }

	for {
		select {
		case <-l.ctx.Done():
			return
		case in := <-l.inbox:
			if in == nil {
				continue
			}

			l.mu.Lock()
			prev := l.state
			l.mu.Unlock()

			next, effects := l.reduce(prev, in)

			l.mu.Lock()
			l.state = next
			l.mu.Unlock()

			if l.onTransition != nil {
				l.onTransition(prev, next, in)
			}
			if l.runtime != nil && len(effects) > 0 {
				l.runtime.HandleEffects(l.ctx, effects, emit)
			}
		}
	}
}

// Step applies a reducer to one (state, input) pair without executing
// effects. It exists for reducer-level unit tests.
func Step[S any](state S, input Input, reducer ReducerFunc[S]) (S, []Effect) {
	return reducer(state, input)
}
