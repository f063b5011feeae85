package actor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phyoewaiaung/devnexus-go/internal/actor"
	"github.com/phyoewaiaung/devnexus-go/internal/actor/actortest"
)

type testEvent struct {
	actor.InputBase
	n int
}

type testEffect struct {
	actor.EffectBase
	n int
}

func addReducer(state int, input actor.Input) (int, []actor.Effect) {
	ev, ok := input.(testEvent)
	if !ok {
		return state, nil
	}
	return state + ev.n, []actor.Effect{testEffect{n: ev.n}}
}

func waitForState(t *testing.T, loop *actor.Loop[int], want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if loop.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state=%d, want %d", loop.State(), want)
}

func TestLoopProcessesInputsSequentially(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{}
	loop := actor.NewLoop(0, addReducer, rt)
	loop.Start()
	defer loop.Stop()

	for i := 1; i <= 5; i++ {
		if err := loop.Enqueue(testEvent{n: i}); err != nil {
			t.Fatalf("failed to enqueue %d: %v", i, err)
		}
	}
	waitForState(t, loop, 15)

	effects := rt.Effects()
	if len(effects) != 5 {
		t.Fatalf("effects=%d, want 5", len(effects))
	}
	for i, eff := range effects {
		if eff.(testEffect).n != i+1 {
			t.Fatalf("effects out of order: %#v", effects)
		}
	}
}

func TestLoopEnqueueAfterStop(t *testing.T) {
	t.Parallel()

	loop := actor.NewLoop(0, addReducer, &actortest.FakeRuntime{})
	loop.Start()
	loop.Stop()

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
	if err := loop.Enqueue(testEvent{n: 1}); !errors.Is(err, actor.ErrStopped) {
		t.Fatalf("enqueue after stop: err=%v, want ErrStopped", err)
	}
}

func TestLoopEnqueueFullMailboxIsNotStopped(t *testing.T) {
	t.Parallel()

	// The loop is deliberately not started, so the single-slot mailbox fills
	// on the first enqueue.
	loop := actor.NewLoop(0, addReducer, &actortest.FakeRuntime{},
		actor.WithMailboxSize[int](1),
	)

	if err := loop.Enqueue(testEvent{n: 1}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := loop.Enqueue(testEvent{n: 2}); !errors.Is(err, actor.ErrMailboxFull) {
		t.Fatalf("second enqueue: err=%v, want ErrMailboxFull", err)
	}

	// Backpressure is transient: once the loop drains the inbox, enqueue
	// succeeds again.
	loop.Start()
	defer loop.Stop()
	waitForState(t, loop, 1)
	if err := loop.Enqueue(testEvent{n: 2}); err != nil {
		t.Fatalf("enqueue after drain: %v", err)
	}
	waitForState(t, loop, 3)
}

func TestLoopRuntimeCanEmitFollowUps(t *testing.T) {
	t.Parallel()

	// The runtime turns each effect for an odd n into a follow-up event,
	// exercising the feedback path.
	rt := &actortest.FakeRuntime{}
	rt.EmitFn = func(ctx context.Context, eff actor.Effect, emit func(actor.Input)) {
		if e, ok := eff.(testEffect); ok && e.n == 1 {
			emit(testEvent{n: 10})
		}
	}

	loop := actor.NewLoop(0, addReducer, rt)
	loop.Start()
	defer loop.Stop()

	loop.Enqueue(testEvent{n: 1})
	waitForState(t, loop, 11)
}

func TestLoopTransitionHook(t *testing.T) {
	t.Parallel()

	transitions := make(chan int, 8)
	loop := actor.NewLoop(0, addReducer, &actortest.FakeRuntime{},
		actor.WithTransitionHook[int](func(prev, next int, input actor.Input) {
			transitions <- next
		}),
	)
	loop.Start()
	defer loop.Stop()

	loop.Enqueue(testEvent{n: 3})
	select {
	case next := <-transitions:
		if next != 3 {
			t.Fatalf("transition next=%d, want 3", next)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("transition hook never fired")
	}
}

func TestLoopPanicHook(t *testing.T) {
	t.Parallel()

	panics := make(chan any, 1)
	reducer := func(state int, input actor.Input) (int, []actor.Effect) {
		panic("boom")
	}
	loop := actor.NewLoop(0, reducer, &actortest.FakeRuntime{},
		actor.WithPanicHook[int](func(recovered any) { panics <- recovered }),
	)
	loop.Start()
	defer loop.Stop()

	loop.Enqueue(testEvent{n: 1})
	select {
	case r := <-panics:
		if r != "boom" {
			t.Fatalf("recovered %v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("panic hook never fired")
	}
}

func TestStepAppliesReducerWithoutEffects(t *testing.T) {
	t.Parallel()

	next, effects := actor.Step(7, testEvent{n: 2}, addReducer)
	if next != 9 {
		t.Fatalf("next=%d, want 9", next)
	}
	if len(effects) != 1 {
		t.Fatalf("effects=%d, want 1", len(effects))
	}
}
