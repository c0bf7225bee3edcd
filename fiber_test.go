package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFiberAwaitResolvedValue(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	p := l.SpawnFiber(func(ctx context.Context) (Value, error) {
		loop, ok := LoopFromContext(ctx)
		if !ok {
			t.Fatal("LoopFromContext returned ok=false inside a fiber")
		}
		v := Await(ctx, loop.Resolved(21))
		return v.(int) * 2, nil
	})

	var got Value
	p.Then(func(v Value) Value { got = v; return nil }, nil)

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Fatalf("got = %v, want 42", got)
	}
}

func TestFiberAwaitRejectionBecomesFiberRejection(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	wantErr := errors.New("downstream failed")
	p := l.SpawnFiber(func(ctx context.Context) (Value, error) {
		loop, _ := LoopFromContext(ctx)
		Await(ctx, loop.Rejected(wantErr))
		t.Fatal("unreachable: Await should have panicked")
		return nil, nil
	})

	var gotErr error
	p.Then(nil, func(r Value) Value { gotErr, _ = r.(error); return nil })

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(gotErr, wantErr) {
		t.Fatalf("gotErr = %v, want %v", gotErr, wantErr)
	}
}

func TestFiberPanicBecomesPanicError(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	p := l.SpawnFiber(func(ctx context.Context) (Value, error) {
		panic("something broke")
	})

	var gotErr error
	p.Then(nil, func(r Value) Value { gotErr, _ = r.(error); return nil })

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}

	var pe *PanicError
	if !errors.As(gotErr, &pe) {
		t.Fatalf("gotErr = %v (%T), want *PanicError", gotErr, gotErr)
	}
	if pe.Value != "something broke" {
		t.Fatalf("pe.Value = %v, want %q", pe.Value, "something broke")
	}
}

func TestFiberMultipleSequentialAwaits(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	var steps []int
	p := l.SpawnFiber(func(ctx context.Context) (Value, error) {
		loop, _ := LoopFromContext(ctx)
		for i := 0; i < 3; i++ {
			v := Await(ctx, loop.Delay(time.Millisecond, i))
			steps = append(steps, v.(int))
		}
		return len(steps), nil
	})

	var got Value
	p.Then(func(v Value) Value { got = v; return nil }, nil)

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("got = %v, want 3", got)
	}
	if len(steps) != 3 || steps[0] != 0 || steps[1] != 1 || steps[2] != 2 {
		t.Fatalf("steps = %v, want [0 1 2]", steps)
	}
}

func TestAwaitOutsideFiberPanics(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Await to panic outside a fiber")
		}
		if _, ok := r.(*NotInCoroutineContextError); !ok {
			t.Fatalf("recovered %T, want *NotInCoroutineContextError", r)
		}
	}()

	Await(context.Background(), l.Resolved("never reached"))
}

func TestMultipleConcurrentFibersRunExclusively(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	var active int
	var maxActive int
	observe := func() {
		active++
		if active > maxActive {
			maxActive = active
		}
		active--
	}

	results := make([]Value, 3)
	for i := 0; i < 3; i++ {
		i := i
		l.SpawnFiber(func(ctx context.Context) (Value, error) {
			loop, _ := LoopFromContext(ctx)
			observe()
			Await(ctx, loop.Delay(time.Millisecond, nil))
			observe()
			return i, nil
		}).Then(func(v Value) Value { results[i] = v; return nil }, nil)
	}

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	if maxActive != 1 {
		t.Fatalf("maxActive = %d, want 1 (fibers must never run concurrently)", maxActive)
	}
	for i, v := range results {
		if v != i {
			t.Fatalf("results[%d] = %v, want %d", i, v, i)
		}
	}
}
