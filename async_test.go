package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAsyncFulfillsWithGoroutineResult(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	p := l.Async(func() (Value, error) { return 7 * 6, nil })

	var got Value
	p.Then(func(v Value) Value { got = v; return nil }, nil)

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Fatalf("got = %v, want 42", got)
	}
}

func TestAsyncRejectsWithGoroutineError(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	wantErr := errors.New("goroutine failed")
	p := l.Async(func() (Value, error) { return nil, wantErr })

	var gotErr error
	p.Then(nil, func(r Value) Value { gotErr, _ = r.(error); return nil })

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(gotErr, wantErr) {
		t.Fatalf("gotErr = %v, want %v", gotErr, wantErr)
	}
}

func TestAsyncRecoversPanicIntoPanicError(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	p := l.Async(func() (Value, error) { panic("async blew up") })

	var gotErr error
	p.Then(nil, func(r Value) Value { gotErr, _ = r.(error); return nil })

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	var pe *PanicError
	if !errors.As(gotErr, &pe) {
		t.Fatalf("gotErr = %v (%T), want *PanicError", gotErr, gotErr)
	}
}

func TestTryAsyncFulfillsWithReturnValue(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	p := l.TryAsync(func() Value { return "ok" })

	var got Value
	p.Then(func(v Value) Value { got = v; return nil }, nil)

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	if got != "ok" {
		t.Fatalf("got = %v, want %q", got, "ok")
	}
}

func TestDelayFulfillsAfterDuration(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	p := l.Delay(time.Millisecond, "fired")
	var got Value
	p.Then(func(v Value) Value { got = v; return nil }, nil)

	if err := l.Run(); err != nil {
		t.Fatal(err)
	}
	if got != "fired" {
		t.Fatalf("got = %v, want %q", got, "fired")
	}
}

func TestRunReturnsFiberResult(t *testing.T) {
	v, err := Run(func(ctx context.Context) (Value, error) {
		return "hello", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != "hello" {
		t.Fatalf("v = %v, want %q", v, "hello")
	}
}

func TestRunPropagatesFiberError(t *testing.T) {
	wantErr := errors.New("fiber failed")
	_, err := Run(func(ctx context.Context) (Value, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestRunAllReturnsResultsInOrder(t *testing.T) {
	fns := make([]func(ctx context.Context) (Value, error), 3)
	for i := 0; i < 3; i++ {
		i := i
		fns[i] = func(ctx context.Context) (Value, error) {
			loop, _ := LoopFromContext(ctx)
			v := Await(ctx, loop.Delay(time.Duration(3-i)*time.Millisecond, i))
			return v, nil
		}
	}

	results, err := RunAll(fns)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 || results[0] != 0 || results[1] != 1 || results[2] != 2 {
		t.Fatalf("results = %v, want [0 1 2]", results)
	}
}

func TestRunConcurrentRespectsLimit(t *testing.T) {
	var active, maxActive int
	fns := make([]func(ctx context.Context) (Value, error), 4)
	for i := 0; i < 4; i++ {
		i := i
		fns[i] = func(ctx context.Context) (Value, error) {
			active++
			if active > maxActive {
				maxActive = active
			}
			loop, _ := LoopFromContext(ctx)
			v := Await(ctx, loop.Delay(time.Millisecond, i))
			active--
			return v, nil
		}
	}

	results, err := RunConcurrent(fns, 2)
	if err != nil {
		t.Fatal(err)
	}
	if maxActive > 2 {
		t.Fatalf("maxActive = %d, want <= 2", maxActive)
	}
	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}
}

func TestRunWithTimeoutRejectsWhenSlow(t *testing.T) {
	start := time.Now()
	_, err := RunWithTimeout(func(ctx context.Context) (Value, error) {
		loop, _ := LoopFromContext(ctx)
		Await(ctx, loop.Delay(200*time.Millisecond, nil))
		return "too slow", nil
	}, time.Millisecond)
	elapsed := time.Since(start)

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v (%T), want *TimeoutError", err, err)
	}
	// Must return promptly once the timeout settles, not wait for the
	// orphaned fiber's 200ms delay to also drain the loop to Idle.
	if elapsed > 100*time.Millisecond {
		t.Fatalf("RunWithTimeout took %v, want well under the orphaned work's duration", elapsed)
	}
}

func TestRunWithTimeoutPassesThroughFastCompletion(t *testing.T) {
	v, err := RunWithTimeout(func(ctx context.Context) (Value, error) {
		return "quick", nil
	}, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if v != "quick" {
		t.Fatalf("v = %v, want %q", v, "quick")
	}
}
