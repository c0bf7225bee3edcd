package eventloop

import (
	"testing"
	"time"
)

func TestResolveOptionsDefaults(t *testing.T) {
	o := resolveOptions(nil)
	if o.defaultIOTimeout != time.Millisecond {
		t.Fatalf("defaultIOTimeout = %v, want 1ms", o.defaultIOTimeout)
	}
	if o.idleSleepBudget != 100*time.Microsecond {
		t.Fatalf("idleSleepBudget = %v, want 100us", o.idleSleepBudget)
	}
	if o.preferHighPerfBackend {
		t.Fatal("preferHighPerfBackend should default to false")
	}
	if _, ok := o.logger.(*NoOpLogger); !ok {
		t.Fatalf("default logger = %T, want *NoOpLogger", o.logger)
	}
	if o.onOverload != nil {
		t.Fatal("onOverload should default to nil")
	}
}

func TestWithDefaultIOTimeout(t *testing.T) {
	o := resolveOptions([]Option{WithDefaultIOTimeout(5 * time.Millisecond)})
	if o.defaultIOTimeout != 5*time.Millisecond {
		t.Fatalf("defaultIOTimeout = %v, want 5ms", o.defaultIOTimeout)
	}
}

func TestWithIdleSleepBudget(t *testing.T) {
	o := resolveOptions([]Option{WithIdleSleepBudget(time.Second)})
	if o.idleSleepBudget != time.Second {
		t.Fatalf("idleSleepBudget = %v, want 1s", o.idleSleepBudget)
	}
}

func TestWithPreferHighPerfBackend(t *testing.T) {
	o := resolveOptions([]Option{WithPreferHighPerfBackend(true)})
	if !o.preferHighPerfBackend {
		t.Fatal("preferHighPerfBackend should be true")
	}
}

func TestWithLoggerIgnoresNil(t *testing.T) {
	o := resolveOptions([]Option{WithLogger(nil)})
	if _, ok := o.logger.(*NoOpLogger); !ok {
		t.Fatalf("logger = %T, want default *NoOpLogger preserved when nil is passed", o.logger)
	}

	custom := NewStdLogger()
	o = resolveOptions([]Option{WithLogger(custom)})
	if o.logger != Logger(custom) {
		t.Fatal("logger should be replaced by the supplied non-nil Logger")
	}
}

func TestWithOnOverload(t *testing.T) {
	called := false
	o := resolveOptions([]Option{WithOnOverload(func(error) { called = true })})
	o.onOverload(nil)
	if !called {
		t.Fatal("onOverload callback was not wired")
	}
}

func TestNewLoopAppliesOptions(t *testing.T) {
	l, err := NewLoop(WithDefaultIOTimeout(2 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if l.opts.defaultIOTimeout != 2*time.Millisecond {
		t.Fatalf("opts.defaultIOTimeout = %v, want 2ms", l.opts.defaultIOTimeout)
	}
}
