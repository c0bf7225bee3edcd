package eventloop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllFulfillsInInputOrder(t *testing.T) {
	l, err := NewLoop()
	require.NoError(t, err)
	defer l.Close()

	a, resolveA, _ := l.NewPromise()
	b, resolveB, _ := l.NewPromise()
	c, resolveC, _ := l.NewPromise()

	var got []Value
	l.All([]*Promise{a, b, c}).Then(func(v Value) Value { got = v.([]Value); return nil }, nil)

	// Resolve out of order; result must still reflect input order.
	resolveC(3)
	resolveA(1)
	resolveB(2)

	require.NoError(t, l.Run())
	assert.Equal(t, []Value{1, 2, 3}, got)
}

func TestAllRejectsOnFirstFailure(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	a, _, rejectA := l.NewPromise()
	b, resolveB, _ := l.NewPromise()

	var gotErr error
	l.All([]*Promise{a, b}).Then(nil, func(r Value) Value { gotErr, _ = r.(error); return nil })

	rejectA(errors.New("boom"))
	resolveB("irrelevant")

	require.NoError(t, l.Run())
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "boom")
}

func TestAllEmptyFulfillsEmptySlice(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	var got []Value
	l.All(nil).Then(func(v Value) Value { got = v.([]Value); return nil }, nil)

	require.NoError(t, l.Run())
	assert.Equal(t, []Value{}, got)
}

func TestRaceSettlesWithFirst(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	fast := l.Resolved("fast")
	slow, _, _ := l.NewPromise()

	var got Value
	l.Race([]*Promise{slow, fast}).Then(func(v Value) Value { got = v; return nil }, nil)

	require.NoError(t, l.Run())
	assert.Equal(t, "fast", got)
}

func TestAnyRejectsWithAggregateErrorWhenAllFail(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	a := l.Rejected(errors.New("a failed"))
	b := l.Rejected(errors.New("b failed"))

	var gotErr error
	l.Any([]*Promise{a, b}).Then(nil, func(r Value) Value { gotErr, _ = r.(error); return nil })

	require.NoError(t, l.Run())

	var agg *AggregateError
	require.ErrorAs(t, gotErr, &agg)
	assert.Len(t, agg.Errors, 2)
}

func TestAnyFulfillsWithFirstSuccess(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	a := l.Rejected(errors.New("a failed"))
	b := l.Resolved("ok")

	var got Value
	l.Any([]*Promise{a, b}).Then(func(v Value) Value { got = v; return nil }, nil)

	require.NoError(t, l.Run())
	assert.Equal(t, "ok", got)
}

func TestAllSettledNeverRejects(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	ok := l.Resolved("ok")
	fail := l.Rejected(errors.New("nope"))

	var got []SettledResult
	l.AllSettled([]*Promise{ok, fail}).Then(func(v Value) Value { got = v.([]SettledResult); return nil }, nil)

	require.NoError(t, l.Run())
	require.Len(t, got, 2)
	assert.Equal(t, Fulfilled, got[0].State)
	assert.Equal(t, "ok", got[0].Value)
	assert.Equal(t, Rejected, got[1].State)
}

func TestTimeoutRejectsWhenSlow(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	slow, _, _ := l.NewPromise() // never settles

	var gotErr error
	l.Timeout(slow, time.Millisecond).Then(nil, func(r Value) Value { gotErr, _ = r.(error); return nil })

	require.NoError(t, l.Run())

	var te *TimeoutError
	require.ErrorAs(t, gotErr, &te)
}

func TestTimeoutPassesThroughFastFulfillment(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	fast := l.Resolved("quick")

	var got Value
	l.Timeout(fast, time.Second).Then(func(v Value) Value { got = v; return nil }, nil)

	require.NoError(t, l.Run())
	assert.Equal(t, "quick", got)
}

func TestConcurrentRespectsLimit(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	var maxInFlight, inFlight int
	tasks := make([]Task, 6)
	for i := 0; i < 6; i++ {
		i := i
		tasks[i] = func() *Promise {
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			p, resolve, _ := l.NewPromise()
			l.AddTimer(time.Millisecond, func() {
				inFlight--
				resolve(i)
			})
			return p
		}
	}

	var got []Value
	l.Concurrent(tasks, 2).Then(func(v Value) Value { got = v.([]Value); return nil }, nil)

	require.NoError(t, l.Run())
	assert.LessOrEqual(t, maxInFlight, 2)
	assert.Equal(t, []Value{0, 1, 2, 3, 4, 5}, got)
}

func TestConcurrentFailsFastOnFirstRejection(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	started := 0
	tasks := []Task{
		func() *Promise { started++; return l.Rejected(errors.New("task0 failed")) },
		func() *Promise { started++; return l.Resolved("ok") },
	}

	var gotErr error
	l.Concurrent(tasks, 1).Then(nil, func(r Value) Value { gotErr, _ = r.(error); return nil })

	require.NoError(t, l.Run())
	require.Error(t, gotErr)
}

func TestBatchConcatenatesResultsInOrder(t *testing.T) {
	l, _ := NewLoop()
	defer l.Close()

	tasks := make([]Task, 5)
	for i := 0; i < 5; i++ {
		i := i
		tasks[i] = func() *Promise { return l.Resolved(i) }
	}

	var got Value
	l.Batch(tasks, 2, 2).Then(func(v Value) Value { got = v; return nil }, nil)

	require.NoError(t, l.Run())
	assert.Equal(t, Value([]Value{0, 1, 2, 3, 4}), got)
}
