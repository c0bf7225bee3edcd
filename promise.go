package eventloop

import (
	"fmt"
	"sync"
)

// Value is the settled payload of a Promise: the fulfillment value, or the
// rejection reason. Modeled as any, mirroring JavaScript's dynamic typing
// (see DESIGN.md for why this repo doesn't attempt a generic Promise[T]).
type Value = any

// State is the lifecycle state of a Promise (§3): Pending, Fulfilled, or
// Rejected. Transitions are one-way and happen exactly once (invariant I1).
type State int32

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Fulfilled:
		return "Fulfilled"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// continuation is one registered Then/Catch/Finally reaction.
type continuation struct {
	onFulfilled func(Value) Value
	onRejected  func(Value) Value
	onFinally   func()
	target      *Promise // nil for a bare Finally with no chained child
}

// Promise represents the eventual settlement of a single value (§3).
//
// A Promise is always owned by exactly one Loop: continuations registered
// with Then/Catch/Finally are always dispatched on that loop's own
// goroutine, via NextTick — never synchronously from inside Resolve/Reject
// (invariant I3).
type Promise struct {
	loop *Loop

	mu            sync.Mutex
	state         State
	result        Value
	continuations []continuation
	handled       bool // a Catch/Then(_, onRejected)/Finally has been attached
}

// ResolveFunc fulfills a pending Promise. Resolving with another *Promise
// adopts its eventual state (I2). Only the first call (by whichever of
// resolve/reject runs first) has an effect (I1). Like NextTick/AddTimer,
// must only be called from the owning Loop's own goroutine or the
// currently-resumed Fiber's goroutine; code on any other goroutine should
// settle a promise via Loop.Submit (see external.go), not by calling this
// directly.
type ResolveFunc func(Value)

// RejectFunc rejects a pending Promise. Non-error reasons are wrapped, the
// way JavaScript's Promise constructor never requires an Error but
// well-behaved code always supplies one; this repo wraps for consistency
// with errors.Is/As composing over reasons. Same goroutine restriction as
// ResolveFunc.
type RejectFunc func(Value)

// NewPromise creates a new Pending promise bound to this loop, together
// with its resolve/reject functions.
func (l *Loop) NewPromise() (*Promise, ResolveFunc, RejectFunc) {
	p := &Promise{loop: l, state: Pending}
	return p, p.resolve, p.reject
}

// Resolved returns an already-Fulfilled promise bound to this loop.
func (l *Loop) Resolved(v Value) *Promise {
	p := &Promise{loop: l, state: Fulfilled, result: v}
	return p
}

// Rejected returns an already-Rejected promise bound to this loop.
func (l *Loop) Rejected(reason Value) *Promise {
	p := &Promise{loop: l, state: Rejected, result: wrapReason(reason)}
	return p
}

func wrapReason(reason Value) Value {
	if reason == nil {
		return fmt.Errorf("eventloop: rejected with nil reason")
	}
	if _, ok := reason.(error); ok {
		return reason
	}
	return fmt.Errorf("eventloop: rejected with non-error value: %v", reason)
}

// State returns the promise's current state.
func (p *Promise) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the settled value or reason, or nil if still Pending.
func (p *Promise) Result() Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *Promise) resolve(value Value) {
	if inner, ok := value.(*Promise); ok {
		if inner == p {
			p.reject(fmt.Errorf("eventloop: promise resolved with itself"))
			return
		}
		// Adopt the inner promise's eventual state (I2): subscribe once,
		// propagating whatever it settles with.
		inner.addContinuation(continuation{
			onFulfilled: func(v Value) Value { p.resolve(v); return nil },
			onRejected:  func(r Value) Value { p.reject(r); return nil },
		})
		return
	}

	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Fulfilled
	p.result = value
	pending := p.continuations
	p.continuations = nil
	p.mu.Unlock()

	for _, c := range pending {
		p.dispatch(c, Fulfilled, value)
	}
}

func (p *Promise) reject(reason Value) {
	reason = wrapReason(reason)

	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Rejected
	p.result = reason
	pending := p.continuations
	p.continuations = nil
	handled := p.handled
	p.mu.Unlock()

	if !handled {
		p.loop.trackUnhandledRejection(p)
	}

	for _, c := range pending {
		p.dispatch(c, Rejected, reason)
	}
}

// addContinuation registers c to run once the promise settles. If already
// settled, c is dispatched immediately (still deferred to nextTick, never
// inline — I3). Otherwise it is appended and dispatched, in registration
// order, from resolve/reject once settlement occurs (P2).
func (p *Promise) addContinuation(c continuation) {
	p.mu.Lock()
	if (c.onRejected != nil || c.onFinally != nil) && !p.handled {
		p.handled = true
		p.loop.untrackUnhandledRejection(p)
	}
	if p.state != Pending {
		state, result := p.state, p.result
		p.mu.Unlock()
		p.dispatch(c, state, result)
		return
	}
	p.continuations = append(p.continuations, c)
	p.mu.Unlock()
}

// dispatch schedules c's execution on the loop's next-tick queue.
func (p *Promise) dispatch(c continuation, state State, result Value) {
	p.loop.NextTick(func() {
		p.runContinuation(c, state, result)
	})
}

func (p *Promise) runContinuation(c continuation, state State, result Value) {
	if c.onFinally != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.loop.logCallbackPanic("promise.finally", r)
				}
			}()
			c.onFinally()
		}()
		if c.target != nil {
			if state == Fulfilled {
				c.target.resolve(result)
			} else {
				c.target.reject(result)
			}
		}
		return
	}

	var fn func(Value) Value
	if state == Fulfilled {
		fn = c.onFulfilled
	} else {
		fn = c.onRejected
	}

	if fn == nil {
		// Pass-through: propagate settlement unchanged to the child promise.
		if c.target != nil {
			if state == Fulfilled {
				c.target.resolve(result)
			} else {
				c.target.reject(result)
			}
		}
		return
	}

	var (
		res      Value
		panicked bool
		pval     any
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				pval = r
			}
		}()
		res = fn(result)
	}()

	if c.target == nil {
		if panicked {
			p.loop.logCallbackPanic("promise.continuation", pval)
		}
		return
	}
	if panicked {
		c.target.reject(PanicError{Value: pval})
		return
	}
	c.target.resolve(res)
}

// Then registers onFulfilled/onRejected reactions and returns a new promise
// settled by whichever one runs (§4.4). Either may be nil to pass through.
func (p *Promise) Then(onFulfilled, onRejected func(Value) Value) *Promise {
	child := &Promise{loop: p.loop, state: Pending}
	p.addContinuation(continuation{onFulfilled: onFulfilled, onRejected: onRejected, target: child})
	return child
}

// Catch registers a rejection reaction. Equivalent to Then(nil, onRejected).
func (p *Promise) Catch(onRejected func(Value) Value) *Promise {
	return p.Then(nil, onRejected)
}

// Finally registers a reaction that runs regardless of settlement and
// receives no argument (§9 Open Questions: the source never passes the
// value/reason to Finally, and this repo preserves that). The returned
// promise preserves the original settlement.
func (p *Promise) Finally(onFinally func()) *Promise {
	child := &Promise{loop: p.loop, state: Pending}
	p.addContinuation(continuation{onFinally: onFinally, target: child})
	return child
}

// ToChannel returns a channel that receives the settled value/reason
// exactly once (buffered, capacity 1) then is closed. If already settled,
// the channel is usable immediately (filled on the next tick).
func (p *Promise) ToChannel() <-chan Value {
	ch := make(chan Value, 1)
	p.addContinuation(continuation{
		onFulfilled: func(v Value) Value { ch <- v; close(ch); return nil },
		onRejected:  func(r Value) Value { ch <- r; close(ch); return nil },
	})
	return ch
}
