package eventloop

import "context"

// Await suspends the calling fiber until p settles, returning its value on
// fulfillment or panicking with its rejection reason on rejection (doc.go:
// "panics with its rejection reason (recovered by the scheduler and turned
// into the fiber's own rejection)"). ctx must be (or be derived from) the
// context passed to the running Fiber's function; calling Await outside a
// fiber panics with [NotInCoroutineContextError].
func Await(ctx context.Context, p *Promise) Value {
	f, ok := ctx.Value(fiberContextKey{}).(*Fiber)
	if !ok {
		panic(&NotInCoroutineContextError{})
	}
	return f.await(p)
}

func (f *Fiber) await(p *Promise) Value {
	// Already settled: return/throw synchronously without yielding to the
	// loop (§4.3 step 2) — no suspend/resume handshake is needed.
	if state, result := p.State(), p.Result(); state != Pending {
		if state == Rejected {
			panic(wrapReason(result).(error))
		}
		return result
	}

	p.addContinuation(continuation{
		onFulfilled: func(v Value) Value {
			f.pendingValue, f.pendingErr = v, nil
			f.loop.fiberReadyQueue = append(f.loop.fiberReadyQueue, f)
			return nil
		},
		onRejected: func(reason Value) Value {
			f.pendingValue, f.pendingErr = nil, wrapReason(reason).(error)
			f.loop.fiberReadyQueue = append(f.loop.fiberReadyQueue, f)
			return nil
		},
	})

	// Hand control back to the loop goroutine: we're suspended now.
	f.yieldSignal <- struct{}{}
	// Park until the loop resumes us via resumeOneFiber.
	<-f.resumeSignal

	if f.pendingErr != nil {
		panic(f.pendingErr)
	}
	return f.pendingValue
}
