package eventloop

// ExternalDriver represents an operation that runs outside the loop — on
// another goroutine, a real OS thread, or hardware — and reports back
// exactly once (§4.1 phase 4 "external-operation completions"). This
// generalizes "run an arbitrary function on a goroutine" into a named seam
// any collaborator can implement (a DB driver's connection pool, a
// subprocess, a hardware callback).
type ExternalDriver interface {
	// Start begins the operation. complete must be called exactly once,
	// from any goroutine, when the operation finishes; calling it more
	// than once is a no-op after the first (the returned promise can only
	// settle once).
	Start(complete func(Value, error))
}

// RunExternal wraps an ExternalDriver in a Promise. The driver's Start is
// invoked synchronously (on the loop goroutine, during whichever phase
// calls RunExternal); its completion is always delivered back through
// Submit, so it is never applied to the promise inline even if complete
// happens to be called synchronously within Start.
func (l *Loop) RunExternal(driver ExternalDriver) *Promise {
	result, resolve, reject := l.NewPromise()

	driver.Start(func(v Value, err error) {
		l.Submit(func() {
			if err != nil {
				reject(err)
			} else {
				resolve(v)
			}
		})
	})

	return result
}

// externalFunc adapts a plain start function to ExternalDriver.
type externalFunc func(complete func(Value, error))

func (f externalFunc) Start(complete func(Value, error)) { f(complete) }

// ExternalDriverFunc adapts fn to an ExternalDriver, for callers whose
// external operation doesn't warrant a named type of its own.
func ExternalDriverFunc(fn func(complete func(Value, error))) ExternalDriver {
	return externalFunc(fn)
}
