package eventloop

import "time"

// All resolves with a slice of every ps[i]'s fulfillment value, in input
// order, once all of them fulfill; it rejects with the first rejection by
// settlement order (§4.5, P4). An empty input fulfills with an empty slice
// on the next tick.
func (l *Loop) All(ps []*Promise) *Promise {
	result, resolve, reject := l.NewPromise()

	if len(ps) == 0 {
		l.NextTick(func() { resolve([]Value{}) })
		return result
	}

	values := make([]Value, len(ps))
	remaining := len(ps)

	// No locking needed: every continuation below only ever runs on the
	// loop's own goroutine (Promise dispatch is always via NextTick), so
	// there is exactly one mutator of values/remaining at a time.
	for i, p := range ps {
		i := i
		p.Then(
			func(v Value) Value {
				values[i] = v
				remaining--
				if remaining == 0 {
					resolve(append([]Value(nil), values...))
				}
				return nil
			},
			func(r Value) Value {
				reject(r)
				return nil
			},
		)
	}

	return result
}

// Race settles with whichever ps[i] settles first (fulfill or reject),
// adopting its value/reason. An empty input stays pending forever — this
// is a deliberate, documented edge case preserved from the source (§9 Open
// Questions), not a bug.
func (l *Loop) Race(ps []*Promise) *Promise {
	result, resolve, reject := l.NewPromise()
	for _, p := range ps {
		p.Then(
			func(v Value) Value { resolve(v); return nil },
			func(r Value) Value { reject(r); return nil },
		)
	}
	return result
}

// Any fulfills with the first fulfillment among ps; it rejects only if
// every one rejects, with an *AggregateError carrying every reason in input
// order (§4.5).
func (l *Loop) Any(ps []*Promise) *Promise {
	result, resolve, reject := l.NewPromise()

	if len(ps) == 0 {
		l.NextTick(func() { reject(&AggregateError{}) })
		return result
	}

	reasons := make([]error, len(ps))
	remaining := len(ps)

	for i, p := range ps {
		i := i
		p.Then(
			func(v Value) Value { resolve(v); return nil },
			func(r Value) Value {
				err, _ := r.(error)
				reasons[i] = err
				remaining--
				if remaining == 0 {
					reject(&AggregateError{Errors: reasons})
				}
				return nil
			},
		)
	}

	return result
}

// SettledResult is one entry of AllSettled's result slice.
type SettledResult struct {
	State  State
	Value  Value // set iff State == Fulfilled
	Reason Value // set iff State == Rejected
}

// AllSettled fulfills, once every ps[i] has settled, with one SettledResult
// per input in input order; it never itself rejects. Mirrors
// JavaScript's Promise.allSettled.
func (l *Loop) AllSettled(ps []*Promise) *Promise {
	result, resolve, _ := l.NewPromise()

	if len(ps) == 0 {
		l.NextTick(func() { resolve([]SettledResult{}) })
		return result
	}

	results := make([]SettledResult, len(ps))
	remaining := len(ps)

	for i, p := range ps {
		i := i
		p.Then(
			func(v Value) Value {
				results[i] = SettledResult{State: Fulfilled, Value: v}
				remaining--
				if remaining == 0 {
					resolve(append([]SettledResult(nil), results...))
				}
				return nil
			},
			func(r Value) Value {
				results[i] = SettledResult{State: Rejected, Reason: r}
				remaining--
				if remaining == 0 {
					resolve(append([]SettledResult(nil), results...))
				}
				return nil
			},
		)
	}

	return result
}

// Timeout returns a promise that fulfills/rejects as p does if it settles
// within d, else rejects with *TimeoutError. When the timeout fires, p's
// outstanding continuation is left registered (Go has no way to deregister
// a single Then call) but its effect is suppressed by a settled-guard — no
// retroactive settlement of the returned promise occurs. The underlying
// work is never cancelled: p keeps running to completion, orphaned
// (§9 Open Questions).
func (l *Loop) Timeout(p *Promise, d time.Duration) *Promise {
	result, resolve, reject := l.NewPromise()

	var fired bool
	timerID := l.AddTimer(d, func() {
		if fired {
			return
		}
		fired = true
		reject(&TimeoutError{After: d.Seconds()})
	})

	p.Then(
		func(v Value) Value {
			if fired {
				return nil
			}
			fired = true
			l.CancelTimer(timerID)
			resolve(v)
			return nil
		},
		func(r Value) Value {
			if fired {
				return nil
			}
			fired = true
			l.CancelTimer(timerID)
			reject(r)
			return nil
		},
	)

	return result
}

// Task is a thunk that starts an asynchronous operation and returns its
// Promise. Concurrent and Batch take ordered lists of Task.
type Task func() *Promise

// Concurrent runs tasks with at most limit in flight at any instant (P5);
// as one settles, the next queued thunk is invoked. Results are collected
// positionally (index = original input index), regardless of settlement
// order. failFast is always true at the public API (§9 Open Questions: the
// source only exposes the true case) — the first rejection rejects the
// returned promise and no further thunks are invoked; thunks already
// in-flight are not cancelled (they run to completion, orphaned, same as
// Timeout).
func (l *Loop) Concurrent(tasks []Task, limit int) *Promise {
	result, resolve, reject := l.NewPromise()

	if len(tasks) == 0 {
		l.NextTick(func() { resolve([]Value{}) })
		return result
	}
	if limit <= 0 {
		limit = 1
	}

	values := make([]Value, len(tasks))
	remaining := len(tasks)
	next := 0
	inFlight := 0
	var failed bool

	var startNext func()
	startNext = func() {
		for inFlight < limit && next < len(tasks) && !failed {
			i := next
			next++
			inFlight++
			tasks[i]().Then(
				func(v Value) Value {
					inFlight--
					if failed {
						return nil
					}
					values[i] = v
					remaining--
					if remaining == 0 {
						resolve(append([]Value(nil), values...))
					} else {
						startNext()
					}
					return nil
				},
				func(r Value) Value {
					inFlight--
					if !failed {
						failed = true
						reject(r)
					}
					return nil
				},
			)
		}
	}
	startNext()

	return result
}

// Batch partitions tasks into contiguous groups of batchSize and runs each
// group via Concurrent with the given limit (defaulting to batchSize),
// awaiting each batch fully before starting the next. Results concatenate
// positionally (§4.5).
func (l *Loop) Batch(tasks []Task, batchSize int, limit int) *Promise {
	result, resolve, reject := l.NewPromise()

	if batchSize <= 0 {
		batchSize = len(tasks)
	}
	if batchSize <= 0 {
		l.NextTick(func() { resolve([]Value{}) })
		return result
	}
	if limit <= 0 {
		limit = batchSize
	}

	var batches [][]Task
	for start := 0; start < len(tasks); start += batchSize {
		end := start + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batches = append(batches, tasks[start:end])
	}

	all := make([]Value, 0, len(tasks))

	var runBatch func(idx int)
	runBatch = func(idx int) {
		if idx >= len(batches) {
			resolve(all)
			return
		}
		l.Concurrent(batches[idx], limit).Then(
			func(v Value) Value {
				all = append(all, v.([]Value)...)
				runBatch(idx + 1)
				return nil
			},
			func(r Value) Value {
				reject(r)
				return nil
			},
		)
	}
	runBatch(0)

	return result
}
