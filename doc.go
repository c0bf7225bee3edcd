// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package eventloop implements a cooperative, single-threaded asynchronous
// runtime: a [Loop] that multiplexes timers, byte streams, sockets, and
// arbitrary external operations over one OS thread, a [Promise] state
// machine with the usual combinators ([Loop.All], [Loop.Race], [Loop.Any],
// [Loop.Timeout], [Loop.Concurrent], [Loop.Batch]), and [Fiber] — a goroutine-backed stackful
// coroutine that suspends at [Await] and resumes on the loop's own
// goroutine.
//
// # Model
//
// User code written against a [Fiber] looks synchronous: [Await] blocks the
// calling goroutine until the awaited [Promise] settles, then either
// returns its value or panics with its rejection reason (recovered by the
// scheduler and turned into the fiber's own rejection). Exactly one
// goroutine is ever runnable at a time: the loop goroutine while no fiber is
// mid-resume, or a single fiber's goroutine between being resumed and its
// next [Await] call or return. This is the only suspension point in user
// code; the loop's own I/O poll is the other.
//
// # Phases
//
// Each call to [Loop.RunOnce] runs, in fixed order: queued next-tick
// callbacks, queued deferred callbacks, due timers, external-operation
// completions, one I/O poll, then one resumption pass over ready fibers.
// [Loop.Run] calls RunOnce until the loop is idle or [Loop.Stop] is called.
package eventloop
