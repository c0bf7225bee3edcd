package eventloop

import "time"

// loopOptions holds resolved configuration for a Loop, populated by Option
// values passed to NewLoop.
type loopOptions struct {
	defaultIOTimeout      time.Duration
	idleSleepBudget       time.Duration
	preferHighPerfBackend bool
	logger                Logger
	onOverload            func(error)
	onUnhandledRejection  RejectionHandler
}

// Option configures a Loop at construction time. See NewLoop.
type Option interface {
	apply(*loopOptions)
}

type optionFunc func(*loopOptions)

func (f optionFunc) apply(o *loopOptions) { f(o) }

// WithDefaultIOTimeout sets the maximum time the I/O poll may block when
// only I/O (no due timer) is pending. Default 1ms.
func WithDefaultIOTimeout(d time.Duration) Option {
	return optionFunc(func(o *loopOptions) { o.defaultIOTimeout = d })
}

// WithIdleSleepBudget caps the poll timeout whenever a timer is pending:
// the poll waits for at most min(next timer delay, this budget). The cap is
// the same whether or not fibers or watchers are live. Default 100us.
func WithIdleSleepBudget(d time.Duration) Option {
	return optionFunc(func(o *loopOptions) { o.idleSleepBudget = d })
}

// WithPreferHighPerfBackend requests the high-performance I/O backend when
// the current platform supports one (currently: Linux epoll), falling back
// to the portable backend otherwise. Default false (portable backend).
func WithPreferHighPerfBackend(enabled bool) Option {
	return optionFunc(func(o *loopOptions) { o.preferHighPerfBackend = enabled })
}

// WithLogger installs a Logger used for diagnostics: CallbackError,
// BackendError, and FiberResumeError conditions are all logged here rather
// than propagated, per the error-handling design (§7).
func WithLogger(l Logger) Option {
	return optionFunc(func(o *loopOptions) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithOnOverload installs a callback invoked when the I/O backend reports
// a poll failure, the way a production deployment wires alerting for a
// reactor that's failing to keep up.
func WithOnOverload(fn func(error)) Option {
	return optionFunc(func(o *loopOptions) { o.onOverload = fn })
}

// RejectionHandler is invoked for a Promise that settles Rejected with no
// Catch/Then(_, onRejected)/Finally attached by the time the loop next goes
// Idle, following JavaScript's unhandledrejection event.
type RejectionHandler func(reason Value)

// WithUnhandledRejection installs a handler for rejections nothing ever
// observed. Without one, unhandled rejections are silently dropped, same as
// a Promise settled and never awaited.
func WithUnhandledRejection(handler RejectionHandler) Option {
	return optionFunc(func(o *loopOptions) { o.onUnhandledRejection = handler })
}

func resolveOptions(opts []Option) *loopOptions {
	o := &loopOptions{
		defaultIOTimeout: time.Millisecond,
		idleSleepBudget:  100 * time.Microsecond,
		logger:           NewNoOpLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	return o
}
