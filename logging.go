package eventloop

import (
	"fmt"
	"log"
	"os"

	"github.com/joeycumines/logiface"
)

// Logger is the diagnostic sink used by a Loop for conditions that are
// logged rather than propagated (§7): CallbackError, BackendError, and
// FiberResumeError. Unhandled promise rejections are not logged; they go
// only to the WithUnhandledRejection handler. Kept deliberately
// small and decoupled from any concrete logging framework, the way the
// teacher package's own logging.go does it — see DESIGN.md.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// NoOpLogger discards everything. It is the default Logger for a Loop
// constructed without WithLogger.
type NoOpLogger struct{}

// NewNoOpLogger returns a Logger that discards all messages.
func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (*NoOpLogger) Debug(string, ...any) {}
func (*NoOpLogger) Info(string, ...any)  {}
func (*NoOpLogger) Warn(string, ...any)  {}
func (*NoOpLogger) Error(string, ...any) {}

// StdLogger adapts the standard library's *log.Logger to Logger. Useful for
// quick diagnostics without pulling in a structured logging dependency.
type StdLogger struct {
	out *log.Logger
}

// NewStdLogger returns a Logger that writes to os.Stderr via log.Logger.
func NewStdLogger() *StdLogger {
	return &StdLogger{out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *StdLogger) log(level, msg string, kv ...any) {
	l.out.Print(formatLogLine(level, msg, kv))
}

func (l *StdLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv...) }
func (l *StdLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv...) }
func (l *StdLogger) Warn(msg string, kv ...any)  { l.log("WARN", msg, kv...) }
func (l *StdLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv...) }

func formatLogLine(level, msg string, kv []any) string {
	s := level + " " + msg
	for i := 0; i+1 < len(kv); i += 2 {
		s += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	return s
}

// logifaceLogger adapts a *logiface.Logger[E] (any logiface.Event
// implementation a caller already has configured — zerolog/logrus-backed or
// otherwise) to Logger. This is the recommended production Logger:
// logiface's Builder pipeline avoids allocating an Event at all when the
// configured level disables it.
type logifaceLogger[E logiface.Event] struct {
	l *logiface.Logger[E]
}

// NewLogifaceLogger wraps an existing *logiface.Logger[E] so it can be
// passed to WithLogger, for callers who already have a logiface-compatible
// backend configured elsewhere in the process.
func NewLogifaceLogger[E logiface.Event](l *logiface.Logger[E]) Logger {
	return &logifaceLogger[E]{l: l}
}

func (a *logifaceLogger[E]) emit(b *logiface.Builder[E], msg string, kv []any) {
	if b == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		if key == "" {
			continue
		}
		b = b.Any(key, kv[i+1])
	}
	b.Log(msg)
}

func (a *logifaceLogger[E]) Debug(msg string, kv ...any) { a.emit(a.l.Debug(), msg, kv) }
func (a *logifaceLogger[E]) Info(msg string, kv ...any)  { a.emit(a.l.Info(), msg, kv) }
func (a *logifaceLogger[E]) Warn(msg string, kv ...any)  { a.emit(a.l.Warning(), msg, kv) }
func (a *logifaceLogger[E]) Error(msg string, kv ...any) { a.emit(a.l.Err(), msg, kv) }
