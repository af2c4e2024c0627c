package asynclife

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is a simple logger interface accepting key-value pair parameters,
// with a component name attached via Named. The logger names recognized by
// this package are "STARTABLE", "STARTABLE.CHAIN", "AOP", "AOP.PERIODIC",
// "AOP.BACKGROUND", "AOP.NOP", "AOP.DELAYED", "AOP.TIMED", "AOP.SEQ",
// "AOP.CONCUR", "AOP.ON_FAULT", "ASYNC.RUNNABLE", "SCHEDULER", "VAR.SIMPLE"
// and "VAR.SUPPORT".
type Logger interface {
	// Info logs an informational message. Used for terminal outcomes.
	Info(msg string, keysAndValues ...interface{})
	// Debug logs a debug message. Used for individual state transitions.
	Debug(msg string, keysAndValues ...interface{})
	// Warn logs a message about a non-fatal anomaly, such as a listener
	// panicking or a reconciliation timeout.
	Warn(msg string, keysAndValues ...interface{})
	// Error logs an error.
	Error(err error, msg string, keysAndValues ...interface{})
	// Named returns a child logger tagged with the given component name.
	// Implementations that don't support scoping may return themselves.
	Named(name string) Logger
}

// noopLogger discards everything. It is the default when no Logger is
// configured, mirroring the teacher's behavior of silently dropping log
// calls rather than forcing every caller to provide one.
type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})         {}
func (noopLogger) Debug(string, ...interface{})        {}
func (noopLogger) Warn(string, ...interface{})         {}
func (noopLogger) Error(error, string, ...interface{}) {}
func (n noopLogger) Named(string) Logger               { return n }

// NoopLogger returns a Logger that discards every call.
func NoopLogger() Logger { return noopLogger{} }

// zerologLogger adapts zerolog.Logger to the Logger interface. It is the
// default logger used by DefaultLogger.
type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger as a Logger.
func NewZerologLogger(l zerolog.Logger) Logger {
	return zerologLogger{l: l}
}

// DefaultLogger returns the package-wide default Logger: a zerolog-backed
// console writer at info level, named "asynclife".
func DefaultLogger() Logger {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel).
		With().Timestamp().Str("component", "asynclife").Logger()
	return zerologLogger{l: l}
}

func (z zerologLogger) kv(ev *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, keysAndValues[i+1])
	}
	return ev
}

func (z zerologLogger) Info(msg string, keysAndValues ...interface{}) {
	z.kv(z.l.Info(), keysAndValues).Msg(msg)
}

func (z zerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.kv(z.l.Debug(), keysAndValues).Msg(msg)
}

func (z zerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.kv(z.l.Warn(), keysAndValues).Msg(msg)
}

func (z zerologLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.kv(z.l.Error().Err(err), keysAndValues).Msg(msg)
}

func (z zerologLogger) Named(name string) Logger {
	return zerologLogger{l: z.l.With().Str("name", name).Logger()}
}
