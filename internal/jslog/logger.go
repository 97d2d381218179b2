// Package jslog is the engine's structured logger, grounded on the
// teacher's own log package (_teacher_ref/log/*_test.go): a thin wrapper
// over log/slog with a colorized terminal handler, used purely for
// diagnostic traces (realm.Agent logs GC cycle completion and failed
// microtask jobs) -- never for control flow.
package jslog

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger is the engine-facing logging interface, named the way the
// teacher's log.Logger is: leveled methods taking a message plus
// alternating key/value context.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)
	With(ctx ...any) Logger
}

// LevelTrace is a slog level below Debug, matching the teacher's five
// level scheme (Trace/Debug/Info/Warn/Error, with Crit placed at
// Error+4 here since slog has no native Crit level).
const LevelTrace = slog.Level(-8)
const LevelCrit = slog.Level(12)

type logger struct {
	l *slog.Logger
}

// New wraps an slog.Handler as a Logger.
func New(h slog.Handler) Logger {
	return &logger{l: slog.New(h)}
}

// Root is the package-level default logger, discarding output until
// SetRoot configures a real handler -- mirroring the teacher's
// log.Root()/SetDefault pattern.
var root Logger = New(slog.NewTextHandler(io.Discard, nil))

// Root returns the process-wide default logger.
func Root() Logger { return root }

// SetRoot replaces the process-wide default logger.
func SetRoot(l Logger) { root = l }

func (lg *logger) log(ctx context.Context, level slog.Level, msg string, kv []any) {
	lg.l.Log(ctx, level, msg, kv...)
}

func (lg *logger) Trace(msg string, ctx ...any) { lg.log(context.Background(), LevelTrace, msg, ctx) }
func (lg *logger) Debug(msg string, ctx ...any) {
	lg.log(context.Background(), slog.LevelDebug, msg, ctx)
}
func (lg *logger) Info(msg string, ctx ...any) { lg.log(context.Background(), slog.LevelInfo, msg, ctx) }
func (lg *logger) Warn(msg string, ctx ...any) { lg.log(context.Background(), slog.LevelWarn, msg, ctx) }
func (lg *logger) Error(msg string, ctx ...any) {
	lg.log(context.Background(), slog.LevelError, msg, ctx)
}
func (lg *logger) Crit(msg string, ctx ...any) { lg.log(context.Background(), LevelCrit, msg, ctx) }

func (lg *logger) With(ctx ...any) Logger {
	return &logger{l: lg.l.With(ctx...)}
}

// NewTerminalHandler builds an slog.Handler that colorizes output when w
// is a real terminal, using the same go-colorable/go-isatty pairing the
// teacher's log package uses for its TerminalHandler.
func NewTerminalHandler(w io.Writer, level slog.Level) slog.Handler {
	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = colorable.NewColorable(f)
	}
	return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
}
