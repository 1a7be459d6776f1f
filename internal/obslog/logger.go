// Package obslog establishes the shared slog.Logger conventions used across
// the fabric's components: JSON handler, component tagging, and a handful
// of named event helpers so call sites log consistently without repeating
// attribute names.
package obslog

import (
	"log/slog"
	"os"
)

// New builds the root logger. Output always goes to stdout; there is no
// systemd journal integration here since the fabric runs as a plain
// foreground process, not an agent unit.
func New(level string, component string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: false,
	})
	return slog.New(handler).With(
		"service", "observability-fabric",
		"component", component,
	)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLifecycle logs a process lifecycle transition (startup, shutdown,
// component up/down) with a uniform "event" attribute.
func LogLifecycle(log *slog.Logger, event string, args ...any) {
	a := append([]any{"event", event}, args...)
	log.Info("lifecycle", a...)
}

// LogShutdownError logs a non-fatal error encountered during graceful
// shutdown of a named component, without aborting the rest of the sequence.
func LogShutdownError(log *slog.Logger, component string, err error) {
	log.Error("shutdown error", "component", component, "error", err)
}
