package fsm

import (
	"context"
	"log/slog"
	"time"
)

// Logger provides logging hooks for state machine execution.
type Logger interface {
	StateEntered(ctx context.Context, definition, instanceID, state string)
	TransitionExecuted(ctx context.Context, definition, instanceID, from, to string)
	InstanceEvicted(ctx context.Context, definition, instanceID, reason string)
	TickCompleted(ctx context.Context, group string, duration time.Duration, stepped, evicted int)
}

// DefaultLogger implements Logger using slog. Per-step events log at debug
// level; evictions log at info.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a Logger backed by slog.Default().
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{logger: slog.Default()}
}

// NewSlogLogger creates a Logger backed by the given slog logger.
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	if logger == nil {
		return NewDefaultLogger()
	}

	return &DefaultLogger{logger: logger}
}

func (l *DefaultLogger) StateEntered(ctx context.Context, definition, instanceID, state string) {
	l.logger.DebugContext(ctx, "state entered",
		"definition", definition,
		"instance_id", instanceID,
		"state", state,
	)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, definition, instanceID, from, to string) {
	l.logger.DebugContext(ctx, "transition executed",
		"definition", definition,
		"instance_id", instanceID,
		"from", from,
		"to", to,
	)
}

func (l *DefaultLogger) InstanceEvicted(ctx context.Context, definition, instanceID, reason string) {
	l.logger.InfoContext(ctx, "instance evicted",
		"definition", definition,
		"instance_id", instanceID,
		"reason", reason,
	)
}

func (l *DefaultLogger) TickCompleted(ctx context.Context, group string, duration time.Duration, stepped, evicted int) {
	l.logger.DebugContext(ctx, "tick completed",
		"group", group,
		"duration_ms", duration.Milliseconds(),
		"stepped", stepped,
		"evicted", evicted,
	)
}

// NopLogger discards all events.
type NopLogger struct{}

func (NopLogger) StateEntered(context.Context, string, string, string) {}

func (NopLogger) TransitionExecuted(context.Context, string, string, string, string) {}

func (NopLogger) InstanceEvicted(context.Context, string, string, string) {}

func (NopLogger) TickCompleted(context.Context, string, time.Duration, int, int) {}
