// Package trace defines the tracer abstraction the orchestrator uses to
// wrap pipeline stages in spans. Exporting spans to a collector is an
// external concern; the built-in implementations are a no-op tracer and a
// logging tracer that records span durations for local debugging.
package trace

import (
	"context"
	"log/slog"
	"time"
)

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is one traced section of work.
type Span interface {
	SetAttribute(key string, value any)
	End()
}

// NewNoop returns a tracer whose spans cost nothing.
func NewNoop() Tracer {
	return noopTracer{}
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) End()                     {}

// NewLogging returns a tracer that logs span durations at debug level.
// It stands in for a real exporter when tracing is enabled without a
// collector wired up.
func NewLogging(logger *slog.Logger) Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingTracer{logger: logger}
}

type loggingTracer struct {
	logger *slog.Logger
}

type loggingSpan struct {
	logger *slog.Logger
	name   string
	start  time.Time
	attrs  []any
}

func (t *loggingTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &loggingSpan{logger: t.logger, name: name, start: time.Now()}
}

func (s *loggingSpan) SetAttribute(key string, value any) {
	s.attrs = append(s.attrs, key, value)
}

func (s *loggingSpan) End() {
	args := append([]any{"span", s.name, "duration", time.Since(s.start)}, s.attrs...)
	s.logger.Debug("span complete", args...)
}
