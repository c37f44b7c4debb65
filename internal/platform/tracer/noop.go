package tracer

import "context"

// NoopTracer discards all spans. Use it in tests and when tracing is disabled.
type NoopTracer struct{}

// NewNoop creates a tracer that records nothing.
func NewNoop() *NoopTracer {
	return &NoopTracer{}
}

func (t *NoopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                     {}
func (noopSpan) AddEvent(string, ...Attribute) {}
func (noopSpan) SetAttributes(...Attribute)    {}
