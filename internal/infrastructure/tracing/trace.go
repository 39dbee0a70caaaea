package tracing

import (
	"context"
	"time"

	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
	"go.uber.org/zap"
)

// TraceID represents a unique trace identifier
type TraceID string

// Span represents a single traced operation
type Span struct {
	TraceID    TraceID
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer logs completed spans
type Tracer struct {
	logger *zap.Logger
	slow   time.Duration
}

// New creates a tracer. Spans slower than slow are logged at warn level.
func New(logger *zap.Logger, slow time.Duration) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{logger: logger.Named("trace"), slow: slow}
}

// StartSpan creates a span, reusing the trace id already on ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}

	span := &Span{
		TraceID:   traceID,
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
	return span, context.WithValue(ctx, traceIDKey, traceID)
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Error = err
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Submit logs a finished span
func (t *Tracer) Submit(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.Int("status", span.StatusCode),
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	switch {
	case span.Error != nil || span.StatusCode >= 500:
		if span.Error != nil {
			fields = append(fields, zap.Error(span.Error))
		}
		t.logger.Error("span completed with error", fields...)
	case t.slow > 0 && span.Duration > t.slow:
		t.logger.Warn("slow span", fields...)
	default:
		t.logger.Debug("span completed", fields...)
	}
}

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID returns ctx carrying traceID
func WithTraceID(ctx context.Context, traceID TraceID) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}
