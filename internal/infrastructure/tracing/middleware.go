package tracing

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/GriffinCanCode/BrandHub/backend/internal/shared/id"
)

const (
	// HeaderTraceID carries the trace id in requests and responses.
	HeaderTraceID = "X-Trace-ID"
	// HeaderRequestID is set by proxies and load balancers.
	HeaderRequestID = "X-Request-ID"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := incomingTraceID(c); incoming != "" {
			ctx = WithTraceID(ctx, incoming)
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, string(span.TraceID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}

// incomingTraceID adopts a caller's id only when it is one of ours or a
// UUID. Anything else is replaced, so arbitrary header text never reaches
// logs or response headers.
func incomingTraceID(c *gin.Context) TraceID {
	for _, header := range []string{HeaderTraceID, HeaderRequestID} {
		v := c.GetHeader(header)
		if v == "" {
			continue
		}
		if id.HasPrefix(v, id.RequestPrefix) {
			return TraceID(v)
		}
		if u, err := uuid.Parse(v); err == nil {
			return TraceID(u.String())
		}
	}
	return ""
}
