// Package tracing attaches a trace id to every request and logs one span per
// request. Incoming X-Trace-ID headers are honored so the embedding
// application can correlate its own logs with sandbox renders.
package tracing
