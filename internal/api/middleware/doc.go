// Package middleware holds the HTTP middleware shared by the API router:
// CORS, per-client rate limiting and response compression.
package middleware
