// Package http contains the REST handlers of the sandbox service.
//
// Routes are registered by the server package. Handlers translate typed
// errors into status codes: resolution failures become 404 (not_found) or
// 502 (transport, invalid), unknown views 404, malformed input 400.
package http
