// Package ws streams view events over WebSocket.
//
// A client connects to /api/views/:id/stream and receives every host event
// of that view as it happens: state transitions, console entries and guest
// errors. The first message is a snapshot of the view.
//
// Message Types (Client → Server):
//   - select: Select a tool by slug
//   - clear: Clear the selection
//   - navigate: Replace the view's address
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - view: Current view snapshot
//   - state, console, guest_error: Host events
//   - pong: Reply to ping
//   - error: Command failed
//
// Example Usage:
//
//	handler := ws.NewHandler(views, logger)
//	router.GET("/api/views/:id/stream", handler.HandleConnection)
package ws
