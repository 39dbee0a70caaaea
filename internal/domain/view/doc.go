// Package view manages views: one host, one selection controller and one
// address each.
//
// Views persist their address so a restart restores selections. Restored
// views render lazily on first access. Host events fan out to subscribers
// over buffered channels; a slow subscriber loses events rather than
// stalling the document loop.
package view
