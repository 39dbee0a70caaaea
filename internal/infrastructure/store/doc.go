// Package store persists view navigation state in SQLite.
//
// It uses modernc.org/sqlite, a pure-Go driver, so the service builds
// without CGO. ":memory:" opens a private in-memory database for tests.
package store
