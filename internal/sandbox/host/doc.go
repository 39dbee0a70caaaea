// Package host owns the execution context a view renders tools into.
//
// A Host moves between Empty, Loading and Loaded. Every Load composes a
// fresh document and opens it in a brand-new runtime.Document; the previous
// document is closed first, so nothing from an earlier bundle survives.
// Events from a replaced document carry an old generation and are dropped.
package host
