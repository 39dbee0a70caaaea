// Package main is the entry point for the BrandHub tool sandbox server.
//
// The server renders user-authored tools (markup, style and script bundles)
// inside isolated documents that can read brand data only through the
// BrandHub bridge.
//
//	Browser iframe → /sandbox/:slug → composed document (CSP sandboxed)
//	API client     → /api/views     → server-side execution contexts
//	                                    → Asset API (brand data)
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -api https://brandhub.example.com/api
//
//	# Development mode with a local catalog
//	./server -dev -catalog ./tools
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
