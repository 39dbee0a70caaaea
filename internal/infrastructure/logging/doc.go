// Package logging provides structured logging using uber/zap.
//
// Two output modes are supported:
//   - Production: JSON output for log shipping
//   - Development: colored console output
//
// Components receive a *zap.Logger and derive children with Named, e.g. the
// execution host logs under "brandhub.host" and guest console output under
// "brandhub.host.guest".
//
// Example Usage:
//
//	logger := logging.MustNew(logging.Config{Level: "debug", Development: true})
//	logger.Info("Server starting", zap.String("port", "8000"))
package logging
