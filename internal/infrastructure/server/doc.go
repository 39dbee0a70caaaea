// Package server assembles the BrandHub sandbox service.
//
// Server Lifecycle:
//  1. Build logger, metrics and tracer from configuration
//  2. Create the asset API client
//  3. Choose a bundle source: a catalog directory or the API
//  4. Open the view store and restore persisted views
//  5. Setup HTTP routes and middleware
//  6. Serve until Close
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(ctx, cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
