/*
Package monitoring provides Prometheus metrics for the sandbox service.

# Overview

Metrics live on a dedicated registry (not the process default) so several
servers can coexist in one test binary. The registry is exposed through
Handler for the /metrics endpoint.

# Metrics

  - brandhub_http_requests_total / brandhub_http_request_duration_seconds
  - brandhub_renders_total{outcome}: execution host loads
  - brandhub_resolve_errors_total{kind}: bundle resolution failures
  - brandhub_guest_errors_total: exceptions raised by guest code
  - brandhub_bridge_fetches_total{outcome}: guest fetches through the host
  - brandhub_views_active

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
