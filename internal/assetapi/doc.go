// Package assetapi is the client for the brand-data API that sits next to the
// sandbox: tool bundles, grouped assets, imagery and colors.
//
// Requests go through a resty client whose transport is a go-retryablehttp
// client, so connection failures and 5xx responses are retried with backoff.
// A token-bucket limiter bounds outgoing traffic and a circuit breaker stops
// hammering the API once it is clearly down. JSON is decoded with sonic.
package assetapi
