// Package api provides the Kalshi REST client used by the candlestick pipeline.
//
// REST endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Only 429 responses are retried. Every other non-2xx status is returned to
// the caller as an *APIError on the first attempt.
package api
