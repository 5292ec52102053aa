// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Upstream API request rates, throttles and exhausted retries
//   - Candlestick periods fetched per granularity
//   - Rows inserted and ignored as duplicates
//   - Run duration, failures by stage, last success time
//   - Read-side cache hits, misses and stale serves
//
// All methods are safe on a nil *Metrics so components can run without metrics.
package metrics
