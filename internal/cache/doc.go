// Package cache is the read-side cache for derived views such as the
// current-rankings payload.
//
// Entries carry their fetch time. Within the TTL they are served as-is.
// After the TTL the cache refreshes, either in the caller's goroutine or in
// the background, and falls back to the last stored payload (flagged stale)
// when the upstream fetch fails.
package cache
