// Package pipeline runs the candlestick ETL for one event.
//
// A run:
//   - Fetches the event and its markets
//   - Picks a granularity per market from its lifecycle position
//   - Fetches and normalizes candlesticks, one market at a time
//   - Resolves team ids and aggregates the ranking snapshot
//   - Upserts candlesticks and atomically replaces the event's rankings
//
// Runs for the same event must not overlap. The Scheduler is the only
// in-process caller and runs them one after another.
package pipeline
