// Package store persists candlestick periods, ranking snapshots and team
// reference data.
//
// Two backends implement Store:
//   - PostgreSQL (pgx pool): production.
//   - SQLite (database/sql + go-sqlite3): local runs and tests.
//
// Candlestick inserts are idempotent on (market_ticker, end_period_ts,
// granularity_minutes): the first write wins and later duplicates count as
// conflicts. Ranking snapshots are replaced per event inside one transaction,
// so readers see either the old snapshot or the new one.
package store
