// Package server is the read API over the persisted candlesticks and ranking
// snapshots, plus the cached current-rankings view and its websocket feed.
//
// Routes:
//   - GET /api/metrics/rankings          stored snapshot joined with latest quotes
//   - GET /api/metrics/history           top-N team history since days_back
//   - GET /api/metrics/teams/{team_name} one team's history and current rank
//   - GET /api/rankings/current          cached current-rankings view
//   - GET /ws/rankings                   pushes the current-rankings view
//   - GET /api/teams                     reference team list
//   - GET /health, GET /metrics
//
// With a pool service, /api/teams also hosts prediction pools: POST to create,
// GET /{code}, POST /{code}/join, PUT and DELETE /{code}/members/{display_name}
// with X-Member-Token, and DELETE /{code} with X-Creator-Token.
//
// When a token is configured, the read routes under /api/ and /ws/ require it
// as a bearer token. Pool routes rely on their own tokens.
package server
