// Package model defines shared data types used across the rankings pipeline.
//
// Conventions:
//   - Prices: integer cents (0-100) as delivered by the candlestick endpoint
//   - Derived mid/spread: fractional cents
//   - Period timestamps: int64 seconds since Unix epoch
//   - Missing upstream values are null (guregu/null), never zero
package model
