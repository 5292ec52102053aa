// Package granularity chooses the candlestick period width to request for a market.
//
// The choice is the finer of a lifecycle-phase rule and a time-to-close rule,
// then widened by a span cap so markets that have been open for a long time
// are not fetched at minute or hour resolution across their whole life.
package granularity

import (
	"fmt"
	"strconv"
	"time"
)

// Supported period widths, in minutes.
const (
	Minute = 1
	Hour   = 60
	Day    = 1440
)

// Phase is the position of "now" within a market's open-to-close lifetime.
type Phase string

const (
	PhaseEarly  Phase = "early"  // < 60% elapsed
	PhaseMiddle Phase = "middle" // 60% to 90% elapsed
	PhaseLate   Phase = "late"   // >= 90% elapsed, or undefined
)

const day = 24 * time.Hour

// Config holds the span-cap thresholds.
type Config struct {
	MinuteCapDays float64 // Widen 1 to 60 when open longer than this
	HourCapDays   float64 // Widen 60 to 1440 when open longer than this
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MinuteCapDays: 3,
		HourCapDays:   55,
	}
}

// Decision records every intermediate value of a selection, for logging.
type Decision struct {
	LifecyclePct  float64
	Phase         Phase
	PhaseMinutes  int
	TTCMinutes    int
	Provisional   int
	DaysSinceOpen float64
	Final         int
}

// Select chooses the granularity for a market with the given open and close
// times, evaluated at now.
func Select(open, close, now time.Time, cfg Config) Decision {
	d := Decision{}

	total := close.Sub(open)
	if total == 0 {
		// Zero-length lifetime: treat as late. A close before open falls
		// through and clamps like any other ratio.
		d.LifecyclePct = 1
		d.Phase = PhaseLate
	} else {
		d.LifecyclePct = clamp(float64(now.Sub(open))/float64(total), 0, 1)
		d.Phase = phaseOf(d.LifecyclePct)
	}
	d.PhaseMinutes = phaseMinutes(d.Phase)
	d.TTCMinutes = ttcMinutes(close.Sub(now))
	d.Provisional = min(d.PhaseMinutes, d.TTCMinutes)

	d.DaysSinceOpen = float64(now.Sub(open)) / float64(day)
	d.Final = SpanCap(d.Provisional, d.DaysSinceOpen, cfg)
	return d
}

// SpanCap widens a provisional granularity based on how long the market has been open.
func SpanCap(provisional int, daysSinceOpen float64, cfg Config) int {
	g := provisional
	if g == Minute && daysSinceOpen > cfg.MinuteCapDays {
		g = Hour
	}
	if g == Hour && daysSinceOpen > cfg.HourCapDays {
		g = Day
	}
	return g
}

func phaseOf(pct float64) Phase {
	switch {
	case pct < 0.6:
		return PhaseEarly
	case pct < 0.9:
		return PhaseMiddle
	default:
		return PhaseLate
	}
}

func phaseMinutes(p Phase) int {
	switch p {
	case PhaseEarly:
		return Day
	case PhaseMiddle:
		return Hour
	default:
		return Minute
	}
}

// ttcMinutes maps time to close to a granularity. A negative ttc (already
// closed) counts as very close.
func ttcMinutes(ttc time.Duration) int {
	switch {
	case ttc > 7*day:
		return Day
	case ttc > day:
		return Hour
	default:
		return Minute
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Valid reports whether minutes is a supported period width.
func Valid(minutes int) bool {
	return minutes == Minute || minutes == Hour || minutes == Day
}

// Parse parses a forced granularity override.
func Parse(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse granularity %q: %w", s, err)
	}
	if !Valid(n) {
		return 0, fmt.Errorf("granularity must be 1, 60 or 1440, got %d", n)
	}
	return n, nil
}
