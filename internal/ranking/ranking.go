// Package ranking aggregates normalized periods into a ranking snapshot.
package ranking

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"github.com/shopspring/decimal"
)

type group struct {
	first model.CandlestickPeriod
	id    null.Int
	sum   int64
	n     int64
}

// Aggregate groups periods by team name and ranks teams by the mean of
// yes_bid_open, rounded half to even to 2 decimal places, highest first.
//
// Nulls are ignored by the mean; a team with no yes_bid_open at all gets a
// null average and ranks after every team with one. Equal averages are
// ordered by team name so repeated runs produce identical snapshots.
// Ranks are 1..N with no gaps.
func Aggregate(periods []model.CandlestickPeriod, asOf time.Time, runID uuid.UUID) []model.Ranking {
	groups := make(map[string]*group)
	var order []string

	for _, p := range periods {
		g, ok := groups[p.TeamName]
		if !ok {
			g = &group{first: p}
			groups[p.TeamName] = g
			order = append(order, p.TeamName)
		}
		if !g.id.Valid && p.TeamID.Valid {
			g.id = p.TeamID
		}
		if p.YesBidOpen.Valid {
			g.sum += p.YesBidOpen.Int64
			g.n++
		}
	}

	out := make([]model.Ranking, 0, len(order))
	for _, name := range order {
		g := groups[name]
		out = append(out, model.Ranking{
			RunID:         runID,
			EventTicker:   g.first.EventTicker,
			SeriesTicker:  g.first.SeriesTicker,
			TeamName:      name,
			TeamID:        g.id,
			AvgYesBidOpen: mean(g.sum, g.n),
			AsOf:          asOf,
		})
	}

	slices.SortFunc(out, compare)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func mean(sum, n int64) null.Float {
	if n == 0 {
		return null.Float{}
	}
	// Round the binary mean to cents half to even, as numpy's around does:
	// 2469/200 is stored just below 12.345 yet scales to exactly 1234.5.
	scaled := float64(sum) / float64(n) * 100
	return null.FloatFrom(decimal.NewFromFloat(scaled).RoundBank(0).Shift(-2).InexactFloat64())
}

func compare(a, b model.Ranking) int {
	if a.AvgYesBidOpen.Valid != b.AvgYesBidOpen.Valid {
		if a.AvgYesBidOpen.Valid {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(b.AvgYesBidOpen.Float64, a.AvgYesBidOpen.Float64); c != 0 {
		return c
	}
	return cmp.Compare(a.TeamName, b.TeamName)
}
