// Package candle flattens raw candlestick payloads into stored periods.
package candle

import (
	"cmp"
	"slices"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rickgao/kalshi-rankings/internal/model"
)

// Normalize flattens the raw periods of one market, fetched at granularity
// minutes, into CandlestickPeriods sorted ascending by end time.
// Missing groups and leaves stay null. loc is the display zone for
// EndPeriodLocal; nil means UTC. TeamID is left null for the caller to resolve.
func Normalize(m model.Market, granularity int, raw []model.RawPeriod, loc *time.Location) []model.CandlestickPeriod {
	if loc == nil {
		loc = time.UTC
	}

	out := make([]model.CandlestickPeriod, 0, len(raw))
	for _, r := range raw {
		out = append(out, flatten(m, granularity, r, loc))
	}

	slices.SortStableFunc(out, func(a, b model.CandlestickPeriod) int {
		return cmp.Compare(a.EndPeriodTS, b.EndPeriodTS)
	})
	return out
}

func flatten(m model.Market, granularity int, r model.RawPeriod, loc *time.Location) model.CandlestickPeriod {
	utc := time.Unix(r.EndPeriodTS, 0).UTC()

	p := model.CandlestickPeriod{
		MarketTicker:       m.Ticker,
		EventTicker:        m.EventTicker,
		SeriesTicker:       m.SeriesTicker,
		TeamName:           m.TeamName,
		EndPeriodTS:        r.EndPeriodTS,
		EndPeriodUTC:       utc,
		EndPeriodLocal:     utc.In(loc),
		GranularityMinutes: granularity,
		Volume:             r.Volume,
		OpenInterest:       r.OpenInterest,
	}

	if q := r.Price; q != nil {
		p.PriceOpen = q.Open
		p.PriceHigh = q.High
		p.PriceLow = q.Low
		p.PriceClose = q.Close
		p.PriceMean = q.Mean
		p.PricePrevious = q.Previous
	}
	if q := r.YesBid; q != nil {
		p.YesBidOpen, p.YesBidHigh, p.YesBidLow, p.YesBidClose = q.Open, q.High, q.Low, q.Close
	}
	if q := r.YesAsk; q != nil {
		p.YesAskOpen, p.YesAskHigh, p.YesAskLow, p.YesAskClose = q.Open, q.High, q.Low, q.Close
	}

	p.MidCents, p.SpreadCents = midSpread(p.YesBidClose, p.YesAskClose)
	return p
}

// midSpread derives mid and spread from the closing quotes. Both are null
// unless both sides are present.
func midSpread(bid, ask null.Int) (mid, spread null.Float) {
	if !bid.Valid || !ask.Valid {
		return null.Float{}, null.Float{}
	}
	b, a := float64(bid.Int64), float64(ask.Int64)
	return null.FloatFrom((b + a) / 2), null.FloatFrom(a - b)
}
