package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rickgao/kalshi-rankings/internal/api"
	"github.com/rickgao/kalshi-rankings/internal/granularity"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"github.com/rickgao/kalshi-rankings/internal/ranking"
)

// Snapshot is the lightweight "current rankings" view: daily candlesticks
// over each market's whole life, ranked without touching the database.
type Snapshot struct {
	EventTicker  string         `json:"event_ticker"`
	SeriesTicker string         `json:"series_ticker"`
	EventTitle   string         `json:"event_title"`
	AsOf         time.Time      `json:"as_of"`
	Teams        []SnapshotTeam `json:"teams"`
}

// SnapshotTeam is one ranked team of a Snapshot.
type SnapshotTeam struct {
	Rank          int      `json:"rank"`
	TeamName      string   `json:"team_name"`
	MarketTicker  string   `json:"market_ticker"`
	AvgYesBidOpen *float64 `json:"avg_yes_bid_open"`
	LastYesBid    *int64   `json:"last_yes_bid_close"`
	LastYesAsk    *int64   `json:"last_yes_ask_close"`
	LastMid       *float64 `json:"last_mid_cents"`
	Periods       int      `json:"periods"`
}

// ErrNoCandlesticks reports that an event's markets returned no periods.
var ErrNoCandlesticks = errors.New("no candlesticks returned")

// Snapshot builds the current-rankings view for eventTicker. It fails when
// any market stayed throttled or no market returned periods.
func (r *Runner) Snapshot(ctx context.Context, eventTicker string) (Snapshot, error) {
	now := r.now().UTC()

	event, markets, err := r.fetchEvent(ctx, eventTicker)
	if err != nil {
		return Snapshot{}, stageErr(StageEventFetch, err)
	}

	snap := Snapshot{
		EventTicker:  event.EventTicker,
		SeriesTicker: event.SeriesTicker,
		EventTitle:   event.Title,
		AsOf:         now,
	}
	if len(markets) == 0 {
		return snap, nil
	}

	periods, throttled, err := r.fetchAll(ctx, r.logger.With("event_ticker", event.EventTicker), markets,
		RunOptions{Granularity: granularity.Day}, now)
	if err != nil {
		return Snapshot{}, stageErr(StageCandlestickFetch, err)
	}
	// A partial view would replace the last complete one in the cache.
	if throttled > 0 {
		return Snapshot{}, stageErr(StageCandlestickFetch,
			fmt.Errorf("%d of %d markets: %w", throttled, len(markets), api.ErrRateLimited))
	}
	if len(periods) == 0 {
		return Snapshot{}, stageErr(StageCandlestickFetch, fmt.Errorf("%w for %d markets", ErrNoCandlesticks, len(markets)))
	}

	tickers := make(map[string]string, len(markets))
	for _, m := range markets {
		tickers[m.TeamName] = m.Ticker
	}

	// Periods are sorted per market, so the last one seen per team is the latest.
	latest := make(map[string]model.CandlestickPeriod)
	counts := make(map[string]int)
	for _, p := range periods {
		latest[p.TeamName] = p
		counts[p.TeamName]++
	}

	for _, rk := range ranking.Aggregate(periods, now, uuid.Nil) {
		last := latest[rk.TeamName]
		snap.Teams = append(snap.Teams, SnapshotTeam{
			Rank:          rk.Rank,
			TeamName:      rk.TeamName,
			MarketTicker:  tickers[rk.TeamName],
			AvgYesBidOpen: rk.AvgYesBidOpen.Ptr(),
			LastYesBid:    last.YesBidClose.Ptr(),
			LastYesAsk:    last.YesAskClose.Ptr(),
			LastMid:       last.MidCents.Ptr(),
			Periods:       counts[rk.TeamName],
		})
	}
	return snap, nil
}

var _ MarketDataSource = (*api.Client)(nil)
