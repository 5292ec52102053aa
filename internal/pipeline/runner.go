package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rickgao/kalshi-rankings/internal/api"
	"github.com/rickgao/kalshi-rankings/internal/candle"
	"github.com/rickgao/kalshi-rankings/internal/granularity"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"github.com/rickgao/kalshi-rankings/internal/ranking"
	"github.com/rickgao/kalshi-rankings/internal/store"
	"github.com/rickgao/kalshi-rankings/internal/teams"
)

// MarketDataSource is the upstream API. *api.Client implements it.
type MarketDataSource interface {
	GetEvent(ctx context.Context, eventTicker string) (*api.EventResponse, error)
	GetCandlesticks(ctx context.Context, r api.CandlestickRequest) ([]api.APICandlestick, error)
}

// throttleReporter is a MarketDataSource that can surface throttle
// exhaustion as api.ErrRateLimited instead of an empty result.
type throttleReporter interface {
	FetchCandlesticks(ctx context.Context, r api.CandlestickRequest) ([]api.APICandlestick, error)
}

// Store is the subset of store.Store a run writes to.
type Store interface {
	LoadTeams(ctx context.Context) ([]model.Team, error)
	UpsertCandlesticks(ctx context.Context, periods []model.CandlestickPeriod) (store.UpsertResult, error)
	ReplaceRankings(ctx context.Context, eventTicker string, rows []model.Ranking) error
}

// Recorder observes run outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ObservePeriods(granularity, n int)
	ObserveUpsert(inserted, conflicts int)
	RunFailed(stage string, d time.Duration)
	RunSucceeded(d time.Duration, rankingSize int, at time.Time)
}

type nopRecorder struct{}

func (nopRecorder) ObservePeriods(int, int)                    {}
func (nopRecorder) ObserveUpsert(int, int)                     {}
func (nopRecorder) RunFailed(string, time.Duration)            {}
func (nopRecorder) RunSucceeded(time.Duration, int, time.Time) {}

// Config holds run configuration.
type Config struct {
	Location    *time.Location // display zone for EndPeriodLocal (default: UTC)
	MarketDelay time.Duration  // pause between per-market fetches
	Granularity granularity.Config
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Location:    loc,
		MarketDelay: 500 * time.Millisecond,
		Granularity: granularity.DefaultConfig(),
	}
}

// RunOptions select what a run fetches. Zero values take the defaults.
type RunOptions struct {
	EventTicker string
	StartTS     int64     // default: each market's open time
	EndTS       int64     // default: Now
	Granularity int       // forces 1, 60 or 1440 and skips selection
	Now         time.Time // reference instant (default: clock)
}

// Result summarizes a run.
type Result struct {
	RunID       uuid.UUID
	EventTicker string
	AsOf        time.Time
	Markets     int
	Periods     int
	Throttled   int // markets skipped after throttle exhaustion
	Upsert      store.UpsertResult
	Rankings    []model.Ranking
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.rec = rec
		}
	}
}

// WithSleeper replaces the inter-market delay function (tests use a fake).
func WithSleeper(fn api.SleepFunc) Option {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithClock sets the source of the default reference instant.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner executes pipeline runs.
type Runner struct {
	src    MarketDataSource
	store  Store
	cfg    Config
	logger *slog.Logger
	rec    Recorder
	sleep  api.SleepFunc
	now    func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(src MarketDataSource, st Store, cfg Config, opts ...Option) *Runner {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	r := &Runner{
		src:    src,
		store:  st,
		cfg:    cfg,
		logger: slog.Default(),
		rec:    nopRecorder{},
		sleep:  api.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one ETL pass. An event without markets or a window without
// candlesticks is not an error: the run ends early and writes nothing.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := time.Now()
	now := opts.Now
	if now.IsZero() {
		now = r.now()
	}
	now = now.UTC()

	res := &Result{RunID: uuid.New(), EventTicker: opts.EventTicker, AsOf: now}
	logger := r.logger.With("run_id", res.RunID.String(), "event_ticker", opts.EventTicker)

	fail := func(err error) (*Result, error) {
		var se *StageError
		if errors.As(err, &se) {
			r.rec.RunFailed(string(se.Stage), time.Since(start))
			logger.Error("run failed", "stage", string(se.Stage), "error", se.Err)
		}
		return res, err
	}

	event, markets, err := r.fetchEvent(ctx, opts.EventTicker)
	if err != nil {
		return fail(stageErr(StageEventFetch, err))
	}
	res.EventTicker = event.EventTicker
	res.Markets = len(markets)
	if len(markets) == 0 {
		logger.Info("no markets found")
		return res, nil
	}

	periods, throttled, err := r.fetchAll(ctx, logger, markets, opts, now)
	if err != nil {
		return fail(stageErr(StageCandlestickFetch, err))
	}
	res.Periods = len(periods)
	res.Throttled = throttled
	if len(periods) == 0 {
		logger.Info("no candlesticks found", "markets", len(markets))
		return res, nil
	}

	ref, err := r.store.LoadTeams(ctx)
	if err != nil {
		return fail(stageErr(StageTeamLookup, err))
	}
	lookup := teams.NewLookup(ref)
	unresolved := 0
	for i := range periods {
		periods[i].TeamID = lookup.Resolve(periods[i].TeamName)
		if !periods[i].TeamID.Valid {
			unresolved++
		}
	}
	if unresolved > 0 {
		logger.Debug("periods without a team id", "count", unresolved)
	}

	res.Rankings = ranking.Aggregate(periods, now, res.RunID)

	up, err := r.store.UpsertCandlesticks(ctx, periods)
	if err != nil {
		return fail(stageErr(StagePersistCandlesticks, err))
	}
	res.Upsert = up
	r.rec.ObserveUpsert(up.Inserted, up.Conflicts)

	if err := r.store.ReplaceRankings(ctx, event.EventTicker, res.Rankings); err != nil {
		return fail(stageErr(StageReplaceRankings, err))
	}

	r.rec.RunSucceeded(time.Since(start), len(res.Rankings), now)
	logger.Info("run complete",
		"markets", res.Markets,
		"periods", res.Periods,
		"throttled", res.Throttled,
		"inserted", up.Inserted,
		"conflicts", up.Conflicts,
		"teams", len(res.Rankings),
		"duration", time.Since(start),
	)
	return res, nil
}

func (r *Runner) fetchEvent(ctx context.Context, ticker string) (model.Event, []model.Market, error) {
	resp, err := r.src.GetEvent(ctx, ticker)
	if err != nil {
		return model.Event{}, nil, err
	}
	return resp.ToModel(ticker)
}

// fetchAll fetches markets sequentially with MarketDelay between requests.
// Markets whose requests stayed throttled are skipped and counted.
func (r *Runner) fetchAll(ctx context.Context, logger *slog.Logger, markets []model.Market, opts RunOptions, now time.Time) ([]model.CandlestickPeriod, int, error) {
	var all []model.CandlestickPeriod
	throttled := 0

	for i, m := range markets {
		if i > 0 && r.cfg.MarketDelay > 0 {
			if err := r.sleep(ctx, r.cfg.MarketDelay); err != nil {
				return nil, 0, err
			}
		}

		g := opts.Granularity
		if g == 0 {
			d := granularity.Select(m.OpenTime, m.CloseTime, now, r.cfg.Granularity)
			g = d.Final
			logger.Debug("granularity selected",
				"ticker", m.Ticker,
				"phase", string(d.Phase),
				"lifecycle_pct", d.LifecyclePct,
				"days_since_open", d.DaysSinceOpen,
				"granularity", g,
			)
		}

		req := api.CandlestickRequest{
			SeriesTicker: m.SeriesTicker,
			MarketTicker: m.Ticker,
			StartTS:      opts.StartTS,
			EndTS:        opts.EndTS,
			Interval:     g,
		}
		if req.StartTS == 0 {
			req.StartTS = m.OpenTime.Unix()
		}
		if req.EndTS == 0 {
			req.EndTS = now.Unix()
		}

		raw, err := r.candlesticks(ctx, req)
		if errors.Is(err, api.ErrRateLimited) {
			throttled++
			logger.Warn("skipping throttled market", "ticker", m.Ticker, "error", err)
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		r.rec.ObservePeriods(g, len(raw))
		if len(raw) == 0 {
			continue
		}

		all = append(all, candle.Normalize(m, g, api.RawPeriods(raw), r.cfg.Location)...)
	}

	return all, throttled, nil
}

func (r *Runner) candlesticks(ctx context.Context, req api.CandlestickRequest) ([]api.APICandlestick, error) {
	if tr, ok := r.src.(throttleReporter); ok {
		return tr.FetchCandlesticks(ctx, req)
	}
	return r.src.GetCandlesticks(ctx, req)
}
