package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/guregu/null/v6"
	"github.com/rickgao/kalshi-rankings/internal/cache"
	"github.com/rickgao/kalshi-rankings/internal/database"
	"github.com/rickgao/kalshi-rankings/internal/metrics"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"github.com/rickgao/kalshi-rankings/internal/pipeline"
	"github.com/rickgao/kalshi-rankings/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEvent = "KXMENWORLDCUP-26"

var (
	testNow  = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	testAsOf = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func period(team, ticker string, ts, bidOpen, askClose int64) model.CandlestickPeriod {
	utc := time.Unix(ts, 0).UTC()
	return model.CandlestickPeriod{
		MarketTicker:       ticker,
		EventTicker:        testEvent,
		SeriesTicker:       "KXMENWORLDCUP",
		TeamName:           team,
		EndPeriodTS:        ts,
		EndPeriodUTC:       utc,
		EndPeriodLocal:     utc,
		GranularityMinutes: 1440,
		YesBidOpen:         null.IntFrom(bidOpen),
		YesAskClose:        null.IntFrom(askClose),
		Volume:             null.IntFrom(100),
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, database.MemoryPath)
	require.NoError(t, err)
	st := store.NewSQLite(db, nil)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	_, err = st.UpsertCandlesticks(ctx, []model.CandlestickPeriod{
		period("Spain", testEvent+"-ESP", 1772236800, 60, 64),
		period("Spain", testEvent+"-ESP", 1772323200, 62, 65),
		period("France", testEvent+"-FRA", 1772236800, 30, 33),
		period("France", testEvent+"-FRA", 1772323200, 31, 34),
	})
	require.NoError(t, err)

	runID := uuid.New()
	require.NoError(t, st.ReplaceRankings(ctx, testEvent, []model.Ranking{
		{RunID: runID, EventTicker: testEvent, SeriesTicker: "KXMENWORLDCUP", TeamName: "Spain", TeamID: null.IntFrom(1), AvgYesBidOpen: null.FloatFrom(61), Rank: 1, AsOf: testAsOf},
		{RunID: runID, EventTicker: testEvent, SeriesTicker: "KXMENWORLDCUP", TeamName: "France", AvgYesBidOpen: null.FloatFrom(30.5), Rank: 2, AsOf: testAsOf},
	}))
	return st
}

type fakeSnapshots struct {
	res   cache.Result[pipeline.Snapshot]
	err   error
	empty bool // nothing stored yet: Peek reports cache.ErrNoEntry
	gets  atomic.Int32
}

func (f *fakeSnapshots) Get(_ context.Context, event string) (cache.Result[pipeline.Snapshot], error) {
	f.gets.Add(1)
	if f.err != nil {
		return cache.Result[pipeline.Snapshot]{}, f.err
	}
	r := f.res
	r.Value.EventTicker = event
	return r, nil
}

func (f *fakeSnapshots) Peek(_ context.Context, event string) (cache.Result[pipeline.Snapshot], error) {
	if f.empty {
		return cache.Result[pipeline.Snapshot]{}, cache.ErrNoEntry
	}
	r := f.res
	r.Value.EventTicker = event
	return r, nil
}

func snapshotResult(stale bool) cache.Result[pipeline.Snapshot] {
	avg := 61.0
	return cache.Result[pipeline.Snapshot]{
		Value: pipeline.Snapshot{
			SeriesTicker: "KXMENWORLDCUP",
			AsOf:         testAsOf,
			Teams:        []pipeline.SnapshotTeam{{Rank: 1, TeamName: "Spain", AvgYesBidOpen: &avg, Periods: 2}},
		},
		FetchedAt: testAsOf,
		Stale:     stale,
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	s := New(newTestStore(t), testEvent, opts...)
	t.Cleanup(s.Close)
	return s
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRankings(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, "/api/metrics/rankings?event_ticker=kxmenworldcup-26")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[rankingsResponse](t, rec)
	assert.Equal(t, testEvent, resp.EventTicker)
	require.NotNil(t, resp.AsOf)
	assert.True(t, resp.AsOf.Equal(testAsOf))
	require.Len(t, resp.Rankings, 2)

	spain := resp.Rankings[0]
	assert.Equal(t, "Spain", spain.TeamName)
	assert.Equal(t, 1, spain.Rank)
	assert.Equal(t, null.FloatFrom(61), spain.Probability)
	assert.Equal(t, null.IntFrom(1), spain.TeamID)
	assert.Equal(t, null.IntFrom(62), spain.YesBid, "latest period's bid open")
	assert.Equal(t, null.IntFrom(65), spain.YesAsk)
	assert.Equal(t, null.IntFrom(100), spain.Volume)

	assert.False(t, resp.Rankings[1].TeamID.Valid)
}

func TestRankings_NotFound(t *testing.T) {
	rec := get(t, newTestServer(t).Handler(), "/api/metrics/rankings?event_ticker=OTHER-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No rankings found for event OTHER-1")
}

func TestHistory(t *testing.T) {
	h := newTestServer(t).Handler()

	t.Run("defaults", func(t *testing.T) {
		rec := get(t, h, "/api/metrics/history")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[historyResponse](t, rec)
		assert.Equal(t, []string{"Spain", "France"}, resp.Teams)
		assert.Len(t, resp.History, 4)
		assert.True(t, resp.DataTo.Equal(testNow))
		assert.True(t, resp.DataFrom.Equal(testNow.Add(-30*24*time.Hour)))
	})

	t.Run("top n and window", func(t *testing.T) {
		rec := get(t, h, "/api/metrics/history?top_n_teams=1&days_back=1")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[historyResponse](t, rec)
		assert.Equal(t, []string{"Spain"}, resp.Teams)
		require.Len(t, resp.History, 1)
		assert.EqualValues(t, 1772323200, resp.History[0].Timestamp)
		assert.Equal(t, null.IntFrom(62), resp.History[0].Probability)
		assert.Equal(t, null.IntFrom(65), resp.History[0].Ask)
	})

	for _, q := range []string{"days_back=0", "days_back=91", "days_back=abc", "top_n_teams=49"} {
		t.Run("invalid "+q, func(t *testing.T) {
			rec := get(t, h, "/api/metrics/history?"+q)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestTeam(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, "/api/metrics/teams/France")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[teamResponse](t, rec)
	assert.Equal(t, "France", resp.TeamName)
	require.NotNil(t, resp.CurrentRank)
	assert.Equal(t, 2, *resp.CurrentRank)
	assert.Equal(t, null.FloatFrom(30.5), resp.CurrentProbability)
	require.Len(t, resp.History, 2)
	assert.Equal(t, null.IntFrom(30), resp.History[0].Probability)

	rec = get(t, h, "/api/metrics/teams/Atlantis")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, WithToken("s3cret")).Handler()

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/metrics/rankings").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/metrics/rankings", "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/metrics/rankings", "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code, "health is public")
}

func TestCurrent(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := get(t, newTestServer(t).Handler(), "/api/rankings/current")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("stale", func(t *testing.T) {
		src := &fakeSnapshots{res: snapshotResult(true)}
		src.res.Warning = "refresh failed"
		rec := get(t, newTestServer(t, WithSnapshots(src)).Handler(), "/api/rankings/current")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[currentResponse](t, rec)
		assert.Equal(t, testEvent, resp.EventTicker)
		assert.True(t, resp.Stale)
		assert.Equal(t, "refresh failed", resp.Warning)
		require.Len(t, resp.Teams, 1)
		assert.Equal(t, 61.0, *resp.Teams[0].AvgYesBidOpen)
	})

	t.Run("upstream error", func(t *testing.T) {
		src := &fakeSnapshots{err: errors.New("event fetch: boom")}
		rec := get(t, newTestServer(t, WithSnapshots(src)).Handler(), "/api/rankings/current")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"connected"`)

	db, err := database.OpenSQLite(context.Background(), database.MemoryPath)
	require.NoError(t, err)
	closed := store.NewSQLite(db, nil)
	require.NoError(t, closed.Close())

	rec = get(t, New(closed, testEvent).Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, WithMetrics(metrics.New(), "/metrics")).Handler()

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kalshi_rankings_ws_clients")
}

func TestWebSocket(t *testing.T) {
	src := &fakeSnapshots{res: snapshotResult(false)}
	s := newTestServer(t, WithSnapshots(src), WithToken("s3cret"))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rankings?token=s3cret"

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/rankings", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first currentResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, testEvent, first.EventTicker)
	assert.False(t, first.Stale)
	assert.Zero(t, src.gets.Load(), "a stored view is sent without fetching")

	require.Eventually(t, func() bool { return s.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	next := snapshotResult(false)
	next.Value.EventTicker = testEvent
	next.Value.Teams[0].Periods = 3
	s.PublishSnapshot(testEvent, next)

	var pushed currentResponse
	require.NoError(t, conn.ReadJSON(&pushed))
	require.Len(t, pushed.Teams, 1)
	assert.Equal(t, 3, pushed.Teams[0].Periods)

	s.Close()
	assert.Eventually(t, func() bool { return s.Hub().ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocket_InitialFetchWithoutStoredView(t *testing.T) {
	src := &fakeSnapshots{res: snapshotResult(false), empty: true}
	s := newTestServer(t, WithSnapshots(src))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/rankings", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first currentResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, testEvent, first.EventTicker)
	require.Len(t, first.Teams, 1)
	assert.EqualValues(t, 1, src.gets.Load())
}
