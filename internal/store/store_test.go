package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEvent = "KXMENWORLDCUP-26"

func testPeriod(team string, ts int64, granularity int, bid, ask null.Int) model.CandlestickPeriod {
	p := model.CandlestickPeriod{
		MarketTicker:       testEvent + "-" + team,
		EventTicker:        testEvent,
		SeriesTicker:       "KXMENWORLDCUP",
		TeamName:           team,
		EndPeriodTS:        ts,
		EndPeriodUTC:       time.Unix(ts, 0).UTC(),
		GranularityMinutes: granularity,
		YesBidOpen:         bid,
		YesBidClose:        bid,
		YesAskClose:        ask,
		Volume:             null.IntFrom(5),
	}
	if bid.Valid && ask.Valid {
		p.MidCents = null.FloatFrom(float64(bid.Int64+ask.Int64) / 2)
		p.SpreadCents = null.FloatFrom(float64(ask.Int64 - bid.Int64))
	}
	return p
}

func testRankings(runID uuid.UUID, asOf time.Time, teams ...string) []model.Ranking {
	out := make([]model.Ranking, 0, len(teams))
	for i, team := range teams {
		out = append(out, model.Ranking{
			RunID:         runID,
			EventTicker:   testEvent,
			SeriesTicker:  "KXMENWORLDCUP",
			TeamName:      team,
			AvgYesBidOpen: null.FloatFrom(float64(20 - i)),
			Rank:          i + 1,
			AsOf:          asOf,
		})
	}
	return out
}

// runStoreSuite exercises a Store implementation. newStore must return a
// migrated, empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("migrate is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Migrate(ctx))
		require.NoError(t, s.Ping(ctx))
	})

	t.Run("candlestick upsert is idempotent", func(t *testing.T) {
		s := newStore(t)
		periods := []model.CandlestickPeriod{
			testPeriod("Argentina", 1000, 60, null.IntFrom(16), null.IntFrom(18)),
			testPeriod("Argentina", 4600, 60, null.IntFrom(17), null.IntFrom(19)),
			testPeriod("Spain", 1000, 60, null.IntFrom(15), null.Int{}),
		}

		res, err := s.UpsertCandlesticks(ctx, periods)
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{Inserted: 3}, res)

		res, err = s.UpsertCandlesticks(ctx, periods)
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{Conflicts: 3}, res)

		n, err := s.CountCandlesticks(ctx, testEvent)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		// Same period at another granularity is a distinct row.
		res, err = s.UpsertCandlesticks(ctx, []model.CandlestickPeriod{
			testPeriod("Argentina", 1000, 1440, null.IntFrom(16), null.IntFrom(18)),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Inserted)

		n, err = s.CountCandlesticks(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("empty upsert", func(t *testing.T) {
		s := newStore(t)
		res, err := s.UpsertCandlesticks(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{}, res)
	})

	t.Run("latest quotes", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpsertCandlesticks(ctx, []model.CandlestickPeriod{
			testPeriod("Argentina", 1000, 60, null.IntFrom(16), null.IntFrom(18)),
			testPeriod("Argentina", 4600, 1440, null.IntFrom(30), null.IntFrom(32)),
			testPeriod("Argentina", 4600, 60, null.IntFrom(17), null.IntFrom(19)),
			testPeriod("Spain", 1000, 60, null.IntFrom(15), null.Int{}),
		})
		require.NoError(t, err)

		quotes, err := s.LatestQuotes(ctx, "kxmenworldcup-26")
		require.NoError(t, err)
		require.Len(t, quotes, 2)

		arg := quotes["Argentina"]
		assert.Equal(t, int64(4600), arg.EndPeriodTS)
		assert.Equal(t, 60, arg.GranularityMinutes, "finest granularity wins at equal timestamps")
		assert.Equal(t, null.IntFrom(17), arg.YesBidOpen)
		assert.Equal(t, null.FloatFrom(18), arg.MidCents)

		esp := quotes["Spain"]
		assert.False(t, esp.YesAskClose.Valid)
		assert.False(t, esp.MidCents.Valid, "null mid survives the round trip")
	})

	t.Run("history", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpsertCandlesticks(ctx, []model.CandlestickPeriod{
			testPeriod("Argentina", 1000, 60, null.IntFrom(16), null.IntFrom(18)),
			testPeriod("Argentina", 4600, 60, null.IntFrom(17), null.IntFrom(19)),
			testPeriod("Spain", 4600, 60, null.IntFrom(15), null.IntFrom(16)),
			testPeriod("Japan", 4600, 60, null.IntFrom(5), null.IntFrom(6)),
		})
		require.NoError(t, err)

		all, err := s.History(ctx, HistoryQuery{EventTicker: testEvent, Since: time.Unix(0, 0)})
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, int64(1000), all[0].EndPeriodTS)

		recent, err := s.History(ctx, HistoryQuery{
			EventTicker: testEvent,
			Since:       time.Unix(2000, 0),
			Teams:       []string{"Argentina", "Spain"},
		})
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "Argentina", recent[0].TeamName)
		assert.Equal(t, "Spain", recent[1].TeamName)
	})

	t.Run("history keeps the finest granularity per timestamp", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpsertCandlesticks(ctx, []model.CandlestickPeriod{
			testPeriod("Spain", 86400, 1440, null.IntFrom(30), null.IntFrom(32)),
			testPeriod("Spain", 86400, 60, null.IntFrom(31), null.IntFrom(33)),
			testPeriod("Spain", 90000, 60, null.IntFrom(34), null.IntFrom(35)),
			testPeriod("France", 86400, 1440, null.IntFrom(20), null.IntFrom(22)),
		})
		require.NoError(t, err)

		got, err := s.History(ctx, HistoryQuery{EventTicker: testEvent, Since: time.Unix(0, 0)})
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, "France", got[0].TeamName)
		assert.Equal(t, "Spain", got[1].TeamName)
		assert.Equal(t, int64(86400), got[1].EndPeriodTS)
		assert.Equal(t, 60, got[1].GranularityMinutes)
		assert.Equal(t, null.IntFrom(31), got[1].YesBidOpen)
		assert.Equal(t, int64(90000), got[2].EndPeriodTS)
	})

	t.Run("replace rankings", func(t *testing.T) {
		s := newStore(t)
		first := uuid.New()
		asOf := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.ReplaceRankings(ctx, testEvent, testRankings(first, asOf, "Spain", "France", "Argentina")))

		second := uuid.New()
		later := asOf.Add(time.Hour)
		require.NoError(t, s.ReplaceRankings(ctx, "kxmenworldcup-26", testRankings(second, later, "France", "Spain")))

		got, err := s.Rankings(ctx, testEvent)
		require.NoError(t, err)
		require.Len(t, got, 2, "old rows are deleted, not merged")
		assert.Equal(t, "France", got[0].TeamName)
		assert.Equal(t, 1, got[0].Rank)
		assert.Equal(t, second, got[0].RunID)
		assert.True(t, got[0].AsOf.Equal(later))
		assert.Equal(t, null.FloatFrom(20), got[0].AvgYesBidOpen)
		assert.False(t, got[0].TeamID.Valid)

		// An empty snapshot keeps the previous one.
		require.NoError(t, s.ReplaceRankings(ctx, testEvent, nil))
		got, err = s.Rankings(ctx, testEvent)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("replace rankings is atomic", func(t *testing.T) {
		s := newStore(t)
		asOf := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		old := testRankings(uuid.New(), asOf, "Spain", "France")
		require.NoError(t, s.ReplaceRankings(ctx, testEvent, old))

		// The delete succeeds, then the second insert violates rank >= 1.
		bad := testRankings(uuid.New(), asOf.Add(time.Hour), "Brazil", "Germany")
		bad[1].Rank = 0
		err := s.ReplaceRankings(ctx, testEvent, bad)
		require.Error(t, err)

		got, err := s.Rankings(ctx, testEvent)
		require.NoError(t, err)
		require.Len(t, got, 2, "previous snapshot must remain visible")
		assert.Equal(t, "Spain", got[0].TeamName)
		assert.Equal(t, "France", got[1].TeamName)
	})

	t.Run("rankings are scoped by event", func(t *testing.T) {
		s := newStore(t)
		asOf := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.ReplaceRankings(ctx, testEvent, testRankings(uuid.New(), asOf, "Spain")))
		require.NoError(t, s.ReplaceRankings(ctx, "KXWOMENWORLDCUP-27", testRankings(uuid.New(), asOf, "USA", "Japan")))

		got, err := s.Rankings(ctx, testEvent)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("teams", func(t *testing.T) {
		s := newStore(t)
		n, err := s.UpsertTeams(ctx, []model.Team{
			{ID: 1, Name: "Argentina", CountryCode: "ARG", GroupLabel: "J", FlagEmoji: "🇦🇷"},
			{ID: 2, Name: "Spain", CountryCode: "ESP"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = s.UpsertTeams(ctx, []model.Team{{ID: 2, Name: "Spain", CountryCode: "ESP", GroupLabel: "H"}})
		require.NoError(t, err)

		teams, err := s.LoadTeams(ctx)
		require.NoError(t, err)
		require.Len(t, teams, 2)
		assert.Equal(t, model.Team{ID: 1, Name: "Argentina", CountryCode: "ARG", GroupLabel: "J", FlagEmoji: "🇦🇷"}, teams[0])
		assert.Equal(t, "H", teams[1].GroupLabel)
	})

	t.Run("pools", func(t *testing.T) {
		s := newStore(t)
		created := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

		pool, err := s.CreatePool(ctx,
			model.Pool{Code: "wc26-00c0ffee", Name: "Office", CreatorTokenHash: "creator", CreatedAt: created},
			testMember("Alice", created))
		require.NoError(t, err)
		assert.NotZero(t, pool.ID)

		got, err := s.PoolByCode(ctx, "wc26-00c0ffee")
		require.NoError(t, err)
		assert.Equal(t, pool.ID, got.ID)
		assert.Equal(t, "Office", got.Name)
		assert.Equal(t, "creator", got.CreatorTokenHash)
		assert.True(t, got.CreatedAt.Equal(created))

		_, err = s.PoolByCode(ctx, "wc26-missing")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.CreatePool(ctx,
			model.Pool{Code: "wc26-00c0ffee", Name: "Copy", CreatorTokenHash: "x", CreatedAt: created},
			testMember("Bob", created))
		assert.ErrorIs(t, err, ErrConflict, "codes are unique")

		bob := testMember("Bob", created.Add(time.Minute))
		bob.PoolID = pool.ID
		bob, err = s.AddPoolMember(ctx, bob)
		require.NoError(t, err)
		assert.NotZero(t, bob.ID)

		dup := testMember("Bob", created.Add(2*time.Minute))
		dup.PoolID = pool.ID
		_, err = s.AddPoolMember(ctx, dup)
		assert.ErrorIs(t, err, ErrConflict, "display names are unique per pool")

		members, err := s.PoolMembers(ctx, pool.ID, 50)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, "Alice", members[0].DisplayName, "join order")
		assert.Equal(t, "Bob", members[1].DisplayName)

		limited, err := s.PoolMembers(ctx, pool.ID, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		later := created.Add(time.Hour)
		require.NoError(t, s.UpdatePoolBracket(ctx, bob.ID, "bracket-v2", later))
		m, err := s.PoolMember(ctx, pool.ID, "Bob")
		require.NoError(t, err)
		assert.Equal(t, "bracket-v2", m.BracketData)
		assert.True(t, m.UpdatedAt.Equal(later))
		assert.True(t, m.JoinedAt.Equal(created.Add(time.Minute)))

		require.NoError(t, s.DeletePoolMember(ctx, bob.ID))
		_, err = s.PoolMember(ctx, pool.ID, "Bob")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeletePoolMember(ctx, bob.ID), ErrNotFound)

		require.NoError(t, s.DeletePool(ctx, pool.ID))
		_, err = s.PoolByCode(ctx, "wc26-00c0ffee")
		assert.ErrorIs(t, err, ErrNotFound)
		members, err = s.PoolMembers(ctx, pool.ID, 50)
		require.NoError(t, err)
		assert.Empty(t, members, "members go with the pool")
	})
}

func testMember(name string, at time.Time) model.PoolMember {
	return model.PoolMember{
		DisplayName:     name,
		BracketData:     "bracket-" + name,
		MemberTokenHash: "hash-" + name,
		JoinedAt:        at,
		UpdatedAt:       at,
	}
}
