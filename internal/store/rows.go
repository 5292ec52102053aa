package store

import (
	"github.com/rickgao/kalshi-rankings/internal/model"
)

// scanner is satisfied by pgx.Rows, *sql.Rows and *sql.Row.
type scanner interface {
	Scan(dest ...any) error
}

func candlestickArgs(p model.CandlestickPeriod) []any {
	return []any{
		p.MarketTicker, p.EventTicker, p.SeriesTicker, p.TeamName, p.TeamID,
		p.EndPeriodTS, p.EndPeriodUTC.UTC(), p.GranularityMinutes,
		p.PriceOpen, p.PriceHigh, p.PriceLow, p.PriceClose, p.PriceMean, p.PricePrevious,
		p.YesBidOpen, p.YesBidHigh, p.YesBidLow, p.YesBidClose,
		p.YesAskOpen, p.YesAskHigh, p.YesAskLow, p.YesAskClose,
		p.MidCents, p.SpreadCents, p.Volume, p.OpenInterest,
	}
}

func rankingArgs(eventTicker string, r model.Ranking) []any {
	return []any{
		r.RunID, eventTicker, r.SeriesTicker, r.TeamName, r.TeamID,
		r.AvgYesBidOpen, r.Rank, r.AsOf.UTC(),
	}
}

func scanRanking(s scanner) (model.Ranking, error) {
	var r model.Ranking
	err := s.Scan(&r.RunID, &r.EventTicker, &r.SeriesTicker, &r.TeamName, &r.TeamID,
		&r.AvgYesBidOpen, &r.Rank, &r.AsOf)
	r.AsOf = r.AsOf.UTC()
	return r, err
}

func scanQuote(s scanner) (model.Quote, error) {
	var q model.Quote
	err := s.Scan(&q.TeamName, &q.EndPeriodTS, &q.GranularityMinutes,
		&q.YesBidOpen, &q.YesAskClose, &q.MidCents, &q.Volume)
	return q, err
}

func scanHistoryPoint(s scanner) (model.HistoryPoint, error) {
	var h model.HistoryPoint
	err := s.Scan(&h.TeamName, &h.EndPeriodTS, &h.GranularityMinutes,
		&h.YesBidOpen, &h.YesAskClose, &h.MidCents, &h.Volume)
	return h, err
}

func scanTeam(s scanner) (model.Team, error) {
	var t model.Team
	err := s.Scan(&t.ID, &t.Name, &t.CountryCode, &t.GroupLabel, &t.FlagEmoji)
	return t, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanPool(s scanner) (model.Pool, error) {
	var p model.Pool
	err := s.Scan(&p.ID, &p.Code, &p.Name, &p.CreatorTokenHash, &p.CreatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, err
}

func scanPoolMember(s scanner) (model.PoolMember, error) {
	var m model.PoolMember
	err := s.Scan(&m.ID, &m.PoolID, &m.DisplayName, &m.BracketData, &m.MemberTokenHash, &m.JoinedAt, &m.UpdatedAt)
	m.JoinedAt = m.JoinedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, err
}
