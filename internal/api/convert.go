package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/kalshi-rankings/internal/model"
)

// ParseTime parses an ISO 8601 timestamp as UTC.
func ParseTime(iso string) (time.Time, error) {
	if iso == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", iso, err)
		}
	}

	return t.UTC(), nil
}

// ToModel converts an APIEvent to model.Event. requested is the ticker the
// caller asked for, used when the payload omits it.
func (e *APIEvent) ToModel(requested string) model.Event {
	ticker := e.EventTicker
	if ticker == "" {
		ticker = requested
	}
	return model.Event{
		EventTicker:  strings.ToUpper(ticker),
		SeriesTicker: strings.ToUpper(e.SeriesTicker),
		Title:        e.Title,
		SubTitle:     e.SubTitle,
		Category:     e.Category,
	}
}

// ToModel converts an APIMarket to model.Market.
// The close time is the expected expiration, falling back to close_time.
func (m *APIMarket) ToModel(event model.Event) (model.Market, error) {
	open, err := ParseTime(m.OpenTime)
	if err != nil {
		return model.Market{}, fmt.Errorf("market %s open_time: %w", m.Ticker, err)
	}

	closeISO := m.ExpectedExpirationTime
	if closeISO == "" {
		closeISO = m.CloseTime
	}
	closeTime, err := ParseTime(closeISO)
	if err != nil {
		return model.Market{}, fmt.Errorf("market %s close time: %w", m.Ticker, err)
	}

	return model.Market{
		Ticker:       m.Ticker,
		EventTicker:  event.EventTicker,
		SeriesTicker: event.SeriesTicker,
		TeamName:     m.YesSubTitle,
		EventTitle:   event.Title,
		OpenTime:     open,
		CloseTime:    closeTime,
	}, nil
}

// ToModel converts the event and all of its markets.
func (r *EventResponse) ToModel(requested string) (model.Event, []model.Market, error) {
	event := r.Event.ToModel(requested)

	markets := make([]model.Market, 0, len(r.Markets))
	for i := range r.Markets {
		m, err := r.Markets[i].ToModel(event)
		if err != nil {
			return model.Event{}, nil, err
		}
		markets = append(markets, m)
	}
	return event, markets, nil
}

// ToModel converts an APICandlestick to model.RawPeriod, keeping absent groups nil.
func (c *APICandlestick) ToModel() model.RawPeriod {
	raw := model.RawPeriod{
		EndPeriodTS:  c.EndPeriodTS,
		Volume:       c.Volume,
		OpenInterest: c.OpenInterest,
	}
	if c.Price != nil {
		raw.Price = &model.PriceQuote{
			Open:     c.Price.Open,
			High:     c.Price.High,
			Low:      c.Price.Low,
			Close:    c.Price.Close,
			Mean:     c.Price.Mean,
			Previous: c.Price.Previous,
		}
	}
	if c.YesBid != nil {
		raw.YesBid = c.YesBid.toModel()
	}
	if c.YesAsk != nil {
		raw.YesAsk = c.YesAsk.toModel()
	}
	return raw
}

func (b *APIBookOHLC) toModel() *model.BookQuote {
	return &model.BookQuote{
		Open:  b.Open,
		High:  b.High,
		Low:   b.Low,
		Close: b.Close,
	}
}

// RawPeriods converts a candlestick list.
func RawPeriods(cs []APICandlestick) []model.RawPeriod {
	out := make([]model.RawPeriod, 0, len(cs))
	for i := range cs {
		out = append(out, cs[i].ToModel())
	}
	return out
}
