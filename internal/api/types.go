package api

import "github.com/guregu/null/v6"

// EventResponse from GET /events/{event_ticker}
type EventResponse struct {
	Event   APIEvent    `json:"event"`
	Markets []APIMarket `json:"markets"`
}

// APIEvent represents an event from the Kalshi API.
type APIEvent struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	SubTitle     string `json:"sub_title"`
	Category     string `json:"category"`
}

// APIMarket represents a market nested in an event response.
type APIMarket struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	YesSubTitle string `json:"yes_sub_title"` // Competitor name
	Status      string `json:"status"`

	// Timestamps (ISO 8601)
	OpenTime               string `json:"open_time"`
	CloseTime              string `json:"close_time"`
	ExpectedExpirationTime string `json:"expected_expiration_time"`
}

// CandlesticksResponse from GET /series/{series}/markets/{ticker}/candlesticks
type CandlesticksResponse struct {
	Ticker       string           `json:"ticker"`
	Candlesticks []APICandlestick `json:"candlesticks"`
}

// APICandlestick is one period. Any group or leaf may be missing or null.
type APICandlestick struct {
	EndPeriodTS  int64         `json:"end_period_ts"`
	Volume       null.Int      `json:"volume"`
	OpenInterest null.Int      `json:"open_interest"`
	Price        *APIPriceOHLC `json:"price"`
	YesBid       *APIBookOHLC  `json:"yes_bid"`
	YesAsk       *APIBookOHLC  `json:"yes_ask"`
}

// APIPriceOHLC is the trade-price group, in cents.
type APIPriceOHLC struct {
	Open     null.Int `json:"open"`
	High     null.Int `json:"high"`
	Low      null.Int `json:"low"`
	Close    null.Int `json:"close"`
	Mean     null.Int `json:"mean"`
	Previous null.Int `json:"previous"`
}

// APIBookOHLC is a yes-bid or yes-ask group, in cents.
type APIBookOHLC struct {
	Open  null.Int `json:"open"`
	High  null.Int `json:"high"`
	Low   null.Int `json:"low"`
	Close null.Int `json:"close"`
}
