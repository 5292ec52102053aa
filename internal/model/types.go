package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
)

// -----------------------------------------------------------------------------
// Upstream Types
// -----------------------------------------------------------------------------

// Event is a group of mutually exclusive outcome markets (e.g., "2026 Men's World Cup winner").
type Event struct {
	EventTicker  string // Upper-cased (e.g., "KXMENWORLDCUP-26")
	SeriesTicker string // Upper-cased (e.g., "KXMENWORLDCUP")
	Title        string
	SubTitle     string
	Category     string
}

// Market is one tradable outcome contract for one competitor.
type Market struct {
	Ticker       string
	EventTicker  string
	SeriesTicker string
	TeamName     string // yes_sub_title
	EventTitle   string
	OpenTime     time.Time
	CloseTime    time.Time // expected expiration
}

// PriceQuote is the trade-price group of a raw candlestick.
type PriceQuote struct {
	Open     null.Int
	High     null.Int
	Low      null.Int
	Close    null.Int
	Mean     null.Int
	Previous null.Int
}

// BookQuote is a top-of-book (yes bid or yes ask) group of a raw candlestick.
type BookQuote struct {
	Open  null.Int
	High  null.Int
	Low   null.Int
	Close null.Int
}

// RawPeriod is one candlestick exactly as delivered, with every group optional.
type RawPeriod struct {
	EndPeriodTS  int64
	Volume       null.Int
	OpenInterest null.Int
	Price        *PriceQuote
	YesBid       *BookQuote
	YesAsk       *BookQuote
}

// -----------------------------------------------------------------------------
// Persisted Types
// -----------------------------------------------------------------------------

// Team is a row of the static competitor reference table.
type Team struct {
	ID          int64
	Name        string
	CountryCode string
	GroupLabel  string
	FlagEmoji   string
}

// CandlestickPeriod is one flattened observation for one market at one period boundary.
// Unique on (MarketTicker, EndPeriodTS, GranularityMinutes).
type CandlestickPeriod struct {
	MarketTicker string
	EventTicker  string
	SeriesTicker string
	TeamName     string
	TeamID       null.Int

	EndPeriodTS        int64
	EndPeriodUTC       time.Time
	EndPeriodLocal     time.Time // EndPeriodUTC in the display zone
	GranularityMinutes int

	PriceOpen     null.Int
	PriceHigh     null.Int
	PriceLow      null.Int
	PriceClose    null.Int
	PriceMean     null.Int
	PricePrevious null.Int

	YesBidOpen  null.Int
	YesBidHigh  null.Int
	YesBidLow   null.Int
	YesBidClose null.Int

	YesAskOpen  null.Int
	YesAskHigh  null.Int
	YesAskLow   null.Int
	YesAskClose null.Int

	MidCents    null.Float // null unless both bid and ask close are present
	SpreadCents null.Float

	Volume       null.Int
	OpenInterest null.Int
}

// Ranking is one row of a point-in-time ranking snapshot.
type Ranking struct {
	RunID         uuid.UUID
	EventTicker   string
	SeriesTicker  string
	TeamName      string
	TeamID        null.Int
	AvgYesBidOpen null.Float // mean yes_bid_open over the window, 2 dp
	Rank          int        // 1 = highest average
	AsOf          time.Time
}

// -----------------------------------------------------------------------------
// Prediction Pools
// -----------------------------------------------------------------------------

// Pool is a private prediction pool that friends join by code.
type Pool struct {
	ID               int64
	Code             string // shareable, e.g. "wc26-1a2b3c4d"
	Name             string
	CreatorTokenHash string // hex SHA-256 of the creator token
	CreatedAt        time.Time
}

// PoolMember is one participant of a Pool and their bracket.
type PoolMember struct {
	ID              int64
	PoolID          int64
	DisplayName     string // unique within the pool
	BracketData     string // opaque compressed bracket
	MemberTokenHash string
	JoinedAt        time.Time
	UpdatedAt       time.Time
}

// -----------------------------------------------------------------------------
// Read Views
// -----------------------------------------------------------------------------

// Quote is the latest stored period for a team.
type Quote struct {
	TeamName           string
	EndPeriodTS        int64
	GranularityMinutes int
	YesBidOpen         null.Int
	YesAskClose        null.Int
	MidCents           null.Float
	Volume             null.Int
}

// HistoryPoint is one stored period projected for history charts.
type HistoryPoint struct {
	TeamName           string
	EndPeriodTS        int64
	GranularityMinutes int
	YesBidOpen         null.Int
	YesAskClose        null.Int
	MidCents           null.Float
	Volume             null.Int
}
