package store

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS teams (
		id           BIGINT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		country_code TEXT NOT NULL DEFAULT '',
		group_label  TEXT,
		flag_emoji   TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS kalshi_candlesticks (
		id                  BIGSERIAL PRIMARY KEY,
		market_ticker       TEXT NOT NULL,
		event_ticker        TEXT NOT NULL,
		series_ticker       TEXT NOT NULL,
		team_name           TEXT NOT NULL,
		team_id             BIGINT,
		end_period_ts       BIGINT NOT NULL,
		end_period_utc      TIMESTAMPTZ NOT NULL,
		granularity_minutes INTEGER NOT NULL CHECK (granularity_minutes IN (1, 60, 1440)),
		price_open          INTEGER,
		price_high          INTEGER,
		price_low           INTEGER,
		price_close         INTEGER,
		price_mean          INTEGER,
		price_previous      INTEGER,
		yes_bid_open        INTEGER,
		yes_bid_high        INTEGER,
		yes_bid_low         INTEGER,
		yes_bid_close       INTEGER,
		yes_ask_open        INTEGER,
		yes_ask_high        INTEGER,
		yes_ask_low         INTEGER,
		yes_ask_close       INTEGER,
		mid_cents           DOUBLE PRECISION,
		spread_cents        DOUBLE PRECISION,
		volume              BIGINT,
		open_interest       BIGINT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (market_ticker, end_period_ts, granularity_minutes)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kalshi_candlesticks_event_team_ts
		ON kalshi_candlesticks (event_ticker, team_name, end_period_ts)`,
	`CREATE TABLE IF NOT EXISTS kalshi_team_rankings (
		id               BIGSERIAL PRIMARY KEY,
		run_id           UUID NOT NULL,
		event_ticker     TEXT NOT NULL,
		series_ticker    TEXT NOT NULL,
		team_name        TEXT NOT NULL,
		team_id          BIGINT,
		avg_yes_bid_open DOUBLE PRECISION,
		rank             INTEGER NOT NULL CHECK (rank >= 1),
		as_of            TIMESTAMPTZ NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kalshi_team_rankings_event_rank
		ON kalshi_team_rankings (event_ticker, rank)`,
	`CREATE TABLE IF NOT EXISTS pool_teams (
		id                 BIGSERIAL PRIMARY KEY,
		code               TEXT NOT NULL UNIQUE,
		name               TEXT NOT NULL,
		creator_token_hash TEXT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pool_members (
		id                BIGSERIAL PRIMARY KEY,
		team_id           BIGINT NOT NULL REFERENCES pool_teams (id) ON DELETE CASCADE,
		display_name      TEXT NOT NULL,
		bracket_data      TEXT NOT NULL,
		member_token_hash TEXT NOT NULL,
		joined_at         TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_team_display_name UNIQUE (team_id, display_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pool_members_token
		ON pool_members (member_token_hash)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS teams (
		id           INTEGER PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		country_code TEXT NOT NULL DEFAULT '',
		group_label  TEXT,
		flag_emoji   TEXT,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS kalshi_candlesticks (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		market_ticker       TEXT NOT NULL,
		event_ticker        TEXT NOT NULL,
		series_ticker       TEXT NOT NULL,
		team_name           TEXT NOT NULL,
		team_id             INTEGER,
		end_period_ts       INTEGER NOT NULL,
		end_period_utc      TIMESTAMP NOT NULL,
		granularity_minutes INTEGER NOT NULL CHECK (granularity_minutes IN (1, 60, 1440)),
		price_open          INTEGER,
		price_high          INTEGER,
		price_low           INTEGER,
		price_close         INTEGER,
		price_mean          INTEGER,
		price_previous      INTEGER,
		yes_bid_open        INTEGER,
		yes_bid_high        INTEGER,
		yes_bid_low         INTEGER,
		yes_bid_close       INTEGER,
		yes_ask_open        INTEGER,
		yes_ask_high        INTEGER,
		yes_ask_low         INTEGER,
		yes_ask_close       INTEGER,
		mid_cents           REAL,
		spread_cents        REAL,
		volume              INTEGER,
		open_interest       INTEGER,
		created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (market_ticker, end_period_ts, granularity_minutes)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kalshi_candlesticks_event_team_ts
		ON kalshi_candlesticks (event_ticker, team_name, end_period_ts)`,
	`CREATE TABLE IF NOT EXISTS kalshi_team_rankings (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id           TEXT NOT NULL,
		event_ticker     TEXT NOT NULL,
		series_ticker    TEXT NOT NULL,
		team_name        TEXT NOT NULL,
		team_id          INTEGER,
		avg_yes_bid_open REAL,
		rank             INTEGER NOT NULL CHECK (rank >= 1),
		as_of            TIMESTAMP NOT NULL,
		created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kalshi_team_rankings_event_rank
		ON kalshi_team_rankings (event_ticker, rank)`,
	`CREATE TABLE IF NOT EXISTS pool_teams (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		code               TEXT NOT NULL UNIQUE,
		name               TEXT NOT NULL,
		creator_token_hash TEXT NOT NULL,
		created_at         TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pool_members (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		team_id           INTEGER NOT NULL REFERENCES pool_teams (id) ON DELETE CASCADE,
		display_name      TEXT NOT NULL,
		bracket_data      TEXT NOT NULL,
		member_token_hash TEXT NOT NULL,
		joined_at         TIMESTAMP NOT NULL,
		updated_at        TIMESTAMP NOT NULL,
		CONSTRAINT uq_team_display_name UNIQUE (team_id, display_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pool_members_token
		ON pool_members (member_token_hash)`,
}

// candlestickColumns is the insert column list shared by both backends.
const candlestickColumns = `market_ticker, event_ticker, series_ticker, team_name, team_id,
	end_period_ts, end_period_utc, granularity_minutes,
	price_open, price_high, price_low, price_close, price_mean, price_previous,
	yes_bid_open, yes_bid_high, yes_bid_low, yes_bid_close,
	yes_ask_open, yes_ask_high, yes_ask_low, yes_ask_close,
	mid_cents, spread_cents, volume, open_interest`

const candlestickColumnCount = 26

const rankingColumns = `run_id, event_ticker, series_ticker, team_name, team_id, avg_yes_bid_open, rank, as_of`

const quoteColumns = `c.team_name, c.end_period_ts, c.granularity_minutes,
	c.yes_bid_open, c.yes_ask_close, c.mid_cents, c.volume`

const poolColumns = `id, code, name, creator_token_hash, created_at`

const poolMemberColumns = `id, team_id, display_name, bracket_data, member_token_hash, joined_at, updated_at`
