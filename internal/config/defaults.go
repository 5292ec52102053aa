package config

import (
	"os"
	"strconv"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL        = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultAPITimeout     = 30 * time.Second
	DefaultMaxAttempts    = 10
	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = 120 * time.Second
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "require"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultSQLitePath     = "./data/worldcup.db"
	DefaultEventTicker    = "KXMENWORLDCUP-26"
	DefaultTimezone       = "America/New_York"
	DefaultMarketDelay    = 500 * time.Millisecond
	DefaultMinuteCapDays  = 3
	DefaultHourCapDays    = 55
	DefaultCacheDir       = "./data/cache"
	DefaultCacheTTL       = 6 * time.Hour
	DefaultServerPort     = 8080
	DefaultMetricsPath    = "/metrics"
	DefaultMetricsJob     = "kalshi_rankings_etl"
	DefaultLogLevel       = "info"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxAttempts == 0 {
		c.API.MaxAttempts = DefaultMaxAttempts
	}
	if c.API.InitialBackoff == 0 {
		c.API.InitialBackoff = DefaultInitialBackoff
	}
	if c.API.MaxBackoff == 0 {
		c.API.MaxBackoff = DefaultMaxBackoff
	}

	// Database defaults
	postgresFromEnv(&c.Database.Postgres)
	if c.Database.Driver == "" {
		c.Database.Driver = DriverAuto
	}
	if c.Database.Driver == DriverAuto {
		if c.Database.Postgres.Host != "" {
			c.Database.Driver = DriverPostgres
		} else {
			c.Database.Driver = DriverSQLite
		}
	}
	applyDBDefaults(&c.Database.Postgres)
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	// Pipeline defaults
	if c.Pipeline.EventTicker == "" {
		c.Pipeline.EventTicker = DefaultEventTicker
	}
	if c.Pipeline.Timezone == "" {
		c.Pipeline.Timezone = DefaultTimezone
	}
	if c.Pipeline.MarketDelay == 0 {
		c.Pipeline.MarketDelay = DefaultMarketDelay
	}
	if c.Pipeline.MinuteCapDays == 0 {
		c.Pipeline.MinuteCapDays = DefaultMinuteCapDays
	}
	if c.Pipeline.HourCapDays == 0 {
		c.Pipeline.HourCapDays = DefaultHourCapDays
	}

	// Cache defaults
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = DefaultMetricsJob
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// postgresFromEnv fills an unset Postgres host from the libpq variables.
// PGHOST, PGUSER, PGDATABASE and PGPASSWORD must all be set; PGPORT is optional.
func postgresFromEnv(db *DBConfig) {
	if db.Host != "" {
		return
	}
	host, user := os.Getenv("PGHOST"), os.Getenv("PGUSER")
	name, password := os.Getenv("PGDATABASE"), os.Getenv("PGPASSWORD")
	if host == "" || user == "" || name == "" || password == "" {
		return
	}

	db.Host = host
	db.User = user
	db.Name = name
	db.Password = password
	if db.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PGPORT")); err == nil {
			db.Port = port
		}
	}
}
