package config

import "time"

// Config is the root configuration shared by the etl, server and seed commands.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cache    CacheConfig    `yaml:"cache"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	RestURL        string        `yaml:"rest_url"`
	APIKey         string        `yaml:"api_key"`          // API key ID (for KALSHI-ACCESS-KEY header), optional
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file, optional
	Timeout        time.Duration `yaml:"timeout"`          // Per attempt
	MaxAttempts    int           `yaml:"max_attempts"`     // Attempts on 429 before giving up
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Database drivers.
const (
	DriverAuto     = "auto"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string       `yaml:"driver"` // auto, postgres or sqlite
	Postgres DBConfig     `yaml:"postgres"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
}

// DBConfig holds a single PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SQLiteConfig holds the local fallback database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PipelineConfig holds candlestick ETL settings.
type PipelineConfig struct {
	EventTicker   string        `yaml:"event_ticker"`
	Timezone      string        `yaml:"timezone"`        // Display zone for local period times
	MarketDelay   time.Duration `yaml:"market_delay"`    // Pause between per-market fetches
	MinuteCapDays float64       `yaml:"minute_cap_days"` // No 1-minute data for markets open longer than this
	HourCapDays   float64       `yaml:"hour_cap_days"`   // No hourly data for markets open longer than this
	Interval      time.Duration `yaml:"interval"`        // 0 = run once
}

// CacheConfig holds the read-side current-rankings cache settings.
type CacheConfig struct {
	Dir        string        `yaml:"dir"`
	TTL        time.Duration `yaml:"ttl"`
	Background bool          `yaml:"background_refresh"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig enables the Redis cache backend when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig holds read API settings.
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Token string `yaml:"token"` // Optional bearer token for /api and /ws routes
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path           string `yaml:"path"`
	PushgatewayURL string `yaml:"pushgateway_url"` // ETL pushes here after each run when set
	Job            string `yaml:"job"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
