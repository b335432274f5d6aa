package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. It is loaded once at
// process start and passed explicitly into each component.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sources  []SourceConfig `yaml:"sources"`
	Feed     FeedConfig     `yaml:"feed"`
	History  HistoryConfig  `yaml:"history"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// ServerConfig represents the HTTP read API configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	Host         string        `yaml:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	DBName         string        `yaml:"dbname"`
	SSLMode        string        `yaml:"sslmode"`
	MaxOpen        int           `yaml:"max_open"`
	MaxIdle        int           `yaml:"max_idle"`
	Timeout        time.Duration `yaml:"timeout"`
	MigrationsPath string        `yaml:"migrations_path"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or text
	Output     string `yaml:"output"` // stdout, stderr, file
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// SourceConfig selects and weights one exchange price source. The parse
// function for each named source is registered in the feed package.
type SourceConfig struct {
	Name     string  `yaml:"name"`
	Endpoint string  `yaml:"endpoint"` // optional override of the built-in endpoint
	Weight   float64 `yaml:"weight"`
	Enabled  bool    `yaml:"enabled"`
}

// FeedConfig tunes the per-cycle source fetching.
type FeedConfig struct {
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
	RequestBurst   int           `yaml:"request_burst"`
}

// HistoryConfig tunes historical daily-close ingestion.
type HistoryConfig struct {
	BackfillDays     int           `yaml:"backfill_days"`
	PrimaryEndpoint  string        `yaml:"primary_endpoint"`
	FallbackEndpoint string        `yaml:"fallback_endpoint"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// OracleConfig holds the on-chain submission rules and publisher target.
type OracleConfig struct {
	Network               string        `yaml:"network"`
	ContractAddress       string        `yaml:"contract_address"`
	PublisherEndpoint     string        `yaml:"publisher_endpoint"`
	DryRun                bool          `yaml:"dry_run"`
	MinPriceChangePercent float64       `yaml:"min_price_change_percent"`
	MaxTimeBetweenUpdates time.Duration `yaml:"max_time_between_updates"`
	MinTimeBetweenUpdates time.Duration `yaml:"min_time_between_updates"`
	MinSourceCount        int           `yaml:"min_source_count"`
}

// ScheduleConfig holds the cron expressions for the pipeline entry points.
type ScheduleConfig struct {
	PriceCycle       string `yaml:"price_cycle"`
	HistoryBulk      string `yaml:"history_bulk"`
	HistoryIncrement string `yaml:"history_increment"`
	SubmissionCheck  string `yaml:"submission_check"`
}

// Duration fields are declared as strings in YAML ("30m", "6h"); each
// section with durations decodes through a shadow struct so the rest of
// the codebase works with plain time.Duration.

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// UnmarshalYAML decodes duration strings into time.Duration.
func (c *ServerConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Port         int    `yaml:"port"`
		Host         string `yaml:"host"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	read, err := parseDuration(raw.ReadTimeout)
	if err != nil {
		return fmt.Errorf("server.read_timeout: %w", err)
	}
	write, err := parseDuration(raw.WriteTimeout)
	if err != nil {
		return fmt.Errorf("server.write_timeout: %w", err)
	}
	c.Port = raw.Port
	c.Host = raw.Host
	c.ReadTimeout = read
	c.WriteTimeout = write
	return nil
}

// UnmarshalYAML decodes duration strings into time.Duration.
func (c *DatabaseConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Host           string `yaml:"host"`
		Port           int    `yaml:"port"`
		User           string `yaml:"user"`
		Password       string `yaml:"password"`
		DBName         string `yaml:"dbname"`
		SSLMode        string `yaml:"sslmode"`
		MaxOpen        int    `yaml:"max_open"`
		MaxIdle        int    `yaml:"max_idle"`
		Timeout        string `yaml:"timeout"`
		MigrationsPath string `yaml:"migrations_path"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	timeout, err := parseDuration(raw.Timeout)
	if err != nil {
		return fmt.Errorf("database.timeout: %w", err)
	}
	c.Host = raw.Host
	c.Port = raw.Port
	c.User = raw.User
	c.Password = raw.Password
	c.DBName = raw.DBName
	c.SSLMode = raw.SSLMode
	c.MaxOpen = raw.MaxOpen
	c.MaxIdle = raw.MaxIdle
	c.Timeout = timeout
	c.MigrationsPath = raw.MigrationsPath
	return nil
}

// UnmarshalYAML decodes duration strings into time.Duration.
func (c *FeedConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		FetchTimeout   string  `yaml:"fetch_timeout"`
		RequestsPerSec float64 `yaml:"requests_per_sec"`
		RequestBurst   int     `yaml:"request_burst"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	timeout, err := parseDuration(raw.FetchTimeout)
	if err != nil {
		return fmt.Errorf("feed.fetch_timeout: %w", err)
	}
	c.FetchTimeout = timeout
	c.RequestsPerSec = raw.RequestsPerSec
	c.RequestBurst = raw.RequestBurst
	return nil
}

// UnmarshalYAML decodes duration strings into time.Duration.
func (c *HistoryConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		BackfillDays     int    `yaml:"backfill_days"`
		PrimaryEndpoint  string `yaml:"primary_endpoint"`
		FallbackEndpoint string `yaml:"fallback_endpoint"`
		RequestTimeout   string `yaml:"request_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	timeout, err := parseDuration(raw.RequestTimeout)
	if err != nil {
		return fmt.Errorf("history.request_timeout: %w", err)
	}
	c.BackfillDays = raw.BackfillDays
	c.PrimaryEndpoint = raw.PrimaryEndpoint
	c.FallbackEndpoint = raw.FallbackEndpoint
	c.RequestTimeout = timeout
	return nil
}

// UnmarshalYAML decodes duration strings into time.Duration.
func (c *OracleConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Network               string  `yaml:"network"`
		ContractAddress       string  `yaml:"contract_address"`
		PublisherEndpoint     string  `yaml:"publisher_endpoint"`
		DryRun                bool    `yaml:"dry_run"`
		MinPriceChangePercent float64 `yaml:"min_price_change_percent"`
		MaxTimeBetweenUpdates string  `yaml:"max_time_between_updates"`
		MinTimeBetweenUpdates string  `yaml:"min_time_between_updates"`
		MinSourceCount        int     `yaml:"min_source_count"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	maxInterval, err := parseDuration(raw.MaxTimeBetweenUpdates)
	if err != nil {
		return fmt.Errorf("oracle.max_time_between_updates: %w", err)
	}
	minInterval, err := parseDuration(raw.MinTimeBetweenUpdates)
	if err != nil {
		return fmt.Errorf("oracle.min_time_between_updates: %w", err)
	}
	c.Network = raw.Network
	c.ContractAddress = raw.ContractAddress
	c.PublisherEndpoint = raw.PublisherEndpoint
	c.DryRun = raw.DryRun
	c.MinPriceChangePercent = raw.MinPriceChangePercent
	c.MaxTimeBetweenUpdates = maxInterval
	c.MinTimeBetweenUpdates = minInterval
	c.MinSourceCount = raw.MinSourceCount
	return nil
}

// Load loads configuration from a YAML file and applies defaults and
// environment overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.applyEnvOverrides(NewEnvManager(""))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns a configuration with all defaults applied and no file
// input, useful for tests and local runs without a config file.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "btcoracle"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8082
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Feed.FetchTimeout == 0 {
		c.Feed.FetchTimeout = 10 * time.Second
	}
	if c.Feed.RequestsPerSec == 0 {
		c.Feed.RequestsPerSec = 1
	}
	if c.Feed.RequestBurst == 0 {
		c.Feed.RequestBurst = 2
	}
	if c.History.BackfillDays == 0 {
		c.History.BackfillDays = 365
	}
	if c.History.RequestTimeout == 0 {
		c.History.RequestTimeout = 30 * time.Second
	}
	if c.Oracle.Network == "" {
		c.Oracle.Network = "testnet"
	}
	if c.Oracle.MinPriceChangePercent == 0 {
		c.Oracle.MinPriceChangePercent = 0.5
	}
	if c.Oracle.MaxTimeBetweenUpdates == 0 {
		c.Oracle.MaxTimeBetweenUpdates = 6 * time.Hour
	}
	if c.Oracle.MinTimeBetweenUpdates == 0 {
		c.Oracle.MinTimeBetweenUpdates = 30 * time.Minute
	}
	if c.Oracle.MinSourceCount == 0 {
		c.Oracle.MinSourceCount = 3
	}
	if c.Schedule.PriceCycle == "" {
		c.Schedule.PriceCycle = "0 */1 * * * *" // every minute
	}
	if c.Schedule.HistoryBulk == "" {
		c.Schedule.HistoryBulk = "0 0 */12 * * *" // twice a day
	}
	if c.Schedule.HistoryIncrement == "" {
		c.Schedule.HistoryIncrement = "0 10 0 * * *" // daily, shortly after midnight UTC
	}
	if c.Schedule.SubmissionCheck == "" {
		c.Schedule.SubmissionCheck = "0 */5 * * * *" // every 5 minutes
	}
}

func (c *Config) applyEnvOverrides(env *EnvManager) {
	c.App.Env = env.GetString("env", c.App.Env)
	c.Server.Port = env.GetInt("server_port", c.Server.Port)
	c.Database.Host = env.GetString("db_host", c.Database.Host)
	c.Database.Port = env.GetInt("db_port", c.Database.Port)
	c.Database.User = env.GetString("db_user", c.Database.User)
	c.Database.Password = env.GetString("db_password", c.Database.Password)
	c.Database.DBName = env.GetString("db_name", c.Database.DBName)
	c.Redis.Addr = env.GetString("redis_addr", c.Redis.Addr)
	c.Redis.Password = env.GetString("redis_password", c.Redis.Password)
	c.Logging.Level = env.GetString("log_level", c.Logging.Level)
	c.Oracle.Network = env.GetString("network", c.Oracle.Network)
	c.Oracle.ContractAddress = env.GetString("contract_address", c.Oracle.ContractAddress)
	c.Oracle.PublisherEndpoint = env.GetString("publisher_endpoint", c.Oracle.PublisherEndpoint)
	c.Oracle.DryRun = env.GetBool("dry_run", c.Oracle.DryRun)
	c.Oracle.MinPriceChangePercent = env.GetFloat("min_price_change_percent", c.Oracle.MinPriceChangePercent)
	c.Oracle.MaxTimeBetweenUpdates = env.GetDuration("max_time_between_updates", c.Oracle.MaxTimeBetweenUpdates)
	c.Oracle.MinTimeBetweenUpdates = env.GetDuration("min_time_between_updates", c.Oracle.MinTimeBetweenUpdates)
	c.Oracle.MinSourceCount = env.GetInt("min_source_count", c.Oracle.MinSourceCount)
}

// Validate checks invariants that would otherwise surface deep inside the
// pipeline.
func (c *Config) Validate() error {
	if c.Oracle.MinTimeBetweenUpdates > c.Oracle.MaxTimeBetweenUpdates {
		return fmt.Errorf("oracle: min_time_between_updates %v exceeds max_time_between_updates %v",
			c.Oracle.MinTimeBetweenUpdates, c.Oracle.MaxTimeBetweenUpdates)
	}
	if c.Oracle.MinPriceChangePercent < 0 {
		return fmt.Errorf("oracle: min_price_change_percent must be non-negative")
	}
	for _, s := range c.Sources {
		if s.Weight < 0 || s.Weight > 1 {
			return fmt.Errorf("source %s: weight %f outside [0,1]", s.Name, s.Weight)
		}
	}
	return nil
}
