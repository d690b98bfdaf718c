// Package config provides configuration management for the portfolio engine.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Sources   SourcesConfig
	Chains    ChainsConfig
	Enrich    EnrichConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by golang-migrate
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.Database)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds cache configuration.
// Catalog-level entries live longer than per-wallet portfolio entries.
type CacheConfig struct {
	Backend      string // memory or redis
	PortfolioTTL time.Duration
	CatalogTTL   time.Duration
}

// SourcesConfig holds market data source configuration
type SourcesConfig struct {
	MarketDataURL     string
	APIKey            string
	RequestsPerSecond float64
	Timeout           time.Duration
	HistoryDays       int
}

// ChainsConfig holds chain configuration for the on-chain balance source
type ChainsConfig struct {
	Enabled []string
	Chains  map[string]ChainConfig
}

// ChainConfig holds configuration for a specific chain
type ChainConfig struct {
	RPCURLs []string // primary first, the rest are failover endpoints
	Tokens  []string // ERC-20 contract addresses to read balances for
}

// EnrichConfig bounds per-asset enrichment work
type EnrichConfig struct {
	Workers int
	Timeout time.Duration
}

// CatalogConfig controls where the opportunity catalog comes from
type CatalogConfig struct {
	Source          string // static or postgres
	RefreshSchedule string // cron expression
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional, environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Enabled:        getEnvAsBool("POSTGRES_ENABLED", false),
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "portfolio_engine"),
				User:           getEnv("POSTGRES_USER", "engine"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "portfolio_engine"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Cache: CacheConfig{
			Backend:      strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
			PortfolioTTL: getEnvAsDuration("CACHE_PORTFOLIO_TTL", time.Minute),
			CatalogTTL:   getEnvAsDuration("CACHE_CATALOG_TTL", 15*time.Minute),
		},
		Sources: SourcesConfig{
			MarketDataURL:     getEnv("MARKET_DATA_URL", "https://api.coingecko.com/api/v3"),
			APIKey:            getEnv("MARKET_DATA_API_KEY", ""),
			RequestsPerSecond: getEnvAsFloat("MARKET_DATA_RPS", 5),
			Timeout:           getEnvAsDuration("MARKET_DATA_TIMEOUT", 10*time.Second),
			HistoryDays:       getEnvAsInt("MARKET_HISTORY_DAYS", 30),
		},
		Enrich: EnrichConfig{
			Workers: getEnvAsInt("ENRICH_WORKERS", 8),
			Timeout: getEnvAsDuration("ENRICH_TIMEOUT", 15*time.Second),
		},
		Catalog: CatalogConfig{
			Source:          strings.ToLower(getEnv("CATALOG_SOURCE", "static")),
			RefreshSchedule: getEnv("CATALOG_REFRESH_SCHEDULE", "@every 10m"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	config.Chains = loadChainConfigs()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("invalid CACHE_BACKEND %q: must be memory or redis", c.Cache.Backend)
	}
	if c.Cache.PortfolioTTL <= 0 || c.Cache.CatalogTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Cache.CatalogTTL < c.Cache.PortfolioTTL {
		return fmt.Errorf("CACHE_CATALOG_TTL (%s) must not be shorter than CACHE_PORTFOLIO_TTL (%s)",
			c.Cache.CatalogTTL, c.Cache.PortfolioTTL)
	}
	if c.Catalog.Source != "static" && c.Catalog.Source != "postgres" {
		return fmt.Errorf("invalid CATALOG_SOURCE %q: must be static or postgres", c.Catalog.Source)
	}
	if c.Catalog.Source == "postgres" && !c.Database.Postgres.Enabled {
		return fmt.Errorf("CATALOG_SOURCE=postgres requires POSTGRES_ENABLED=true")
	}
	if c.Enrich.Workers < 1 {
		return fmt.Errorf("ENRICH_WORKERS must be at least 1")
	}
	if c.Sources.HistoryDays < 1 {
		return fmt.Errorf("MARKET_HISTORY_DAYS must be at least 1")
	}
	return nil
}

// loadChainConfigs loads chain-specific configurations
func loadChainConfigs() ChainsConfig {
	var enabled []string
	chains := make(map[string]ChainConfig)

	for _, chain := range strings.Split(getEnv("ENABLED_CHAINS", "ethereum"), ",") {
		chain = strings.TrimSpace(strings.ToLower(chain))
		if chain == "" {
			continue
		}
		enabled = append(enabled, chain)

		prefix := strings.ToUpper(chain)
		chains[chain] = ChainConfig{
			RPCURLs: getEnvAsList(prefix+"_RPC_URL", nil),
			Tokens:  getEnvAsList(prefix+"_TOKENS", nil),
		}
	}

	return ChainsConfig{
		Enabled: enabled,
		Chains:  chains,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
