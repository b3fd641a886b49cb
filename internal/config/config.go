package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Blockchain BlockchainConfig
	Aggregator AggregatorConfig
	Scanner    ScannerConfig
	Upstream   UpstreamConfig
	Tracking   TrackingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds database configuration. An empty Host selects the
// sqlite file at SQLitePath.
type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// UsePostgres reports whether a postgres host is configured.
func (c DatabaseConfig) UsePostgres() bool {
	return strings.TrimSpace(c.Host) != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// BlockchainConfig holds signer and chain-scan settings.
type BlockchainConfig struct {
	SenderPrivateKey string
	ScanWindow       uint64
	RPCTimeout       time.Duration
}

// AggregatorConfig holds the status aggregator credentials.
type AggregatorConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// ScannerConfig holds the protocol scanner bases, tried in order.
type ScannerConfig struct {
	TestnetBaseURL string
	MainnetBaseURL string
	Timeout        time.Duration
}

// UpstreamConfig holds settings shared by every outbound HTTP client.
type UpstreamConfig struct {
	ProxyURL string
}

// Bases returns the configured scanner bases in lookup order.
func (c ScannerConfig) Bases() []string {
	var out []string
	for _, b := range []string{c.TestnetBaseURL, c.MainnetBaseURL} {
		if strings.TrimSpace(b) != "" {
			out = append(out, strings.TrimRight(b, "/"))
		}
	}
	return out
}

// TrackingConfig controls status polling.
type TrackingConfig struct {
	PollInterval time.Duration
	CacheTTL     time.Duration
	SourceTTL    time.Duration
}

const DefaultScanWindow uint64 = 20000

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     getEnv("SERVER_PORT", "8080"),
			Env:      getEnv("SERVER_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", ""),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", ""),
			Port:       getEnvAsInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", "postgres"),
			DBName:     getEnv("DB_NAME", "oftbridge"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "oftbridge.db"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Blockchain: BlockchainConfig{
			SenderPrivateKey: firstEnv("SENDER_PRIVATE_KEY", "PRIVATE_KEY"),
			ScanWindow:       uint64(getEnvAsInt("SCAN_WINDOW", int(DefaultScanWindow))),
			RPCTimeout:       getEnvAsDuration("RPC_TIMEOUT", 15*time.Second),
		},
		Aggregator: AggregatorConfig{
			BaseURL:  strings.TrimRight(getEnv("AGGREGATOR_BASE_URL", ""), "/"),
			Username: getEnv("AGGREGATOR_USERNAME", ""),
			Password: getEnv("AGGREGATOR_PASSWORD", ""),
			Timeout:  getEnvAsDuration("AGGREGATOR_TIMEOUT", 10*time.Second),
		},
		Scanner: ScannerConfig{
			TestnetBaseURL: getEnv("LZ_SCAN_TESTNET_URL", "https://scan-testnet.layerzero-api.com/v1"),
			MainnetBaseURL: getEnv("LZ_SCAN_MAINNET_URL", "https://scan.layerzero-api.com/v1"),
			Timeout:        getEnvAsDuration("LZ_SCAN_TIMEOUT", 10*time.Second),
		},
		Upstream: UpstreamConfig{
			ProxyURL: getEnv("UPSTREAM_PROXY", ""),
		},
		Tracking: TrackingConfig{
			PollInterval: getEnvAsDuration("STATUS_POLL_INTERVAL", 5*time.Second),
			CacheTTL:     getEnvAsDuration("STATUS_CACHE_TTL", 24*time.Hour),
			SourceTTL:    getEnvAsDuration("STATUS_SOURCE_TIMEOUT", 8*time.Second),
		},
	}
}

// Validate reports settings that make the server unusable.
func (c *Config) Validate() error {
	if c.Tracking.PollInterval <= 0 {
		return fmt.Errorf("STATUS_POLL_INTERVAL must be positive")
	}
	if c.Blockchain.ScanWindow == 0 {
		return fmt.Errorf("SCAN_WINDOW must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
