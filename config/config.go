package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends for the shared key/value store
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Backends for the usage ledger
const (
	LedgerKV       = "kv"
	LedgerPostgres = "postgres"
)

// Backends for the content cache
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

// ProviderIDs lists every provider the service knows how to build, in default
// priority order
var ProviderIDs = []string{
	"groq", "deepseek", "gemini", "mistral", "openai",
	"anthropic", "cohere", "grok", "openrouter",
}

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // nil unless DATABASE_URL or DB_HOST is set
	AI            AIConfig
	Providers     ProvidersConfig
	Store         StoreConfig
	Content       ContentConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AIConfig holds orchestrator behaviour shared by all providers
type AIConfig struct {
	DailyCostLimit  float64 // USD per calendar day; <= 0 disables the cap
	FailoverEnabled bool
	SmartSelection  bool
	RequestTimeout  time.Duration
	MaxTokens       int
	Temperature     float64
	HealthTTL       time.Duration
	Timezone        string // IANA name used to pick the ledger day
	ProvidersFile   string // optional YAML overrides
}

// ProvidersConfig holds per-provider settings keyed by provider identifier
type ProvidersConfig map[string]ProviderSettings

// ProviderSettings holds one provider's credentials and overrides
type ProviderSettings struct {
	APIKey   string
	Model    string
	BaseURL  string
	Priority int // 0 keeps the built-in priority
	Enabled  bool
}

// StoreConfig selects the shared store and the ledger on top of it
type StoreConfig struct {
	Backend       string
	LedgerBackend string
	Retention     time.Duration
	Redis         RedisConfig
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ContentConfig holds content generation and cache settings
type ContentConfig struct {
	CacheBackend string
	CachePath    string
	CacheSize    int
	CacheTTL     time.Duration
	MaxTokens    int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel         string
	LogFormat        string // json or text
	MetricsEnabled   bool
	MetricsNamespace string
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		AI: AIConfig{
			DailyCostLimit:  getEnvAsFloat("AI_DAILY_COST_LIMIT", 10.0),
			FailoverEnabled: getEnvAsBool("AI_FAILOVER_ENABLED", true),
			SmartSelection:  getEnvAsBool("AI_SMART_SELECTION", true),
			RequestTimeout:  getEnvAsDuration("AI_REQUEST_TIMEOUT", 8*time.Second),
			MaxTokens:       getEnvAsInt("AI_MAX_TOKENS", 1000),
			Temperature:     getEnvAsFloat("AI_TEMPERATURE", 0.7),
			HealthTTL:       getEnvAsDuration("AI_HEALTH_TTL", 5*time.Minute),
			Timezone:        getEnv("AI_TIMEZONE", "UTC"),
			ProvidersFile:   getEnv("AI_PROVIDERS_FILE", ""),
		},
		Providers: loadProvidersConfig(),
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
			LedgerBackend: strings.ToLower(getEnv("LEDGER_BACKEND", LedgerKV)),
			Retention:     getEnvAsDuration("LEDGER_RETENTION", 48*time.Hour),
			Redis: RedisConfig{
				Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
				Password:  getEnv("REDIS_PASSWORD", ""),
				DB:        getEnvAsInt("REDIS_DB", 0),
				KeyPrefix: getEnv("REDIS_KEY_PREFIX", "ai"),
			},
		},
		Content: ContentConfig{
			CacheBackend: strings.ToLower(getEnv("CONTENT_CACHE_BACKEND", CacheMemory)),
			CachePath:    getEnv("CONTENT_CACHE_PATH", "content_cache.db"),
			CacheSize:    getEnvAsInt("CONTENT_CACHE_SIZE", 256),
			CacheTTL:     getEnvAsDuration("CONTENT_CACHE_TTL", time.Hour),
			MaxTokens:    getEnvAsInt("CONTENT_MAX_TOKENS", 400),
		},
		Observability: ObservabilityConfig{
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			LogFormat:        getEnv("LOG_FORMAT", "json"),
			MetricsEnabled:   getEnvAsBool("METRICS_ENABLED", true),
			MetricsNamespace: getEnv("METRICS_NAMESPACE", "orchestrator"),
		},
	}

	if cfg.AI.ProvidersFile != "" {
		overrides, err := LoadProviderOverrides(cfg.AI.ProvidersFile)
		if err != nil {
			return nil, err
		}
		cfg.Providers.Apply(overrides)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis address is required when STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Store.LedgerBackend {
	case LedgerKV:
	case LedgerPostgres:
		if c.Database == nil {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST for the postgres ledger")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Store.LedgerBackend)
	}

	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	switch c.Content.CacheBackend {
	case CacheMemory:
	case CacheSQLite:
		if c.Content.CachePath == "" {
			return fmt.Errorf("content cache path is required when CONTENT_CACHE_BACKEND=sqlite")
		}
	default:
		return fmt.Errorf("unknown content cache backend %q", c.Content.CacheBackend)
	}

	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.AI.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if _, err := c.AI.Location(); err != nil {
		return err
	}

	// at least one provider key is required in production
	if c.IsProduction() && len(c.Providers.Configured()) == 0 {
		return fmt.Errorf("at least one LLM provider must be configured in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Location resolves the configured timezone
func (c *AIConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Configured returns the identifiers of enabled providers that have an API key
func (p ProvidersConfig) Configured() []string {
	var ids []string
	for _, id := range ProviderIDs {
		if s, ok := p[id]; ok && s.Enabled && s.APIKey != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither is set.
func loadDatabaseConfig() *DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return &pool
	}
	if getEnv("DB_HOST", "") == "" {
		return nil
	}

	pool.Host = getEnv("DB_HOST", "")
	pool.Port = getEnvAsInt("DB_PORT", 5432)
	pool.User = getEnv("DB_USER", "")
	pool.Password = getEnv("DB_PASSWORD", "")
	pool.Database = getEnv("DB_NAME", "")
	pool.SSLMode = getEnv("DB_SSLMODE", "disable")
	return &pool
}

// loadProvidersConfig reads {ID}_API_KEY, {ID}_MODEL, {ID}_BASE_URL,
// {ID}_PRIORITY and {ID}_ENABLED for every known provider
func loadProvidersConfig() ProvidersConfig {
	providers := make(ProvidersConfig, len(ProviderIDs))
	for _, id := range ProviderIDs {
		prefix := strings.ToUpper(id) + "_"
		providers[id] = ProviderSettings{
			APIKey:   getEnv(prefix+"API_KEY", ""),
			Model:    getEnv(prefix+"MODEL", ""),
			BaseURL:  getEnv(prefix+"BASE_URL", ""),
			Priority: getEnvAsInt(prefix+"PRIORITY", 0),
			Enabled:  getEnvAsBool(prefix+"ENABLED", true),
		}
	}
	return providers
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
