package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the API, the RAG pipeline and the background jobs.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Backfill  BackfillConfig  `mapstructure:"backfill"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel string `mapstructure:"log_level"`
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC.
func (g GeneralConfig) Location() *time.Location {
	if strings.TrimSpace(g.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address     string        `mapstructure:"address"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	CORSOrigins []string      `mapstructure:"cors_origins"`

	// SecureCookies marks the auth cookie Secure; enable behind TLS.
	SecureCookies bool `mapstructure:"secure_cookies"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	return nil
}

// LLMConfig configures the generation and embedding provider.
type LLMConfig struct {
	Type                string        `mapstructure:"type"` // openai or any openai-compatible endpoint
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	ChatModel           string        `mapstructure:"chat_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	Temperature         float32       `mapstructure:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second"`
	Burst               int           `mapstructure:"burst"`
}

func (l LLMConfig) Validate() error {
	switch l.Type {
	case "openai":
	default:
		return fmt.Errorf("llm.type %q is not supported", l.Type)
	}
	if strings.TrimSpace(l.ChatModel) == "" {
		return fmt.Errorf("llm.chat_model is required")
	}
	if strings.TrimSpace(l.EmbeddingModel) == "" {
		return fmt.Errorf("llm.embedding_model is required")
	}
	if l.EmbeddingDimensions <= 0 {
		return fmt.Errorf("llm.embedding_dimensions must be > 0")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	return nil
}

// RAGConfig tunes the question answering pipeline.
type RAGConfig struct {
	MatchThreshold  float64       `mapstructure:"match_threshold"`
	MatchCount      int           `mapstructure:"match_count"`
	DateRangeLimit  int           `mapstructure:"date_range_limit"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

func (r RAGConfig) Validate() error {
	if r.MatchThreshold <= 0 || r.MatchThreshold > 1 {
		return fmt.Errorf("rag.match_threshold must be in (0,1]")
	}
	if r.MatchCount <= 0 {
		return fmt.Errorf("rag.match_count must be > 0")
	}
	if r.DateRangeLimit <= 0 {
		return fmt.Errorf("rag.date_range_limit must be > 0")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// RedisConfig contains Redis connection settings. Redis is optional; when host is empty the
// embedding cache and the backfill lock are disabled.
type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              string        `mapstructure:"port"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	Timeout           time.Duration `mapstructure:"timeout"`
	EmbeddingCacheTTL time.Duration `mapstructure:"embedding_cache_ttl"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// BackfillConfig schedules the embedding backfill job.
type BackfillConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Cron      string `mapstructure:"cron"`
	BatchSize int    `mapstructure:"batch_size"`
}

func (b BackfillConfig) Validate() error {
	if !b.Enabled {
		return nil
	}
	if _, err := cronexpr.Parse(b.Cron); err != nil {
		return fmt.Errorf("backfill.cron: %w", err)
	}
	if b.BatchSize <= 0 {
		return fmt.Errorf("backfill.batch_size must be > 0")
	}
	return nil
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	for _, v := range []interface{ Validate() error }{
		c.Server,
		c.LLM,
		c.RAG,
		c.Storage.Postgres,
		c.Storage.Redis,
		c.Backfill,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.timezone", "UTC")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.token_ttl", 24*time.Hour)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("llm.type", "openai")
	v.SetDefault("llm.chat_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.embedding_dimensions", 1536)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.requests_per_second", 5.0)
	v.SetDefault("llm.burst", 5)
	v.SetDefault("rag.match_threshold", 0.5)
	v.SetDefault("rag.match_count", 5)
	v.SetDefault("rag.date_range_limit", 500)
	v.SetDefault("rag.provider_timeout", 20*time.Second)
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", 5*time.Second)
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.embedding_cache_ttl", 24*time.Hour)
	v.SetDefault("backfill.enabled", true)
	v.SetDefault("backfill.cron", "*/15 * * * *")
	v.SetDefault("backfill.batch_size", 100)
	v.SetDefault("telemetry.metrics_enabled", true)
}

// LoadConfig loads config from file, the environment (LIFTBUDDY_*) and an optional .env file.
// An empty path searches ./config, . and the executable directory for config.json.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("LIFTBUDDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// running purely from env is fine when no explicit file was requested
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	bindSecrets(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindSecrets makes secrets without a config file entry reachable through AutomaticEnv.
func bindSecrets(v *viper.Viper) {
	for _, key := range []string{
		"server.jwt_secret",
		"llm.api_key",
		"llm.base_url",
		"storage.postgres.url",
		"storage.postgres.host",
		"storage.postgres.user",
		"storage.postgres.password",
		"storage.postgres.dbname",
		"storage.redis.host",
		"storage.redis.password",
	} {
		_ = v.BindEnv(key)
	}
	if v.GetString("llm.api_key") == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			v.Set("llm.api_key", key)
		}
	}
}

func (c *Config) normalize() {
	c.Server.Address = strings.TrimSpace(c.Server.Address)
	if c.Server.Address != "" && !strings.Contains(c.Server.Address, ":") {
		c.Server.Address = ":" + c.Server.Address
	}
	if c.Server.TokenTTL <= 0 {
		c.Server.TokenTTL = 24 * time.Hour
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	c.LLM.Type = strings.ToLower(strings.TrimSpace(c.LLM.Type))
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 1
	}
	if c.RAG.ProviderTimeout <= 0 {
		c.RAG.ProviderTimeout = c.LLM.Timeout
	}
	c.Backfill.Cron = strings.TrimSpace(c.Backfill.Cron)
}
