package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	SerpAPI  SerpAPIConfig  `mapstructure:"serpapi"`
	Images   ImageConfig    `mapstructure:"images"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Matching MatchingConfig `mapstructure:"matching"`
	Indexing IndexingConfig `mapstructure:"indexing"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SerpAPIConfig holds SerpAPI client configuration
type SerpAPIConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	AmazonDomain      string        `mapstructure:"amazon_domain"`
}

// ImageConfig holds perceptual image comparison configuration
type ImageConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

// StoreConfig holds document store configuration
type StoreConfig struct {
	Type              string `mapstructure:"type"` // "memory" or "postgres"
	DatabaseURL       string `mapstructure:"database_url"`
	CatalogCollection string `mapstructure:"catalog_collection"`
	MatchCollection   string `mapstructure:"match_collection"`
	LinkCollection    string `mapstructure:"link_collection"`
}

// CacheConfig holds deal result cache configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory"
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ScoringConfig holds deal scoring thresholds
type ScoringConfig struct {
	MinTextSimilarity     float64 `mapstructure:"min_text_similarity"`
	MinCombinedSimilarity float64 `mapstructure:"min_combined_similarity"`
	TextWeight            float64 `mapstructure:"text_weight"`
	ImageWeight           float64 `mapstructure:"image_weight"`
	MinUnitRatio          float64 `mapstructure:"min_unit_ratio"`
	MinSavingsAbsolute    float64 `mapstructure:"min_savings_abs"`
	MinSavingsPercent     float64 `mapstructure:"min_savings_pct"`
	MaxDeals              int     `mapstructure:"max_deals"`
	EnableDebugLogging    bool    `mapstructure:"enable_debug_logging"`
}

// MatchingConfig holds best-match selector configuration
type MatchingConfig struct {
	MinSimilarity      float64 `mapstructure:"min_similarity"`
	RequireBrand       bool    `mapstructure:"require_brand"`
	EnableDebugLogging bool    `mapstructure:"enable_debug_logging"`
}

// IndexingConfig holds batch indexing and linking configuration
type IndexingConfig struct {
	PerCallDelay     time.Duration `mapstructure:"per_call_delay"`
	Concurrency      int           `mapstructure:"concurrency"`
	LinkPerCallDelay time.Duration `mapstructure:"link_per_call_delay"`
	RecacheHours     int           `mapstructure:"recache_hours"`
	MaxCalls         int           `mapstructure:"max_calls"`
	IngestPageDelay  time.Duration `mapstructure:"ingest_page_delay"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dealscout/")

	// DEALSCOUT_SERPAPI_API_KEY -> serpapi.api_key
	v.SetEnvPrefix("DEALSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadEnvFile loads .env from the working directory into the process
// environment. Existing variables win and a missing file is not an error.
func LoadEnvFile() error {
	return loadEnvFile()
}

func loadEnvFile() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values.
// Every key needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})

	// SerpAPI defaults
	v.SetDefault("serpapi.api_key", "")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.max_attempts", 5)
	v.SetDefault("serpapi.connect_timeout", "20s")
	v.SetDefault("serpapi.read_timeout", "45s")
	v.SetDefault("serpapi.requests_per_second", 0)
	v.SetDefault("serpapi.amazon_domain", "amazon.com")

	// Image defaults
	v.SetDefault("images.enabled", true)
	v.SetDefault("images.timeout", "10s")
	v.SetDefault("images.max_bytes", 10<<20)

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.catalog_collection", "amz_products")
	v.SetDefault("store.match_collection", "amz_matches")
	v.SetDefault("store.link_collection", "amz_links")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Scoring defaults
	v.SetDefault("scoring.min_text_similarity", 60)
	v.SetDefault("scoring.min_combined_similarity", 55)
	v.SetDefault("scoring.text_weight", 0.6)
	v.SetDefault("scoring.image_weight", 0.4)
	v.SetDefault("scoring.min_unit_ratio", 0.6)
	v.SetDefault("scoring.min_savings_abs", 2.0)
	v.SetDefault("scoring.min_savings_pct", 5.0)
	v.SetDefault("scoring.max_deals", 5)
	v.SetDefault("scoring.enable_debug_logging", false)

	// Matching defaults
	v.SetDefault("matching.min_similarity", 86)
	v.SetDefault("matching.require_brand", true)
	v.SetDefault("matching.enable_debug_logging", false)

	// Indexing defaults
	v.SetDefault("indexing.per_call_delay", "400ms")
	v.SetDefault("indexing.concurrency", 1)
	v.SetDefault("indexing.link_per_call_delay", "350ms")
	v.SetDefault("indexing.recache_hours", 48)
	v.SetDefault("indexing.max_calls", 200)
	v.SetDefault("indexing.ingest_page_delay", "500ms")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.SerpAPI.APIKey == "" {
		return fmt.Errorf("SerpAPI key is required (set DEALSCOUT_SERPAPI_API_KEY)")
	}

	if config.Store.Type != "memory" && config.Store.Type != "postgres" {
		return fmt.Errorf("store type must be 'memory' or 'postgres', got: %s", config.Store.Type)
	}

	if config.Store.Type == "postgres" && config.Store.DatabaseURL == "" {
		return fmt.Errorf("database URL is required when store type is 'postgres'")
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	for name, value := range map[string]float64{
		"scoring.min_text_similarity":     config.Scoring.MinTextSimilarity,
		"scoring.min_combined_similarity": config.Scoring.MinCombinedSimilarity,
		"matching.min_similarity":         config.Matching.MinSimilarity,
	} {
		if value < 0 || value > 100 {
			return fmt.Errorf("%s must be between 0 and 100, got: %v", name, value)
		}
	}

	if config.Scoring.TextWeight < 0 || config.Scoring.ImageWeight < 0 {
		return fmt.Errorf("scoring weights must not be negative")
	}

	if config.SerpAPI.MaxAttempts < 1 {
		return fmt.Errorf("serpapi.max_attempts must be at least 1, got: %d", config.SerpAPI.MaxAttempts)
	}

	return nil
}
