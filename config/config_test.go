package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

// validConfig returns a configuration that passes validate
func validConfig() *Config {
	return &Config{
		SerpAPI:  SerpAPIConfig{APIKey: "test-key", MaxAttempts: 5},
		Store:    StoreConfig{Type: "memory"},
		Cache:    CacheConfig{Type: "memory"},
		Scoring:  ScoringConfig{MinTextSimilarity: 60, MinCombinedSimilarity: 55, TextWeight: 0.6, ImageWeight: 0.4},
		Matching: MatchingConfig{MinSimilarity: 86},
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when only the API key is set", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("DEALSCOUT_SERPAPI_API_KEY", "test-key")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "chrome-extension://*" {
			t.Errorf("Server.AllowedOrigins = %v, want [chrome-extension://*]", cfg.Server.AllowedOrigins)
		}
		if cfg.SerpAPI.BaseURL != "https://serpapi.com" {
			t.Errorf("SerpAPI.BaseURL = %s, want https://serpapi.com", cfg.SerpAPI.BaseURL)
		}
		if cfg.SerpAPI.MaxAttempts != 5 {
			t.Errorf("SerpAPI.MaxAttempts = %d, want 5", cfg.SerpAPI.MaxAttempts)
		}
		if cfg.SerpAPI.ReadTimeout != 45*time.Second {
			t.Errorf("SerpAPI.ReadTimeout = %v, want 45s", cfg.SerpAPI.ReadTimeout)
		}
		if !cfg.Images.Enabled || cfg.Images.Timeout != 10*time.Second {
			t.Errorf("Images = %+v, want enabled with 10s timeout", cfg.Images)
		}
		if cfg.Store.Type != "memory" {
			t.Errorf("Store.Type = %s, want memory", cfg.Store.Type)
		}
		if cfg.Store.CatalogCollection != "amz_products" {
			t.Errorf("Store.CatalogCollection = %s, want amz_products", cfg.Store.CatalogCollection)
		}
		if cfg.Cache.TTL != 15*time.Minute {
			t.Errorf("Cache.TTL = %v, want 15m", cfg.Cache.TTL)
		}
		if cfg.Scoring.MinTextSimilarity != 60 || cfg.Scoring.MinCombinedSimilarity != 55 {
			t.Errorf("Scoring thresholds = %v/%v, want 60/55", cfg.Scoring.MinTextSimilarity, cfg.Scoring.MinCombinedSimilarity)
		}
		if cfg.Scoring.MaxDeals != 5 {
			t.Errorf("Scoring.MaxDeals = %d, want 5", cfg.Scoring.MaxDeals)
		}
		if cfg.Matching.MinSimilarity != 86 || !cfg.Matching.RequireBrand {
			t.Errorf("Matching = %+v, want 86 with brand required", cfg.Matching)
		}
		if cfg.Indexing.PerCallDelay != 400*time.Millisecond {
			t.Errorf("Indexing.PerCallDelay = %v, want 400ms", cfg.Indexing.PerCallDelay)
		}
		if cfg.Indexing.RecacheHours != 48 {
			t.Errorf("Indexing.RecacheHours = %d, want 48", cfg.Indexing.RecacheHours)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("DEALSCOUT_SERVER_PORT", "9090")
		t.Setenv("DEALSCOUT_SERVER_ENVIRONMENT", "production")
		t.Setenv("DEALSCOUT_SERPAPI_API_KEY", "custom-api-key")
		t.Setenv("DEALSCOUT_SERPAPI_MAX_ATTEMPTS", "3")
		t.Setenv("DEALSCOUT_STORE_TYPE", "postgres")
		t.Setenv("DEALSCOUT_STORE_DATABASE_URL", "postgres://localhost:5432/dealscout")
		t.Setenv("DEALSCOUT_CACHE_TTL", "1h")
		t.Setenv("DEALSCOUT_MATCHING_MIN_SIMILARITY", "90")
		t.Setenv("DEALSCOUT_MATCHING_REQUIRE_BRAND", "false")
		t.Setenv("DEALSCOUT_INDEXING_CONCURRENCY", "4")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.SerpAPI.APIKey != "custom-api-key" {
			t.Errorf("SerpAPI.APIKey = %s, want custom-api-key", cfg.SerpAPI.APIKey)
		}
		if cfg.SerpAPI.MaxAttempts != 3 {
			t.Errorf("SerpAPI.MaxAttempts = %d, want 3", cfg.SerpAPI.MaxAttempts)
		}
		if cfg.Store.Type != "postgres" || cfg.Store.DatabaseURL != "postgres://localhost:5432/dealscout" {
			t.Errorf("Store = %+v, want postgres with URL", cfg.Store)
		}
		if cfg.Cache.TTL != time.Hour {
			t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
		}
		if cfg.Matching.MinSimilarity != 90 || cfg.Matching.RequireBrand {
			t.Errorf("Matching = %+v, want 90 without brand", cfg.Matching)
		}
		if cfg.Indexing.Concurrency != 4 {
			t.Errorf("Indexing.Concurrency = %d, want 4", cfg.Indexing.Concurrency)
		}
	})

	t.Run("reads config.yaml from the working directory", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		t.Setenv("DEALSCOUT_SERPAPI_API_KEY", "test-key")

		yaml := "server:\n  port: \"7070\"\nscoring:\n  max_deals: 3\n"
		if err := os.WriteFile("config.yaml", []byte(yaml), 0644); err != nil {
			t.Fatalf("Failed to write config.yaml: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Server.Port != "7070" {
			t.Errorf("Server.Port = %s, want 7070", cfg.Server.Port)
		}
		if cfg.Scoring.MaxDeals != 3 {
			t.Errorf("Scoring.MaxDeals = %d, want 3", cfg.Scoring.MaxDeals)
		}
	})

	t.Run("fails validation when API key is missing", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("DEALSCOUT_SERPAPI_API_KEY", "")

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want error for missing API key")
		}
		if err.Error() != "invalid configuration: SerpAPI key is required (set DEALSCOUT_SERPAPI_API_KEY)" {
			t.Errorf("Load() error = %v, want 'SerpAPI key is required'", err)
		}
	})

	t.Run("fails validation when database URL missing for postgres", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("DEALSCOUT_SERPAPI_API_KEY", "test-key")
		t.Setenv("DEALSCOUT_STORE_TYPE", "postgres")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing database URL")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		chdir(t, t.TempDir())

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables and skips comments", func(t *testing.T) {
		chdir(t, t.TempDir())

		envContent := `
# Comment line
TEST_VAR_1=value1
TEST_VAR_2=value2

# TEST_COMMENTED=should_not_load
`
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		for _, key := range []string{"TEST_VAR_1", "TEST_VAR_2", "TEST_COMMENTED"} {
			os.Unsetenv(key)
		}
		defer func() {
			os.Unsetenv("TEST_VAR_1")
			os.Unsetenv("TEST_VAR_2")
		}()

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("TEST_OVERRIDE", "existing-value")

		if err := os.WriteFile(".env", []byte("TEST_OVERRIDE=new-value"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
	})

	t.Run("feeds Load", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("DEALSCOUT_SERPAPI_API_KEY", "")
		os.Unsetenv("DEALSCOUT_SERPAPI_API_KEY")

		if err := os.WriteFile(".env", []byte("DEALSCOUT_SERPAPI_API_KEY=from-dotenv"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		if err := LoadEnvFile(); err != nil {
			t.Fatalf("LoadEnvFile() error = %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.SerpAPI.APIKey != "from-dotenv" {
			t.Errorf("SerpAPI.APIKey = %s, want from-dotenv", cfg.SerpAPI.APIKey)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("validates successfully with all required fields", func(t *testing.T) {
		if err := validate(validConfig()); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty API key", func(c *Config) { c.SerpAPI.APIKey = "" }, "SerpAPI key"},
		{"invalid store type", func(c *Config) { c.Store.Type = "mongo" }, "store type"},
		{"postgres without URL", func(c *Config) { c.Store.Type = "postgres" }, "database URL"},
		{"invalid cache type", func(c *Config) { c.Cache.Type = "redis" }, "cache type"},
		{"threshold above 100", func(c *Config) { c.Matching.MinSimilarity = 101 }, "matching.min_similarity"},
		{"negative threshold", func(c *Config) { c.Scoring.MinTextSimilarity = -1 }, "scoring.min_text_similarity"},
		{"negative weight", func(c *Config) { c.Scoring.ImageWeight = -0.1 }, "weights"},
		{"zero attempts", func(c *Config) { c.SerpAPI.MaxAttempts = 0 }, "max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if err == nil {
				t.Fatalf("validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want to contain %q", err, tt.wantErr)
			}
		})
	}

	t.Run("postgres with URL is valid", func(t *testing.T) {
		cfg := validConfig()
		cfg.Store.Type = "postgres"
		cfg.Store.DatabaseURL = "postgres://localhost/dealscout"
		if err := validate(cfg); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})
}
