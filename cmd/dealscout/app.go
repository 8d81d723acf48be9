package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/dealscout/backend/config"
	httpDelivery "github.com/dealscout/backend/internal/delivery/http"
	"github.com/dealscout/backend/internal/domain"
	"github.com/dealscout/backend/internal/infrastructure/cache"
	"github.com/dealscout/backend/internal/infrastructure/imagehash"
	"github.com/dealscout/backend/internal/infrastructure/serpapi"
	"github.com/dealscout/backend/internal/infrastructure/store"
	"github.com/dealscout/backend/internal/usecase"
)

// app is the wired dependency graph shared by every command
type app struct {
	cfg         *config.Config
	services    httpDelivery.Services
	collections httpDelivery.Collections
	closers     []func()
}

// loadApp reads configuration and wires the application
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newApp(ctx, cfg)
}

// newApp builds infrastructure and usecases from configuration
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	debug := cfg.Server.Environment == "development"

	log.Printf("Environment: %s", cfg.Server.Environment)

	// Upstream search
	client := serpapi.NewClient(serpapi.Config{
		APIKey:            cfg.SerpAPI.APIKey,
		BaseURL:           cfg.SerpAPI.BaseURL,
		MaxAttempts:       cfg.SerpAPI.MaxAttempts,
		ConnectTimeout:    cfg.SerpAPI.ConnectTimeout,
		ReadTimeout:       cfg.SerpAPI.ReadTimeout,
		RequestsPerSecond: cfg.SerpAPI.RequestsPerSecond,
		Debug:             debug,
	})
	if debug {
		log.Printf("SerpAPI client debug mode enabled")
	}
	log.Printf("SerpAPI configured: %s (attempts: %d, key: %s...)",
		cfg.SerpAPI.BaseURL, cfg.SerpAPI.MaxAttempts, keyPrefix(cfg.SerpAPI.APIKey))

	shopping := serpapi.NewShoppingProvider(client)
	amazon := serpapi.NewAmazonProvider(client, cfg.SerpAPI.AmazonDomain)
	web := serpapi.NewWebSearchProvider(client)

	// Perceptual image comparison is optional; scoring falls back to text only
	var hasher domain.ImageHasher
	if cfg.Images.Enabled {
		hasher = imagehash.NewComparator(imagehash.Config{
			Timeout:  cfg.Images.Timeout,
			MaxBytes: cfg.Images.MaxBytes,
			Debug:    debug,
		})
	}
	log.Printf("Image comparison enabled: %v", cfg.Images.Enabled)

	// Document store
	var documents domain.DocumentStore
	switch cfg.Store.Type {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to document store: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		documents = pg
	default:
		documents = store.NewMemoryStore()
	}
	log.Printf("Store type: %s", cfg.Store.Type)

	// Deal result cache
	memoryCache := cache.NewMemoryCache(cache.Config{CleanupInterval: cfg.Cache.CleanupInterval})
	a.closers = append(a.closers, memoryCache.Close)
	log.Printf("Cache type: %s (TTL %s)", cfg.Cache.Type, cfg.Cache.TTL)

	// Usecases
	scorer := usecase.NewScoringService(hasher, usecase.ScoringConfig{
		MinTextSimilarity:     cfg.Scoring.MinTextSimilarity,
		MinCombinedSimilarity: cfg.Scoring.MinCombinedSimilarity,
		TextWeight:            cfg.Scoring.TextWeight,
		ImageWeight:           cfg.Scoring.ImageWeight,
		MinUnitRatio:          cfg.Scoring.MinUnitRatio,
		MinSavingsAbsolute:    cfg.Scoring.MinSavingsAbsolute,
		MinSavingsPercent:     cfg.Scoring.MinSavingsPercent,
		MaxDeals:              cfg.Scoring.MaxDeals,
		EnableDebugLogging:    cfg.Scoring.EnableDebugLogging,
	})
	matcher := usecase.NewMatchingService(usecase.MatchConfig{
		MinSimilarity:      cfg.Matching.MinSimilarity,
		RequireBrand:       cfg.Matching.RequireBrand,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})

	log.Printf("Scoring: text>=%.0f combined>=%.0f weights=%.1f/%.1f",
		cfg.Scoring.MinTextSimilarity, cfg.Scoring.MinCombinedSimilarity,
		cfg.Scoring.TextWeight, cfg.Scoring.ImageWeight)
	log.Printf("Matching: similarity>=%.0f brand=%v", cfg.Matching.MinSimilarity, cfg.Matching.RequireBrand)

	a.services = httpDelivery.Services{
		Deals:   usecase.NewDealService(memoryCache, shopping, scorer, usecase.DealServiceConfig{CacheTTL: cfg.Cache.TTL}),
		Matcher: matcher,
		Scorer:  scorer,
		Catalog: usecase.NewCatalogService(amazon, documents, usecase.CatalogServiceConfig{
			DefaultCollection: cfg.Store.CatalogCollection,
			PageDelay:         cfg.Indexing.IngestPageDelay,
		}),
		Indexer: usecase.NewIndexService(documents, shopping, amazon, scorer, matcher, usecase.IndexServiceConfig{
			PerCallDelay:       cfg.Indexing.PerCallDelay,
			Concurrency:        cfg.Indexing.Concurrency,
			LinkPerCallDelay:   cfg.Indexing.LinkPerCallDelay,
			RecacheHours:       cfg.Indexing.RecacheHours,
			MaxCalls:           cfg.Indexing.MaxCalls,
			EnableDebugLogging: cfg.Scoring.EnableDebugLogging,
		}),
		Resolver: usecase.NewResolverService(web),
	}
	a.collections = httpDelivery.Collections{
		Catalog: cfg.Store.CatalogCollection,
		Matches: cfg.Store.MatchCollection,
		Links:   cfg.Store.LinkCollection,
	}

	return a, nil
}

// Close releases the store pool and stops the cache sweeper
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// orDefault returns flag when set, otherwise the configured default
func orDefault(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

func keyPrefix(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8]
}

// printReport writes a run report to stdout as indented JSON
func printReport(report any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
