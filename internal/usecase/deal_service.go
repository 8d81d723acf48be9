package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/dealscout/backend/internal/domain"
)

// Result sources reported in DealResult.Source
const (
	SourceSearch = "search"
	SourceCache  = "cache"
)

const defaultDealCacheTTL = 15 * time.Minute

// DealServiceConfig holds configuration for the deal service
type DealServiceConfig struct {
	CacheTTL time.Duration
}

// DealService finds cheaper equivalents of a single reference product.
// Flow: check cache -> search provider -> score -> cache -> return
type DealService struct {
	cache    domain.CacheRepository
	provider domain.SearchProvider
	scorer   *ScoringService
	cacheTTL time.Duration
}

// NewDealService creates a new deal service with dependencies
func NewDealService(
	cache domain.CacheRepository,
	provider domain.SearchProvider,
	scorer *ScoringService,
	config DealServiceConfig,
) *DealService {
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultDealCacheTTL
	}

	return &DealService{
		cache:    cache,
		provider: provider,
		scorer:   scorer,
		cacheTTL: cacheTTL,
	}
}

// FindDeals searches offers for the reference product and returns the ranked deals.
// Finding nothing is a successful result with MatchFound=false.
func (s *DealService) FindDeals(ctx context.Context, reference *domain.ReferenceProduct) (*domain.DealResult, error) {
	if err := reference.Validate(); err != nil {
		return nil, err
	}

	cacheKey := generateDealCacheKey(reference)

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		cached.Source = SourceCache
		return cached, nil
	}

	offers, err := s.provider.Search(ctx, reference.SearchQuery())
	if err != nil {
		return nil, fmt.Errorf("search offers: %w", err)
	}

	deals, err := s.scorer.ScoreOffers(ctx, reference, offers)
	if err != nil {
		return nil, err
	}

	result := &domain.DealResult{
		MatchFound: len(deals) > 0,
		Reference:  *reference,
		Deals:      deals,
		Source:     SourceSearch,
	}

	if err := s.setInCache(ctx, cacheKey, result); err != nil {
		log.Printf("[CACHE] Failed to store %s: %v", cacheKey, err)
	}

	return result, nil
}

// generateDealCacheKey creates a cache key from the normalized title and the price in cents.
// Format: "deals:{normalized_title}:{price_cents}"
func generateDealCacheKey(reference *domain.ReferenceProduct) string {
	cents := int64(math.Round(reference.Price * 100))
	return fmt.Sprintf("deals:%s:%d", NormalizeTitle(reference.Title), cents)
}

// getFromCache retrieves a deal result from cache
func (s *DealService) getFromCache(ctx context.Context, key string) (*domain.DealResult, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if result, ok := value.(*domain.DealResult); ok {
		copied := *result
		return &copied, nil
	}

	// Caches that round-trip through JSON hand back generic maps
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, domain.ErrCacheMiss
	}
	var result domain.DealResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return &result, nil
}

// setInCache stores a deal result in cache
func (s *DealService) setInCache(ctx context.Context, key string, result *domain.DealResult) error {
	if s.cache == nil {
		return nil
	}
	result.CachedAt = time.Now().UTC()
	return s.cache.Set(ctx, key, result, s.cacheTTL)
}
