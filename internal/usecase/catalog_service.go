package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dealscout/backend/internal/domain"
)

// Ingest limits
const (
	maxIngestPages          = 10
	defaultIngestMaxProduct = 100
	defaultIngestPageDelay  = 500 * time.Millisecond
)

// Bundle listings are skipped at ingest so catalog products are single units
var (
	bundleCountRegex = regexp.MustCompile(`\b\d+\s*-?\s*(pack|ct|count)\b`)
	bundlePkRegex    = regexp.MustCompile(`\b\d+\s*pk\b`)
	bundleTimesRegex = regexp.MustCompile(`\b\d+\s*x\s*\d+`)
)

// IngestRequest describes one catalog ingest run
type IngestRequest struct {
	Query       string `json:"query" binding:"required"`
	Pages       int    `json:"pages"`
	MaxProducts int    `json:"max_products"`
	Collection  string `json:"collection"`
}

// IngestReport summarizes an ingest run
type IngestReport struct {
	Query          string `json:"query"`
	Collection     string `json:"collection"`
	PagesRequested int    `json:"pages_requested"`
	PagesFetched   int    `json:"pages_fetched"`
	PageErrors     int    `json:"page_errors"`
	Total          int    `json:"total"`
}

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	DefaultCollection string
	PageDelay         time.Duration
}

// CatalogService pulls reference products into a catalog collection
type CatalogService struct {
	source            domain.CatalogSource
	store             domain.DocumentStore
	defaultCollection string
	pageDelay         time.Duration
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	source domain.CatalogSource,
	store domain.DocumentStore,
	config CatalogServiceConfig,
) *CatalogService {
	// Zero means the default pacing; negative disables it
	pageDelay := config.PageDelay
	switch {
	case pageDelay == 0:
		pageDelay = defaultIngestPageDelay
	case pageDelay < 0:
		pageDelay = 0
	}

	return &CatalogService{
		source:            source,
		store:             store,
		defaultCollection: config.DefaultCollection,
		pageDelay:         pageDelay,
	}
}

// Ingest fetches search result pages and upserts every single-unit listing
// with an ID, title and parseable price. Page failures are counted, not fatal.
func (s *CatalogService) Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if req.Pages == 0 {
		req.Pages = 1
	}
	if req.Pages < 1 || req.Pages > maxIngestPages {
		return nil, fmt.Errorf("%w: pages must be between 1 and %d", domain.ErrInvalidRequest, maxIngestPages)
	}
	if req.MaxProducts <= 0 {
		req.MaxProducts = defaultIngestMaxProduct
	}
	collection := req.Collection
	if collection == "" {
		collection = s.defaultCollection
	}
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", domain.ErrInvalidRequest)
	}

	report := &IngestReport{
		Query:          req.Query,
		Collection:     collection,
		PagesRequested: req.Pages,
	}

	// One page per pageDelay, first page immediately
	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.pageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.pageDelay), 1)
	}

	for page := 1; page <= req.Pages; page++ {
		if report.Total >= req.MaxProducts {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		listings, err := s.source.SearchPage(ctx, req.Query, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Printf("[CATALOG] Page %d of %q failed: %v", page, req.Query, err)
			report.PageErrors++
			continue
		}
		report.PagesFetched++

		for _, listing := range listings {
			if report.Total >= req.MaxProducts {
				break
			}

			product, ok := catalogProduct(listing)
			if !ok {
				continue
			}

			if err := s.upsertProduct(ctx, collection, product); err != nil {
				return nil, err
			}
			report.Total++
		}
	}

	log.Printf("[CATALOG] Ingested %d products for %q into %s (%d/%d pages, %d errors)",
		report.Total, req.Query, collection, report.PagesFetched, report.PagesRequested, report.PageErrors)

	return report, nil
}

// Clear deletes every document of the named collections, skipping empty names.
// The result maps collection name to deleted count.
func (s *CatalogService) Clear(ctx context.Context, collections ...string) (map[string]int64, error) {
	deleted := make(map[string]int64)
	for _, name := range collections {
		if name == "" {
			continue
		}
		n, err := s.store.DeleteAll(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("clear %s: %w", name, err)
		}
		deleted[name] = n
		log.Printf("[CATALOG] Cleared %d documents from %s", n, name)
	}
	return deleted, nil
}

// upsertProduct writes the product, keeping CreatedAt from an existing document
func (s *CatalogService) upsertProduct(ctx context.Context, collection string, product domain.ReferenceProduct) error {
	now := time.Now().UTC()

	var existing domain.ReferenceProduct
	err := s.store.Get(ctx, collection, product.ID, &existing)
	switch {
	case err == nil && !existing.CreatedAt.IsZero():
		product.CreatedAt = existing.CreatedAt
	case err == nil || errors.Is(err, domain.ErrDocumentNotFound):
		product.CreatedAt = now
	default:
		return fmt.Errorf("load %s/%s: %w", collection, product.ID, err)
	}
	product.UpdatedAt = now

	if err := s.store.Upsert(ctx, collection, product.ID, product); err != nil {
		return fmt.Errorf("store %s/%s: %w", collection, product.ID, err)
	}
	return nil
}

// catalogProduct converts a listing into a catalog product; ok is false for
// listings without ID, title or price and for multipack or bundle listings.
func catalogProduct(listing domain.Listing) (domain.ReferenceProduct, bool) {
	price, ok := listing.Price.Value()
	if listing.ExternalID == "" || listing.Title == "" || !ok || price <= 0 {
		return domain.ReferenceProduct{}, false
	}
	if isBundleTitle(listing.Title) {
		return domain.ReferenceProduct{}, false
	}

	return domain.ReferenceProduct{
		ID:        listing.ExternalID,
		Title:     listing.Title,
		Price:     price,
		Brand:     listing.Brand,
		ImageURL:  listing.Thumbnail,
		Thumbnail: listing.Thumbnail,
		URL:       listing.Link,
	}, true
}

// isBundleTitle reports multipack, count and size-bundle titles
func isBundleTitle(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "pack of") ||
		bundleCountRegex.MatchString(t) ||
		bundlePkRegex.MatchString(t) ||
		bundleTimesRegex.MatchString(t)
}

// loadProducts reads up to limit catalog products, most recently updated first
func loadProducts(ctx context.Context, store domain.DocumentStore, collection string, limit int) ([]domain.ReferenceProduct, error) {
	docs, err := store.List(ctx, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	products := make([]domain.ReferenceProduct, 0, len(docs))
	for _, doc := range docs {
		var product domain.ReferenceProduct
		if err := json.Unmarshal(doc, &product); err != nil {
			log.Printf("[CATALOG] Skipping malformed document in %s: %v", collection, err)
			continue
		}
		products = append(products, product)
	}
	return products, nil
}
