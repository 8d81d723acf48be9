package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dealscout/backend/internal/domain"
)

// Indexing defaults
const (
	defaultIndexLimit        = 300
	defaultIndexCallDelay    = 400 * time.Millisecond
	defaultIndexConcurrency  = 1
	defaultLinkLimit         = 300
	defaultLinkRecacheHours  = 48
	defaultLinkMaxCalls      = 200
	defaultLinkCallDelay     = 350 * time.Millisecond
	defaultDealListLimit     = 100
	dealListScanFactor       = 5
	listingMinSavingsAbs     = 2.0
	listingMinSavingsPercent = 5.0
)

// IndexDealsRequest describes one deal indexing run
type IndexDealsRequest struct {
	CatalogCollection string
	MatchCollection   string
	LimitItems        int
	PerCallDelay      time.Duration
	Concurrency       int
}

// IndexReport summarizes a deal indexing run
type IndexReport struct {
	RunID     string `json:"run_id"`
	Processed int64  `json:"processed"`
	Misses    int64  `json:"misses"`
	Skipped   int64  `json:"skipped"`
	Total     int    `json:"total_in_catalog"`
}

// LinkRequest describes one catalog linking run
type LinkRequest struct {
	CatalogCollection string        `json:"-"`
	LinkCollection    string        `json:"-"`
	Keyword           string        `json:"kw"`
	LimitItems        int           `json:"limit_items"`
	RecacheHours      int           `json:"recache_hours"`
	MaxCalls          int           `json:"max_serp_calls"`
	MinSimilarity     *float64      `json:"min_similarity"`
	RequireBrand      *bool         `json:"require_brand"`
	PerCallDelay      time.Duration `json:"-"`
}

// LinkReport summarizes a catalog linking run
type LinkReport struct {
	Considered    int     `json:"considered"`
	Queued        int     `json:"queued"`
	FetchedNow    int     `json:"fetched_now"`
	Misses        int     `json:"misses"`
	SkippedNoID   int     `json:"skipped_no_id"`
	Threshold     float64 `json:"threshold"`
	BrandRequired bool    `json:"brand_required"`
	RecacheHours  int     `json:"recache_hours"`
}

// IndexServiceConfig holds configuration for the index service
type IndexServiceConfig struct {
	PerCallDelay       time.Duration
	Concurrency        int
	LinkPerCallDelay   time.Duration
	RecacheHours       int
	MaxCalls           int
	EnableDebugLogging bool
}

// IndexService runs the batch workflows over a catalog collection
type IndexService struct {
	store    domain.DocumentStore
	shopping domain.SearchProvider
	catalog  domain.CatalogSource
	scorer   *ScoringService
	matcher  *MatchingService
	config   IndexServiceConfig
}

// NewIndexService creates a new index service with dependencies
func NewIndexService(
	store domain.DocumentStore,
	shopping domain.SearchProvider,
	catalog domain.CatalogSource,
	scorer *ScoringService,
	matcher *MatchingService,
	config IndexServiceConfig,
) *IndexService {
	if config.PerCallDelay <= 0 {
		config.PerCallDelay = defaultIndexCallDelay
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultIndexConcurrency
	}
	if config.LinkPerCallDelay <= 0 {
		config.LinkPerCallDelay = defaultLinkCallDelay
	}
	if config.RecacheHours <= 0 {
		config.RecacheHours = defaultLinkRecacheHours
	}
	if config.MaxCalls <= 0 {
		config.MaxCalls = defaultLinkMaxCalls
	}

	return &IndexService{
		store:    store,
		shopping: shopping,
		catalog:  catalog,
		scorer:   scorer,
		matcher:  matcher,
		config:   config,
	}
}

// IndexDeals scores every catalog product that has no match document yet and
// stores the outcome, hit or miss. Upstream failures become miss records.
// Store failures and cancellation abort the run.
func (s *IndexService) IndexDeals(ctx context.Context, req IndexDealsRequest) (*IndexReport, error) {
	if req.CatalogCollection == "" || req.MatchCollection == "" {
		return nil, fmt.Errorf("%w: catalog and match collections are required", domain.ErrInvalidRequest)
	}
	limit := req.LimitItems
	if limit <= 0 {
		limit = defaultIndexLimit
	}
	delay := req.PerCallDelay
	if delay <= 0 {
		delay = s.config.PerCallDelay
	}
	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.config.Concurrency
	}

	products, err := loadProducts(ctx, s.store, req.CatalogCollection, limit)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log.Printf("[INDEX] Run %s: %d products from %s -> %s (concurrency %d, delay %s)",
		runID, len(products), req.CatalogCollection, req.MatchCollection, concurrency, delay)

	limiter := rate.NewLimiter(rate.Every(delay), 1)

	var processed, misses, skipped atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, product := range products {
		if product.ID == "" {
			skipped.Add(1)
			continue
		}

		product := product
		g.Go(func() error {
			var existing domain.MatchRecord
			err := s.store.Get(gCtx, req.MatchCollection, product.ID, &existing)
			if err == nil {
				skipped.Add(1)
				return nil
			}
			if !errors.Is(err, domain.ErrDocumentNotFound) {
				return fmt.Errorf("load match %s: %w", product.ID, err)
			}

			if err := limiter.Wait(gCtx); err != nil {
				return err
			}

			record, err := s.indexProduct(gCtx, product)
			if err != nil {
				return err
			}

			if err := s.store.Upsert(gCtx, req.MatchCollection, product.ID, record); err != nil {
				return fmt.Errorf("store match %s: %w", product.ID, err)
			}

			if record.Miss {
				misses.Add(1)
			} else {
				processed.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &IndexReport{
		RunID:     runID,
		Processed: processed.Load(),
		Misses:    misses.Load(),
		Skipped:   skipped.Load(),
		Total:     len(products),
	}

	log.Printf("[INDEX] Run %s done: processed=%d misses=%d skipped=%d",
		runID, report.Processed, report.Misses, report.Skipped)

	return report, nil
}

// indexProduct searches and scores one catalog product. The returned error is
// non-nil only for cancellation; everything else is folded into the record.
func (s *IndexService) indexProduct(ctx context.Context, product domain.ReferenceProduct) (*domain.MatchRecord, error) {
	record := &domain.MatchRecord{
		Key:       product.ID,
		KeyType:   domain.KeyTypeASIN,
		CheckedAt: time.Now().UTC(),
		Reference: product,
	}

	offers, err := s.shopping.Search(ctx, product.SearchQuery())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("[INDEX] Search failed for %s: %v", product.ID, err)
		record.Miss = true
		record.Error = upstreamErrorLabel(err)
		return record, nil
	}

	deals, err := s.scorer.ScoreOffers(ctx, &product, offers)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		record.Miss = true
		record.Error = err.Error()
		return record, nil
	}

	record.MatchFound = len(deals) > 0
	record.Deals = deals
	if len(deals) > 0 {
		top := deals[0]
		record.BestMatch = &top
	}

	if s.config.EnableDebugLogging {
		log.Printf("[INDEX] %s: %d offers, %d deals", product.ID, len(offers), len(deals))
	}
	return record, nil
}

// LinkByTitle finds the single best marketplace listing for each catalog product
// whose link record is missing or older than the re-cache window, spending at
// most MaxCalls searches. Hits and misses are both stored.
func (s *IndexService) LinkByTitle(ctx context.Context, req LinkRequest) (*LinkReport, error) {
	if req.CatalogCollection == "" || req.LinkCollection == "" {
		return nil, fmt.Errorf("%w: catalog and link collections are required", domain.ErrInvalidRequest)
	}

	var keyword *regexp.Regexp
	if req.Keyword != "" {
		re, err := regexp.Compile("(?i)" + req.Keyword)
		if err != nil {
			return nil, fmt.Errorf("%w: keyword: %v", domain.ErrInvalidRequest, err)
		}
		keyword = re
	}

	limit := req.LimitItems
	if limit <= 0 {
		limit = defaultLinkLimit
	}
	recacheHours := req.RecacheHours
	if recacheHours <= 0 {
		recacheHours = s.config.RecacheHours
	}
	maxCalls := req.MaxCalls
	if maxCalls <= 0 {
		maxCalls = s.config.MaxCalls
	}
	delay := req.PerCallDelay
	if delay <= 0 {
		delay = s.config.LinkPerCallDelay
	}
	matcher := s.matcher.WithOverrides(req.MinSimilarity, req.RequireBrand)

	products, err := s.linkCandidates(ctx, req.CatalogCollection, keyword, limit)
	if err != nil {
		return nil, err
	}

	report := &LinkReport{
		Considered:    len(products),
		Threshold:     matcher.MinSimilarity(),
		BrandRequired: matcher.RequireBrand(),
		RecacheHours:  recacheHours,
	}

	cutoff := time.Now().UTC().Add(-time.Duration(recacheHours) * time.Hour)
	var queue []domain.ReferenceProduct
	for _, product := range products {
		if product.ID == "" {
			report.SkippedNoID++
			continue
		}
		fresh, err := s.linkIsFresh(ctx, req.LinkCollection, product.ID, cutoff)
		if err != nil {
			return nil, err
		}
		if !fresh {
			queue = append(queue, product)
		}
	}
	if len(queue) > maxCalls {
		queue = queue[:maxCalls]
	}
	report.Queued = len(queue)

	limiter := rate.NewLimiter(rate.Every(delay), 1)

	for _, product := range queue {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		record := &domain.LinkRecord{
			Key:           product.ID,
			KeyType:       domain.KeyTypeProductID,
			CheckedAt:     time.Now().UTC(),
			LastTitle:     product.Title,
			LastBrand:     product.Brand,
			BrandRequired: matcher.RequireBrand() && product.Brand != "",
		}

		listings, err := s.catalog.SearchPage(ctx, product.SearchQuery(), 1)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Printf("[INDEX] Link search failed for %s: %v", product.ID, err)
			record.Miss = true
			record.Error = upstreamErrorLabel(err)
		default:
			best, err := matcher.SelectBestMatch(ctx, MatchQuery{Title: product.Title, Brand: product.Brand}, listings)
			switch {
			case errors.Is(err, domain.ErrNoMatch):
				record.Miss = true
			case err != nil:
				return nil, err
			default:
				record.Linked = best
				record.Price = best.Offer.Price
			}
		}

		if err := s.store.Upsert(ctx, req.LinkCollection, product.ID, record); err != nil {
			return nil, fmt.Errorf("store link %s: %w", product.ID, err)
		}
		if record.Miss {
			report.Misses++
		} else {
			report.FetchedNow++
		}
	}

	log.Printf("[INDEX] Linked %s -> %s: considered=%d queued=%d fetched=%d misses=%d",
		req.CatalogCollection, req.LinkCollection, report.Considered, report.Queued, report.FetchedNow, report.Misses)

	return report, nil
}

// linkCandidates loads catalog products with a title, optionally filtered by keyword
func (s *IndexService) linkCandidates(
	ctx context.Context,
	collection string,
	keyword *regexp.Regexp,
	limit int,
) ([]domain.ReferenceProduct, error) {
	// The keyword filter runs after loading, so scan the whole collection when one is set
	scanLimit := limit
	if keyword != nil {
		scanLimit = 0
	}

	products, err := loadProducts(ctx, s.store, collection, scanLimit)
	if err != nil {
		return nil, err
	}

	filtered := products[:0]
	for _, product := range products {
		if product.Title == "" {
			continue
		}
		if keyword != nil && !keyword.MatchString(product.Title) {
			continue
		}
		filtered = append(filtered, product)
		if len(filtered) >= limit {
			break
		}
	}
	return filtered, nil
}

// linkIsFresh reports whether a link record was checked at or after cutoff
func (s *IndexService) linkIsFresh(ctx context.Context, collection, key string, cutoff time.Time) (bool, error) {
	var record domain.LinkRecord
	err := s.store.Get(ctx, collection, key, &record)
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("load link %s: %w", key, err)
	}
	return !record.CheckedAt.Before(cutoff), nil
}

// ListDeals returns stored matches whose top offer beats the reference price by
// at least 2.00 and 5%, largest raw savings first.
func (s *IndexService) ListDeals(ctx context.Context, matchCollection string, limit int) ([]domain.Deal, error) {
	if matchCollection == "" {
		return nil, fmt.Errorf("%w: match collection is required", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = defaultDealListLimit
	}

	docs, err := s.store.List(ctx, matchCollection, limit*dealListScanFactor)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", matchCollection, err)
	}

	deals := make([]domain.Deal, 0)
	for _, doc := range docs {
		var record domain.MatchRecord
		if err := json.Unmarshal(doc, &record); err != nil {
			log.Printf("[INDEX] Skipping malformed match in %s: %v", matchCollection, err)
			continue
		}
		if !record.MatchFound || len(record.Deals) == 0 || record.Reference.Price <= 0 {
			continue
		}

		top := record.Deals[0]
		savings := record.Reference.Price - top.Price
		if savings < listingMinSavingsAbs {
			continue
		}
		pct := savings / record.Reference.Price * 100
		if pct < listingMinSavingsPercent {
			continue
		}

		deals = append(deals, domain.Deal{
			Reference:       record.Reference,
			Offers:          record.Deals,
			SavingsAbsolute: savings,
			SavingsPercent:  pct,
		})
		if len(deals) >= limit {
			break
		}
	}

	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].SavingsAbsolute > deals[j].SavingsAbsolute
	})

	return deals, nil
}

// upstreamErrorLabel renders an error for a stored miss record, e.g. "serpapi:429"
func upstreamErrorLabel(err error) string {
	if upstreamErr, ok := domain.AsUpstreamError(err); ok {
		if upstreamErr.Status > 0 {
			return fmt.Sprintf("serpapi:%d", upstreamErr.Status)
		}
		return "serpapi:" + upstreamErr.Kind.String()
	}
	return err.Error()
}
