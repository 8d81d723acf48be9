package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/backend/internal/domain"
	"github.com/dealscout/backend/internal/usecase"
)

// Services bundles the usecases served over HTTP. Nil services answer 501.
type Services struct {
	Deals    *usecase.DealService
	Matcher  *usecase.MatchingService
	Scorer   *usecase.ScoringService
	Catalog  *usecase.CatalogService
	Indexer  *usecase.IndexService
	Resolver *usecase.ResolverService
}

// Collections are the default collection names used when a request omits them
type Collections struct {
	Catalog string
	Matches string
	Links   string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	services    Services
	collections Collections
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, collections Collections) *Handler {
	return &Handler{services: services, collections: collections}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "dealscout-backend",
		"version": "1.0.0",
	})
}

// FindDeals searches and scores offers for one reference product
func (h *Handler) FindDeals(c *gin.Context) {
	if h.services.Deals == nil {
		notConfigured(c, "deal search")
		return
	}

	var reference domain.ReferenceProduct
	if err := c.ShouldBindJSON(&reference); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.services.Deals.FindDeals(c.Request.Context(), &reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BestMatchRequest asks for the single best title match among listings
type BestMatchRequest struct {
	Title         string           `json:"title" binding:"required"`
	Brand         string           `json:"brand"`
	Candidates    []domain.Listing `json:"candidates"`
	MinSimilarity *float64         `json:"min_similarity"`
	RequireBrand  *bool            `json:"require_brand"`
}

// BestMatch runs the best-match selector over caller-supplied listings
func (h *Handler) BestMatch(c *gin.Context) {
	if h.services.Matcher == nil {
		notConfigured(c, "matching")
		return
	}

	var req BestMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	matcher := h.services.Matcher.WithOverrides(req.MinSimilarity, req.RequireBrand)

	match, err := matcher.SelectBestMatch(c.Request.Context(), usecase.MatchQuery{Title: req.Title, Brand: req.Brand}, req.Candidates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

// ScoreRequest scores caller-supplied candidates without searching
type ScoreRequest struct {
	Reference  domain.ReferenceProduct `json:"reference"`
	Candidates []domain.CandidateOffer `json:"candidates"`
}

// ScoreOffers runs the deal scoring pipeline directly
func (h *Handler) ScoreOffers(c *gin.Context) {
	if h.services.Scorer == nil {
		notConfigured(c, "scoring")
		return
	}

	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	deals, err := h.services.Scorer.ScoreOffers(c.Request.Context(), &req.Reference, req.Candidates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"match_found": len(deals) > 0,
		"best_deals":  deals,
	})
}

// IngestCatalog pulls marketplace search pages into a catalog collection
func (h *Handler) IngestCatalog(c *gin.Context) {
	if h.services.Catalog == nil {
		notConfigured(c, "catalog")
		return
	}

	var req usecase.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Collection = c.DefaultQuery("collection", firstNonEmpty(req.Collection, h.collections.Catalog))

	report, err := h.services.Catalog.Ingest(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// IndexDeals scores catalog products that have no stored match yet
func (h *Handler) IndexDeals(c *gin.Context) {
	if h.services.Indexer == nil {
		notConfigured(c, "indexing")
		return
	}

	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	report, err := h.services.Indexer.IndexDeals(c.Request.Context(), usecase.IndexDealsRequest{
		CatalogCollection: c.DefaultQuery("catalog", h.collections.Catalog),
		MatchCollection:   c.DefaultQuery("matches", h.collections.Matches),
		LimitItems:        limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// FullIngest runs a catalog ingest followed by deal indexing
func (h *Handler) FullIngest(c *gin.Context) {
	if h.services.Catalog == nil || h.services.Indexer == nil {
		notConfigured(c, "catalog indexing")
		return
	}

	var req usecase.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Collection = c.DefaultQuery("catalog", firstNonEmpty(req.Collection, h.collections.Catalog))

	ingest, err := h.services.Catalog.Ingest(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	index, err := h.services.Indexer.IndexDeals(c.Request.Context(), usecase.IndexDealsRequest{
		CatalogCollection: ingest.Collection,
		MatchCollection:   c.DefaultQuery("matches", h.collections.Matches),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingest": ingest,
		"index":  index,
	})
}

// LinkCatalog links catalog products to their best marketplace listing
func (h *Handler) LinkCatalog(c *gin.Context) {
	if h.services.Indexer == nil {
		notConfigured(c, "linking")
		return
	}

	var req usecase.LinkRequest
	// The body is optional; an empty one keeps every default
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	req.CatalogCollection = c.DefaultQuery("catalog", h.collections.Catalog)
	req.LinkCollection = c.DefaultQuery("links", h.collections.Links)

	report, err := h.services.Indexer.LinkByTitle(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListDeals returns stored deals ranked by savings
func (h *Handler) ListDeals(c *gin.Context) {
	if h.services.Indexer == nil {
		notConfigured(c, "deal listing")
		return
	}

	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	deals, err := h.services.Indexer.ListDeals(c.Request.Context(), c.DefaultQuery("matches", h.collections.Matches), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(deals),
		"deals": deals,
	})
}

// ResolveRequest identifies a product on a merchant site
type ResolveRequest struct {
	SourceDomain  string   `json:"source_domain"`
	Title         string   `json:"title"`
	ExpectedPrice *float64 `json:"expected_price"`
}

// ResolveMerchantURL finds the merchant's own product page
func (h *Handler) ResolveMerchantURL(c *gin.Context) {
	if h.services.Resolver == nil {
		notConfigured(c, "merchant resolution")
		return
	}

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	link, err := h.services.Resolver.Resolve(c.Request.Context(), req.SourceDomain, req.Title, req.ExpectedPrice)
	if err != nil {
		respondError(c, err)
		return
	}

	var resolved any
	if link != "" {
		resolved = link
	}
	c.JSON(http.StatusOK, gin.H{"resolved_url": resolved})
}

// ClearCollections deletes the named collections, defaulting to the configured ones
func (h *Handler) ClearCollections(c *gin.Context) {
	if h.services.Catalog == nil {
		notConfigured(c, "catalog")
		return
	}

	deleted, err := h.services.Catalog.Clear(c.Request.Context(),
		c.DefaultQuery("catalog", h.collections.Catalog),
		c.DefaultQuery("matches", h.collections.Matches),
		c.DefaultQuery("links", h.collections.Links),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// respondError maps domain and upstream errors to HTTP statuses
func respondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, body)
}

func errorResponse(err error) (int, gin.H) {
	if upstreamErr, ok := domain.AsUpstreamError(err); ok {
		body := gin.H{"error": upstreamErr.Error()}
		if upstreamErr.Body != "" {
			body["detail"] = upstreamErr.Body
		}
		switch upstreamErr.Kind {
		case domain.UpstreamRateLimited:
			return http.StatusTooManyRequests, body
		case domain.UpstreamTimeout:
			return http.StatusGatewayTimeout, body
		default:
			return http.StatusBadGateway, body
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.Is(err, domain.ErrNoMatch):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, gin.H{"error": "request timed out"}
	default:
		return http.StatusInternalServerError, gin.H{"error": err.Error()}
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}

func notConfigured(c *gin.Context, what string) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": what + " is not configured"})
}

// intQuery parses an optional integer query parameter, answering 400 when malformed
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return n, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
