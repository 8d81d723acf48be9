package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/dealscout/backend/internal/domain"
)

const searchPath = "/search.json"

// Merchant labels stamped on candidate offers
const (
	MerchantGoogleShopping = "google_shopping"
	MerchantAmazon         = "amazon"
)

// Fetcher is the transport used by the providers
type Fetcher interface {
	Fetch(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
}

// ShoppingProvider searches the google_shopping engine
type ShoppingProvider struct {
	fetcher Fetcher
}

// NewShoppingProvider creates a Google Shopping search provider
func NewShoppingProvider(fetcher Fetcher) *ShoppingProvider {
	return &ShoppingProvider{fetcher: fetcher}
}

// Search returns offers with a title and a parseable price
func (p *ShoppingProvider) Search(ctx context.Context, query string) ([]domain.CandidateOffer, error) {
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)
	params.Set("hl", "en")
	params.Set("gl", "us")
	params.Set("product_link", "true")

	raw, err := p.fetcher.Fetch(ctx, searchPath, params)
	if err != nil {
		return nil, err
	}

	var resp shoppingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode google_shopping response: %w", err)
	}

	offers := make([]domain.CandidateOffer, 0, len(resp.ShoppingResults))
	for _, r := range resp.ShoppingResults {
		price, ok := r.price()
		if !ok || r.Title == "" {
			continue
		}
		offers = append(offers, domain.CandidateOffer{
			Merchant:     MerchantGoogleShopping,
			SourceDomain: string(r.Source),
			Title:        r.Title,
			Price:        price,
			URL:          r.link(),
			Thumbnail:    r.Thumbnail,
			Brand:        r.Brand,
		})
	}

	log.Printf("[SERPAPI] google_shopping %q: %d results, %d priced offers", query, len(resp.ShoppingResults), len(offers))
	return offers, nil
}

// AmazonProvider pages through the amazon engine
type AmazonProvider struct {
	fetcher Fetcher
	domain  string
}

// NewAmazonProvider creates an Amazon search source; marketplace defaults to amazon.com
func NewAmazonProvider(fetcher Fetcher, marketplace string) *AmazonProvider {
	if marketplace == "" {
		marketplace = "amazon.com"
	}
	return &AmazonProvider{fetcher: fetcher, domain: marketplace}
}

// SearchPage returns the raw listings of one result page
func (p *AmazonProvider) SearchPage(ctx context.Context, query string, page int) ([]domain.Listing, error) {
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("engine", "amazon")
	params.Set("amazon_domain", p.domain)
	params.Set("k", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("gl", "us")
	params.Set("hl", "en")

	raw, err := p.fetcher.Fetch(ctx, searchPath, params)
	if err != nil {
		return nil, err
	}

	var resp amazonResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode amazon response: %w", err)
	}

	listings := make([]domain.Listing, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		listings = append(listings, r.listing())
	}
	return listings, nil
}

// Search adapts the first result page to domain.SearchProvider
func (p *AmazonProvider) Search(ctx context.Context, query string) ([]domain.CandidateOffer, error) {
	listings, err := p.SearchPage(ctx, query, 1)
	if err != nil {
		return nil, err
	}

	offers := make([]domain.CandidateOffer, 0, len(listings))
	for _, l := range listings {
		if offer, ok := l.Offer(MerchantAmazon); ok {
			offer.SourceDomain = p.domain
			offers = append(offers, offer)
		}
	}
	return offers, nil
}

// WebSearchProvider runs the general google engine for merchant link resolution
type WebSearchProvider struct {
	fetcher Fetcher
}

// NewWebSearchProvider creates a Google web search provider
func NewWebSearchProvider(fetcher Fetcher) *WebSearchProvider {
	return &WebSearchProvider{fetcher: fetcher}
}

// WebSearch returns shopping and organic results; entries without a link are dropped
func (p *WebSearchProvider) WebSearch(ctx context.Context, query string) (*domain.WebSearchResult, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("hl", "en")
	params.Set("gl", "us")

	raw, err := p.fetcher.Fetch(ctx, searchPath, params)
	if err != nil {
		return nil, err
	}

	var resp shoppingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode google response: %w", err)
	}

	result := &domain.WebSearchResult{}
	for _, r := range resp.ShoppingResults {
		link := r.link()
		if link == "" {
			continue
		}
		web := domain.WebResult{Title: r.Title, Link: link, Source: string(r.Source)}
		if price, ok := r.price(); ok {
			web.Price = &price
		}
		result.Shopping = append(result.Shopping, web)
	}
	for _, r := range resp.OrganicResults {
		if r.Link == "" {
			continue
		}
		result.Organic = append(result.Organic, domain.WebResult{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return result, nil
}
