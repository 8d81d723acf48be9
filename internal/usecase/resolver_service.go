package usecase

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dealscout/backend/internal/domain"
)

// Resolution weights: shopping results carry structured prices, organic results do not
const (
	shoppingTitleWeight = 0.75
	shoppingPriceWeight = 0.25
	organicTitleWeight  = 0.70
	organicPriceWeight  = 0.30
	minResolveScore     = 0.40
)

var dollarPriceRegex = regexp.MustCompile(`\$\s?(\d+(?:\.\d+)?)`)

// ResolverService resolves a merchant product URL from a domain and a title
type ResolverService struct {
	searcher domain.WebSearcher
}

// NewResolverService creates a new resolver service
func NewResolverService(searcher domain.WebSearcher) *ResolverService {
	return &ResolverService{searcher: searcher}
}

// Resolve searches the web for "domain title" and returns the best link on the
// merchant's domain, trying shopping results before organic ones. An empty
// string means nothing scored high enough.
func (s *ResolverService) Resolve(
	ctx context.Context,
	sourceDomain, title string,
	expectedPrice *float64,
) (string, error) {
	sourceDomain = strings.TrimSpace(sourceDomain)
	title = strings.TrimSpace(title)
	if sourceDomain == "" || title == "" {
		return "", fmt.Errorf("%w: source_domain and title required", domain.ErrInvalidRequest)
	}

	results, err := s.searcher.WebSearch(ctx, sourceDomain+" "+title)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}

	keyword := domainKeyword(sourceDomain)
	expectedTitle := strings.ToLower(title)

	bestLink, bestScore := "", -1.0
	for _, r := range results.Shopping {
		if r.Link == "" || !strings.Contains(strings.ToLower(r.Source), keyword) {
			continue
		}
		score := shoppingTitleWeight*titleRatio(r.Title, expectedTitle) +
			shoppingPriceWeight*priceSimilarity(r.Price, expectedPrice)
		if score > bestScore {
			bestLink, bestScore = r.Link, score
		}
	}
	if bestLink != "" && bestScore >= minResolveScore {
		log.Printf("[RESOLVE] %s %q -> %s (shopping, %.2f)", sourceDomain, title, bestLink, bestScore)
		return bestLink, nil
	}

	bestLink, bestScore = "", -1.0
	for _, r := range results.Organic {
		if r.Link == "" || !strings.Contains(strings.ToLower(r.Link), keyword) {
			continue
		}
		found := extractDollarPrice(r.Title + " " + r.Snippet)
		score := organicTitleWeight*titleRatio(r.Title, expectedTitle) +
			organicPriceWeight*priceSimilarity(found, expectedPrice)
		if score > bestScore {
			bestLink, bestScore = r.Link, score
		}
	}
	if bestLink != "" && bestScore >= minResolveScore {
		log.Printf("[RESOLVE] %s %q -> %s (organic, %.2f)", sourceDomain, title, bestLink, bestScore)
		return bestLink, nil
	}

	log.Printf("[RESOLVE] %s %q: no link above %.2f", sourceDomain, title, minResolveScore)
	return "", nil
}

// domainKeyword reduces "www.walmart.com" to "walmart"; "amazon.co.uk" becomes "amazon"
func domainKeyword(sourceDomain string) string {
	d := strings.ToLower(sourceDomain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/ "); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, "."); i > 0 {
		d = d[:i]
	}
	return d
}

// titleRatio is the 0-1 indel similarity of a lowercased title against the expected one
func titleRatio(title, expectedLower string) float64 {
	return IndelRatio(strings.ToLower(title), expectedLower) / 100
}

// priceSimilarity is 1 minus the relative price gap, floored at 0; 0 when either price is unknown
func priceSimilarity(found, expected *float64) float64 {
	if found == nil || expected == nil || *found <= 0 || *expected <= 0 {
		return 0
	}
	diff := math.Abs(*found-*expected) / math.Max(*expected, 1)
	return math.Max(0, 1-diff)
}

// extractDollarPrice returns the first "$X.XX" amount in text
func extractDollarPrice(text string) *float64 {
	m := dollarPriceRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
