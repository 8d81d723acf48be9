package usecase

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/dealscout/backend/internal/domain"
)

// Tie-break adjustments applied on top of title similarity
const (
	sponsoredPenalty    = 3.0 // Sponsored placements are often loosely related
	shortTitleBonus     = 2.0 // Shorter titles carry less keyword stuffing
	shortTitleMaxLength = 140
)

// Defaults used when MatchConfig leaves a value unset
const (
	defaultMinSimilarity = 86.0
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MinSimilarity      float64
	RequireBrand       bool
	EnableDebugLogging bool
}

// MatchQuery is the reference side of a title match
type MatchQuery struct {
	Title string
	Brand string
}

// MatchingService picks the single best title match among marketplace listings
type MatchingService struct {
	minSimilarity      float64
	requireBrand       bool
	enableDebugLogging bool
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	threshold := config.MinSimilarity
	if threshold <= 0 {
		threshold = defaultMinSimilarity
	}

	return &MatchingService{
		minSimilarity:      threshold,
		requireBrand:       config.RequireBrand,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// WithOverrides returns a copy using a per-call threshold and brand requirement.
// Nil arguments keep the configured values; an explicit 0 threshold accepts any similarity.
func (s *MatchingService) WithOverrides(minSimilarity *float64, requireBrand *bool) *MatchingService {
	clone := *s
	if minSimilarity != nil {
		clone.minSimilarity = *minSimilarity
	}
	if requireBrand != nil {
		clone.requireBrand = *requireBrand
	}
	return &clone
}

// MinSimilarity returns the active similarity threshold.
func (s *MatchingService) MinSimilarity() float64 {
	return s.minSimilarity
}

// RequireBrand reports whether brand presence is enforced.
func (s *MatchingService) RequireBrand() bool {
	return s.requireBrand
}

// SelectBestMatch returns the listing with the greatest adjusted score.
// Listings without a title or parseable price are skipped, as are listings below
// the similarity threshold and, when required, listings whose title lacks the brand.
// Ties keep the first listing seen. Returns domain.ErrNoMatch when nothing survives.
func (s *MatchingService) SelectBestMatch(
	ctx context.Context,
	query MatchQuery,
	listings []domain.Listing,
) (*domain.BestMatch, error) {
	if strings.TrimSpace(query.Title) == "" {
		return nil, domain.ErrInvalidRequest
	}

	referenceTitle := processForMatching(query.Title)
	normalizedBrand := normalizeBrand(query.Brand)

	var best *domain.BestMatch
	for _, listing := range listings {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		offer, ok := listing.Offer("")
		if !ok {
			continue
		}

		sim := TokenSetSimilarity(referenceTitle, processForMatching(offer.Title))
		if sim < s.minSimilarity {
			continue
		}

		if s.requireBrand && normalizedBrand != "" && !brandInTitle(normalizedBrand, offer.Title) {
			if s.enableDebugLogging {
				log.Printf("[MATCH] Brand %q missing from %q", normalizedBrand, offer.Title)
			}
			continue
		}

		adjusted := sim
		if offer.Sponsored {
			adjusted -= sponsoredPenalty
		}
		if utf8.RuneCountInString(offer.Title) < shortTitleMaxLength {
			adjusted += shortTitleBonus
		}

		if s.enableDebugLogging {
			log.Printf("[MATCH] Candidate: %q | Sim: %.1f | Adjusted: %.1f | Sponsored: %v",
				offer.Title, sim, adjusted, offer.Sponsored)
		}

		if best == nil || adjusted > best.AdjustedScore {
			best = &domain.BestMatch{
				Offer:         offer,
				Similarity:    sim,
				AdjustedScore: adjusted,
			}
		}
	}

	if best == nil {
		return nil, domain.ErrNoMatch
	}

	if s.enableDebugLogging {
		log.Printf("[MATCH] Best match: %q (sim: %.1f)", best.Offer.Title, best.Similarity)
	}

	return best, nil
}

// processForMatching lowercases and replaces punctuation with spaces, keeping every word
func processForMatching(s string) string {
	return strings.TrimSpace(nonAlphanumericRunRegex.ReplaceAllString(strings.ToLower(s), " "))
}

// normalizeBrand lowercases a brand and collapses non-alphanumerics to single spaces
func normalizeBrand(brand string) string {
	return processForMatching(brand)
}

// brandInTitle checks whether a normalized brand appears in the title as a
// substring, or whether any brand token is one of the title's tokens.
func brandInTitle(normalizedBrand, title string) bool {
	if normalizedBrand == "" || title == "" {
		return false
	}

	normalizedTitle := processForMatching(title)
	if strings.Contains(normalizedTitle, normalizedBrand) {
		return true
	}

	titleTokens := tokenSet(normalizedTitle)
	for _, token := range strings.Fields(normalizedBrand) {
		if titleTokens[token] {
			return true
		}
	}
	return false
}
