package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ReferenceProduct is the product a deal search starts from, e.g. an Amazon listing
type ReferenceProduct struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title" validate:"required"`
	Price     float64   `json:"price" validate:"required,gt=0"`
	Brand     string    `json:"brand,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate reports ErrInvalidRequest when the title is missing or the price is not positive.
func (p *ReferenceProduct) Validate() error {
	if p == nil {
		return ErrInvalidRequest
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Image returns the image reference used for perceptual comparison.
// Thumbnails win over full images because they are what providers return for candidates.
func (p *ReferenceProduct) Image() string {
	if p.Thumbnail != "" {
		return p.Thumbnail
	}
	return p.ImageURL
}

// SearchQuery is the provider query for this product: brand + title.
func (p *ReferenceProduct) SearchQuery() string {
	if p.Brand == "" {
		return p.Title
	}
	return strings.TrimSpace(p.Brand + " " + p.Title)
}

// CandidateOffer is a listing returned by a search provider
type CandidateOffer struct {
	Merchant     string  `json:"merchant"`
	SourceDomain string  `json:"source_domain,omitempty"`
	ExternalID   string  `json:"external_id,omitempty"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	URL          string  `json:"url,omitempty"`
	Thumbnail    string  `json:"thumbnail,omitempty"`
	Brand        string  `json:"brand,omitempty"`
	Sponsored    bool    `json:"sponsored,omitempty"`
}

// SizeInfo is the quantity information parsed from a title.
// NormalizedMass is in grams (milliliters count as grams); PackCount is at least 1.
type SizeInfo struct {
	NormalizedMass *float64 `json:"normalized_mass,omitempty"`
	PackCount      int      `json:"pack_count"`
}

// HasMass reports whether a mass/volume was found.
func (s SizeInfo) HasMass() bool {
	return s.NormalizedMass != nil
}

// TotalMass is mass times pack count; zero when no mass was found.
func (s SizeInfo) TotalMass() float64 {
	if s.NormalizedMass == nil {
		return 0
	}
	return *s.NormalizedMass * float64(max(1, s.PackCount))
}

// ScoredOffer is a candidate that passed similarity and savings filters
type ScoredOffer struct {
	CandidateOffer
	TextSimilarity     float64 `json:"sim"`
	ImageSimilarity    float64 `json:"img_sim"`
	CombinedSimilarity float64 `json:"combined_sim"`
	SavingsAbsolute    float64 `json:"savings_abs"`
	SavingsPercent     float64 `json:"savings_pct"`
}

// BestMatch is the single title-only candidate chosen as equivalent to a reference title
type BestMatch struct {
	Offer         CandidateOffer `json:"offer"`
	Similarity    float64        `json:"sim"`
	AdjustedScore float64        `json:"adjusted_score"`
}

// DealResult is the response of a deal search for one reference product
type DealResult struct {
	MatchFound bool             `json:"match_found"`
	Reference  ReferenceProduct `json:"reference"`
	Deals      []ScoredOffer    `json:"best_deals"`
	Source     string           `json:"source"` // "search" or "cache"
	CachedAt   time.Time        `json:"cached_at,omitempty"`
}

// Listing is a raw marketplace search result before its price is trusted
type Listing struct {
	ExternalID string     `json:"external_id,omitempty"`
	Title      string     `json:"title"`
	Brand      string     `json:"brand,omitempty"`
	Price      PriceInput `json:"price"`
	Link       string     `json:"link,omitempty"`
	Thumbnail  string     `json:"thumbnail,omitempty"`
	Badge      string     `json:"badge,omitempty"`
	Sponsored  bool       `json:"sponsored,omitempty"`
}

// IsSponsored reports a sponsored flag or a badge mentioning "sponsor".
func (l *Listing) IsSponsored() bool {
	return l.Sponsored || strings.Contains(strings.ToLower(l.Badge), "sponsor")
}

// Offer converts the listing into a CandidateOffer; ok is false without a title or parseable price.
func (l *Listing) Offer(merchant string) (CandidateOffer, bool) {
	price, ok := l.Price.Value()
	if l.Title == "" || !ok {
		return CandidateOffer{}, false
	}
	return CandidateOffer{
		Merchant:   merchant,
		ExternalID: l.ExternalID,
		Title:      l.Title,
		Price:      price,
		URL:        l.Link,
		Thumbnail:  l.Thumbnail,
		Brand:      l.Brand,
		Sponsored:  l.IsSponsored(),
	}, true
}
