package domain

import "time"

// Key types used by stored records
const (
	KeyTypeASIN      = "asin"
	KeyTypeProductID = "product_id"
)

// MatchRecord caches the deal-scoring outcome for one catalog product
type MatchRecord struct {
	Key        string           `json:"key_val"`
	KeyType    string           `json:"key_type"`
	CheckedAt  time.Time        `json:"checked_at"`
	MatchFound bool             `json:"match_found"`
	Miss       bool             `json:"miss,omitempty"`
	Error      string           `json:"err,omitempty"`
	Reference  ReferenceProduct `json:"reference"`
	BestMatch  *ScoredOffer     `json:"best_match,omitempty"`
	Deals      []ScoredOffer    `json:"best_deals,omitempty"`
}

// LinkRecord caches the best title match for one catalog product
type LinkRecord struct {
	Key           string     `json:"key_val"`
	KeyType       string     `json:"key_type"`
	CheckedAt     time.Time  `json:"checked_at"`
	Miss          bool       `json:"miss,omitempty"`
	Error         string     `json:"err,omitempty"`
	LastTitle     string     `json:"last_title,omitempty"`
	LastBrand     string     `json:"last_brand,omitempty"`
	Linked        *BestMatch `json:"linked,omitempty"`
	Price         float64    `json:"price,omitempty"`
	BrandRequired bool       `json:"brand_required"`
}

// Deal is a listing row joining a reference product with its cached offers
type Deal struct {
	Reference       ReferenceProduct `json:"reference"`
	Offers          []ScoredOffer    `json:"offers"`
	SavingsAbsolute float64          `json:"savings_abs"`
	SavingsPercent  float64          `json:"savings_pct"`
}

// WebResult is a general web or shopping result used to resolve merchant links
type WebResult struct {
	Title   string   `json:"title"`
	Link    string   `json:"link"`
	Snippet string   `json:"snippet,omitempty"`
	Source  string   `json:"source,omitempty"`
	Price   *float64 `json:"price,omitempty"`
}

// WebSearchResult splits web search results into shopping and organic lists
type WebSearchResult struct {
	Shopping []WebResult
	Organic  []WebResult
}
