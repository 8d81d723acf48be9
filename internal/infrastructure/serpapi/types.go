package serpapi

import (
	"bytes"
	"encoding/json"

	"github.com/dealscout/backend/internal/domain"
)

// shoppingResponse is the subset of a google_shopping or google response we read
type shoppingResponse struct {
	ShoppingResults []shoppingResult `json:"shopping_results"`
	OrganicResults  []organicResult  `json:"organic_results"`
}

type shoppingResult struct {
	Title          string            `json:"title"`
	Price          domain.PriceInput `json:"price"`
	ExtractedPrice domain.PriceInput `json:"extracted_price"`
	Source         source            `json:"source"`
	Link           string            `json:"link"`
	ProductLink    string            `json:"product_link"`
	Thumbnail      string            `json:"thumbnail"`
	Brand          string            `json:"brand"`
}

// price prefers extracted_price when it holds a non-zero value
func (r shoppingResult) price() (float64, bool) {
	if v, ok := r.ExtractedPrice.Value(); ok && v != 0 {
		return v, true
	}
	return r.Price.Value()
}

func (r shoppingResult) link() string {
	if r.Link != "" {
		return r.Link
	}
	return r.ProductLink
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// amazonResponse is the subset of an amazon engine response we read
type amazonResponse struct {
	OrganicResults []amazonResult `json:"organic_results"`
}

type amazonResult struct {
	ASIN        string            `json:"asin"`
	Title       string            `json:"title"`
	Price       domain.PriceInput `json:"price"`
	Brand       string            `json:"brand"`
	Link        string            `json:"link"`
	ProductLink string            `json:"product_link"`
	Thumbnail   string            `json:"thumbnail"`
	Image       string            `json:"image"`
	Badge       string            `json:"badge"`
	Sponsored   bool              `json:"sponsored"`
}

func (r amazonResult) listing() domain.Listing {
	link := r.Link
	if link == "" {
		link = r.ProductLink
	}
	thumbnail := r.Thumbnail
	if thumbnail == "" {
		thumbnail = r.Image
	}
	return domain.Listing{
		ExternalID: r.ASIN,
		Title:      r.Title,
		Brand:      r.Brand,
		Price:      r.Price,
		Link:       link,
		Thumbnail:  thumbnail,
		Badge:      r.Badge,
		Sponsored:  r.Sponsored,
	}
}

// source is either a merchant string or a {link, name} object
type source string

func (s *source) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = ""
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = source(v)
		return nil
	}

	if data[0] == '{' {
		var v struct {
			Link string `json:"link"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if v.Link != "" {
			*s = source(v.Link)
		} else {
			*s = source(v.Name)
		}
	}
	return nil
}
