package serpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/backend/internal/domain"
)

// MockFetcher returns a canned body and records the last call
type MockFetcher struct {
	body   string
	err    error
	path   string
	params url.Values
}

func (m *MockFetcher) Fetch(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	m.path = path
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(m.body), nil
}

func TestShoppingProvider_Search(t *testing.T) {
	fetcher := &MockFetcher{body: `{
		"shopping_results": [
			{"title": "Brand X Widget 16 oz", "price": "$9.99", "extracted_price": 8.49,
			 "source": "Walmart", "link": "https://walmart.com/ip/1", "thumbnail": "https://img/1.jpg"},
			{"title": "Brand X Widget", "price": "$1,299.00", "extracted_price": 0,
			 "source": {"link": "https://target.com", "name": "Target"}, "product_link": "https://google.com/p/2"},
			{"title": "Brand X Widget Refill", "price": {"raw": "$4.50"}, "source": {"name": "Kroger"}},
			{"title": "No Price Widget", "source": "Somewhere"},
			{"title": "", "extracted_price": 3}
		]
	}`}
	provider := NewShoppingProvider(fetcher)

	offers, err := provider.Search(context.Background(), "Acme Brand X Widget")
	require.NoError(t, err)

	assert.Equal(t, "/search.json", fetcher.path)
	assert.Equal(t, "google_shopping", fetcher.params.Get("engine"))
	assert.Equal(t, "Acme Brand X Widget", fetcher.params.Get("q"))
	assert.Equal(t, "true", fetcher.params.Get("product_link"))

	require.Len(t, offers, 3)

	assert.Equal(t, 8.49, offers[0].Price)
	assert.Equal(t, "Walmart", offers[0].SourceDomain)
	assert.Equal(t, "https://walmart.com/ip/1", offers[0].URL)
	assert.Equal(t, "https://img/1.jpg", offers[0].Thumbnail)
	assert.Equal(t, MerchantGoogleShopping, offers[0].Merchant)

	// Zero extracted_price falls back to the text price
	assert.Equal(t, 1299.0, offers[1].Price)
	assert.Equal(t, "https://target.com", offers[1].SourceDomain)
	assert.Equal(t, "https://google.com/p/2", offers[1].URL)

	assert.Equal(t, 4.5, offers[2].Price)
	assert.Equal(t, "Kroger", offers[2].SourceDomain)
}

func TestShoppingProvider_SearchErrors(t *testing.T) {
	upstream := &domain.UpstreamError{Kind: domain.UpstreamTimeout}
	_, err := NewShoppingProvider(&MockFetcher{err: upstream}).Search(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)

	_, err = NewShoppingProvider(&MockFetcher{body: `{"shopping_results": "nope"}`}).Search(context.Background(), "q")
	assert.Error(t, err)

	offers, err := NewShoppingProvider(&MockFetcher{body: `{}`}).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestAmazonProvider_SearchPage(t *testing.T) {
	fetcher := &MockFetcher{body: `{
		"organic_results": [
			{"asin": "B001", "title": "Acme Clipper", "price": "$29.99", "brand": "Acme",
			 "link": "https://amazon.com/dp/B001", "thumbnail": "https://m.media/1.jpg"},
			{"asin": "B002", "title": "Acme Trimmer", "extracted_price": 19.5, "price": {"value": 19.5},
			 "product_link": "https://amazon.com/dp/B002", "image": "https://m.media/2.jpg",
			 "badge": "Sponsored"},
			{"asin": "B003", "title": "Acme Shaver", "sponsored": true}
		]
	}`}
	provider := NewAmazonProvider(fetcher, "")

	listings, err := provider.SearchPage(context.Background(), "hair clippers", 3)
	require.NoError(t, err)

	assert.Equal(t, "amazon", fetcher.params.Get("engine"))
	assert.Equal(t, "amazon.com", fetcher.params.Get("amazon_domain"))
	assert.Equal(t, "hair clippers", fetcher.params.Get("k"))
	assert.Equal(t, "3", fetcher.params.Get("page"))

	require.Len(t, listings, 3)
	assert.Equal(t, "B001", listings[0].ExternalID)
	price, ok := listings[0].Price.Value()
	require.True(t, ok)
	assert.Equal(t, 29.99, price)
	assert.False(t, listings[0].IsSponsored())

	assert.Equal(t, "https://amazon.com/dp/B002", listings[1].Link)
	assert.Equal(t, "https://m.media/2.jpg", listings[1].Thumbnail)
	assert.True(t, listings[1].IsSponsored())

	assert.True(t, listings[2].IsSponsored())
	assert.False(t, listings[2].Price.Present())
}

func TestAmazonProvider_Search(t *testing.T) {
	fetcher := &MockFetcher{body: `{"organic_results": [
		{"asin": "B001", "title": "Acme Clipper", "price": "$29.99"},
		{"asin": "B002", "title": "Acme Unpriced"}
	]}`}
	provider := NewAmazonProvider(fetcher, "amazon.ca")

	offers, err := provider.Search(context.Background(), "clipper")
	require.NoError(t, err)
	assert.Equal(t, "1", fetcher.params.Get("page"))
	assert.Equal(t, "amazon.ca", fetcher.params.Get("amazon_domain"))

	require.Len(t, offers, 1)
	assert.Equal(t, MerchantAmazon, offers[0].Merchant)
	assert.Equal(t, "amazon.ca", offers[0].SourceDomain)
	assert.Equal(t, "B001", offers[0].ExternalID)
}

func TestWebSearchProvider_WebSearch(t *testing.T) {
	fetcher := &MockFetcher{body: `{
		"shopping_results": [
			{"title": "Huggies Wipes", "link": "https://walmart.com/ip/1", "source": "Walmart", "extracted_price": 9.97},
			{"title": "Huggies Wipes", "source": "Target"}
		],
		"organic_results": [
			{"title": "Huggies Wipes - Walmart.com", "link": "https://www.walmart.com/ip/2", "snippet": "$9.97"},
			{"title": "No link"}
		]
	}`}
	provider := NewWebSearchProvider(fetcher)

	result, err := provider.WebSearch(context.Background(), "walmart.com Huggies Wipes")
	require.NoError(t, err)
	assert.Equal(t, "google", fetcher.params.Get("engine"))

	require.Len(t, result.Shopping, 1)
	require.NotNil(t, result.Shopping[0].Price)
	assert.Equal(t, 9.97, *result.Shopping[0].Price)
	assert.Equal(t, "Walmart", result.Shopping[0].Source)

	require.Len(t, result.Organic, 1)
	assert.Equal(t, "$9.97", result.Organic[0].Snippet)
}

func TestProvidersOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		switch r.URL.Query().Get("engine") {
		case "google_shopping":
			w.Write([]byte(`{"shopping_results":[{"title":"Widget","extracted_price":5}]}`))
		case "amazon":
			w.Write([]byte(`{"organic_results":[{"asin":"B1","title":"Widget","price":"$6"}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL})

	offers, err := NewShoppingProvider(client).Search(context.Background(), "widget")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, 5.0, offers[0].Price)

	listings, err := NewAmazonProvider(client, "").SearchPage(context.Background(), "widget", 1)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	_, err = NewWebSearchProvider(client).WebSearch(context.Background(), "widget")
	upstreamErr, ok := domain.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, upstreamErr.Status)
}

func TestSourceUnmarshal(t *testing.T) {
	tests := map[string]string{
		`"Walmart"`:                           "Walmart",
		`{"link":"https://a.com","name":"A"}`: "https://a.com",
		`{"name":"B"}`:                        "B",
		`null`:                                "",
		`42`:                                  "",
	}
	for input, want := range tests {
		var s source
		require.NoError(t, json.Unmarshal([]byte(input), &s), input)
		if string(s) != want {
			t.Errorf("source(%s) = %q, want %q", input, s, want)
		}
	}
}
