package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dealscout/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string]interface{}
	getError  error
	setError  error
	getCalled bool
	setCalled bool
	lastTTL   time.Duration
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.setCalled = true
	m.lastTTL = ttl
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockSearchProvider is a mock implementation of domain.SearchProvider
type MockSearchProvider struct {
	mu      sync.Mutex
	offers  map[string][]domain.CandidateOffer
	errs    map[string]error
	queries []string
}

func NewMockSearchProvider() *MockSearchProvider {
	return &MockSearchProvider{
		offers: make(map[string][]domain.CandidateOffer),
		errs:   make(map[string]error),
	}
}

func (m *MockSearchProvider) Search(ctx context.Context, query string) ([]domain.CandidateOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if err, ok := m.errs[query]; ok {
		return nil, err
	}
	return m.offers[query], nil
}

func (m *MockSearchProvider) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// MockCatalogSource is a mock implementation of domain.CatalogSource
type MockCatalogSource struct {
	pages map[int][]domain.Listing
	byKey map[string][]domain.Listing
	errs  map[int]error
	calls []string
}

func NewMockCatalogSource() *MockCatalogSource {
	return &MockCatalogSource{
		pages: make(map[int][]domain.Listing),
		byKey: make(map[string][]domain.Listing),
		errs:  make(map[int]error),
	}
}

func (m *MockCatalogSource) SearchPage(ctx context.Context, query string, page int) ([]domain.Listing, error) {
	m.calls = append(m.calls, query)
	if err, ok := m.errs[page]; ok {
		return nil, err
	}
	if listings, ok := m.byKey[query]; ok {
		return listings, nil
	}
	return m.pages[page], nil
}

// MockWebSearcher is a mock implementation of domain.WebSearcher
type MockWebSearcher struct {
	result *domain.WebSearchResult
	err    error
	query  string
}

func (m *MockWebSearcher) WebSearch(ctx context.Context, query string) (*domain.WebSearchResult, error) {
	m.query = query
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// MockDocumentStore is a mock implementation of domain.DocumentStore
type MockDocumentStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]mockDoc
	seq    int
	getErr error
}

type mockDoc struct {
	body []byte
	seq  int
}

func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{docs: make(map[string]map[string]mockDoc)}
}

func (m *MockDocumentStore) Upsert(ctx context.Context, collection, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]mockDoc)
	}
	m.seq++
	m.docs[collection][key] = mockDoc{body: body, seq: m.seq}
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, key string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	doc, ok := m.docs[collection][key]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	return json.Unmarshal(doc.body, out)
}

func (m *MockDocumentStore) List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]mockDoc, 0, len(m.docs[collection]))
	for _, doc := range m.docs[collection] {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq > docs[j].seq })
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	out := make([]json.RawMessage, len(docs))
	for i, doc := range docs {
		out[i] = doc.body
	}
	return out, nil
}

func (m *MockDocumentStore) DeleteAll(ctx context.Context, collection string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.docs[collection]))
	delete(m.docs, collection)
	return n, nil
}

func (m *MockDocumentStore) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}
