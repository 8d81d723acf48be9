package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dealscout/backend/internal/domain"
)

// document is a stored JSON body with its write sequence
type document struct {
	body json.RawMessage
	seq  uint64
}

// MemoryStore is a thread-safe in-memory DocumentStore
type MemoryStore struct {
	collections map[string]map[string]document
	seq         uint64
	mutex       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]document),
	}
}

// Upsert stores doc as JSON under collection/key, replacing any previous version
func (s *MemoryStore) Upsert(ctx context.Context, collection, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, key, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]document)
		s.collections[collection] = docs
	}
	s.seq++
	docs[key] = document{body: body, seq: s.seq}
	return nil
}

// Get decodes the document at collection/key into out
func (s *MemoryStore) Get(ctx context.Context, collection, key string, out any) error {
	s.mutex.RLock()
	doc, ok := s.collections[collection][key]
	s.mutex.RUnlock()

	if !ok {
		return domain.ErrDocumentNotFound
	}
	return json.Unmarshal(doc.body, out)
}

// List returns up to limit documents, most recently written first.
// A limit of zero or less returns the whole collection.
func (s *MemoryStore) List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	s.mutex.RLock()
	docs := make([]document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, doc)
	}
	s.mutex.RUnlock()

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

// DeleteAll drops a collection and reports how many documents it held
func (s *MemoryStore) DeleteAll(ctx context.Context, collection string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := int64(len(s.collections[collection]))
	delete(s.collections, collection)
	return n, nil
}

// Count returns the number of documents in a collection
func (s *MemoryStore) Count(collection string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.collections[collection])
}
