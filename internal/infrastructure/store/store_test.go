package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/backend/internal/domain"
)

// exerciseDocumentStore runs the behaviour every DocumentStore must share.
// collection should be unique to the caller.
func exerciseDocumentStore(t *testing.T, s domain.DocumentStore, collection string) {
	t.Helper()
	ctx := context.Background()

	_, err := s.DeleteAll(ctx, collection)
	require.NoError(t, err)

	t.Run("get missing document", func(t *testing.T) {
		var out domain.ReferenceProduct
		err := s.Get(ctx, collection, "missing", &out)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("upsert and get round trip", func(t *testing.T) {
		product := domain.ReferenceProduct{ID: "B001", Title: "Acme Clipper", Price: 29.99, Brand: "Acme"}
		require.NoError(t, s.Upsert(ctx, collection, "B001", product))

		var out domain.ReferenceProduct
		require.NoError(t, s.Get(ctx, collection, "B001", &out))
		assert.Equal(t, product.Title, out.Title)
		assert.Equal(t, product.Price, out.Price)

		product.Price = 24.99
		require.NoError(t, s.Upsert(ctx, collection, "B001", product))
		require.NoError(t, s.Get(ctx, collection, "B001", &out))
		assert.Equal(t, 24.99, out.Price)
	})

	t.Run("list is most recent first", func(t *testing.T) {
		for _, id := range []string{"B002", "B003", "B004"} {
			require.NoError(t, s.Upsert(ctx, collection, id, domain.ReferenceProduct{ID: id, Title: id, Price: 1}))
			time.Sleep(2 * time.Millisecond)
		}
		// Touching B002 moves it to the front
		require.NoError(t, s.Upsert(ctx, collection, "B002", domain.ReferenceProduct{ID: "B002", Title: "B002", Price: 2}))

		docs, err := s.List(ctx, collection, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"B002", "B004", "B003", "B001"}, ids(t, docs))

		docs, err = s.List(ctx, collection, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"B002", "B004"}, ids(t, docs))
	})

	t.Run("delete all", func(t *testing.T) {
		n, err := s.DeleteAll(ctx, collection)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		docs, err := s.List(ctx, collection, 0)
		require.NoError(t, err)
		assert.Empty(t, docs)

		n, err = s.DeleteAll(ctx, collection)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func ids(t *testing.T, docs []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		var p domain.ReferenceProduct
		require.NoError(t, json.Unmarshal(doc, &p))
		out = append(out, p.ID)
	}
	return out
}
