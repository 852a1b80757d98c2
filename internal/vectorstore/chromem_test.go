package vectorstore

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEmbedding maps text onto a small fixed vocabulary so similarity is
// deterministic: shared words mean closer vectors.
func testEmbedding(ctx context.Context, text string) ([]float32, error) {
	vocabulary := []string{"badminton", "tournament", "workshop", "logistics", "media", "fair", "music"}
	vec := make([]float32, len(vocabulary)+1)
	lower := strings.ToLower(text)
	for i, word := range vocabulary {
		vec[i] = float32(strings.Count(lower, word))
	}
	// A shared component keeps zero-overlap texts from being orthogonal
	// while still ranking below any real overlap.
	vec[len(vocabulary)] = 0.1

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{}, testEmbedding, zap.NewNop())
	require.NoError(t, err)
	return store
}

func doc(id, content, group string) Document {
	return Document{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			MetaGroup: group,
		},
	}
}

func TestNewChromemStore(t *testing.T) {
	t.Run("requires an embedding function", func(t *testing.T) {
		_, err := NewChromemStore(ChromemConfig{}, nil, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("defaults the collection name", func(t *testing.T) {
		store := newTestStore(t)
		assert.Equal(t, "event_kb", store.config.Collection)
	})
}

func TestAddDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty batches", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.AddDocuments(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyDocuments)
	})

	t.Run("rejects documents without IDs", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.AddDocuments(ctx, []Document{{Content: "no id"}})
		assert.Error(t, err)
	})

	t.Run("stores and returns IDs", func(t *testing.T) {
		store := newTestStore(t)
		ids, err := store.AddDocuments(ctx, []Document{
			doc("a", "a badminton tournament", "user_event"),
			doc("b", "a media workshop", "pattern"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.AddDocuments(ctx, []Document{
		doc("badminton", "a badminton tournament for students", "user_event"),
		doc("workshop", "a media workshop with guest speakers", "pattern"),
		doc("fair", "a spring job fair with music", "pattern"),
	})
	require.NoError(t, err)

	t.Run("rejects blank queries and bad topK", func(t *testing.T) {
		_, err := store.Query(ctx, "  ", 4)
		assert.Error(t, err)
		_, err = store.Query(ctx, "badminton", 0)
		assert.Error(t, err)
	})

	t.Run("ranks by similarity", func(t *testing.T) {
		results, err := store.Query(ctx, "badminton tournament", 3)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "badminton", results[0].ID)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
		}
	})

	t.Run("filters by group", func(t *testing.T) {
		results, err := store.Query(ctx, "workshop media", 3, "pattern")
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, "pattern", r.Group())
		}
	})

	t.Run("multiple groups merge and dedupe", func(t *testing.T) {
		results, err := store.Query(ctx, "badminton workshop", 3, "user_event", "pattern")
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, r := range results {
			assert.False(t, seen[r.ID], "no duplicate IDs")
			seen[r.ID] = true
		}
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
		}
	})

	t.Run("topK larger than collection is fine", func(t *testing.T) {
		results, err := store.Query(ctx, "music fair", 50)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), 3)
	})
}

func TestQueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryResultGroup(t *testing.T) {
	r := QueryResult{Metadata: map[string]string{MetaGroup: "user_event"}}
	assert.Equal(t, "user_event", r.Group())
	assert.Empty(t, QueryResult{}.Group())
}
