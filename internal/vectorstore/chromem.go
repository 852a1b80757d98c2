package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemConfig holds configuration for the chromem-go embedded store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory,
	// which the tests rely on.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the knowledge-base collection name.
	// Default: "event_kb"
	Collection string
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "event_kb"
	}
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database: pure Go, no external service,
// with optional gob persistence. One collection holds the whole knowledge
// base; kb_group metadata partitions it into retrieval tiers.
type ChromemStore struct {
	db        *chromem.DB
	embedding chromem.EmbeddingFunc
	config    ChromemConfig
	logger    *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given embedding function.
func NewChromemStore(cfg ChromemConfig, embedding chromem.EmbeddingFunc, logger *zap.Logger) (*ChromemStore, error) {
	if embedding == nil {
		return nil, fmt.Errorf("%w: embedding function is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	store := &ChromemStore{
		db:        db,
		embedding: embedding,
		config:    cfg,
		logger:    logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Bool("compress", cfg.Compress))

	return store, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// AddDocuments embeds and stores documents in the knowledge collection.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embedding)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", s.config.Collection, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return nil, fmt.Errorf("%w: document %d has no ID", ErrEmptyDocuments, i)
		}
		ids[i] = doc.ID
		chromemDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		}
	}

	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	s.logger.Debug("added documents to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)))

	return ids, nil
}

// Query performs a similarity query, optionally scoped to knowledge groups.
// Multiple groups are queried separately and merged by ascending distance,
// since chromem's where filter is a single exact match per key.
func (s *ChromemStore) Query(ctx context.Context, query string, topK int, groups ...string) ([]QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	// A collection that was never indexed behaves like an empty one.
	collection := s.db.GetCollection(s.config.Collection, s.embedding)
	if collection == nil || collection.Count() == 0 {
		return []QueryResult{}, nil
	}

	if len(groups) == 0 {
		return s.queryOnce(ctx, collection, query, topK, nil)
	}

	var merged []QueryResult
	seen := make(map[string]bool)
	for _, group := range groups {
		results, err := s.queryOnce(ctx, collection, query, topK, map[string]string{MetaGroup: group})
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if !seen[r.ID] {
				seen[r.ID] = true
				merged = append(merged, r)
			}
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Distance < merged[j].Distance })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

func (s *ChromemStore) queryOnce(ctx context.Context, collection *chromem.Collection, query string, topK int, where map[string]string) ([]QueryResult, error) {
	// chromem requires nResults <= the filtered document count; cap at the
	// collection size and let the error path below absorb smaller filtered
	// sets.
	k := topK
	if count := collection.Count(); k > count {
		k = count
	}
	if k == 0 {
		return []QueryResult{}, nil
	}

	results, err := collection.Query(ctx, query, k, where, nil)
	if err != nil {
		// chromem errors when nResults exceeds the number of documents
		// matching the filter; an empty tier is a normal outcome here.
		if strings.Contains(err.Error(), "nResults") {
			return []QueryResult{}, nil
		}
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	out := make([]QueryResult, len(results))
	for i, r := range results {
		out[i] = QueryResult{
			ID:       r.ID,
			Content:  r.Content,
			Distance: 1 - float64(r.Similarity),
			Metadata: r.Metadata,
		}
	}

	s.logger.Debug("queried chromem collection",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("results", len(out)))

	return out, nil
}

// Close releases store resources. chromem holds no connections; persistence
// is written through on every mutation.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)
