// Package retrieval implements tiered retrieval over the knowledge store.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/vectorstore"
)

// ErrEmptyQuery is returned when the query string is blank.
var ErrEmptyQuery = errors.New("query is empty")

// Chunk is one retrieved knowledge snippet, consumed and discarded per query.
type Chunk struct {
	// Text is the embedded context snippet.
	Text string `json:"text"`

	// DocID identifies the source document in the store.
	DocID string `json:"doc_id"`

	// Group is the knowledge partition the chunk came from.
	Group string `json:"group"`

	// Distance is the dissimilarity score; lower means more relevant.
	Distance float64 `json:"distance"`

	// Doc is the full source document parsed from raw_json metadata,
	// nil when absent or unparseable.
	Doc map[string]any `json:"doc,omitempty"`

	// Kind is the document type tag from metadata, if any.
	Kind string `json:"kind,omitempty"`
}

// Config holds configuration for tiered retrieval.
type Config struct {
	// PrimaryGroup is the authoritative knowledge partition.
	// Default: "user_event"
	PrimaryGroup string

	// FallbackGroup supplies general-pattern evidence.
	// Default: "pattern"
	FallbackGroup string

	// TopKPrimary is the match budget for the primary tier (and for the
	// fallback tier when it replaces an empty primary).
	// Default: 4
	TopKPrimary int

	// TopKFallback is the supplementary match budget appended to a
	// non-empty primary tier.
	// Default: 2
	TopKFallback int

	// MaxDistance drops matches whose distance exceeds it. Matches with an
	// unknown distance are always dropped.
	// Default: 1.0
	MaxDistance float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.PrimaryGroup == "" {
		c.PrimaryGroup = "user_event"
	}
	if c.FallbackGroup == "" {
		c.FallbackGroup = "pattern"
	}
	if c.TopKPrimary == 0 {
		c.TopKPrimary = 4
	}
	if c.TopKFallback == 0 {
		c.TopKFallback = 2
	}
	if c.MaxDistance == 0 {
		c.MaxDistance = 1.0
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.TopKPrimary <= 0 {
		return fmt.Errorf("retrieval: top-k primary must be positive")
	}
	if c.TopKFallback < 0 {
		return fmt.Errorf("retrieval: top-k fallback must be non-negative")
	}
	if c.MaxDistance < 0 {
		return fmt.Errorf("retrieval: max distance must be non-negative")
	}
	return nil
}

// Engine queries the similarity store in tiers and filters by relevance.
type Engine struct {
	store  vectorstore.Store
	config Config
	logger *zap.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(store vectorstore.Store, cfg Config, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("retrieval: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{store: store, config: cfg, logger: logger}, nil
}

// Retrieve is the low-level primitive: a flat similarity query with no
// distance filtering, usable for ad hoc lookups. It fails only on a blank
// query; no matches is a normal empty result.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, groups ...string) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	results, err := e.store.Query(ctx, query, topK, groups...)
	if err != nil {
		return nil, fmt.Errorf("querying store: %w", err)
	}
	return toChunks(results), nil
}

// RetrieveForContext retrieves knowledge for a conversation turn in tiers.
//
// The primary group is queried first and filtered by MaxDistance. A
// non-empty primary set is authoritative and gets up to TopKFallback
// supplementary fallback matches appended, never replaced. An empty primary
// set falls back to the fallback group alone, re-using TopKPrimary as that
// tier's budget. An empty final result is normal, never an error.
func (e *Engine) RetrieveForContext(ctx context.Context, query string) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	primary, err := e.queryFiltered(ctx, query, e.config.TopKPrimary, e.config.PrimaryGroup)
	if err != nil {
		return nil, err
	}

	if len(primary) > 0 {
		if e.config.TopKFallback > 0 {
			fallback, err := e.queryFiltered(ctx, query, e.config.TopKFallback, e.config.FallbackGroup)
			if err != nil {
				return nil, err
			}
			primary = appendDedup(primary, fallback)
		}
		e.logger.Debug("retrieval served from primary tier",
			zap.String("group", e.config.PrimaryGroup),
			zap.Int("chunks", len(primary)))
		return primary, nil
	}

	fallback, err := e.queryFiltered(ctx, query, e.config.TopKPrimary, e.config.FallbackGroup)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("retrieval fell back to pattern tier",
		zap.String("group", e.config.FallbackGroup),
		zap.Int("chunks", len(fallback)))
	return fallback, nil
}

// queryFiltered queries one group and applies the distance threshold.
func (e *Engine) queryFiltered(ctx context.Context, query string, topK int, group string) ([]Chunk, error) {
	results, err := e.store.Query(ctx, query, topK, group)
	if err != nil {
		return nil, fmt.Errorf("querying group %s: %w", group, err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		// An unknown distance is no evidence of relevance.
		if math.IsNaN(r.Distance) || r.Distance > e.config.MaxDistance {
			continue
		}
		chunks = append(chunks, toChunk(r))
	}
	return chunks, nil
}

// appendDedup appends extra chunks whose DocID is not already present.
func appendDedup(chunks, extra []Chunk) []Chunk {
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		seen[c.DocID] = true
	}
	for _, c := range extra {
		if !seen[c.DocID] {
			seen[c.DocID] = true
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func toChunks(results []vectorstore.QueryResult) []Chunk {
	chunks := make([]Chunk, len(results))
	for i, r := range results {
		chunks[i] = toChunk(r)
	}
	return chunks
}

func toChunk(r vectorstore.QueryResult) Chunk {
	chunk := Chunk{
		Text:     r.Content,
		DocID:    r.ID,
		Group:    r.Group(),
		Distance: r.Distance,
		Kind:     r.Metadata[vectorstore.MetaType],
	}
	if raw := r.Metadata[vectorstore.MetaRawJSON]; raw != "" {
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err == nil {
			chunk.Doc = doc
		}
	}
	return chunk
}
