// Package vectorstore provides the embedded similarity store for the
// event knowledge base.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")
)

// Metadata keys attached to indexed knowledge documents.
const (
	MetaGroup      = "kb_group"
	MetaRawJSON    = "raw_json"
	MetaType       = "type"
	MetaName       = "name"
	MetaEventType  = "event_type"
	MetaSourceFile = "source_file"
)

// Document is a knowledge entry to be indexed.
type Document struct {
	// ID is the unique identifier in the store.
	ID string

	// Content is the text that gets embedded.
	Content string

	// Metadata carries group tags and the raw source document.
	Metadata map[string]string
}

// QueryResult is one ranked match from a similarity query.
type QueryResult struct {
	ID      string
	Content string

	// Distance is a dissimilarity score; lower means more relevant.
	// NaN means the store produced no usable relevance signal.
	Distance float64

	Metadata map[string]string
}

// Group returns the knowledge group tag of the match, if any.
func (r QueryResult) Group() string {
	return r.Metadata[MetaGroup]
}

// Store is the similarity store boundary.
//
// Implementations rank documents by semantic similarity to the query text.
// Group arguments scope the query to documents tagged with any of the given
// kb_group values; with no groups the whole collection is searched.
type Store interface {
	// AddDocuments embeds and stores documents. Returns the stored IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Query returns up to topK matches ordered by ascending distance.
	Query(ctx context.Context, query string, topK int, groups ...string) ([]QueryResult, error)

	// Close releases store resources.
	Close() error
}
