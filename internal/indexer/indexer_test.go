package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/vectorstore"
)

type captureStore struct {
	docs   []vectorstore.Document
	addErr error
}

func (s *captureStore) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	s.docs = append(s.docs, docs...)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *captureStore) Query(context.Context, string, int, ...string) ([]vectorstore.QueryResult, error) {
	return nil, nil
}

func (s *captureStore) Close() error { return nil }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func (s *captureStore) byID(id string) (vectorstore.Document, bool) {
	for _, d := range s.docs {
		if d.ID == id {
			return d, true
		}
	}
	return vectorstore.Document{}, false
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, Config{}, zap.NewNop())
	require.Error(t, err)
}

func TestRunIndexesObjectAndListFiles(t *testing.T) {
	patterns := t.TempDir()
	writeFile(t, patterns, "wedding.json", `{"id":"pat-1","type":"epic_template","name":"Wedding","context":"A wedding needs venue, catering and media coverage."}`)
	writeFile(t, patterns, "tasks.json", `[
		{"id":"pat-2","type":"task_template","context":"Book the venue eight weeks before the event."},
		{"id":"pat-3","type":"task_template","context":"Confirm catering headcount one week out."}
	]`)

	store := &captureStore{}
	idx, err := New(store, Config{Dirs: []string{patterns}}, zap.NewNop())
	require.NoError(t, err)

	stats, err := idx.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 3, stats.Indexed)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, stats.Failed)
	require.Len(t, store.docs, 3)

	doc, ok := store.byID("pat-1")
	require.True(t, ok)
	assert.Equal(t, "A wedding needs venue, catering and media coverage.", doc.Content)
	assert.Equal(t, "pattern", doc.Metadata[vectorstore.MetaGroup])
	assert.Equal(t, "epic_template", doc.Metadata[vectorstore.MetaType])
	assert.Equal(t, "Wedding", doc.Metadata[vectorstore.MetaName])
	assert.Contains(t, doc.Metadata[vectorstore.MetaSourceFile], "wedding.json")
	assert.Contains(t, doc.Metadata[vectorstore.MetaRawJSON], `"pat-1"`)
}

func TestRunDetectsUserEventGroup(t *testing.T) {
	root := t.TempDir()
	userDir := filepath.Join(root, "user_events")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	writeFile(t, userDir, "techconf.json", `{"id":"ue-1","event_type":"conference","context":"Our tech conference ran three parallel tracks."}`)

	store := &captureStore{}
	idx, err := New(store, Config{Dirs: []string{userDir}}, zap.NewNop())
	require.NoError(t, err)

	_, err = idx.Run(context.Background())
	require.NoError(t, err)

	doc, ok := store.byID("ue-1")
	require.True(t, ok)
	assert.Equal(t, "user_event", doc.Metadata[vectorstore.MetaGroup])
	assert.Equal(t, "conference", doc.Metadata[vectorstore.MetaEventType])
}

func TestRunGeneratesMissingIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "anon.json", `{"context":"Checklist for a small meetup."}`)

	store := &captureStore{}
	idx, err := New(store, Config{Dirs: []string{dir}}, zap.NewNop())
	require.NoError(t, err)

	stats, err := idx.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	require.Len(t, store.docs, 1)
	assert.NotEmpty(t, store.docs[0].ID)
}

func TestRunSkipsAndFailsPerFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", `{"id":"ok-1","context":"Valid entry."}`)
	writeFile(t, dir, "no-context.json", `{"id":"bad-1","context":"   "}`)
	writeFile(t, dir, "broken.json", `{"id": "bad-2"`)
	writeFile(t, dir, "notes.txt", `not json, not scanned`)

	store := &captureStore{}
	idx, err := New(store, Config{Dirs: []string{dir}}, zap.NewNop())
	require.NoError(t, err)

	stats, err := idx.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, store.docs, 1)
	assert.Equal(t, "ok-1", store.docs[0].ID)
}

func TestRunMissingDirectoryIsNotFatal(t *testing.T) {
	store := &captureStore{}
	idx, err := New(store, Config{Dirs: []string{filepath.Join(t.TempDir(), "absent")}}, zap.NewNop())
	require.NoError(t, err)

	stats, err := idx.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Files)
}

func TestRunCountsStoreFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.json", `{"id":"d-1","context":"Some entry."}`)

	store := &captureStore{addErr: errors.New("store is down")}
	idx, err := New(store, Config{Dirs: []string{dir}}, zap.NewNop())
	require.NoError(t, err)

	stats, err := idx.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Indexed)
}

func TestDetectGroup(t *testing.T) {
	assert.Equal(t, "user_event", detectGroup(filepath.Join("kb", "user_events", "a.json")))
	assert.Equal(t, "pattern", detectGroup(filepath.Join("kb", "patterns", "a.json")))
	assert.Equal(t, "pattern", detectGroup("a.json"))
}
