// Package indexer loads knowledge-base JSON files into the vector store.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/vectorstore"
)

// Config holds configuration for the indexer.
type Config struct {
	// Dirs are the knowledge-base directories scanned for .json files.
	Dirs []string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if len(c.Dirs) == 0 {
		c.Dirs = []string{
			filepath.Join("kb", "patterns"),
			filepath.Join("kb", "user_events"),
		}
	}
}

// Stats summarizes one indexing run.
type Stats struct {
	Files   int
	Indexed int
	Skipped int
	Failed  int
}

// Indexer walks knowledge directories and writes documents to the store.
type Indexer struct {
	store  vectorstore.Store
	config Config
	logger *zap.Logger
}

// New creates an indexer.
func New(store vectorstore.Store, cfg Config, logger *zap.Logger) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("indexer: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Indexer{store: store, config: cfg, logger: logger}, nil
}

// Run indexes every .json file under the configured directories. A broken
// file is logged and counted, not fatal; the run fails only when the store
// itself rejects writes.
func (i *Indexer) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, dir := range i.config.Dirs {
		if _, err := os.Stat(dir); err != nil {
			i.logger.Warn("knowledge directory missing", zap.String("dir", dir))
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
				return nil
			}
			stats.Files++

			indexed, err := i.indexFile(ctx, path)
			if err != nil {
				stats.Failed++
				i.logger.Error("indexing file failed", zap.String("file", path), zap.Error(err))
				return nil
			}
			if indexed == 0 {
				stats.Skipped++
				i.logger.Warn("no valid documents in file", zap.String("file", path))
				return nil
			}
			stats.Indexed += indexed
			i.logger.Info("indexed file", zap.String("file", path), zap.Int("docs", indexed))
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("walking %s: %w", dir, err)
		}
	}

	if stats.Files == 0 {
		i.logger.Warn("no knowledge files found", zap.Strings("dirs", i.config.Dirs))
	}
	return stats, nil
}

// indexFile loads one .json file, which may hold a single object or a list,
// and writes its documents to the store. Items without a non-empty context
// field are dropped.
func (i *Indexer) indexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	items, err := decodeItems(data)
	if err != nil {
		return 0, err
	}

	group := detectGroup(path)
	docs := make([]vectorstore.Document, 0, len(items))
	for _, item := range items {
		contextText, _ := item["context"].(string)
		if strings.TrimSpace(contextText) == "" {
			continue
		}

		id, _ := item["id"].(string)
		if id == "" {
			id = uuid.NewString()
		}
		rawJSON, err := json.Marshal(item)
		if err != nil {
			return 0, fmt.Errorf("re-encoding item %s: %w", id, err)
		}

		meta := map[string]string{
			"id":                       id,
			vectorstore.MetaSourceFile: path,
			vectorstore.MetaGroup:      group,
			vectorstore.MetaRawJSON:    string(rawJSON),
		}
		for key, metaKey := range map[string]string{
			"type":       vectorstore.MetaType,
			"event_type": vectorstore.MetaEventType,
			"name":       vectorstore.MetaName,
		} {
			if v, ok := item[key]; ok && v != nil {
				meta[metaKey] = fmt.Sprintf("%v", v)
			}
		}

		docs = append(docs, vectorstore.Document{
			ID:       id,
			Content:  contextText,
			Metadata: meta,
		})
	}

	if len(docs) == 0 {
		return 0, nil
	}
	if _, err := i.store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("adding documents: %w", err)
	}
	return len(docs), nil
}

func decodeItems(data []byte) ([]map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		return []map[string]any{obj}, nil
	}
	var list []map[string]any
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("file is neither a JSON object nor a list of objects")
}

// detectGroup classifies a knowledge file by its path: anything under a
// user_events directory is authoritative user material, the rest are
// general patterns.
func detectGroup(path string) string {
	norm := filepath.ToSlash(path)
	if strings.Contains(norm, "user_events") {
		return "user_event"
	}
	return "pattern"
}
