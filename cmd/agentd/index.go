package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the knowledge base into the vector store",
	Long: `Index walks the configured knowledge directories, embeds every JSON
document with a non-empty context field, and writes them to the vector
store used for retrieval during conversations.`,
	RunE: runIndex,
}

var kbDirs []string

func init() {
	indexCmd.Flags().StringSliceVar(&kbDirs, "kb-dir", nil, "knowledge directory to index (repeatable, overrides config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, err := newVectorStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer store.Close()

	dirs := cfg.Knowledge.Dirs
	if len(kbDirs) > 0 {
		dirs = kbDirs
	}
	idx, err := indexer.New(store, indexer.Config{Dirs: dirs}, logger)
	if err != nil {
		return err
	}

	stats, err := idx.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	logger.Info("indexing complete",
		zap.Int("files", stats.Files),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	fmt.Printf("Indexed %d documents from %d files (%d skipped, %d failed)\n",
		stats.Indexed, stats.Files, stats.Skipped, stats.Failed)
	return nil
}
