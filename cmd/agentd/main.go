// Agentd is the AI event-planning agent service for myFEvent.
//
// It exposes conversation turns over HTTP, calling the event backend and a
// chat model, grounded on a local knowledge base.
//
// Usage:
//
//	# Start the server
//	agentd serve
//
//	# Index the knowledge base into the vector store
//	agentd index
//
// Configuration is read from an optional YAML file plus AGENTD_* environment
// variables. See internal/config for details.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "agentd",
	Short:   "AI event-planning agent service for myFEvent",
	Version: fmt.Sprintf("%s (%s)", version, gitCommit),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
