package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/modelarena/internal/comparison"
	"github.com/ChamsBouzaiene/modelarena/internal/config"
	"github.com/ChamsBouzaiene/modelarena/internal/logger"
	"github.com/ChamsBouzaiene/modelarena/internal/provider"
	"github.com/ChamsBouzaiene/modelarena/internal/server"
	"github.com/ChamsBouzaiene/modelarena/internal/store"
)

var (
	flagAddr    string
	flagDB      string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Compare streamed LLM responses across providers",
	Long:  "modelarena fans one prompt out to multiple LLM providers, streams their responses live, and records token, cost, and latency metrics per model.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the comparison server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&flagDB, "db", "", "SQLite database path (overrides config)")
	serveCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	manager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to init config manager: %w", err)
	}
	cfg, err := manager.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagVerbose {
		cfg.Verbose = true
	}
	logger.Init(cfg.Verbose)

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	registry := provider.NewRegistryFromEnv()
	service := comparison.NewService(st, registry, comparison.NewRelay())

	return server.NewServer(cfg, service, st, registry).Start()
}

func main() {
	// Load .env file if it exists; provider credentials come from env.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
