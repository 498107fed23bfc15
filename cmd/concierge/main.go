// Concierge server — multi-agent customer service for a clothing retailer.
// Hosts the HTTP chat API, the agent dispatcher, and the background
// session retention loop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wardrobe-labs/concierge/pkg/agent"
	"github.com/wardrobe-labs/concierge/pkg/api"
	"github.com/wardrobe-labs/concierge/pkg/cleanup"
	"github.com/wardrobe-labs/concierge/pkg/config"
	"github.com/wardrobe-labs/concierge/pkg/database"
	"github.com/wardrobe-labs/concierge/pkg/dispatch"
	"github.com/wardrobe-labs/concierge/pkg/llm"
	"github.com/wardrobe-labs/concierge/pkg/masking"
	"github.com/wardrobe-labs/concierge/pkg/search"
	"github.com/wardrobe-labs/concierge/pkg/session"
	"github.com/wardrobe-labs/concierge/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	slog.Info("Starting concierge",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Optional persistence
	var dbClient *database.Client
	var archive *database.Archive
	if database.Enabled() {
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		dbClient, err = database.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		archive = database.NewArchive(dbClient, masking.NewService())
		slog.Info("Connected to PostgreSQL database")
	} else {
		slog.Info("No database configured, sessions are in-memory only")
	}

	// 3. LLM service and product search
	llmService := llm.NewService(cfg)

	var searchCfg config.SearchConfig
	if cfg.Search != nil {
		searchCfg = *cfg.Search
	}
	searcher := search.NewClient(searchCfg, nil)
	if searcher.Enabled() {
		slog.Info("Product search backend configured", "base_url", searchCfg.BaseURL)
	} else {
		slog.Info("Product search unconfigured, agents use the sample catalog")
	}

	// 4. Agent registry
	registry := agent.NewRegistry()
	agents := []agent.Agent{
		agent.NewReception(llmService, nil),
		agent.NewSales(llmService, searcher, nil),
		agent.NewOrder(llmService, nil, nil),
		agent.NewKnowledge(llmService, searcher, nil),
		agent.NewStyling(llmService, nil),
	}
	for _, a := range agents {
		if err := registry.Register(a); err != nil {
			slog.Error("Failed to register agent", "agent_id", a.ID(), "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Agents registered", "count", len(agents))

	// 5. Session store and dispatcher
	sessions := session.NewStore(nil)
	dispatcher := dispatch.NewDispatcher(llmService, registry, sessions, cfg.Timeouts, nil)
	if archive != nil {
		dispatcher.SetTurnObserver(func(snapshot session.Snapshot) {
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := archive.SaveSnapshot(saveCtx, snapshot); err != nil {
				slog.Error("Failed to persist session snapshot",
					"user_id", snapshot.UserID,
					"conversation_id", snapshot.ConversationID,
					"error", err)
			}
		})
	}

	// 6. Background retention loop
	retention := cleanup.NewService(cfg.Retention, cfg.Timeouts.SessionIdle, sessions, archive)
	retention.Start(ctx)
	defer retention.Stop()

	// 7. HTTP server (non-blocking)
	httpServer := api.NewServer(dispatcher, dbClient, nil)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Concierge started successfully")

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
