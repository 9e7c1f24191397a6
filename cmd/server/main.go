package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yegors/sectional/internal/airports"
	"github.com/yegors/sectional/internal/api"
	"github.com/yegors/sectional/internal/config"
	"github.com/yegors/sectional/internal/display"
	"github.com/yegors/sectional/internal/metar"
	"github.com/yegors/sectional/internal/observability"
	"github.com/yegors/sectional/internal/storage/sqlite"
	"github.com/yegors/sectional/internal/websocket"
	"github.com/yegors/sectional/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting sectional server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Build the airport catalog
	catalog := airports.NewCatalog(cfg.Airports.IDs)
	if cfg.Airports.DBPath != "" {
		if err := catalog.LoadInfoFromCSV(cfg.Airports.DBPath); err != nil {
			log.Warn("Failed to load airports database, continuing without enrichment",
				logger.Error(err),
				logger.String("path", cfg.Airports.DBPath))
		}
	}
	log.Info("Airport catalog loaded",
		logger.Int("positions", len(catalog.IDs())),
		logger.Int("fetchable", len(catalog.Fetchable())))

	// Create SQLite storage
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
		os.Exit(1)
	}
	ratingStorage, err := sqlite.NewRatingStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer ratingStorage.Close()

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Create the display palette and metrics
	palette := display.NewPalette(cfg.Display)
	metrics := observability.NewMetrics()

	// Create the METAR pipeline
	client := metar.NewClient(metar.ClientConfig{
		BaseURL:             cfg.Weather.APIBaseURL,
		ChunkSize:           cfg.Weather.ChunkSize,
		Timeout:             cfg.RequestTimeout(),
		RetryAttempts:       cfg.Weather.MaxRetries,
		RetryDelay:          cfg.RetryDelay(),
		MaxBackoff:          cfg.MaxBackoff(),
		MaxConcurrentChunks: cfg.Weather.MaxConcurrentChunks,
		UserAgent:           cfg.Weather.UserAgent,
	}, log)

	policy := metar.Policy{
		PreferAPI:            cfg.Weather.PreferAPICategory,
		ForceCalculation:     cfg.Weather.ForceCalculation,
		AssumeVFRWhenMissing: cfg.Weather.AssumeVFRWhenMissing,
	}
	pipeline := metar.NewPipeline(client, catalog.Fetchable(), policy, metrics, log)

	// Create the ingestion service; each cycle is persisted and broadcast.
	broadcaster := api.NewRatingBroadcaster(wsServer, palette)
	metarService := metar.NewService(metar.ServiceConfig{
		RefreshInterval: cfg.RefreshInterval(),
		CycleTimeout:    cfg.CycleTimeout(),
	}, pipeline, log, ratingStorage, broadcaster)

	// Create API handler; dashboard clients can also query status and
	// trigger refreshes over the websocket.
	handler := api.NewHandler(metarService, catalog, palette, cfg, log, wsServer)
	wsServer.SetMessageHandler(api.NewWSHandler(metarService, log))

	// Restore the persisted snapshot so the map lights up before the first fetch
	if cfg.Storage.RestoreOnStart {
		records, at, err := ratingStorage.GetAll()
		if err != nil {
			log.Warn("Failed to restore rating snapshot", logger.Error(err))
		} else if len(records) > 0 {
			handler.SetRestoredSnapshot(records, at)
			log.Info("Restored rating snapshot",
				logger.Int("airports", len(records)),
				logger.Time("updated_at", at))
		}
	}

	// Start the ingestion service
	if err := metarService.Start(); err != nil {
		log.Error("Failed to start METAR service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router and HTTP server
	router := api.NewRouter(handler, cfg, log, wsServer)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first
	log.Info("Stopping METAR service...")
	if err := metarService.Stop(); err != nil {
		log.Error("Error stopping METAR service", logger.Error(err))
	}
	log.Info("METAR service stopped.")

	// Shutdown the HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
