// Kestrel - Customer scoring and next-best-action decisions in 60 seconds.
// Copyright (c) 2025 opensource.crm
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-crm/kestrel/internal/api"
	"github.com/opensource-crm/kestrel/internal/audit"
	"github.com/opensource-crm/kestrel/internal/behavior"
	"github.com/opensource-crm/kestrel/internal/bus"
	"github.com/opensource-crm/kestrel/internal/cache"
	"github.com/opensource-crm/kestrel/internal/crm"
	"github.com/opensource-crm/kestrel/internal/dispatch"
	"github.com/opensource-crm/kestrel/internal/domain"
	"github.com/opensource-crm/kestrel/internal/estimate"
	"github.com/opensource-crm/kestrel/internal/journey"
	"github.com/opensource-crm/kestrel/internal/lead"
	"github.com/opensource-crm/kestrel/internal/nba"
	"github.com/opensource-crm/kestrel/internal/repository"
	"github.com/opensource-crm/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Config file overlays tier defaults
	if *configPath != "" {
		loaded, err := domain.LoadConfigFile(*configPath, cfg)
		if err != nil {
			slog.Error("failed to load config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
		slog.Info("config file loaded", "path", *configPath)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Scoring components share one config and one estimator
	estimator := estimate.NewHashEstimator()
	profiles := behavior.NewProfileBuilder(cfg.Scoring)
	aggregator := crm.NewAggregator(cfg.Scoring, estimator)
	leadScorer := lead.NewScorer(cfg.Scoring)
	journeyBuilder := journey.NewBuilder()
	slog.Info("scoring components initialized")

	// Initialize the next-best-action engine
	engine, err := nba.NewEngine()
	if err != nil {
		slog.Error("failed to initialize action engine", "error", err)
		os.Exit(1)
	}

	// Load rules from database, seeding the builtin set on first run
	if err := loadActionRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load action rules", "error", err)
		os.Exit(1)
	}
	slog.Info("action engine initialized", "rules_count", engine.RulesCount())

	// Audit trail goes through the event bus
	auditLogger := audit.NewBusLogger(busImpl, logger)

	// Dispatcher executes recommended actions with consent and cap checks
	dispatcher := dispatch.NewDispatcher(cacheImpl, busImpl, auditLogger, cfg.Scoring, logger)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, profiles, aggregator, leadScorer, engine, Version)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, profiles, aggregator, leadScorer, engine, journeyBuilder, dispatcher, auditLogger, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadActionRules loads rules from the database into the engine. A
// fresh database gets the builtin rule set so new tenants have working
// recommendations before any rule is configured via the API.
func loadActionRules(ctx context.Context, repo domain.Repository, engine *nba.Engine) error {
	dbRules, err := repo.ListActionRules(ctx, api.GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	builtin := nba.BuiltinRules()
	slog.Info("seeding builtin rule set", "count", len(builtin))
	for _, rule := range builtin {
		rule.TenantID = api.GlobalTenantID
		if err := repo.SaveActionRule(ctx, api.GlobalTenantID, rule); err != nil {
			slog.Warn("failed to persist builtin rule", "id", rule.ID, "error", err)
		}
	}
	return engine.LoadRules(builtin)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 KESTREL                  ║")
	fmt.Println("  ║    Customer Scoring & Decision Engine     ║")
	fmt.Println("  ║      Every customer, the next move.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /customers               - Ingest a customer snapshot")
	fmt.Println("    GET  /customers/{id}          - Get customer by ID")
	fmt.Println("    GET  /customers/{id}/profile  - Derived behavior profile")
	fmt.Println("    GET  /customers/{id}/crm      - CRM health profile")
	fmt.Println("    GET  /customers/{id}/journey  - Lifecycle timeline")
	fmt.Println("    GET  /customers/{id}/actions  - Next-best-actions")
	fmt.Println("    GET  /customers/{id}/snapshot - Latest scoring snapshot")
	fmt.Println("    POST /leads/score             - Score and rank leads")
	fmt.Println("    GET  /metrics/aggregate       - Population CRM metrics")
	fmt.Println("    POST /actions/execute         - Dispatch an action")
	fmt.Println("    GET  /rules                   - List action rules")
	fmt.Println("    POST /rules                   - Create an action rule")
	fmt.Println("    DELETE /rules/{id}            - Soft-delete a rule")
	fmt.Println("    POST /rules/reload            - Hot-reload rules")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
