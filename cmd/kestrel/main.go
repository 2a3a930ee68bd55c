// Kestrel - Citizen complaint compliance monitoring.
// Copyright (c) 2025 opengov-labs
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opengov-labs/kestrel/internal/analysis"
	"github.com/opengov-labs/kestrel/internal/api"
	"github.com/opengov-labs/kestrel/internal/bus"
	"github.com/opengov-labs/kestrel/internal/cache"
	"github.com/opengov-labs/kestrel/internal/catalog"
	"github.com/opengov-labs/kestrel/internal/classify"
	"github.com/opengov-labs/kestrel/internal/domain"
	"github.com/opengov-labs/kestrel/internal/judge"
	"github.com/opengov-labs/kestrel/internal/lifecycle"
	"github.com/opengov-labs/kestrel/internal/match"
	"github.com/opengov-labs/kestrel/internal/policy"
	"github.com/opengov-labs/kestrel/internal/repository"
	"github.com/opengov-labs/kestrel/internal/velocity"
	"github.com/opengov-labs/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	if path := os.Getenv("KESTREL_CATALOG"); path != "" {
		cfg.Catalog.Path = path
	}
	if endpoint := os.Getenv("KESTREL_JUDGE_URL"); endpoint != "" {
		cfg.Judge.Endpoint = endpoint
		cfg.Judge.APIKey = os.Getenv("KESTREL_JUDGE_KEY")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"catalog", cfg.Catalog.Path,
		"judge", cfg.Judge.Endpoint != "",
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

	// Load the rule catalog up front: a missing or malformed rulebook is a
	// deployment error, not something to discover on the first request.
	cat := catalog.New(cfg.Catalog.Path)
	if err := cat.Load(); err != nil {
		slog.Error("failed to load rule catalog", "path", cfg.Catalog.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("rule catalog loaded", "path", cfg.Catalog.Path, "rules", cat.Len())

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(repo, cacheImpl)

	// Initialize ViolationResolver: external judge when configured,
	// deterministic fallback otherwise.
	var judgeImpl match.Judge
	if cfg.Judge.Endpoint != "" {
		judgeImpl = judge.New(cfg.Judge)
		slog.Info("external judge configured", "endpoint", cfg.Judge.Endpoint)
	} else {
		slog.Info("no external judge configured, using fallback policy")
	}
	resolver := match.NewResolver(
		match.NewRanker(cat),
		judgeImpl,
		time.Duration(cfg.Judge.Timeout)*time.Second,
		busImpl,
	)

	// Initialize escalation policy engine with the default policy set.
	policyEngine, err := policy.NewEngine()
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}
	if err := policyEngine.LoadPolicies(policy.Defaults()); err != nil {
		slog.Error("failed to load escalation policies", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "policies", policyEngine.PolicyCount())

	// Initialize the analysis pipeline and case lifecycle.
	pipeline := analysis.New(repo, cacheImpl, busImpl, classify.NewHeuristic(), resolver, velocitySvc, policyEngine)
	lifecycleSvc := lifecycle.New(repo, cat, busImpl)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, pipeline)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, cat, pipeline, lifecycleSvc, Version)

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

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +------------------------------------------+")
	fmt.Println("  |                KESTREL                   |")
	fmt.Println("  |   Citizen Complaint Compliance Engine    |")
	fmt.Println("  |      Every complaint, accounted for.     |")
	fmt.Println("  +------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /feedback               - Submit citizen feedback")
	fmt.Println("    GET  /feedback/{id}          - Get a feedback record")
	fmt.Println("    POST /feedback/{id}/analyze  - Run analysis synchronously")
	fmt.Println("    GET  /feedback/entities      - List known entities")
	fmt.Println("    GET  /reviewer/inbox         - Flagged complaints awaiting review")
	fmt.Println("    POST /reviewer/dismiss       - Dismiss a flagged complaint")
	fmt.Println("    POST /cases                  - Escalate feedback into a case")
	fmt.Println("    GET  /cases                  - List cases (?entity= filter)")
	fmt.Println("    GET  /cases/{id}             - Get a case with enriched violations")
	fmt.Println("    POST /cases/{id}/evidence    - Submit compliance evidence")
	fmt.Println("    POST /cases/{id}/verify      - Accept or reject evidence")
	fmt.Println("    GET  /rules                  - List the compliance rulebook")
	fmt.Println("    GET  /dashboard              - Aggregate statistics")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}
