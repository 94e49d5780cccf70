// TenderWatch - Procurement fraud graphs with explainable risk scoring.
// Copyright (c) 2025 opensource.finance
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
	"syscall"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/api"
	"github.com/opensource-finance/tenderwatch/internal/bus"
	"github.com/opensource-finance/tenderwatch/internal/cache"
	"github.com/opensource-finance/tenderwatch/internal/config"
	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graphdb"
	"github.com/opensource-finance/tenderwatch/internal/investigation"
	"github.com/opensource-finance/tenderwatch/internal/repository"
	"github.com/opensource-finance/tenderwatch/internal/rules"
	"github.com/opensource-finance/tenderwatch/internal/telemetry"
	"github.com/opensource-finance/tenderwatch/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(config.NewLogger(cfg.Logging, os.Stdout))

	slog.Info("starting tenderwatch",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"graph_export", cfg.GraphDB.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// Initialize Rule Engine
	engine, err := rules.NewDefaultEngine(cfg.Scoring)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	deps := investigation.Deps{
		Repo:    repo,
		Cache:   cacheImpl,
		Bus:     busImpl,
		Metrics: telemetry.New(),
	}

	// Optional Neo4j mirror
	if cfg.GraphDB.Enabled {
		client, err := graphdb.NewNeo4jClient(ctx, graphdb.Options{
			URI:      cfg.GraphDB.URI,
			Database: cfg.GraphDB.Database,
			Username: cfg.GraphDB.Username,
			Password: cfg.GraphDB.Password,
		})
		if err != nil {
			slog.Error("failed to connect to graph database", "uri", cfg.GraphDB.URI, "error", err)
			os.Exit(1)
		}
		defer client.Close(context.Background())
		deps.Exporter = graphdb.NewExporter(client, cfg.GraphDB.BatchSize, cfg.GraphDB.Clear)
		slog.Info("graph export enabled", "uri", cfg.GraphDB.URI)
	}

	svc := investigation.NewService(cfg, engine, deps)

	bootCtx, bootCancel := context.WithTimeout(ctx, 2*time.Minute)
	err = svc.Bootstrap(bootCtx)
	bootCancel()
	if err != nil {
		slog.Error("failed to install initial dataset", "error", err)
		os.Exit(1)
	}

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled || cfg.EventBus.Type == "nats" {
		asyncWorker = worker.NewWorker(busImpl, svc)

		workerCfg := worker.Config{
			Regenerate:  cfg.Worker.Enabled,
			FollowSwaps: true,
		}
		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started",
				"regenerate", workerCfg.Regenerate,
				"follow_swaps", workerCfg.FollowSwaps,
			)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, svc, deps, asyncWorker != nil && cfg.Worker.Enabled, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("tenderwatch is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"node_id", svc.NodeID(),
	)

	printBanner(cfg, Version)

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

	slog.Info("tenderwatch shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                  TENDERWATCH")
	fmt.Println("     Procurement Fraud Graph Risk Scoring")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /api/dashboard/stats                - Dataset overview")
	fmt.Println("    GET  /api/companies                      - Ranked companies")
	fmt.Println("    GET  /api/companies/{id}                 - Company detail")
	fmt.Println("    GET  /api/companies/{id}/investigation   - Explained verdict")
	fmt.Println("    GET  /api/network                        - Bounded subgraph")
	fmt.Println("    GET  /api/clusters                       - Fraud clusters")
	fmt.Println("    GET  /api/rules                          - Indicator rules")
	fmt.Println("    GET  /api/dataset                        - Installed dataset")
	fmt.Println("    GET  /api/datasets                       - Stored datasets")
	fmt.Println("    POST /api/dataset/regenerate             - Build a new dataset")
	fmt.Println("    GET  /health, /ready, /metrics")
	fmt.Println()
}
