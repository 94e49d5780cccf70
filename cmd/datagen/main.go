// TenderWatch - Procurement fraud graphs with explainable risk scoring.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Command datagen writes a synthetic procurement graph as CSV files and can
// mirror it into Neo4j.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/config"
	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/generator"
	"github.com/opensource-finance/tenderwatch/internal/graphdb"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to a YAML configuration file")
		seed          = flag.Int64("seed", 0, "random seed (default from configuration)")
		outDir        = flag.String("out", "", "output directory (default from configuration)")
		footprints    = flag.Bool("footprints", true, "write footprints.json with the injected pattern instances")
		neo4jURI      = flag.String("neo4j-uri", "", "export to this Neo4j instance")
		neo4jUser     = flag.String("neo4j-user", "", "Neo4j username")
		neo4jPassword = flag.String("neo4j-password", "", "Neo4j password")
		clear         = flag.Bool("clear", false, "delete every node before the Neo4j export")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg.Logging.Format = "text"
	slog.SetDefault(config.NewLogger(cfg.Logging, os.Stderr))

	gen := cfg.Generator
	if isFlagSet("seed") {
		gen.Seed = *seed
	}
	if *outDir != "" {
		gen.OutputDir = *outDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	res, err := generator.Generate(ctx, gen)
	if err != nil {
		slog.Error("generation failed", "seed", gen.Seed, "error", err)
		os.Exit(1)
	}

	if err := generator.WriteDir(gen.OutputDir, res.Dataset); err != nil {
		slog.Error("failed to write dataset", "dir", gen.OutputDir, "error", err)
		os.Exit(1)
	}
	if *footprints {
		if err := writeFootprints(filepath.Join(gen.OutputDir, "footprints.json"), res.Footprints); err != nil {
			slog.Error("failed to write footprints", "error", err)
			os.Exit(1)
		}
	}

	logSummary(res.Summary)
	slog.Info("dataset written",
		"dir", gen.OutputDir,
		"seed", gen.Seed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	g := cfg.GraphDB
	if *neo4jURI != "" {
		g.URI, g.Enabled = *neo4jURI, true
	}
	if *neo4jUser != "" {
		g.Username = *neo4jUser
	}
	if *neo4jPassword != "" {
		g.Password = *neo4jPassword
	}
	if *clear {
		g.Clear = true
	}
	if !g.Enabled {
		return
	}

	if err := export(ctx, g, res.Dataset); err != nil {
		slog.Error("graph export failed", "uri", g.URI, "error", err)
		os.Exit(1)
	}
}

func export(ctx context.Context, g domain.GraphDBConfig, ds *domain.Dataset) error {
	client, err := graphdb.NewNeo4jClient(ctx, graphdb.Options{
		URI:      g.URI,
		Database: g.Database,
		Username: g.Username,
		Password: g.Password,
	})
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	return graphdb.NewExporter(client, g.BatchSize, g.Clear).Export(ctx, ds)
}

func writeFootprints(path string, fps []generator.Footprint) error {
	data, err := json.MarshalIndent(fps, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func logSummary(s domain.Summary) {
	pct := func(n, total int) string {
		if total == 0 {
			return "0.0%"
		}
		return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
	}

	slog.Info("entities",
		"companies", s.Companies,
		"directors", s.Directors,
		"tenders", s.Tenders,
		"departments", s.Departments,
		"relationships", s.Relationships,
	)
	slog.Info("fraud labels",
		"companies", s.FraudCompanies,
		"companies_pct", pct(s.FraudCompanies, s.Companies),
		"directors", s.FraudDirectors,
		"directors_pct", pct(s.FraudDirectors, s.Directors),
		"tenders", s.FraudTenders,
		"tenders_pct", pct(s.FraudTenders, s.Tenders),
	)
	slog.Info("attributes",
		"industries", s.Industries,
		"registration_years", fmt.Sprintf("%d-%d", s.RegistrationYears[0], s.RegistrationYears[1]),
		"tender_years", fmt.Sprintf("%d-%d", s.TenderYears[0], s.TenderYears[1]),
		"contract_value_min", s.ContractValueMin,
		"contract_value_max", s.ContractValueMax,
		"contract_value_mean", fmt.Sprintf("%.0f", s.ContractValueMean),
	)
	for _, t := range domain.RelationshipTypes {
		slog.Info("relationships", "type", t, "count", s.RelationshipCounts[t])
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
