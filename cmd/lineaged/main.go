package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"lineage/internal/config"
	"lineage/internal/domain"
	"lineage/internal/infra/cachelru"
	"lineage/internal/infra/db"
	httpinfra "lineage/internal/infra/http"
	"lineage/internal/infra/logging"
	"lineage/internal/infra/memstore"
	"lineage/internal/infra/metrics"
	"lineage/internal/infra/policyopa"
	"lineage/internal/usecase"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := db.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init store", zap.Error(err))
	}

	var (
		graph      usecase.GraphStore
		privileges usecase.PrivilegeStore
		mode       = "memory"
	)
	if store.Enabled() {
		graph, privileges, mode = store.Graph(), store.Privileges(), "db"
	} else {
		mem := memstore.New()
		graph, privileges = mem, mem
	}

	ctx := context.Background()
	registry := usecase.DefaultSurrogateRegistry()
	if cfg.EdgePolicyPath != "" {
		voter, err := policyopa.NewVoterFromPath(ctx, cfg.EdgePolicyPath)
		if err != nil {
			logger.Fatal("failed to load edge policy", zap.String("path", cfg.EdgePolicyPath), zap.Error(err))
		}
		registry.Register(policyopa.SurrogateFunc(voter))
		logger.Info("edge policy loaded", zap.String("policy_hash", voter.PolicyHash()))
	}

	placeholder := domain.InferAll
	if cfg.PlaceholderPolicy == "hide" {
		placeholder = domain.HideAll
	}

	views := metrics.NewViews()
	svc := usecase.NewLineageService(graph, privileges, usecase.ServiceOptions{
		Registry:    registry,
		Placeholder: placeholder,
		Cache:       cachelru.New(cfg.FingerprintCacheSize),
		Observer:    views,
		Logger:      logger,
	})
	if cfg.SeedLattice {
		if err := svc.Lattice.Seed(ctx, domain.WellKnownLattice()); err != nil {
			logger.Fatal("failed to seed privilege lattice", zap.Error(err))
		}
	}

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Lineage: svc,
		Metrics: views,
		Logger:  logger,
		Mode:    mode,
	})
	if err := srv.Run(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
