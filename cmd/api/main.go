package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"taskflow/audit"
	"taskflow/auth"
	"taskflow/config"
	"taskflow/db"
	"taskflow/dispute"
	"taskflow/logging"
	"taskflow/matching"
	"taskflow/reputation"
)

func main() {
	log := logging.Setup(slog.LevelInfo)
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("bootstrap database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	reputationService := reputation.NewService(reputation.NewRepository(pool))

	disputeRepo := dispute.NewRepository(pool)
	collector := dispute.NewCollector(disputeRepo, dispute.NewReputationProfiles(reputationService), log)

	rules := dispute.NewRuleStrategy()
	var strategy dispute.ScoringStrategy = rules
	if cfg.AI.APIKey != "" {
		client := dispute.NewChatClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Temperature, cfg.AI.Timeout)
		strategy = dispute.NewFallbackStrategy(dispute.NewAIStrategy(client, rules), rules, log)
	}

	server := &Server{
		disputeService:    dispute.NewService(collector, strategy, disputeRepo),
		matchService:      matching.NewService(matching.NewRepository(pool)),
		auditService:      audit.NewService(audit.NewRepository(pool)),
		reputationService: reputationService,
		authService:       auth.NewService(auth.NewRepository(pool), cfg.JWTSecret),
		log:               log,
	}

	log.Info("api listening", "addr", cfg.HTTPAddr, "aiEnabled", cfg.AI.APIKey != "")
	if err := http.ListenAndServe(cfg.HTTPAddr, server.routes()); err != nil {
		log.Error("http server", "error", err)
		os.Exit(1)
	}
}
