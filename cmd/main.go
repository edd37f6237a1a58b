package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tuition_billing/internal/config"
	"tuition_billing/internal/handlers"
	"tuition_billing/internal/observability"
	"tuition_billing/internal/repository/database"
	"tuition_billing/internal/server"
	"tuition_billing/internal/services"
	auth "tuition_billing/internal/transport/auth"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg := config.Init(setupCtx)
	defer cfg.Close(context.Background())
	log := cfg.Logger
	log.Info("✅ All connections successfully established!")

	if err := cfg.CheckConnections(setupCtx); err != nil {
		log.Fatalf("❌ Connection check failed: %v", err)
	}
	log.Info("🟢 All connections OK")

	if err := database.EnsureSchema(setupCtx, cfg.Postgres); err != nil {
		log.Fatalf("❌ Schema check failed: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	svc, err := services.New(cfg, metrics)
	if err != nil {
		log.Fatalf("❌ Service setup failed: %v", err)
	}

	h := handlers.New(svc, cfg, log)
	router := server.NewRouter(h, metrics, auth.SanctumMiddleware(svc.Tokens, log))
	srv := server.NewServer(cfg.Settings.Port, router)

	log.WithField("port", cfg.Settings.Port).Info("billing api listening")
	if err := srv.Run(runCtx); err != nil {
		log.Fatal(err)
	}
}
