package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/mergington/internal/api"
	"example.com/mergington/internal/auth"
	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/fixtures"
	"example.com/mergington/internal/outbox"
	"example.com/mergington/internal/persistence"
	httptransport "example.com/mergington/internal/transport/http"
	"example.com/mergington/internal/web"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := persistence.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer handle.Close()

	service := domain.NewService(handle.Store, domain.WithCapacityEnforcement(cfg.EnforceCapacity))

	defaults, err := fixtures.Load(cfg.SeedFile)
	if err != nil {
		log.Fatalf("failed to load seed fixtures: %v", err)
	}
	inserted, err := service.Seed(ctx, defaults)
	if err != nil {
		log.Fatalf("failed to seed activities: %v", err)
	}
	if inserted > 0 {
		log.Printf("Database initialized with default activities (%d)", inserted)
	}

	var dispatcher *outbox.Dispatcher
	if cfg.OutboxEnabled && handle.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(handle.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
		log.Printf("outbox dispatcher started (interval=%s, batch=%d)", cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	} else if cfg.OutboxEnabled {
		log.Printf("outbox requires the postgres backend; %s store publishes no events", cfg.StoreBackend)
	}

	mux := http.NewServeMux()
	api.NewHandler(service, api.WithStatic(web.Static())).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	middlewares := []httptransport.Middleware{
		httptransport.Logging(nil),
		httptransport.CORS(cfg.CORSOrigin),
	}
	if cfg.AuthEnabled {
		authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.ScopeRegistrationsWrite, auth.ReadOnly)
		middlewares = append(middlewares, authMiddleware.Wrap)
	}

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux, middlewares...))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("activity directory listening on %s (store=%s)", cfg.HTTPAddress, cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
