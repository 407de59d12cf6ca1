package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/clinical-records-service/internal/auth"
	"github.com/clinicore/clinical-records-service/internal/db"
	clinicorehttp "github.com/clinicore/clinical-records-service/internal/http"
	"github.com/clinicore/clinical-records-service/internal/messaging"
	"github.com/clinicore/clinical-records-service/internal/telemetry"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
)

func main() {
	log.Println("clinical-records-service starting")

	ctx := context.Background()

	// Telemetry first so everything after is instrumented.
	provider, err := telemetry.InitProvider(ctx, telemetry.LoadConfig())
	if err != nil {
		log.Printf("[WARN] OpenTelemetry init failed, continuing without export: %v", err)
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Printf("[WARN] Metrics init failed: %v", err)
	}

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if os.Getenv("SKIP_MIGRATIONS") != "true" {
		if err := db.Migrate(ctx, database); err != nil {
			log.Fatalf("Failed to apply schema migration: %v", err)
		}
	}

	binder := tenantctx.NewBinder(database)
	if metrics != nil {
		binder.WithMetrics(metrics)
	}

	publisher, err := messaging.NewPublisher()
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	authCfg := auth.LoadConfig()
	jwks, err := auth.NewJWKS(authCfg.JWKSURL, 15*time.Minute)
	if err != nil {
		log.Fatalf("Failed to fetch JWKS: %v", err)
	}
	verifier := auth.NewVerifier(authCfg, jwks)

	permsPath := os.Getenv("PERMISSIONS_FILE")
	if permsPath == "" {
		permsPath = "permissions.yml"
	}
	perms, err := auth.LoadPermissions(permsPath)
	if err != nil {
		log.Fatalf("Failed to load permissions from %s: %v", permsPath, err)
	}

	router := clinicorehttp.SetupRouter(clinicorehttp.Dependencies{
		DB:        database,
		Binder:    binder,
		Verifier:  verifier,
		Perms:     perms,
		Publisher: publisher,
		Metrics:   metrics,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      clinicorehttp.CORSMiddleware(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Server shutdown: %v", err)
	}
	if provider != nil {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] Telemetry shutdown: %v", err)
		}
	}
	log.Println("✓ Shutdown complete")
}
