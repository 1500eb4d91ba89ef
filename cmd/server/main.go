// Package main is the entry point for the branchstock API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"branchstock/internal/domain/catalogs/branch"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/domain/receiving"
	"branchstock/internal/domain/reservation"
	"branchstock/internal/domain/serial"
	"branchstock/internal/domain/transfer"
	"branchstock/internal/domain/variant"
	v1 "branchstock/internal/infrastructure/http/v1"
	"branchstock/internal/infrastructure/http/v1/middleware"
	"branchstock/internal/infrastructure/storage/postgres"
	"branchstock/internal/infrastructure/storage/postgres/inventory_repo"
	"branchstock/pkg/logger"
	"branchstock/pkg/numerator"
)

func main() {
	_ = godotenv.Load() // Load .env file if it exists

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting branchstock server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)
	archiver := postgres.NewArchiver(txManager)

	// --- Repositories ---
	branchRepo := inventory_repo.NewBranchRepo(txManager)
	variantRepo := inventory_repo.NewVariantRepo(txManager)
	serialRepo := inventory_repo.NewSerialRepo(txManager)
	ledgerRepo := inventory_repo.NewLedgerRepo(txManager)
	reservationRepo := inventory_repo.NewReservationRepo(txManager)
	transferRepo := inventory_repo.NewTransferRepo(txManager)
	receivingRepo := inventory_repo.NewReceivingRepo(txManager)

	// --- Services ---
	branchSvc := branch.NewService(branchRepo)
	variantSvc := variant.NewService(variantRepo)
	serialSvc := serial.NewService(serialRepo, variantSvc, txManager)
	ledgerSvc := ledger.NewService(ledgerRepo, variantSvc, txManager)

	reservationCfg := reservation.DefaultConfig()
	if ttl := getEnvDuration("RESERVATION_TTL", 0); ttl > 0 {
		reservationCfg.DefaultTTL = ttl
	}
	reservationSvc := reservation.NewService(reservationRepo, txManager, reservationCfg)

	numbers := numerator.New(pool)

	transferCfg := transfer.DefaultConfig()
	if window := getEnvDuration("TRANSFER_DUPLICATE_WINDOW", 0); window > 0 {
		transferCfg.DuplicateWindow = window
	}
	transferSvc := transfer.NewService(
		transferRepo,
		branchSvc,
		variantSvc,
		serialSvc,
		reservationSvc,
		ledgerSvc,
		numbers,
		txManager,
		transferCfg,
	)

	receivingSvc, err := receiving.NewService(
		receivingRepo,
		serialSvc,
		variantSvc,
		ledgerSvc,
		txManager,
		receiving.Config{GateExpression: getEnv("RECEIVING_GATE_EXPR", "")},
	)
	if err != nil {
		log.Fatalw("failed to compile receiving gate expression", "error", err)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		TokenValidator: middleware.NewHMACValidator(mustEnv("JWT_SECRET")),
		Archiver:       archiver,
		Branches:       branchSvc,
		Variants:       variantSvc,
		Serials:        serialSvc,
		Entries:        ledgerSvc,
		Transfers:      transferSvc,
		Receiving:      receivingSvc,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
