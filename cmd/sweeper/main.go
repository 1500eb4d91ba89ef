// Package main is the entry point for the reservation sweeper.
// It periodically releases expired reservations and fails the
// transfers that held them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"branchstock/internal/domain/catalogs/branch"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/domain/reservation"
	"branchstock/internal/domain/serial"
	"branchstock/internal/domain/transfer"
	"branchstock/internal/domain/variant"
	"branchstock/internal/infrastructure/storage/postgres"
	"branchstock/internal/infrastructure/storage/postgres/inventory_repo"
	"branchstock/pkg/logger"
	"branchstock/pkg/numerator"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting reservation sweeper")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	branchSvc := branch.NewService(inventory_repo.NewBranchRepo(txManager))
	variantSvc := variant.NewService(inventory_repo.NewVariantRepo(txManager))
	serialSvc := serial.NewService(inventory_repo.NewSerialRepo(txManager), variantSvc, txManager)
	ledgerSvc := ledger.NewService(inventory_repo.NewLedgerRepo(txManager), variantSvc, txManager)
	reservationSvc := reservation.NewService(inventory_repo.NewReservationRepo(txManager), txManager, reservation.DefaultConfig())
	transferSvc := transfer.NewService(
		inventory_repo.NewTransferRepo(txManager),
		branchSvc,
		variantSvc,
		serialSvc,
		reservationSvc,
		ledgerSvc,
		numerator.New(pool),
		txManager,
		transfer.DefaultConfig(),
	)

	interval := getEnvDuration("SWEEP_INTERVAL", time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Infow("sweeper running", "interval", interval)

	for {
		select {
		case <-ticker.C:
			sweep(ctx, log, reservationSvc, transferSvc)
		case <-quit:
			log.Info("sweeper stopped")
			return
		}
	}
}

// sweep releases expired holds and fails the transfers behind them.
func sweep(ctx context.Context, log *logger.Logger, reservations *reservation.Service, transfers *transfer.Service) {
	released, err := reservations.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Errorw("sweep failed", "error", err)
		return
	}
	if len(released) == 0 {
		return
	}

	log.Infow("released expired reservations", "count", len(released))

	for _, hold := range released {
		if hold.ReferenceKind != reservation.RefTransfer || hold.ReferenceID == nil {
			continue
		}
		if err := transfers.Fail(ctx, *hold.ReferenceID, "reservation expired"); err != nil {
			log.Warnw("failed to mark transfer as failed",
				"transfer_id", *hold.ReferenceID,
				"reservation_id", hold.ID,
				"error", err,
			)
		}
	}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
