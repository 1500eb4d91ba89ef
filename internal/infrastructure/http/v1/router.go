// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"branchstock/internal/domain/catalogs/branch"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/domain/receiving"
	"branchstock/internal/domain/serial"
	"branchstock/internal/domain/transfer"
	"branchstock/internal/domain/variant"
	"branchstock/internal/infrastructure/http/v1/handlers"
	"branchstock/internal/infrastructure/http/v1/middleware"
	"branchstock/internal/infrastructure/storage/postgres"
	"branchstock/pkg/logger"
)

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator for bearer token validation
	TokenValidator middleware.TokenValidator

	// Archiver streams ledger archive exports
	Archiver *postgres.Archiver

	Branches  *branch.Service
	Variants  *variant.Service
	Serials   *serial.Service
	Entries   *ledger.Service
	Transfers *transfer.Service
	Receiving *receiving.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	// API v1, bearer token required
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.TokenValidator))
	{
		branchHandler := handlers.NewBranchHandler(cfg.Branches)
		branches := api.Group("/branches")
		{
			branches.POST("", branchHandler.Create)
			branches.GET("", branchHandler.List)
			branches.GET("/:id", branchHandler.Get)
		}

		variantHandler := handlers.NewVariantHandler(cfg.Variants, cfg.Serials, cfg.Entries)
		variants := api.Group("/variants")
		{
			variants.POST("", variantHandler.Create)
			variants.GET("/:id", variantHandler.Get)
			variants.DELETE("/:id", variantHandler.Deactivate)
			variants.GET("/:id/children", variantHandler.ListChildren)
			variants.GET("/:id/units", variantHandler.ListUnits)
			variants.POST("/:id/units", variantHandler.RegisterUnit)
			variants.GET("/:id/reconcile", variantHandler.Reconcile)
		}

		unitHandler := handlers.NewUnitHandler(cfg.Serials)
		units := api.Group("/units")
		{
			units.GET("/:id", unitHandler.Get)
			units.GET("/by-serial/:serial", unitHandler.GetBySerial)
			units.POST("/:id/status", unitHandler.ChangeStatus)
		}

		transferHandler := handlers.NewTransferHandler(cfg.Transfers)
		transfers := api.Group("/transfers")
		{
			transfers.POST("", transferHandler.Request)
			transfers.GET("", transferHandler.List)
			transfers.GET("/stats", transferHandler.Stats)
			transfers.GET("/:id", transferHandler.Get)
			transfers.POST("/:id/approve", transferHandler.Approve)
			transfers.POST("/:id/in-transit", transferHandler.MarkInTransit)
			transfers.POST("/:id/complete", transferHandler.Complete)
			transfers.POST("/:id/cancel", transferHandler.Cancel)
		}

		receivingHandler := handlers.NewReceivingHandler(cfg.Receiving)
		recv := api.Group("/receiving")
		{
			recv.GET("/lines/:id", receivingHandler.GetLine)
			recv.POST("/lines/:id/receive", receivingHandler.ReceiveLine)
		}

		ledgerHandler := handlers.NewLedgerHandler(cfg.Entries, cfg.Archiver)
		ledgerGroup := api.Group("/ledger")
		{
			ledgerGroup.GET("", ledgerHandler.History)
			ledgerGroup.GET("/export", ledgerHandler.Export)
		}
	}

	return router
}
