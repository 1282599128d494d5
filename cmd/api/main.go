package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-ledger/config"
	"marketplace-ledger/internal/adapter/events/rabbitmq"
	httpHandler "marketplace-ledger/internal/adapter/http/handler"
	pgStorage "marketplace-ledger/internal/adapter/storage/postgres"
	redisStorage "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/service"
	"marketplace-ledger/pkg/logger"
	"marketplace-ledger/pkg/metrics"

	"github.com/google/uuid"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Marketplace Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize RabbitMQ publisher (optional)
	var publisher ports.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer p.Close()
		publisher = p
		log.Info().Msg("RabbitMQ connected")
	} else {
		log.Warn().Msg("RabbitMQ URL not configured, ledger events disabled")
	}

	// Admin wallet for referral fees (optional; referral approvals fail
	// with CFG_002 until it is configured)
	var adminWalletID uuid.UUID
	if cfg.Ledger.AdminWalletID != "" {
		adminWalletID, err = uuid.Parse(cfg.Ledger.AdminWalletID)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid ledger.admin_wallet_id")
		}
	} else {
		log.Warn().Msg("Admin wallet not configured, referral approvals disabled")
	}

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	rechargeRepo := pgStorage.NewRechargeRepo(pool)
	affiliationRepo := pgStorage.NewAffiliationRepo(pool)
	feeConfigRepo := pgStorage.NewFeeConfigRepo(pool)
	purchaseRepo := pgStorage.NewPurchaseRepo(pool)
	disputeRepo := pgStorage.NewDisputeRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// A configured admin wallet must exist before serving traffic.
	if adminWalletID != uuid.Nil {
		w, err := walletRepo.GetByID(ctx, adminWalletID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to verify admin wallet")
		}
		if w == nil {
			log.Fatal().Str("wallet_id", adminWalletID.String()).Msg("Configured admin wallet does not exist")
		}
	}

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Metrics
	collector := metrics.NewCollector()

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	ledgerSvc := service.NewLedgerService(
		walletRepo,
		txRepo,
		idempotencyRepo,
		idempotencyCache,
		transactor,
		publisher,
		collector,
		cfg.Ledger.DefaultCurrency,
		log,
	)
	authSvc := service.NewAuthService(
		userRepo, walletRepo, affiliationRepo,
		hashSvc, tokenSvc, transactor,
		cfg.Ledger.DefaultCurrency, log,
	)
	walletSvc := service.NewWalletService(walletRepo, txRepo, transactor, log)
	rechargeSvc := service.NewRechargeService(rechargeRepo, walletRepo, ledgerSvc, cfg.Ledger.DefaultCurrency, log)
	affiliationSvc := service.NewAffiliationService(
		affiliationRepo, feeConfigRepo, userRepo, walletRepo,
		ledgerSvc, adminWalletID, log,
	)
	disputeSvc := service.NewDisputeService(disputeRepo, purchaseRepo, userRepo, walletRepo, ledgerSvc, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      ledgerSvc,
		WalletSvc:      walletSvc,
		RechargeSvc:    rechargeSvc,
		AffiliationSvc: affiliationSvc,
		DisputeSvc:     disputeSvc,
		TokenSvc:       tokenSvc,
		AuditSvc:       auditSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Metrics:        collector,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
