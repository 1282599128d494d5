package handler

import (
	"marketplace-ledger/internal/adapter/http/middleware"
	redisStore "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	WalletSvc      ports.WalletService
	RechargeSvc    ports.RechargeService
	AffiliationSvc ports.AffiliationService
	DisputeSvc     ports.DisputeService
	TokenSvc       ports.TokenService
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Collector // nil = /metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)
	conciliatorOnly := middleware.RequireRole(domain.RoleConciliator)

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- Wallet queries and lifecycle ---
	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.GET("/me", rl("queries"), walletHandler.GetOwn)
		wallets.GET("/me/transactions", rl("queries"), walletHandler.ListOwnTransactions)
		wallets.POST("/:id/freeze", adminOnly, rl("workflows"), walletHandler.Freeze)
		wallets.POST("/:id/unfreeze", adminOnly, rl("workflows"), walletHandler.Unfreeze)
		wallets.POST("/:id/close", adminOnly, rl("workflows"), walletHandler.Close)
	}

	// --- Ledger operations ---
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	ledger := v1.Group("/ledger", jwtAuth)
	{
		ledger.POST("/transfers", rl("ledger"), ledgerHandler.Transfer)
		ledger.POST("/users/:id/credit", adminOnly, rl("ledger"), ledgerHandler.Credit)
		ledger.POST("/users/:id/debit", adminOnly, rl("ledger"), ledgerHandler.Debit)
	}

	// --- Recharge workflow ---
	rechargeHandler := NewRechargeHandler(deps.RechargeSvc)
	recharges := v1.Group("/recharges", jwtAuth)
	{
		recharges.POST("", rl("recharges"), rechargeHandler.Create)
		recharges.GET("/:id", rl("queries"), rechargeHandler.Get)
		recharges.POST("/:id/approve", adminOnly, rl("workflows"), rechargeHandler.Approve)
		recharges.POST("/:id/reject", adminOnly, rl("workflows"), rechargeHandler.Reject)
	}

	// --- Referral workflow ---
	affiliationHandler := NewAffiliationHandler(deps.AffiliationSvc)
	affiliations := v1.Group("/affiliations", jwtAuth)
	{
		affiliations.POST("", rl("workflows"), affiliationHandler.Create)
		affiliations.GET("/:id", rl("queries"), affiliationHandler.Get)
		affiliations.POST("/:id/approve", rl("workflows"), affiliationHandler.Approve)
	}

	// --- Dispute workflow ---
	disputeHandler := NewDisputeHandler(deps.DisputeSvc)
	disputes := v1.Group("/disputes", jwtAuth)
	{
		disputes.POST("", rl("workflows"), disputeHandler.Open)
		disputes.GET("/:id", rl("queries"), disputeHandler.Get)
		disputes.POST("/:id/assign", conciliatorOnly, rl("workflows"), disputeHandler.Assign)
		disputes.POST("/:id/reassign", conciliatorOnly, rl("workflows"), disputeHandler.Reassign)
		disputes.POST("/:id/resolve", conciliatorOnly, rl("workflows"), disputeHandler.Resolve)
	}

	return r
}
