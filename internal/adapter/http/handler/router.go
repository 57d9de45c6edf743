package handler

import (
	"time"

	"flowkora/internal/adapter/http/middleware"
	"flowkora/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	IdentitySvc    ports.IdentityService
	APIKeySvc      ports.APIKeyService
	MerchantSvc    ports.MerchantService
	SessionSvc     ports.PaymentSessionService
	WalletSvc      ports.WalletService
	ReportingSvc   ports.ReportingService
	AuditSvc       ports.AuditService // nil = audit logging disabled
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker

	SessionCookieName string
	Webhook           middleware.WebhookAuthConfig
	RequestTimeout    time.Duration
	Logger            zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Timeout(deps.RequestTimeout))
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Deep health check against PostgreSQL and Redis
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

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

	api := r.Group("/api")

	// --- Public routes (no auth) ---
	paymentHandler := NewPaymentHandler(deps.SessionSvc)
	api.GET("/payment-session/:id", rl(middleware.RateGroupPublicSession), paymentHandler.GetPublicSession)

	// --- HMAC-authenticated payment-status webhook ---
	webhookAuth := middleware.WebhookAuth(deps.Webhook, deps.SigSvc, deps.NonceStore, deps.Logger)
	api.POST("/webhook/payment-status", rl(middleware.RateGroupWebhook), webhookAuth, paymentHandler.PaymentStatusWebhook)

	// --- Merchant routes ---
	// Key management, profile and wallet routes require a session; the
	// integration routes also accept an API key.
	sessionAuth := middleware.SessionAuth(deps.IdentitySvc, deps.SessionCookieName, deps.Logger)
	integrationAuth := middleware.SessionOrAPIKeyAuth(deps.IdentitySvc, deps.SessionCookieName, deps.Logger)
	merchantRL := rl(middleware.RateGroupMerchant)

	apiKeyHandler := NewAPIKeyHandler(deps.APIKeySvc)
	merchantHandler := NewMerchantHandler(deps.MerchantSvc)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)

	merchant := api.Group("/merchant")
	{
		merchant.GET("/api-keys", sessionAuth, merchantRL, apiKeyHandler.List)
		merchant.POST("/api-keys", sessionAuth, rl(middleware.RateGroupAPIKeyIssue), apiKeyHandler.Issue)
		merchant.PUT("/api-keys/:id", sessionAuth, merchantRL, apiKeyHandler.Update)
		merchant.DELETE("/api-keys/:id", sessionAuth, merchantRL, apiKeyHandler.Revoke)

		merchant.GET("/profile", sessionAuth, merchantRL, merchantHandler.GetProfile)
		merchant.PUT("/profile", sessionAuth, merchantRL, merchantHandler.UpdateProfile)
		merchant.POST("/webhook-secret", sessionAuth, merchantRL, merchantHandler.RotateWebhookSecret)

		merchant.POST("/verify-payout-wallet/challenge", sessionAuth, rl(middleware.RateGroupWalletChallenge), walletHandler.IssueChallenge)
		merchant.POST("/verify-payout-wallet", sessionAuth, merchantRL, walletHandler.Verify)

		merchant.GET("/dashboard/stats", sessionAuth, merchantRL, dashboardHandler.GetStats)
		merchant.GET("/transactions", integrationAuth, merchantRL, dashboardHandler.ListTransactions)
		merchant.POST("/create-payment-session", integrationAuth, merchantRL, paymentHandler.CreateSession)
	}

	return r
}
