package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowkora/config"
	httpHandler "flowkora/internal/adapter/http/handler"
	"flowkora/internal/adapter/http/middleware"
	pgStorage "flowkora/internal/adapter/storage/postgres"
	redisStorage "flowkora/internal/adapter/storage/redis"
	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/internal/service"
	"flowkora/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func runServer(cfg *config.Config, migrate bool) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting FlowKora")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if migrate {
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info().Msg("Schema applied")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	apiKeyRepo := pgStorage.NewAPIKeyRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	deliveryRepo := pgStorage.NewNotificationRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Redis stores
	nonceStore := redisStorage.NewNonceStore(rdb)
	challengeStore := redisStorage.NewChallengeStore(rdb)
	sessionCache := redisStorage.NewSessionCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		return fmt.Errorf("init encryption service: %w", err)
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTSessionTokenService(cfg.Session.Secret, cfg.Session.Expiry, cfg.Session.Issuer)

	chain, closeChain, err := newChainVerifier(ctx, cfg.Chain, logger.Component(log, "chain"))
	if err != nil {
		return err
	}
	defer closeChain()

	// Business services
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, log)
	identitySvc := service.NewIdentityService(tokenSvc, merchantRepo, apiKeySvc, log)
	merchantSvc := service.NewMerchantService(merchantRepo, encSvc, log)
	notifier := service.NewNotificationService(merchantRepo, deliveryRepo, encSvc, sigSvc, service.NewNotificationHTTPClient(), logger.Component(log, "notifier"))
	sessionSvc := service.NewPaymentSessionService(
		txRepo,
		merchantRepo,
		sessionCache,
		transactor,
		chain,
		notifier,
		service.PaymentSessionConfig{
			BaseURL:  cfg.Payment.BaseURL,
			CacheTTL: cfg.Payment.SessionCacheTTL,
		},
		log,
	)
	walletSvc := service.NewWalletService(
		merchantRepo,
		challengeStore,
		service.NewEthSignatureVerifier(),
		service.WalletConfig{
			Statement:    cfg.Wallet.Statement,
			ChallengeTTL: cfg.Wallet.ChallengeTTL,
		},
		log,
	)
	reportingSvc := service.NewReportingService(txRepo)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		IdentitySvc:    identitySvc,
		APIKeySvc:      apiKeySvc,
		MerchantSvc:    merchantSvc,
		SessionSvc:     sessionSvc,
		WalletSvc:      walletSvc,
		ReportingSvc:   reportingSvc,
		AuditSvc:       auditSvc,
		SigSvc:         sigSvc,
		NonceStore:     nonceStore,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
		},
		SessionCookieName: cfg.Session.CookieName,
		Webhook: middleware.WebhookAuthConfig{
			Secret:   cfg.Webhook.Secret,
			MaxDrift: cfg.Webhook.MaxDrift,
			NonceTTL: cfg.Webhook.NonceTTL,
		},
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger.Component(log, "http"),
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}

// newChainVerifier dials the configured RPC node. With no node configured
// it returns a nil verifier and reconciliation trusts the webhook.
func newChainVerifier(ctx context.Context, cfg config.ChainConfig, log zerolog.Logger) (ports.ChainVerifier, func(), error) {
	if cfg.RPCURL == "" {
		log.Warn().Msg("chain.rpc_url not set, on-chain transfer verification disabled")
		return nil, func() {}, nil
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial chain RPC: %w", err)
	}

	tokens := make(map[domain.Currency]service.TokenContract, len(domain.SupportedCurrencies))
	for _, currency := range domain.SupportedCurrencies {
		tc, ok := cfg.Token(string(currency))
		if !ok {
			continue
		}
		tokens[currency] = service.TokenContract{
			Address:  common.HexToAddress(tc.Address),
			Decimals: tc.Decimals,
		}
	}
	log.Info().Int("tokens", len(tokens)).Msg("On-chain verification enabled")

	return service.NewEthChainVerifier(client, tokens, log), client.Close, nil
}
