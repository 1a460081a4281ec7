// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"billing-service/internal/config"
	"billing-service/internal/db"
	catalogHandler "billing-service/internal/handlers/catalog"
	checkoutHandler "billing-service/internal/handlers/checkout"
	healthHandler "billing-service/internal/handlers/health"
	subscriptionHandler "billing-service/internal/handlers/subscription"
	webhookHandler "billing-service/internal/handlers/webhook"
	"billing-service/internal/gateway/stripegw"
	"billing-service/internal/middleware"
	"billing-service/internal/pkg/dedupe"
	"billing-service/internal/pkg/jwt"
	"billing-service/internal/pkg/ratelimit"
	"billing-service/internal/repository/postgres"
	authUsecase "billing-service/internal/service/auth"
	catalogUsecase "billing-service/internal/service/catalog"
	checkoutUsecase "billing-service/internal/service/checkout"
	subscriptionUsecase "billing-service/internal/service/subscription"
	webhookUsecase "billing-service/internal/service/webhook"
)

const (
	version              = "1.0.0"
	memoryDedupeCapacity = 10000
)

type Server struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer(cfg *config.AppConfig, logger *zap.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Start wires dependencies and serves HTTP until ctx is canceled, then drains
// in-flight requests for up to ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	logger := s.logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{
		URL:            s.cfg.Database.URL,
		MaxConns:       s.cfg.Database.MaxConns,
		MinConns:       s.cfg.Database.MinConns,
		ConnectRetries: s.cfg.Database.ConnectRetries,
		RetryInterval:  s.cfg.Database.RetryInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if s.cfg.Database.RunMigrations {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// ----- Redis (optional) -----
	var redisClient redis.UniversalClient
	if len(s.cfg.Redis.Addresses) > 0 {
		redisClient, err = db.NewRedisClient(db.RedisConfig{
			Addresses: s.cfg.Redis.Addresses,
			Password:  s.cfg.Redis.Password,
			DB:        s.cfg.Redis.DB,
			PoolSize:  s.cfg.Redis.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("redis connected", zap.Strings("addresses", s.cfg.Redis.Addresses))
	} else {
		logger.Warn("redis not configured, using in-process dedupe cache and no rate limiting")
	}

	// ----- Repositories -----
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	processedEventRepo := postgres.NewProcessedEventRepository(pool)

	// ----- External services -----
	gateway := stripegw.New(s.cfg.Stripe.SecretKey, logger)

	verifier, err := jwt.LoadVerifier(s.cfg.JWT())
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	var (
		dedupeCache dedupe.Cache
		limiter     middleware.Limiter
	)
	if redisClient != nil {
		dedupeCache = dedupe.NewRedis(redisClient, "billing:webhook:seen:", s.cfg.Billing.WebhookDedupeTTL)
		limiter = ratelimit.NewRateLimiter(redisClient)
	} else {
		dedupeCache = dedupe.NewMemory(s.cfg.Billing.WebhookDedupeTTL, memoryDedupeCapacity)
	}

	// ----- Services (Usecases) -----
	directory := authUsecase.NewDirectoryService(verifier, logger)
	checkoutService := checkoutUsecase.NewService(
		subscriptionRepo,
		gateway,
		directory,
		logger,
		s.cfg.CompensationTimeout,
	)
	reducer := webhookUsecase.NewReducer(subscriptionRepo, gateway, logger)
	dispatcher := webhookUsecase.NewDispatcher(
		gateway,
		reducer,
		processedEventRepo,
		dedupeCache,
		webhookUsecase.DispatcherConfig{
			Secret:     s.cfg.Stripe.WebhookSecret,
			MaxAge:     s.cfg.Billing.WebhookMaxEventAge,
			ClaimLease: s.cfg.Billing.WebhookClaimLease,
		},
		logger,
	)
	subscriptionService := subscriptionUsecase.NewSubscriptionService(
		subscriptionRepo,
		gateway,
		subscriptionUsecase.Config{
			DefaultPlanName: s.cfg.Billing.DefaultPlanName,
			HistoryLimit:    s.cfg.Billing.HistoryLimit,
		},
		logger,
	)
	catalogService := catalogUsecase.NewCatalogService(gateway, redisClient, s.cfg.Billing.CatalogCacheTTL, logger)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.LoggingMiddleware(logger),
		middleware.RecoveryMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.CORSAllowedOrigins),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		HealthHandler:       healthHandler.NewHealthHandler(pool, version, logger),
		CatalogHandler:      catalogHandler.NewCatalogHandler(catalogService),
		CheckoutHandler:     checkoutHandler.NewCheckoutHandler(checkoutService),
		WebhookHandler:      webhookHandler.NewWebhookHandler(dispatcher),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(subscriptionService),
		AuthMiddleware:      middleware.NewAuthMiddleware(directory),
		CheckoutRateLimit: middleware.RateLimit(
			limiter, "checkout", int64(s.cfg.Billing.CheckoutRateLimit), time.Minute, logger,
		),
	})

	// ----- Start HTTP -----
	srv := &http.Server{
		Addr:              ":" + s.cfg.HTTPPort,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("environment", s.cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
