package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inventoflow/internal/alerts"
	"inventoflow/internal/config"
	"inventoflow/internal/database"
	"inventoflow/internal/identity"
	"inventoflow/internal/identity/cognito"
	"inventoflow/internal/identity/local"
	"inventoflow/internal/insight"
	"inventoflow/internal/itemstore"
	"inventoflow/internal/logger"
	"inventoflow/internal/repository"
	"inventoflow/internal/server"
	"inventoflow/internal/service"
	"inventoflow/internal/session"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

// newProvider builds the configured identity provider. The local provider
// needs the database, which is returned for closing.
func newProvider(ctx context.Context, cfg *config.Config, log *zap.Logger) (identity.Provider, io.Closer, error) {
	switch cfg.Identity.Provider {
	case config.ProviderCognito:
		provider, err := cognito.New(ctx, cfg.Identity.CognitoRegion, cfg.Identity.CognitoClientID, log)
		return provider, nil, err
	case config.ProviderLocal:
		db, err := database.New(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(db, log); err != nil {
			db.Close()
			return nil, nil, err
		}
		provider := local.NewProvider(
			repository.NewUserRepository(db),
			repository.NewRefreshTokenRepository(db),
			local.LogCodeSender{Logger: log},
			local.Options{
				JWTSecret:     cfg.JWT.Secret,
				AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
				RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
			},
			log,
		)
		return provider, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown identity provider %q", cfg.Identity.Provider)
	}
}

// newPublisher publishes to Pub/Sub when a project is configured and only
// logs alerts otherwise.
func newPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) (alerts.Publisher, io.Closer, error) {
	if cfg.Alerts.ProjectID == "" {
		return alerts.LogPublisher{Logger: log}, nil, nil
	}
	publisher, err := alerts.NewPubSubPublisher(ctx, cfg.Alerts.ProjectID, cfg.Alerts.LowStockTopic, log)
	if err != nil {
		return nil, nil, err
	}
	return publisher, publisher, nil
}

// newAdvisor returns a bridge without a generator when no API key is set,
// so questions are answered with the not-configured message.
func newAdvisor(ctx context.Context, cfg *config.Config, log *zap.Logger) (*insight.Bridge, error) {
	generator, err := insight.NewGenAIGenerator(ctx, cfg.Insight.APIKey, cfg.Insight.Model)
	if err != nil {
		return nil, err
	}
	if generator == nil {
		log.Warn("GEMINI_API_KEY is not set, insights are disabled")
		return insight.NewBridge(nil, log), nil
	}
	return insight.NewBridge(generator, log), nil
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting InventoFlow",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("identity_provider", cfg.Identity.Provider),
		zap.String("item_store", cfg.ItemStore.BaseURL),
	)

	ctx := context.Background()
	var closers []io.Closer

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
	}

	provider, providerCloser, err := newProvider(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize identity provider", zap.Error(err))
	}
	if providerCloser != nil {
		closers = append(closers, providerCloser)
	}

	publisher, publisherCloser, err := newPublisher(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize alert publisher", zap.Error(err))
	}
	if publisherCloser != nil {
		closers = append(closers, publisherCloser)
	}

	advisor, err := newAdvisor(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize insight generator", zap.Error(err))
	}

	store := itemstore.NewClient(cfg.ItemStore.BaseURL, nil, session.TokenFromContext, log)
	closers = append(closers, redisClient)

	srv, err := server.NewServer(cfg, log, server.Dependencies{
		Identity:  identity.NewClient(provider, log),
		Sessions:  session.NewRedisStore(redisClient, time.Duration(cfg.Session.TTLHours)*time.Hour),
		Redis:     redisClient,
		Inventory: service.NewInventoryService(store, publisher, log),
		Advisor:   advisor,
		Closers:   closers,
	})
	if err != nil {
		log.Fatal("Failed to build server", zap.Error(err))
	}

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
