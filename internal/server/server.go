package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inventoflow/internal/config"
	"inventoflow/internal/identity"
	custommiddleware "inventoflow/internal/middleware"
	"inventoflow/internal/service"
	"inventoflow/internal/session"
	"inventoflow/internal/transport"
)

// Dependencies are the collaborators built by main.
type Dependencies struct {
	Identity  *identity.Client
	Sessions  session.Store
	Redis     *redis.Client
	Inventory *service.InventoryService
	Advisor   transport.Advisor

	// Closers are released, in order, by Close.
	Closers []io.Closer
}

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	closers []io.Closer
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) (*Server, error) {
	router, err := NewRouter(cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		closers: deps.Closers,
	}

	return server, nil
}

// NewRouter builds the complete route tree.
func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) (chi.Router, error) {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	renderer, err := transport.NewRenderer(logger)
	if err != nil {
		return nil, err
	}

	sessionMiddleware := custommiddleware.SessionMiddleware(deps.Sessions, deps.Identity, custommiddleware.SessionOptions{
		CookieName: cfg.Session.CookieName,
		TTL:        time.Duration(cfg.Session.TTLHours) * time.Hour,
		Secure:     cfg.IsProduction(),
	}, logger)
	requireAuth := custommiddleware.RequireAuthenticated(logger)
	publicOnly := custommiddleware.RedirectIfAuthenticated(logger)

	accountHandler := transport.NewAccountHandler(deps.Identity, renderer, logger)
	inventoryHandler := transport.NewInventoryHandler(deps.Inventory, deps.Advisor, renderer, logger)

	insightLimit := custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Insight.RateLimitPerMinute,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:insight",
		OnLimited:         inventoryHandler.InsightLimited,
	}, logger)

	attemptLimit := custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Session.AccountRateLimit,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:account",
		KeyFunc:           custommiddleware.RemoteAddress,
		OnLimited:         accountHandler.AttemptsLimited,
	}, logger)

	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, !cfg.IsProduction()))
		r.Use(sessionMiddleware)

		accountHandler.RegisterRoutes(r, publicOnly, requireAuth, attemptLimit)
		inventoryHandler.RegisterRoutes(r, requireAuth, insightLimit)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	return router, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Error("Failed to close resource", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
