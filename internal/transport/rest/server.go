package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/KotFed0t/blu_rebalancer/config"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

type RebalanceService interface {
	GetPortfolioSnapshot(ctx context.Context, userID int64) (model.PortfolioSnapshot, error)
	PreviewRebalance(ctx context.Context, userID int64, mode model.RebalanceMode) (model.RebalancePreview, error)
	ExecuteRebalance(ctx context.Context, userID int64, mode model.RebalanceMode, acknowledgedWarning bool) (model.RebalanceResult, error)
	CheckRebalanceCooldown(ctx context.Context, userID int64) (model.CooldownStatus, error)
	Deposit(ctx context.Context, userID int64, amountIrr decimal.Decimal) (model.PortfolioSnapshot, error)
	ClosePosition(ctx context.Context, userID int64, assetID model.AssetID, acknowledgedWarning bool) (model.PortfolioSnapshot, error)
}

type Server struct {
	router *chi.Mux
	server *http.Server
	srv    RebalanceService
	clock  clockwork.Clock
}

func New(cfg *config.Config, srv RebalanceService, clock clockwork.Clock) *Server {
	s := &Server{
		router: chi.NewRouter(),
		srv:    srv,
		clock:  clock,
	}

	s.setupMiddleware(cfg.HTTP.AllowedOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestID)
	s.router.Use(Logger)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1/users/{userID}", func(r chi.Router) {
		r.Get("/portfolio", s.handlePortfolio)
		r.Post("/deposits", s.handleDeposit)
		r.Post("/positions/{assetID}/close", s.handleClosePosition)
		r.Get("/rebalance/preview", s.handlePreview)
		r.Get("/rebalance/cooldown", s.handleCooldown)
		r.Post("/rebalance", s.handleExecute)
	})
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	slog.Info("http server started", slog.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("start stopping http server")
	return s.server.Shutdown(ctx)
}
