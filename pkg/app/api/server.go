// Package api wires the token metrics HTTP server together.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainsight/token-metrics/pkg/app"
	apphttp "github.com/chainsight/token-metrics/pkg/app/http"
	"github.com/chainsight/token-metrics/pkg/config"
	"github.com/chainsight/token-metrics/pkg/pgutil"
	"github.com/chainsight/token-metrics/pkg/ranking"
	"github.com/chainsight/token-metrics/pkg/token/service"
	"github.com/chainsight/token-metrics/pkg/tokendb"
)

// Server is the metrics API server runner.
type Server struct {
	cfg *config.Config
}

var _ app.Runner = (*Server)(nil)

// NewServer creates a Server from loaded configuration.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	logger, err := config.NewLogger(s.cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting token metrics server",
		zap.String("host", s.cfg.Server.Host),
		zap.Int("port", s.cfg.Server.Port))

	db, err := pgutil.ConnectDB(&s.cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to database",
		zap.String("host", s.cfg.Database.Host),
		zap.String("database", s.cfg.Database.Database))

	store := tokendb.NewStore(db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if s.cfg.Ranking.Enabled {
		refresher, err := ranking.New(store, ranking.Options{
			Interval: s.cfg.Ranking.RefreshInterval,
		}, logger)
		if err != nil {
			return fmt.Errorf("setup ranking refresher: %w", err)
		}
		stop := refresher.Start(ctx)
		defer stop()
	}

	svc := service.NewService(store, s.cfg.Ingest, logger)

	router := s.buildRouter(svc, db)

	return apphttp.ServeAndWait(ctx, router, logger, &s.cfg.Server)
}

func (s *Server) buildRouter(svc *service.Service, pinger interface {
	PingContext(ctx context.Context) error
}) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	r.Get("/health", apphttp.HandleError(func(w http.ResponseWriter, r *http.Request) error {
		status := "ok"
		code := http.StatusOK
		if err := pinger.PingContext(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, err := fmt.Fprintf(w, `{"status":%q}`, status)
		return err
	}))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", svc.RegisterRoutes)

	return r
}
