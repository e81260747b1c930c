package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"govrfp/internal/config"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "GovRFP AI"

// backlogPerWorker is how many /api requests may queue per worker slot
// before the throttle rejects new ones.
const backlogPerWorker = 16

type Config struct {
	App    config.Config
	Logger zerolog.Logger
	Store  Store
	Audit  AuditLog // nil disables the audit trail
}

type Server struct {
	cfg        config.Config
	log        zerolog.Logger
	store      Store
	auditLog   AuditLog
	metrics    *Metrics
	limiter    *rateLimiter
	httpServer *http.Server
}

func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg.App,
		log:      cfg.Logger,
		store:    cfg.Store,
		auditLog: cfg.Audit,
		metrics:  NewMetrics(),
	}
	if s.auditLog == nil {
		s.auditLog = NopAudit{}
	}
	if lim := cfg.App.Limits; lim.RateLimitRPS > 0 {
		s.limiter = newRateLimiter(lim.RateLimitRPS, lim.RateLimitBurst, s.metrics)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.App.Server.Addr(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.App.Server.RequestTimeout,
		WriteTimeout:      cfg.App.Server.RequestTimeout,
		IdleTimeout:       2 * cfg.App.Server.RequestTimeout,
	}
	return s
}

// routes wires middleware and handlers:
// [RealIP when TRUST_PROXY] -> requestID -> logger -> access log -> recover -> headers -> compress -> mux.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	if s.cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestIDMiddleware)
	r.Use(hlog.NewHandler(s.log))
	r.Use(requestLoggerMiddleware)
	r.Use(hlog.AccessHandler(s.accessLog))
	r.Use(recoverMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(middleware.Compress(5, "text/html", "application/json", "text/plain"))

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/live", s.handleLive)
	r.Get("/ready", s.handleReady)
	r.Get("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		workers := s.cfg.Limits.Workers
		r.Use(middleware.ThrottleBacklog(workers, workers*backlogPerWorker, s.cfg.Server.RequestTimeout))

		r.Post("/analyze", s.handleAnalyze)
		r.Post("/upload", s.handleUpload)
	})

	return r
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
