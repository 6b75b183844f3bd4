// Package service wires the HTTP surface to the reduction pipeline: it
// owns the request orchestrator and the server lifecycle.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/reductionist/chunkcache"
	"github.com/c360/reductionist/config"
	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/governor"
	"github.com/c360/reductionist/health"
	"github.com/c360/reductionist/metric"
	"github.com/c360/reductionist/pkg/tlsutil"
	"github.com/c360/reductionist/request"
	"github.com/c360/reductionist/storage"
	"github.com/c360/reductionist/storage/httpstore"
	"github.com/c360/reductionist/storage/s3store"
	"github.com/c360/reductionist/trace"
)

// Dependencies carries the collaborators the server needs. Zero-value
// fields are filled with working defaults by New.
type Dependencies struct {
	Logger   *slog.Logger
	Metrics  *metric.Registry
	Tracer   trace.Tracer
	Governor *governor.Governor
	Cache    *chunkcache.Cache
	S3       storage.Fetcher
	HTTP     storage.Fetcher
}

// Server is the reduction service.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.Registry
	tracer  trace.Tracer
	gov     *governor.Governor
	cache   *chunkcache.Cache
	monitor *health.Monitor

	fetchers map[request.Backend]storage.Fetcher

	httpServer *http.Server
	workCancel context.CancelFunc
}

// New assembles a server from configuration and dependencies.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = metric.NewRegistry()
	}
	tracer := deps.Tracer
	if tracer == nil {
		if cfg.TracingEnabled {
			tracer = trace.NewLogging(logger)
		} else {
			tracer = trace.NewNoop()
		}
	}
	gov := deps.Governor
	if gov == nil {
		gov = governor.New(governor.Config{
			S3ConnectionLimit: cfg.S3ConnectionLimit,
			MemoryLimit:       cfg.MemoryLimit,
			CPULimit:          cfg.EffectiveCPULimit(),
			UseCPUPool:        cfg.UseCPUPool,
		})
	}

	cache := deps.Cache
	if cache == nil && cfg.CacheEnabled {
		var err error
		cache, err = chunkcache.New(chunkcache.Config{
			Path:          cfg.CachePath,
			TTL:           cfg.CacheTTL,
			PruneInterval: cfg.CachePruneInterval,
			SizeLimit:     cfg.CacheSizeLimit,
			QueueSize:     cfg.CacheQueueSize,
			KeyTemplate:   cfg.CacheKey,
			BypassAuth:    cfg.CacheBypassAuth,
		}, logger, metrics.Core)
		if err != nil {
			return nil, err
		}
	}

	s3 := deps.S3
	if s3 == nil {
		s3 = s3store.New()
	}
	httpFetcher := deps.HTTP
	if httpFetcher == nil {
		httpFetcher = httpstore.New()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		gov:     gov,
		cache:   cache,
		monitor: health.NewMonitor(),
		fetchers: map[request.Backend]storage.Fetcher{
			request.BackendS3:    s3,
			request.BackendHTTP:  httpFetcher,
			request.BackendHTTPS: httpFetcher,
		},
	}
	if cache != nil {
		s.monitor.RegisterCheck("cache_writer", func() error {
			depth := cache.QueueDepth()
			if depth >= cfg.CacheQueueSize {
				return errors.Newf(errors.KindInternal, "chunkcache", "health",
					"ingestion queue saturated (%d pending)", depth)
			}
			return nil
		})
	}
	return s, nil
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/{op}", s.handleOperation(request.V1))
	mux.HandleFunc("POST /v2/{op}", s.handleOperation(request.V2))
	mux.HandleFunc("GET /.well-known/reductionist-schema", s.handleSchema)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", s.monitor.Handler())
	return mux
}

// Start launches the governor, the cache and the HTTP listener, then
// blocks until ctx is cancelled or the listener fails. Shutdown is
// graceful within the configured timeout; the cache writer keeps draining
// until the same deadline.
func (s *Server) Start(ctx context.Context) error {
	// Background work gets its own context so cancelling ctx (the signal
	// context) does not kill the cache writer before it drains; it is
	// cancelled once shutdown completes.
	workCtx, workCancel := context.WithCancel(context.Background())
	s.workCancel = workCancel

	if err := s.gov.Start(workCtx); err != nil {
		workCancel()
		return err
	}
	if s.cache != nil {
		if err := s.cache.Start(workCtx); err != nil {
			workCancel()
			return err
		}
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLSEnabled {
			tlsConfig, tlsErr := tlsutil.LoadServerTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
			if tlsErr != nil {
				serveErr <- tlsErr
				return
			}
			s.httpServer.TLSConfig = tlsConfig
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	s.logger.Info("reductionist listening",
		"addr", s.cfg.ListenAddr(), "tls", s.cfg.TLSEnabled,
		"cache", s.cache != nil)

	select {
	case err := <-serveErr:
		s.workCancel()
		return errors.Wrap(err, errors.KindInternal, "service", "Start", "serve")
	case <-ctx.Done():
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down", "timeout", s.cfg.ShutdownTimeout)
	defer s.workCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	if s.cache != nil {
		remaining := time.Until(deadlineOf(shutdownCtx))
		if cacheErr := s.cache.Stop(remaining); cacheErr != nil {
			s.logger.Warn("cache writer did not drain before deadline", "error", cacheErr)
		}
	}
	if stopErr := s.gov.Stop(time.Second); stopErr != nil {
		s.logger.Warn("cpu pool did not drain before deadline", "error", stopErr)
	}
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "service", "shutdown", "http shutdown")
	}
	s.logger.Info("shutdown complete")
	return nil
}

func deadlineOf(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	return time.Now()
}

// handleSchema serves the v2 request body schema.
func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write([]byte(request.SchemaV2))
}
