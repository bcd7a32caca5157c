// Package bootstrap assembles the bridge services and runs the HTTP gateway.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgbridge/internal/bridge/app"
	bridgehttp "tgbridge/internal/bridge/http"
	"tgbridge/internal/bridge/ports"
	"tgbridge/internal/config"
	"tgbridge/internal/observability"
	"tgbridge/internal/shared/async"
	"tgbridge/internal/shared/logging"
	"tgbridge/internal/telegram/client"
	"tgbridge/internal/telegram/sessionstore"
)

const (
	shutdownTimeout = 10 * time.Second
	// The first /send may wait for the shared connect attempt.
	writeTimeoutSlack = 30 * time.Second
)

// ServiceVersion is reported to the tracing backend.
var ServiceVersion = "dev"

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger  logging.Logger
	factory ports.MessengerFactory
}

// WithLogger replaces the process logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithMessengerFactory replaces the Telegram client factory.
func WithMessengerFactory(factory ports.MessengerFactory) Option {
	return func(o *buildOptions) {
		o.factory = factory
	}
}

// Server is the assembled bridge. Nothing touches the network until Serve.
type Server struct {
	Config     config.Config
	Logger     logging.Logger
	Store      *sessionstore.FileStore
	Manager    *app.ConnectionManager
	Health     *app.HealthCoordinator
	Dispatcher *app.Dispatcher
	Metrics    *observability.Metrics
	Tracer     *observability.TracerProvider
	Handler    http.Handler
	Degraded   *DegradedComponents
}

// Build wires the session store, connection manager, health coordinator,
// dispatcher and router from cfg.
func Build(cfg config.Config, opts ...Option) (*Server, error) {
	options := buildOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	logger := options.logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("Bridge")
	}

	s := &Server{Config: cfg, Logger: logger, Degraded: NewDegradedComponents()}
	var recorder app.Recorder

	stages := []Stage{
		{
			Name: "tracing", Required: false,
			Init: func() error {
				tracer, err := observability.NewTracerProvider(observability.TracingConfig{
					Exporter:       cfg.Tracing.Exporter,
					OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
					ZipkinEndpoint: cfg.Tracing.ZipkinEndpoint,
					SampleRate:     cfg.Tracing.SampleRate,
					ServiceName:    cfg.Tracing.ServiceName,
					ServiceVersion: ServiceVersion,
				})
				if err != nil {
					return err
				}
				s.Tracer = tracer
				return nil
			},
		},
		{
			Name: "metrics", Required: false,
			Init: func() error {
				if !cfg.MetricsEnabled {
					return nil
				}
				s.Metrics = observability.NewMetrics()
				recorder = s.Metrics
				return nil
			},
		},
		{
			Name: "session", Required: true,
			Init: func() error {
				factory := options.factory
				if factory == nil {
					clientCfg := client.Config{AppID: cfg.APIID, AppHash: cfg.APIHash, Logger: logger}
					if err := clientCfg.Validate(); err != nil {
						return err
					}
					factory = client.NewFactory(clientCfg)
				}
				s.Store = sessionstore.NewFileStore(cfg.SessionPath, logger)
				manager, err := app.NewConnectionManager(s.Store, factory,
					app.WithConnectTimeout(cfg.ConnectTimeout),
					app.WithConnectionLogger(logger),
					app.WithConnectionRecorder(recorder),
				)
				if err != nil {
					return err
				}
				s.Manager = manager
				return nil
			},
		},
		{
			Name: "services", Required: true,
			Init: func() error {
				health, err := app.NewHealthCoordinator(s.Manager,
					app.WithHealthTTL(cfg.HealthTTL),
					app.WithHealthTimeout(cfg.HealthTimeout),
					app.WithHealthLogger(logger),
					app.WithHealthRecorder(recorder),
				)
				if err != nil {
					return err
				}
				dispatcher, err := app.NewDispatcher(s.Manager,
					app.WithDispatcherLogger(logger),
					app.WithDispatcherRecorder(recorder),
				)
				if err != nil {
					return err
				}
				s.Health = health
				s.Dispatcher = dispatcher
				return nil
			},
		},
	}
	if err := RunStages(stages, s.Degraded, logger); err != nil {
		return nil, err
	}

	s.Handler = bridgehttp.NewRouter(bridgehttp.RouterDeps{
		Health:  s.Health,
		Sender:  s.Dispatcher,
		Logger:  logger,
		Metrics: s.Metrics,
		Tracer:  s.Tracer,
		Config: bridgehttp.RouterConfig{
			Token: cfg.HTTPToken,
			RateLimit: bridgehttp.RateLimitConfig{
				RequestsPerMinute: cfg.SendRateLimitPerMinute,
				Burst:             cfg.SendRateLimitBurst,
			},
			CORSOrigins:    cfg.CORSAllowedOrigins,
			MetricsEnabled: cfg.MetricsEnabled,
			GinMode:        cfg.GinMode,
		},
	})

	if !s.Store.Exists() {
		logger.Warn("No session file found. Run bootstrap before calling /send.")
	}
	if !s.Degraded.IsEmpty() {
		logger.Warn("[Bootstrap] Starting in degraded mode: %s", s.Degraded)
	}
	return s, nil
}

// Serve accepts connections on listener until ctx is done, then shuts the
// gateway down and releases the Telegram session.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.Config.ConnectTimeout + writeTimeoutSlack,
		IdleTimeout:       120 * time.Second,
	}

	s.Logger.Info("telegram-bridge listening on %s", listener.Addr())
	errCh := async.Run(s.Logger, "http.serve", func() error {
		return server.Serve(listener)
	})

	select {
	case err := <-errCh:
		s.release()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)
	serveErr := <-errCh
	s.release()

	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", serveErr)
	}
	s.Logger.Info("Server stopped")
	return nil
}

func (s *Server) release() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Manager.Close(ctx); err != nil {
		s.Logger.Warn("Failed to close Telegram session: %v", err)
	}
	if err := s.Tracer.Shutdown(ctx); err != nil {
		s.Logger.Warn("Failed to flush traces: %v", err)
	}
}

// RunServer configures process logging, builds the bridge from cfg and serves
// on cfg.ListenAddr until SIGINT or SIGTERM.
func RunServer(ctx context.Context, cfg config.Config, meta config.Metadata) error {
	root, err := logging.Configure(logging.ParseLevel(cfg.LogLevel), cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()
	logger := root.WithComponent("Bridge")

	if file := meta.ConfigFile(); file != "" {
		logger.Info("Loaded config file %s", file)
	}
	logger.Info("Configuration: %s", cfg.Summary(meta))

	server, err := Build(cfg, WithLogger(logger))
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		server.release()
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr(), err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Serve(ctx, listener)
}
