// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics assembles the MarketPulse analytics service.
//
// This package contains the top-level Service type that wires together
// every component of the daemon: the market data client, the
// rate-limited text generation client with its badger response cache,
// the artifact and status stores, the pipeline runner and its interval
// scheduler, the on-demand summary job manager, and the HTTP API with
// observability infrastructure.
//
// # Usage
//
//	cfg := analytics.Config{Port: 12310}
//	svc, err := analytics.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/handlers"
	"github.com/AleutianAI/MarketPulse/services/analytics/jobs"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
	"github.com/AleutianAI/MarketPulse/services/analytics/routes"
	"github.com/AleutianAI/MarketPulse/services/analytics/stages"
	"github.com/AleutianAI/MarketPulse/services/analytics/status"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
	"github.com/AleutianAI/MarketPulse/services/textgen"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the analytics service.
//
// # Description
//
// Service abstracts the daemon lifecycle, enabling testing and
// alternative implementations. Only the essential lifecycle methods
// are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the background scheduler and the HTTP server, then
	// blocks until the server stops. Cleanup is automatic on return.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds analytics service configuration options.
//
// # Description
//
// Config centralizes all configuration for the service. Values can be
// populated from environment variables (see cmd/analytics), config
// files, or programmatically for testing. All fields are optional with
// defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// DataDir is the directory for artifacts and the status file.
	// Default: "./data"
	DataDir string

	// CacheDir is the badger directory for the AI response cache.
	// Default: "<DataDir>/narrative_cache"
	CacheDir string

	// RunInterval is how often the scheduler starts a pipeline run.
	// Default: 1 hour
	RunInterval time.Duration

	// RunCooldown is the minimum gap between manually triggered runs.
	// Default: 60 seconds
	RunCooldown time.Duration

	// FastMode makes every scheduled run skip the AI summary stage.
	// Default: false
	FastMode bool

	// SkipInitialRun disables the immediate pipeline run at startup,
	// leaving the first run to the interval ticker. Default: false
	SkipInitialRun bool

	// SummaryTTL is how long cached AI responses stay servable.
	// Default: 24 hours
	SummaryTTL time.Duration

	// MinCallInterval is the spacing floor between AI backend calls.
	// Default: 6 seconds (free tier: 10 requests/minute)
	MinCallInterval time.Duration

	// MaxInFlight caps concurrent AI backend calls. Default: 1
	MaxInFlight int

	// DailyCallLimit caps AI backend calls per UTC day. Default: 1000
	DailyCallLimit int

	// Portfolio is the ticker set for the risk and summary stages.
	// Default: AAPL, MSFT, GOOGL, AMZN, NVDA
	Portfolio []string

	// SummaryTopN is how many portfolio tickers the summary stage
	// covers per run. Default: 5
	SummaryTopN int

	// OTelEndpoint is the OpenTelemetry collector endpoint. When empty
	// the tracer falls back to a stdout exporter for development.
	OTelEndpoint string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Empty leaves gin's GIN_MODE env handling in charge.
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service coordinates the full daemon: market data and text generation
// clients, artifact/status persistence, the pipeline runner with its
// interval scheduler, on-demand summary jobs, HTTP routing, tracing,
// and metrics.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config  Config
	router  *gin.Engine
	metrics *observability.PipelineMetrics

	data      *marketdata.Client
	recorder  *marketdata.Recorder
	cache     *textgen.ResponseCache
	generator *textgen.Client

	store   *artifacts.Store
	watcher *artifacts.Watcher
	status  *status.Store

	runner    *pipeline.Runner
	scheduler *pipeline.Scheduler
	jobs      *jobs.Manager
	quotes    *handlers.QuoteHandler

	// baseCtx is the lifecycle context handed to background work
	// (scheduler, async runs, on-demand jobs). Cancelled by cleanup.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// =============================================================================
// Constructor
// =============================================================================

// New creates a new analytics Service with the given configuration.
//
// # Description
//
// New initializes all service components in dependency order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (OTLP or stdout)
//  3. Initializes Prometheus metrics
//  4. Opens the badger response cache and builds the AI client
//  5. Creates the market data client and optional Influx recorder
//  6. Opens the artifact store, manifest watcher, and status store
//  7. Builds the stage sequence, runner, scheduler, and job manager
//  8. Sets up HTTP routes
//
// Construction does not start any background work; Run() does.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run analytics service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the text generation backend
//     (API keys, model names).
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.metrics = observability.InitMetrics()
	slog.Info("Initialized Prometheus metrics for the pipeline")

	if err := s.initTextGen(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize text generation: %w", err)
	}

	s.initMarketData()

	if err := s.initStores(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize stores: %w", err)
	}

	if err := s.initPipeline(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the manifest watcher, the pipeline scheduler, and the HTTP
// server, then blocks until the server stops.
func (s *service) Run() error {
	defer s.cleanup()

	if err := s.watcher.Start(s.baseCtx); err != nil {
		return fmt.Errorf("failed to start artifact watcher: %w", err)
	}
	if err := s.scheduler.Start(s.baseCtx); err != nil {
		return fmt.Errorf("failed to start pipeline scheduler: %w", err)
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting analytics server",
		"port", s.config.Port,
		"data_dir", s.config.DataDir,
		"run_interval", s.config.RunInterval.String(),
	)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "narrative_cache")
	}
	if cfg.RunInterval == 0 {
		cfg.RunInterval = 1 * time.Hour
	}
	if cfg.RunCooldown == 0 {
		cfg.RunCooldown = 60 * time.Second
	}
	if cfg.SummaryTTL == 0 {
		cfg.SummaryTTL = 24 * time.Hour
	}
	if cfg.MinCallInterval == 0 {
		cfg.MinCallInterval = 6 * time.Second
	}
	if cfg.MaxInFlight == 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.DailyCallLimit == 0 {
		cfg.DailyCallLimit = 1000
	}
	if len(cfg.Portfolio) == 0 {
		cfg.Portfolio = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"}
	}
	if cfg.SummaryTopN == 0 {
		cfg.SummaryTopN = 5
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter when a collector endpoint is
// configured, or a stdout exporter for development when it is not.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	var traceExporter sdktrace.SpanExporter
	if s.config.OTelEndpoint != "" {
		conn, err := grpc.NewClient(s.config.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		traceExporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		slog.Info("Tracing to OTLP collector", "endpoint", s.config.OTelEndpoint)
	} else {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		traceExporter = exporter
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing to stdout")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("analytics-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown trace exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initTextGen opens the response cache and builds the rate-limited AI
// client around the backend named by TEXTGEN_BACKEND.
func (s *service) initTextGen() error {
	cacheCfg := textgen.DefaultCacheConfig()
	cacheCfg.Path = s.config.CacheDir
	cacheCfg.TTL = s.config.SummaryTTL

	cache, err := textgen.NewResponseCache(cacheCfg)
	if err != nil {
		return fmt.Errorf("open response cache: %w", err)
	}
	s.cache = cache

	backend, err := textgen.NewBackendFromEnv()
	if err != nil {
		return err
	}

	clientCfg := textgen.DefaultClientConfig()
	clientCfg.Throttle.MinInterval = s.config.MinCallInterval
	clientCfg.Throttle.MaxInFlight = s.config.MaxInFlight
	clientCfg.DailyCallLimit = s.config.DailyCallLimit

	client, err := textgen.NewClient(backend, cache, clientCfg)
	if err != nil {
		return err
	}
	s.generator = client

	slog.Info("Text generation client ready",
		"backend", backend.Name(),
		"model", backend.Model(),
		"min_call_interval", s.config.MinCallInterval.String(),
		"daily_call_limit", s.config.DailyCallLimit,
	)
	return nil
}

// initMarketData creates the quote client and the optional InfluxDB
// recorder. A configured but unreachable InfluxDB is a warning, never
// a boot error.
func (s *service) initMarketData() {
	s.data = marketdata.NewClient()

	s.recorder = marketdata.NewRecorderFromEnv()
	if s.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, 5*time.Second)
	defer cancel()
	if err := s.recorder.Ping(ctx); err != nil {
		slog.Warn("InfluxDB configured but not reachable, bars may be dropped",
			"error", err)
		return
	}
	slog.Info("InfluxDB price retention enabled")
}

// initStores opens the artifact store, its manifest watcher, and the
// pipeline status store under DataDir.
func (s *service) initStores() error {
	store, err := artifacts.NewStore(s.config.DataDir)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	s.store = store

	watcher, err := artifacts.NewWatcher(store, &artifacts.WatcherOptions{
		OnUpdate: func(infos []artifacts.Info) {
			slog.Debug("Artifact manifest refreshed", "count", len(infos))
		},
	})
	if err != nil {
		return fmt.Errorf("create artifact watcher: %w", err)
	}
	s.watcher = watcher

	statusStore, err := status.NewStore(filepath.Join(s.config.DataDir, "pipeline_status.json"))
	if err != nil {
		return fmt.Errorf("open status store: %w", err)
	}
	s.status = statusStore

	return nil
}

// initPipeline builds the stage sequence, the single-flight runner, the
// interval scheduler, and the on-demand job manager.
func (s *service) initPipeline() error {
	summarizer := stages.NewSummarizer(s.data, s.generator, s.metrics)

	stageList := []pipeline.Stage{
		stages.NewMacroStage(s.data, s.store, s.metrics),
		stages.NewSectorStage(s.data, s.store, s.metrics),
		stages.NewRiskStage(s.data, s.store, s.metrics, s.recorder, s.config.Portfolio),
		stages.NewCalendarStage(s.store, s.metrics),
		stages.NewSummaryStage(summarizer, s.store, s.metrics, s.config.Portfolio, s.config.SummaryTopN),
	}

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Stages:   stageList,
		Status:   s.status,
		Metrics:  s.metrics,
		Cooldown: s.config.RunCooldown,
	})
	if err != nil {
		return err
	}
	s.runner = runner

	s.scheduler = pipeline.NewScheduler(runner, pipeline.SchedulerConfig{
		Interval:   s.config.RunInterval,
		RunOnStart: !s.config.SkipInitialRun,
		FastMode:   s.config.FastMode,
	})

	s.jobs = jobs.NewManager(summarizer, s.store, s.metrics)
	s.quotes = handlers.NewQuoteHandler(s.data)

	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("analytics-service"))

	routes.SetupRoutes(s.baseCtx, s.router, s.store, s.watcher, s.runner, s.jobs, s.generator, s.quotes)
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure. Stops the
// scheduler and watcher, cancels background work, drains on-demand
// jobs, then closes the AI client, the cache, secure memory, and the
// tracer. Nil components (partial initialization) are skipped.
func (s *service) cleanup() {
	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil {
			slog.Warn("Pipeline scheduler stop error", "error", err)
		}
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}

	if s.baseCancel != nil {
		s.baseCancel()
	}
	if s.jobs != nil {
		s.jobs.Wait()
	}

	if s.generator != nil {
		s.generator.Close()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			slog.Warn("Response cache close error", "error", err)
		}
	}
	if s.recorder != nil {
		s.recorder.Close()
	}
	textgen.PurgeSecureMemory()

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
