// Package main starts the integration registry admin server.
//
//	@title			Integration Registry API
//	@version		1.0
//	@description	Admin API for the integration registry and dependency engine
//	@host			localhost:8080
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/bizhub/integrations/docs"
	integrationapp "github.com/bizhub/integrations/internal/application/integration"
	"github.com/bizhub/integrations/internal/infrastructure/catalog"
	"github.com/bizhub/integrations/internal/infrastructure/config"
	"github.com/bizhub/integrations/internal/infrastructure/event"
	"github.com/bizhub/integrations/internal/infrastructure/health"
	"github.com/bizhub/integrations/internal/infrastructure/logger"
	"github.com/bizhub/integrations/internal/infrastructure/scheduler"
	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
	"github.com/bizhub/integrations/internal/interfaces/http/handler"
	"github.com/bizhub/integrations/internal/interfaces/http/middleware"
	"github.com/bizhub/integrations/internal/interfaces/http/router"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting integration registry",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers fall back to no-op when disabled
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		log = loggerProvider.Bridge(log, level)
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.SpanProfiles && profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	registryMetrics, err := telemetry.NewRegistryMetrics(meterProvider.Meter(telemetry.TracerName))
	if err != nil {
		log.Fatal("Failed to create registry metrics", zap.Error(err))
	}

	// Lifecycle events
	bus := event.NewInMemoryEventBus(log)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		source, _ := os.Hostname()
		forwarder := event.NewRedisForwarder(redisClient,
			event.WithForwarderChannel(cfg.Redis.Channel),
			event.WithForwarderSource(source),
			event.WithForwarderLogger(log),
		)
		bus.Subscribe(forwarder)

		relay := event.NewRedisRelay(redisClient, cfg.Redis.Channel, source, log)
		go func() {
			if err := relay.Run(ctx, event.NewLoggingHandler(log.Named("remote"))); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Integration event relay failed", zap.Error(err))
			}
		}()
		log.Info("Forwarding integration events to redis", zap.String("channel", forwarder.Channel()))
	}

	// Registry
	registry := integrationapp.NewRegistry(log,
		integrationapp.WithEventBus(bus),
		integrationapp.WithHealthProber(health.NewCompositeProber(
			health.MetricsProber{},
			health.NewHTTPProber(health.WithProberLogger(log)),
		)),
		integrationapp.WithHookTimeout(cfg.Registry.HookTimeout),
		integrationapp.WithHealthCheckTimeout(cfg.Registry.HealthCheckTimeout),
		integrationapp.WithTreeDepth(cfg.Registry.TreeDepth),
		integrationapp.WithConflictCheckOnEnable(cfg.Registry.EnforceConflictsOnEnable),
		integrationapp.WithMetrics(registryMetrics),
		integrationapp.WithTracer(tracerProvider.Tracer(telemetry.TracerName)),
	)

	if cfg.Registry.CatalogPath != "" {
		cat, err := catalog.Load(cfg.Registry.CatalogPath)
		if err != nil {
			log.Fatal("Failed to load integration catalog", zap.String("path", cfg.Registry.CatalogPath), zap.Error(err))
		}
		res, err := cat.Apply(ctx, registry, log)
		if err != nil {
			log.Warn("Integration catalog applied with errors", zap.Int("failed", res.Failed), zap.Error(err))
		}
		log.Info("Integration catalog loaded",
			zap.String("path", cfg.Registry.CatalogPath),
			zap.Int("registered", len(res.Registered)),
			zap.Int("enabled", len(res.Enabled)),
		)
	}

	sweeper, err := scheduler.NewHealthSweepScheduler(registry, log.Named("health"), scheduler.HealthSweepSchedulerConfig{
		Enabled:    cfg.Registry.HealthSweepInterval > 0,
		Interval:   cfg.Registry.HealthSweepInterval,
		RunOnStart: true,
	})
	if err != nil {
		log.Fatal("Failed to create health sweep scheduler", zap.Error(err))
	}
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start health sweep scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to configure request validator", zap.Error(err))
	}

	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:          profiler.IsEnabled(),
		SkipPathPrefixes: middleware.DefaultProfilingConfig().SkipPathPrefixes,
	}))
	engine.Use(middleware.HTTPMetrics(meterProvider.Meter("http.server")))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	integrationHandler := handler.NewIntegrationHandler(registry)
	var routerOpts []router.RouterOption
	if cfg.Swagger.Enabled {
		routerOpts = append(routerOpts, router.WithSwagger(middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		})))
	}
	router.NewRouter(engine, routerOpts...).
		Register(router.SystemRoutes(handler.NewSystemHandler(cfg.App.Name, Version))).
		Register(router.IntegrationRoutes(integrationHandler)).
		Register(router.RegistryRoutes(integrationHandler)...).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping health sweep scheduler", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
