package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/multierr"

	"github.com/target-san/demo-webserver/cmd/handler"
	"github.com/target-san/demo-webserver/pkg/batch"
	"github.com/target-san/demo-webserver/pkg/config"
	"github.com/target-san/demo-webserver/pkg/logger"
	"github.com/target-san/demo-webserver/pkg/metrics"
	"github.com/target-san/demo-webserver/pkg/tracing"
)

const serviceName = "demo-webserver"

func main() {
	ctx := context.Background()

	logger.Init()
	log := logger.Get()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/etc/config/config.yaml"
	}

	cfgManager, err := config.NewConfigManager(configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("Failed to load config, using defaults")
		cfgManager = config.NewDefaultConfigManager()
	}
	handler.SetConfigManager(cfgManager)

	cfg := cfgManager.Get()
	applyLogging(cfg)
	recordFeatures(cfg.Features)

	cfgManager.OnChange(func(cfg *config.Config) {
		log.Info().
			Bool("debug", cfg.Features.EnableDebugLogging).
			Bool("profiling", cfg.Features.EnableProfiling).
			Bool("tracing", cfg.Features.EnableTracing).
			Msg("Configuration updated")
		applyLogging(cfg)
		recordFeatures(cfg.Features)
	})

	shutdownTracer := func(context.Context) error { return nil }
	if cfg.Features.EnableTracing {
		if shutdown, err := tracing.InitTracer(ctx, serviceName); err != nil {
			log.Error().Err(err).Msg("Failed to initialize tracer")
		} else {
			shutdownTracer = shutdown
		}
	}

	// Alloy scrapes the pprof endpoints
	if cfg.Features.EnableProfiling {
		pprofPort := os.Getenv("PPROF_PORT")
		if pprofPort == "" {
			pprofPort = "6060"
		}
		go func() {
			log.Info().Str("port", pprofPort).Msg("Starting pprof server")
			if err := http.ListenAndServe(":"+pprofPort, nil); err != nil {
				log.Error().Err(err).Msg("pprof server error")
			}
		}()
	}

	handler.SetBatchRunner(batch.NewRequester())

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(serviceName))
	r.Use(handler.HTTPMetricsMiddleware)

	r.HandleFunc("/health", handler.Health).Methods("GET")
	r.HandleFunc("/run", handler.Run).Methods("GET")
	r.HandleFunc("/config", handler.GetConfig).Methods("GET")
	r.HandleFunc("/config/feature/{feature}", handler.CheckFeature).Methods("GET")
	if cfg.Features.EnableMetrics {
		metrics.RecordApplicationInfo(os.Getenv("SERVICE_VERSION"), runtime.Version())
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info().
		Str("port", port).
		Dur("readTimeout", cfg.Server.ReadTimeout).
		Dur("writeTimeout", cfg.Server.WriteTimeout).
		Dur("idleTimeout", cfg.Server.IdleTimeout).
		Msg("Starting " + serviceName)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = multierr.Combine(
		srv.Shutdown(shutdownCtx),
		shutdownTracer(shutdownCtx),
		logger.Shutdown(),
	)
	if err != nil {
		log.Error().Err(err).Msg("Unclean shutdown")
	}

	log.Info().Msg("Server exited")
}

func applyLogging(cfg *config.Config) {
	if cfg.Features.EnableDebugLogging {
		logger.SetDebugLevel()
	} else {
		logger.SetLogLevel(cfg.Features.LogLevel)
	}

	loki := cfg.Logging.Loki
	if loki.URL != "" {
		logger.EnableLoki(loki.URL, loki.Labels, loki.MinLevel)
		return
	}
	if err := logger.DisableLoki(); err != nil {
		logger.Get().Error().Err(err).Msg("Failed to disable Loki logging")
	}
}

func recordFeatures(f config.FeatureFlags) {
	metrics.RecordFeatureFlag("profiling", f.EnableProfiling)
	metrics.RecordFeatureFlag("tracing", f.EnableTracing)
	metrics.RecordFeatureFlag("metrics", f.EnableMetrics)
	metrics.RecordFeatureFlag("debug", f.EnableDebugLogging)
	for name, enabled := range f.ExperimentalFlags {
		metrics.RecordFeatureFlag(name, enabled)
	}
}
