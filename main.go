package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handler "ghlrelay/api"
	"ghlrelay/internal/crm"
	"ghlrelay/internal/extract"
	"ghlrelay/internal/logger"
	"ghlrelay/internal/observe"
	"ghlrelay/internal/otel"
	"ghlrelay/internal/snapshot"
)

func main() {
	ctx := context.Background()

	config, err := handler.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	res, err := otel.NewResource(ctx, config.OTel.ServiceName, config.OTel.ServiceVersion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to describe service: %v\n", err)
		os.Exit(1)
	}

	// OTel must init before the logger, which bridges to it in production.
	telemetry, err := otel.Setup(ctx, config.OTel, res)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize otel: %v\n", err)
		os.Exit(1)
	}

	log, logFiles, err := logger.Setup(logger.Options{
		Production:  config.IsProduction(),
		Level:       config.Log.Level,
		Dir:         config.Log.Dir,
		OTelEnabled: telemetry != nil,
		ServiceName: config.OTel.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logFiles.Close()

	log.InfoContext(ctx, "relay starting",
		"env", config.Env,
		"service", config.OTel.ServiceName,
		"otel", telemetry != nil,
	)

	metrics := observe.Discard()
	shutdownMetrics := func(context.Context) error { return nil }
	if config.MetricsEnabled {
		metrics, shutdownMetrics, err = observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    config.OTel.ServiceName,
			ServiceVersion: config.OTel.ServiceVersion,
			Resource:       res,
		})
		if err != nil {
			log.ErrorContext(ctx, "failed to initialize metrics", "error", err)
			os.Exit(1)
		}
	}

	var crmClient crm.Client
	if config.IsProduction() {
		crmClient = crm.NewGHL(config.GHL, log, metrics)
		log.InfoContext(ctx, "crm: live GoHighLevel client", "base_url", config.GHL.BaseURL)
	} else {
		crmClient = crm.NewSimulated(log)
		log.InfoContext(ctx, "crm: simulation mode, no GoHighLevel calls will be made")
	}

	var extractor extract.Extractor = extract.NewDisabled(log)
	if config.HasOpenAIConfig() {
		openaiExtractor, err := extract.NewOpenAI(config.OpenAI, log, metrics)
		if err != nil {
			log.ErrorContext(ctx, "failed to create extractor", "error", err)
			os.Exit(1)
		}
		extractor = openaiExtractor
		log.InfoContext(ctx, "transcript extraction enabled", "model", openaiExtractor.Model())
	} else {
		log.WarnContext(ctx, "OPENAI_API_KEY not set, transcript extraction disabled")
	}

	var snapshots *snapshot.Store
	if config.Snapshot.Enabled {
		snapshots = snapshot.New(config.Snapshot.Dir, config.Snapshot.Limit)
		log.InfoContext(ctx, "webhook snapshots enabled", "dir", snapshots.Dir(), "limit", config.Snapshot.Limit)
	}

	svc := handler.NewCallService(config, crmClient, extractor, log, metrics)
	router := handler.SetupRouter(handler.RouterDeps{
		Config:    config,
		Service:   svc,
		Snapshots: snapshots,
		Logger:    log,
		Metrics:   metrics,
	})

	server := &http.Server{
		Addr:              config.Host + ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.InfoContext(ctx, "http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "metrics shutdown error", "error", err)
	}
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	log.InfoContext(shutdownCtx, "shutdown complete")
}
