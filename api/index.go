package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"ghlrelay/internal/observe"
	"ghlrelay/internal/snapshot"
)

// RouterDeps is everything the HTTP layer needs.
type RouterDeps struct {
	Config  *Config
	Service *CallService
	// Snapshots is nil when payload snapshots are disabled.
	Snapshots *snapshot.Store
	Logger    *slog.Logger
	Metrics   *observe.Metrics
}

// SetupRouter builds the gin engine with middleware and routes.
func SetupRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.Discard()
	}
	cfg := deps.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// otelgin opens the span first so the recovery and request logs carry it.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	// RequestLogger wraps Recovery so a panicking request is still logged
	// and counted with its 500.
	router.Use(RequestLogger(log, metrics))
	router.Use(Recovery(log))
	router.Use(CORS())

	router.GET("/", RootHandler)
	router.GET("/health", HealthCheckHandler(cfg))
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.POST("/elevenlabs", ElevenLabsWebhookHandler(deps.Service, deps.Snapshots, log))
	router.POST("/lookup", LookupHandler(deps.Service, log))

	if !cfg.IsProduction() {
		router.POST("/test/elevenlabs", TestElevenLabsHandler(deps.Service))
	}

	log.Info("routes configured", "production", cfg.IsProduction(), "metrics", cfg.MetricsEnabled)
	return router
}
