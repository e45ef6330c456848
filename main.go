package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"interview-assistant-service/assistant"
	"interview-assistant-service/config"
	"interview-assistant-service/handlers"
	"interview-assistant-service/interview"
	"interview-assistant-service/metrics"
	"interview-assistant-service/middleware"
	"interview-assistant-service/openai"
	"interview-assistant-service/version"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	EndPointHealth    = "/health"
	EndPointVersion   = "/version"
	EndPointMetrics   = "/metrics"
	EndPointInterview = "/interview"
	EndPointFeedback  = "/feedback"

	rateLimitSweepInterval = time.Minute
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	log.Infof("Starting %s", version.Get(handlers.ServiceName))

	client := openai.NewClient(cfg)
	service := interview.NewService(client, newResolver(cfg, client), cfg.RunTimeout)
	limiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)

	if cfg.MetricsEnabled {
		metrics.Register()
	}

	router := setupRouter(cfg, handlers.NewInterviewHandler(service), limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepRateLimiter(ctx, limiter)

	go func() {
		log.Infof("Interview assistant service listening on port %s", cfg.Port)
		log.Infof("Rate limit: %d requests per %s", cfg.RateLimitMax, cfg.RateLimitWindow)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}

	level, err := log.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if level == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

func newResolver(cfg *config.Config, client *openai.Client) assistant.Resolver {
	if !cfg.DynamicAssistant() {
		log.Infof("Using configured assistant %s", cfg.AssistantID)
		return assistant.NewStaticResolver(cfg.AssistantID)
	}

	log.Infof("Assistant will be looked up by name %q", cfg.AssistantName)
	return assistant.NewNamedResolver(client, assistant.Spec{
		Name:          cfg.AssistantName,
		Model:         cfg.AssistantModel,
		Instructions:  assistant.Instructions,
		LookupTimeout: cfg.LookupTimeout,
	})
}

func setupRouter(cfg *config.Config, h *handlers.InterviewHandler, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Warnf("Invalid TRUSTED_PROXIES %v: %v", cfg.TrustedProxies, err)
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())
	if cfg.GzipEnabled {
		router.Use(gzip.Gzip(gzip.DefaultCompression))
	}
	router.Use(middleware.CORS())

	router.GET(EndPointHealth, h.HealthCheck)
	router.GET(EndPointVersion, h.Version)
	if cfg.MetricsEnabled {
		router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))
	}

	rateLimited := router.Group("/")
	rateLimited.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimitMessage))
	{
		rateLimited.POST(EndPointInterview, h.Interview)
		rateLimited.POST(EndPointFeedback, h.Feedback)
	}

	return router
}

func sweepRateLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(rateLimitSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
