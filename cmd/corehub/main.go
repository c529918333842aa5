package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/alerts"
	"github.com/karl-ai/corehub/internal/cache"
	"github.com/karl-ai/corehub/internal/common/config"
	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/events/bus"
	"github.com/karl-ai/corehub/internal/gateway/websocket"
	"github.com/karl-ai/corehub/internal/metrics"
	"github.com/karl-ai/corehub/internal/monitor"
	taskapi "github.com/karl-ai/corehub/internal/task/api"
	"github.com/karl-ai/corehub/internal/task/repository"
	"github.com/karl-ai/corehub/internal/task/service"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting CoreHub service...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Connect the event bus. An empty NATS URL selects the in-process bus.
	var eventBus bus.EventBus
	if cfg.NATS.URL != "" {
		natsBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		eventBus = natsBus
		log.Info("Connected to NATS event bus", zap.String("url", cfg.NATS.URL))
	} else {
		eventBus = bus.NewMemoryEventBus(log)
		log.Info("Using in-memory event bus")
	}
	defer eventBus.Close()

	// 5. Open the task store
	repo, err := repository.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open task store", zap.Error(err))
	}
	defer repo.Close()
	log.Info("Opened task store", zap.String("driver", cfg.Database.Driver))

	// 6. Initialize the task service
	taskSvc, err := service.NewService(ctx, repo, eventBus, log)
	if err != nil {
		log.Fatal("Failed to initialize task service", zap.Error(err))
	}

	// 7. Initialize the shared cache and its expiry sweeper
	sharedCache := cache.New(cfg.Cache.DefaultTTLDuration(), log)
	cacheStop := make(chan struct{})
	if cfg.Cache.CleanupInterval > 0 {
		go sharedCache.RunCleanup(time.Duration(cfg.Cache.CleanupInterval)*time.Second, cacheStop)
	}

	// 8. Initialize the metrics collector and register its sources
	collector := metrics.NewCollector(cfg.Monitoring.BufferSize,
		metrics.RulesFromConfig(cfg.Monitoring.Thresholds), log)

	appStats := monitor.NewAppStats()
	collector.Register(metrics.FamilySystem, metrics.NewHostProbe("/"))
	collector.Register(metrics.FamilyApplication, monitor.ApplicationSource(appStats, sharedCache))
	collector.Register(metrics.FamilyAgent, monitor.AgentSource(taskSvc))
	collector.Register(metrics.FamilyBusiness, monitor.BusinessSource(taskSvc))

	// 9. Initialize the alert manager
	alertMgr := alerts.NewManager(alerts.Options{
		DefaultCooldown: cfg.Alerts.CooldownDuration(),
		DispatchTimeout: cfg.Alerts.DispatchTimeoutDuration(),
	}, alerts.ChannelsFromConfig(cfg.Alerts), eventBus, log)

	// 10. Start the monitoring service
	monSvc := monitor.NewService(collector, alertMgr, cfg.Monitoring.IntervalDuration(), log)
	if err := monSvc.Start(ctx); err != nil {
		log.Fatal("Failed to start monitoring service", zap.Error(err))
	}
	log.Info("Started monitoring service",
		zap.Duration("interval", cfg.Monitoring.IntervalDuration()))

	// 11. Start the WebSocket gateway
	hub := websocket.NewHub(log)
	go hub.Run(ctx)
	gateway := websocket.NewGateway(hub, eventBus, log)
	if err := gateway.Start(); err != nil {
		log.Fatal("Failed to start WebSocket gateway", zap.Error(err))
	}

	// 12. Setup HTTP server with Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(taskapi.Recovery(log))
	router.Use(taskapi.RequestLogger(log))
	router.Use(taskapi.ErrorHandler(log))
	router.Use(taskapi.CORS())
	router.Use(monitor.Instrument(appStats))

	// 13. Register API routes
	apiV1 := router.Group("/api/v1")
	taskapi.SetupRoutes(apiV1, taskSvc, log)

	monHandler := monitor.NewHandler(monSvc, collector, alertMgr, sharedCache, taskSvc, log)
	monitor.SetupRoutes(apiV1, monHandler)

	router.GET("/ws", gateway.HandleConnection)

	// 14. Create HTTP server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// 15. Start server in goroutine
	go func() {
		log.Info("HTTP server listening", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 16. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down CoreHub service...")

	// 17. Graceful shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	gateway.Stop()
	monSvc.Stop()
	close(cacheStop)

	log.Info("CoreHub service stopped")
}
