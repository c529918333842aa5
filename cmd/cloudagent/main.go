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

	"github.com/karl-ai/corehub/internal/agent/cloud"
	"github.com/karl-ai/corehub/internal/common/config"
	"github.com/karl-ai/corehub/internal/common/logger"
)

type deployRequest struct {
	Service  string            `json:"service" binding:"required"`
	Image    string            `json:"image" binding:"required"`
	Cmd      []string          `json:"cmd"`
	Env      map[string]string `json:"env"`
	Network  string            `json:"network"`
	MemoryMB int64             `json:"memory_mb"`
	CPUCores float64           `json:"cpu_cores"`
}

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

	log.Info("Starting cloud agent...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect to Docker
	agent, err := cloud.NewAgent(cfg.Docker, log)
	if err != nil {
		log.Fatal("Failed to initialize Docker client", zap.Error(err))
	}
	defer agent.Close()

	if err := agent.Ping(ctx); err != nil {
		log.Fatal("Failed to connect to Docker daemon", zap.Error(err))
	}
	log.Info("Connected to Docker daemon")

	// 4. Setup HTTP server with Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	deployments := router.Group("/api/v1/deployments")
	{
		deployments.POST("", func(c *gin.Context) {
			var req deployRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := agent.Deploy(c.Request.Context(), cloud.Deployment{
				Service:  req.Service,
				Image:    req.Image,
				Cmd:      req.Cmd,
				Env:      req.Env,
				Network:  req.Network,
				MemoryMB: req.MemoryMB,
				CPUCores: req.CPUCores,
			})
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"container_id": id})
		})

		deployments.GET("", func(c *gin.Context) {
			services, err := agent.List(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"deployments": services, "count": len(services)})
		})

		deployments.GET("/:containerId", func(c *gin.Context) {
			status, err := agent.Status(c.Request.Context(), c.Param("containerId"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, status)
		})

		deployments.POST("/:containerId/stop", func(c *gin.Context) {
			if err := agent.Stop(c.Request.Context(), c.Param("containerId"), 30*time.Second); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "stopped"})
		})

		deployments.DELETE("/:containerId", func(c *gin.Context) {
			force := c.Query("force") == "true"
			if err := agent.Remove(c.Request.Context(), c.Param("containerId"), force); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "removed"})
		})
	}

	router.GET("/health", func(c *gin.Context) {
		if err := agent.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// 5. Create HTTP server
	port := cfg.Server.Port
	if port == 0 {
		port = 8083
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("HTTP server listening", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 6. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down cloud agent...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Cloud agent stopped")
}
