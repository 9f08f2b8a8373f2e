package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	handlers "robofabric/internal/handlers/http"
	"robofabric/internal/core/ports"
	"robofabric/internal/core/services"
	"robofabric/internal/infrastructure/middleware"
	"robofabric/internal/infrastructure/monitoring"
	"robofabric/internal/infrastructure/repositories/memory"
	"robofabric/internal/infrastructure/signal"
	"robofabric/pkg/config"
	"robofabric/pkg/logger"
	"robofabric/pkg/tracing"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if cfg == nil && err == nil {
		// No config file on any path: defaults plus env overrides.
		cfg, err = config.Load(configPaths[0])
	}
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zlog.Sync()
	sugar := zlog.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		sugar.Fatalw("failed to initialize tracing", "error", err)
	}

	var metrics ports.MetricsRecorder
	var metricsServer *http.Server
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewPrometheusCollector()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
			Handler: mux,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sugar.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	// Repositories and protocol services
	roboticsRepo := memory.NewRoboticsRoomRepository()
	videoRepo := memory.NewVideoRoomRepository()
	roboticsService := services.NewRoboticsService(roboticsRepo, metrics, zlog)
	videoService := services.NewVideoService(videoRepo, metrics, zlog)

	wsServer := signal.NewWebSocketServer(roboticsService, videoService, metrics, signal.Config{
		PingInterval:      cfg.WebSocket.PingInterval,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		WriteTimeout:      cfg.WebSocket.WriteTimeout,
		JoinTimeout:       cfg.WebSocket.JoinTimeout,
		OutboundQueueSize: cfg.WebSocket.OutboundQueueSize,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		MessagesPerSecond: wsMessagesPerSecond(cfg),
		MessageBurst:      cfg.RateLimiting.WebSocket.Burst,
	}, zlog)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(sugar),
		middleware.ErrorHandlerMiddleware(sugar),
		middleware.TracingMiddleware(),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	handlers.NewRoboticsHandler(roboticsService, zlog).SetupRoutes(router)
	handlers.NewVideoHandler(videoService, zlog).SetupRoutes(router)

	wsLimit := middleware.NewWSConnectRateLimitMiddleware(cfg)
	router.GET("/robotics/workspaces/:workspace_id/rooms/:room_id/ws", wsLimit, wsServer.HandleRobotics)
	router.GET("/video/workspaces/:workspace_id/rooms/:room_id/ws", wsLimit, wsServer.HandleVideo)

	health := monitoring.NewHealthChecker()
	router.GET("/health", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		c.JSON(http.StatusOK, status)
	})

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		sugar.Infow("starting server", "address", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	ossignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		sugar.Errorw("server shutdown failed", "error", err)
	}
	roboticsService.Shutdown()
	videoService.Shutdown()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}
	if err := tp.Shutdown(ctx); err != nil {
		sugar.Errorw("tracer shutdown failed", "error", err)
	}
	sugar.Info("shutdown complete")
}

func wsMessagesPerSecond(cfg *config.Config) float64 {
	if !cfg.RateLimiting.Enabled {
		return 0
	}
	return cfg.RateLimiting.WebSocket.MessagesPerSecond
}
