package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"k8s-simplify/internal/app"
	"k8s-simplify/internal/config"
	"k8s-simplify/internal/handler"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/router"
	"k8s-simplify/internal/service"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (YAML)")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(viper.New(), *configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 初始化日志
	appLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer func() { _ = appLogger.Sync() }()

	// 初始化服务
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	application, err := app.New(cfg, appLogger, app.Options{Registerer: reg})
	if err != nil {
		appLogger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()
	tasks := service.NewTaskService(application.Cluster, appLogger.Named("task"))

	// 初始化处理器
	handlers := router.Handlers{
		SSH:     handler.NewSSHHandler(application.SSH),
		Cluster: handler.NewClusterHandler(tasks, application.CheckPreconditions),
		Task:    handler.NewTaskHandler(tasks, appLogger.Named("stream"), cfg.Server.AllowedOrigins),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(handler.Recovery())

	// CORS 配置
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	if len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	router.RegisterRoutes(r, handlers, reg)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		appLogger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
}
