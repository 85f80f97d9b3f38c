package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"feedgraph/api/handlers"
	"feedgraph/api/middleware"
	"feedgraph/api/routes"
	"feedgraph/config"
	"feedgraph/db"
	"feedgraph/services"
)

func initLogger() {
	level := zapcore.InfoLevel
	if config.AppConfig.Logs.Level != "" {
		if parsed, err := zapcore.ParseLevel(config.AppConfig.Logs.Level); err == nil {
			level = parsed
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to build logger: " + err.Error())
	}
	zap.ReplaceGlobals(logger)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	if err := config.LoadConfig(configPath); err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	initLogger()
	zap.L().Info("starting server")

	if err := db.ConnectDB(); err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}

	if err := services.InitRedis(); err != nil {
		zap.L().Warn("redis unavailable, feed cache and counters disabled", zap.Error(err))
	}

	transport, err := services.InitTransport()
	if err != nil {
		zap.L().Warn("rabbitmq unavailable, falling back to synchronous fan-out", zap.Error(err))
		transport = nil
	}

	engine := services.NewFeedEngine(transport)
	handlers.Init(engine)

	if transport.Enabled() {
		if err := engine.StartWorkers(context.Background()); err != nil {
			panic("Failed to start feed workers: " + err.Error())
		}
	}

	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.PublicApi(router)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Backend.Host, config.AppConfig.Backend.Port)
	if err := router.Run(addr); err != nil {
		panic(err)
	}
}
